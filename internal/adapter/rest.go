package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"civicsource/internal/models"
)

// RESTAdapter fetches a JSON array of records from the source endpoint.
// It covers the common case of open-data APIs that expose a flat record
// listing; source-specific adapters register alongside it under their own
// kind.
type RESTAdapter struct {
	HTTP *http.Client
}

func (a *RESTAdapter) Kind() string { return "rest" }

type restRecord struct {
	Category   string         `json:"category"`
	Name       string         `json:"name"`
	Lat        *float64       `json:"lat"`
	Lon        *float64       `json:"lon"`
	Confidence *float64       `json:"confidence"`
	Properties map[string]any `json:"properties"`
	Entity     string         `json:"entity"`

	AwardID     string `json:"award_id"`
	Amount      string `json:"amount"`
	Location    string `json:"location"`
	Description string `json:"description"`
	AwardedAt   string `json:"awarded_at"`
}

func (a *RESTAdapter) Fetch(ctx context.Context, src models.Source, params FetchParams) (FetchResult, error) {
	client := a.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	endpoint, err := url.Parse(src.Endpoint)
	if err != nil {
		return FetchResult{}, fmt.Errorf("parse endpoint: %w", err)
	}
	q := endpoint.Query()
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Since != nil && !params.Since.IsZero() {
		q.Set("since", params.Since.UTC().Format(time.RFC3339))
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return FetchResult{}, fmt.Errorf("source %s returned %d: %s", src.Slug, resp.StatusCode, string(body))
	}

	var raw []restRecord
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return FetchResult{}, fmt.Errorf("decode response: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		rec := Record{
			Category:   item.Category,
			Name:       item.Name,
			Lat:        item.Lat,
			Lon:        item.Lon,
			Properties: item.Properties,
			EntityName: item.Entity,
			Confidence: 0.5,
		}
		if item.Confidence != nil {
			rec.Confidence = *item.Confidence
		}
		if item.AwardID != "" {
			award := &AwardInfo{
				AwardID:     item.AwardID,
				Description: item.Description,
				Location:    item.Location,
			}
			if amt, err := decimal.NewFromString(item.Amount); err == nil {
				award.Amount = amt
			}
			if ts, err := time.Parse(time.RFC3339, item.AwardedAt); err == nil {
				award.AwardedAt = ts.UTC()
			}
			rec.Award = award
		}
		records = append(records, rec)
	}

	return FetchResult{Records: records}, nil
}
