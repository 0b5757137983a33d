package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"civicsource/internal/models"
)

// Record is one item as collected from a source, before validation and
// persistence. Award is set when the item represents a contract award.
type Record struct {
	Category   string
	Name       string
	Lat        *float64
	Lon        *float64
	Confidence float64
	Properties map[string]any
	EntityName string
	Award      *AwardInfo
}

type AwardInfo struct {
	AwardID     string
	Description string
	Amount      decimal.Decimal
	Location    string
	AwardedAt   time.Time
}

type FetchParams struct {
	Since *time.Time
	Limit int
}

type FetchResult struct {
	Records []Record
}

// Adapter translates a source-specific query into records. Implementations
// must honor ctx cancellation; the scheduler wraps every call in a timeout.
type Adapter interface {
	Kind() string
	Fetch(ctx context.Context, src models.Source, params FetchParams) (FetchResult, error)
}
