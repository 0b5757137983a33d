package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicsource/internal/models"
)

func TestRESTAdapterFetch(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"category":"facility","name":"Main Library","lat":40.7,"lon":-73.9,"confidence":0.8},
			{"category":"award","name":"Paving Contract","entity":"Acme Construction LLC",
			 "award_id":"AW-1","amount":"125000.50","location":"Springfield",
			 "awarded_at":"2026-08-01T00:00:00Z"}
		]`))
	}))
	defer srv.Close()

	a := &RESTAdapter{HTTP: srv.Client()}
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	result, err := a.Fetch(context.Background(), models.Source{Slug: "city-data", Endpoint: srv.URL}, FetchParams{
		Since: &since,
		Limit: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery["limit"][0] != "50" || gotQuery["since"][0] != "2026-08-01T00:00:00Z" {
		t.Fatalf("query=%v", gotQuery)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records=%d want 2", len(result.Records))
	}

	first := result.Records[0]
	if first.Confidence != 0.8 || first.Lat == nil || *first.Lat != 40.7 {
		t.Fatalf("first=%+v", first)
	}

	second := result.Records[1]
	if second.Confidence != 0.5 {
		t.Fatalf("confidence=%v, missing confidence defaults to 0.5", second.Confidence)
	}
	if second.Award == nil || second.Award.AwardID != "AW-1" {
		t.Fatalf("award=%+v", second.Award)
	}
	if second.Award.Amount.String() != "125000.5" {
		t.Fatalf("amount=%s", second.Award.Amount)
	}
	if second.EntityName != "Acme Construction LLC" {
		t.Fatalf("entity=%q", second.EntityName)
	}
}

func TestRESTAdapterFetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := &RESTAdapter{HTTP: srv.Client()}
	_, err := a.Fetch(context.Background(), models.Source{Slug: "city-data", Endpoint: srv.URL}, FetchParams{})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestRegistryResolve(t *testing.T) {
	rest := &RESTAdapter{}
	r := NewRegistry(rest)

	got, err := r.Resolve("rest")
	if err != nil || got != Adapter(rest) {
		t.Fatalf("got=%v err=%v", got, err)
	}
	if _, err := r.Resolve("soap"); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}
