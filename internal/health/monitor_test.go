package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"civicsource/internal/config"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

// stubRepo mirrors the store's probe bookkeeping in memory, including the
// threshold escalation the real implementation does in SQL.
type stubRepo struct {
	repository.Repository

	source models.Source
	probes []models.HealthProbe
}

func (s *stubRepo) ListActiveSources(ctx context.Context) ([]models.Source, error) {
	return []models.Source{s.source}, nil
}

func (s *stubRepo) InsertHealthProbe(ctx context.Context, item *models.HealthProbe) error {
	s.probes = append(s.probes, *item)
	return nil
}

func (s *stubRepo) RecordProbeSuccess(ctx context.Context, slug string, responseMs int64, at time.Time) error {
	s.source.ConsecutiveFailures = 0
	s.source.HealthStatus = models.HealthHealthy
	s.source.LastProbeAt = &at
	return nil
}

func (s *stubRepo) RecordProbeFailure(ctx context.Context, slug string, responseMs int64, failingThreshold int, at time.Time) error {
	s.source.ConsecutiveFailures++
	if s.source.ConsecutiveFailures >= failingThreshold {
		s.source.HealthStatus = models.HealthFailing
	} else {
		s.source.HealthStatus = models.HealthDegraded
	}
	s.source.LastProbeAt = &at
	return nil
}

func newMonitor(repo *stubRepo) *Monitor {
	return &Monitor{
		Repo:   repo,
		HTTP:   &http.Client{},
		Logger: zap.NewNop(),
		Config: config.HealthMonitorConfig{
			Concurrency:      1,
			ProbeTimeout:     2 * time.Second,
			FailingThreshold: 2,
		},
	}
}

func TestProbeEscalatesToFailing(t *testing.T) {
	codes := make(chan int, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(<-codes)
	}))
	defer srv.Close()

	repo := &stubRepo{source: models.Source{
		Slug:         "city-data",
		Active:       true,
		ProbeURL:     srv.URL,
		HealthStatus: models.HealthUnknown,
	}}
	m := newMonitor(repo)
	ctx := context.Background()

	for _, code := range []int{200, 500, 500, 500} {
		codes <- code
		if err := m.RunOnce(ctx); err != nil {
			t.Fatal(err)
		}
	}

	if repo.source.ConsecutiveFailures != 3 {
		t.Fatalf("consecutive_failures=%d want 3", repo.source.ConsecutiveFailures)
	}
	if repo.source.HealthStatus != models.HealthFailing {
		t.Fatalf("health=%q want failing", repo.source.HealthStatus)
	}
	if len(repo.probes) != 4 {
		t.Fatalf("probes recorded=%d want 4", len(repo.probes))
	}
	if repo.probes[0].Status != models.ProbeHealthy || repo.probes[1].Status != models.ProbeUnhealthy {
		t.Fatalf("probe statuses=%q,%q", repo.probes[0].Status, repo.probes[1].Status)
	}
}

func TestProbeClassifiesClientErrorAsDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	repo := &stubRepo{source: models.Source{
		Slug:     "county-gis",
		Active:   true,
		ProbeURL: srv.URL,
	}}
	m := newMonitor(repo)

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.probes) != 1 || repo.probes[0].Status != models.ProbeDegraded {
		t.Fatalf("probes=%+v want one degraded probe", repo.probes)
	}
	// A non-2xx probe counts as a failure for escalation purposes.
	if repo.source.ConsecutiveFailures != 1 || repo.source.HealthStatus != models.HealthDegraded {
		t.Fatalf("source=%+v", repo.source)
	}
}

func TestProbeUnreachableHostRecordsError(t *testing.T) {
	repo := &stubRepo{source: models.Source{
		Slug:     "dead-source",
		Active:   true,
		ProbeURL: "http://127.0.0.1:1",
	}}
	m := newMonitor(repo)

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.probes) != 1 {
		t.Fatalf("probes=%d want 1", len(repo.probes))
	}
	p := repo.probes[0]
	if p.Status != models.ProbeError && p.Status != models.ProbeTimeout {
		t.Fatalf("status=%q want error or timeout", p.Status)
	}
	if p.Error == nil {
		t.Fatal("probe error message missing")
	}
}

func TestSourcesWithoutProbeURLSkipped(t *testing.T) {
	repo := &stubRepo{source: models.Source{Slug: "no-probe", Active: true}}
	m := newMonitor(repo)

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.probes) != 0 {
		t.Fatalf("probes=%d want 0", len(repo.probes))
	}
}
