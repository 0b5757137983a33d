package health

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"civicsource/internal/config"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

// Monitor probes every active source's test endpoint and keeps the source
// rows' health fields current. Probing only informs scheduling priority; it
// never gates ingestion.
type Monitor struct {
	Repo   repository.Repository
	HTTP   *http.Client
	Logger *zap.Logger
	Config config.HealthMonitorConfig
}

type probeOutcome struct {
	status         string
	httpStatus     int
	responseTimeMs int64
	err            error
}

func (m *Monitor) RunOnce(ctx context.Context) error {
	if m == nil || m.Repo == nil {
		return nil
	}
	sources, err := m.Repo.ListActiveSources(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}

	concurrency := m.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	var mu sync.Mutex
	probed, healthy, failed := 0, 0, 0

	for _, src := range sources {
		if strings.TrimSpace(src.ProbeURL) == "" {
			continue
		}
		src := src
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			ok := m.probeSource(ctx, src)
			mu.Lock()
			probed++
			if ok {
				healthy++
			} else {
				failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if m.Logger != nil {
		m.Logger.Info("health probe batch done",
			zap.Int("probed", probed),
			zap.Int("healthy", healthy),
			zap.Int("failed", failed),
		)
	}
	return nil
}

func (m *Monitor) probeSource(ctx context.Context, src models.Source) bool {
	now := time.Now().UTC()
	outcome := m.probe(ctx, src.ProbeURL)

	probe := &models.HealthProbe{
		SourceSlug:     src.Slug,
		Status:         outcome.status,
		HTTPStatus:     outcome.httpStatus,
		ResponseTimeMs: outcome.responseTimeMs,
		CreatedAt:      now,
	}
	if outcome.err != nil {
		msg := outcome.err.Error()
		probe.Error = &msg
	}
	if err := m.Repo.InsertHealthProbe(ctx, probe); err != nil && m.Logger != nil {
		m.Logger.Warn("insert health probe failed", zap.String("source", src.Slug), zap.Error(err))
	}

	var err error
	if outcome.status == models.ProbeHealthy {
		err = m.Repo.RecordProbeSuccess(ctx, src.Slug, outcome.responseTimeMs, now)
	} else {
		err = m.Repo.RecordProbeFailure(ctx, src.Slug, outcome.responseTimeMs, m.failingThreshold(), now)
	}
	if err != nil && m.Logger != nil {
		m.Logger.Warn("update source health failed", zap.String("source", src.Slug), zap.Error(err))
	}
	return outcome.status == models.ProbeHealthy
}

func (m *Monitor) probe(ctx context.Context, probeURL string) probeOutcome {
	timeout := m.Config.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := m.HTTP
	if client == nil {
		client = &http.Client{}
	}

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL, nil)
	if err != nil {
		return probeOutcome{status: models.ProbeError, err: err}
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		status := models.ProbeError
		if errors.Is(err, context.DeadlineExceeded) || probeCtx.Err() != nil {
			status = models.ProbeTimeout
		}
		return probeOutcome{status: status, responseTimeMs: elapsed, err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return probeOutcome{status: models.ProbeHealthy, httpStatus: resp.StatusCode, responseTimeMs: elapsed}
	case resp.StatusCode < 500:
		return probeOutcome{status: models.ProbeDegraded, httpStatus: resp.StatusCode, responseTimeMs: elapsed}
	default:
		return probeOutcome{status: models.ProbeUnhealthy, httpStatus: resp.StatusCode, responseTimeMs: elapsed}
	}
}

func (m *Monitor) failingThreshold() int {
	if m.Config.FailingThreshold > 0 {
		return m.Config.FailingThreshold
	}
	return 2
}

// SweepProbes deletes probe rows past the retention window.
func (m *Monitor) SweepProbes(ctx context.Context) error {
	if m == nil || m.Repo == nil {
		return nil
	}
	days := m.Config.RetentionDays
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := m.Repo.DeleteProbesBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 && m.Logger != nil {
		m.Logger.Info("deleted old health probes", zap.Int64("count", n))
	}
	return nil
}
