package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"civicsource/internal/adapter"
	"civicsource/internal/config"
	"civicsource/internal/dedup"
	"civicsource/internal/lock"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

const leaseName = "scheduler:dispatch"

// Scheduler drains due jobs: it claims each job, fetches through the source's
// adapter, validates and persists the records, then triggers a canonical
// rebuild for every category the batch touched. A lease keeps concurrent
// processes from dispatching the same batch; jobs that cannot be claimed are
// skipped silently since another dispatcher owns them.
type Scheduler struct {
	Repo      repository.Repository
	Adapters  *adapter.Registry
	Rebuilder *dedup.Rebuilder
	Lease     lock.Lease
	Logger    *zap.Logger
	Config    config.SchedulerConfig
}

func (s *Scheduler) Run(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.Logger.Error("dispatch run failed", zap.Error(err))
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if s.Lease != nil {
		ok, err := s.Lease.Acquire(ctx, leaseName, s.Config.LeaseTTL)
		if err != nil {
			return fmt.Errorf("acquire dispatch lease: %w", err)
		}
		if !ok {
			s.Logger.Debug("dispatch lease held elsewhere, skipping")
			return nil
		}
		defer s.Lease.Release(ctx, leaseName)
	}

	batch := s.Config.BatchSize
	if batch <= 0 {
		batch = 10
	}
	now := time.Now().UTC()
	jobs, err := s.Repo.ListDueJobs(ctx, now, batch)
	if err != nil {
		return fmt.Errorf("list due jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	var completed, failed, skipped int
	categories := map[string]struct{}{}
	lastCallBySource := map[string]time.Time{}

	for i := range jobs {
		job := &jobs[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		s.throttle(ctx, lastCallBySource, job.SourceSlug)

		outcome, cats, err := s.runJob(ctx, job)
		if err != nil {
			s.Logger.Warn("job failed",
				zap.Uint64("job_id", job.ID),
				zap.String("source", job.SourceSlug),
				zap.Error(err))
		}
		switch outcome {
		case jobCompleted:
			completed++
		case jobFailed:
			failed++
		case jobSkipped:
			skipped++
		}
		for _, c := range cats {
			categories[c] = struct{}{}
		}
	}

	for _, category := range sortedKeys(categories) {
		if _, err := s.Rebuilder.RebuildCategory(ctx, category); err != nil {
			s.Logger.Warn("canonical rebuild failed",
				zap.String("category", category),
				zap.Error(err))
		}
	}

	s.Logger.Info("dispatch run finished",
		zap.Int("due", len(jobs)),
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Int("categories_rebuilt", len(categories)))
	return nil
}

type jobOutcome int

const (
	jobSkipped jobOutcome = iota
	jobCompleted
	jobFailed
)

func (s *Scheduler) runJob(ctx context.Context, job *models.Job) (jobOutcome, []string, error) {
	now := time.Now().UTC()
	if err := s.Repo.MarkJobRunning(ctx, job.ID, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the claim race; another dispatcher owns this job.
			return jobSkipped, nil, nil
		}
		return jobFailed, nil, fmt.Errorf("claim job: %w", err)
	}

	src, err := s.Repo.GetSourceBySlug(ctx, job.SourceSlug)
	if err != nil {
		return jobFailed, nil, s.fail(ctx, job.ID, fmt.Errorf("load source: %w", err))
	}
	if src == nil || !src.Active {
		return jobFailed, nil, s.fail(ctx, job.ID, fmt.Errorf("source %q missing or inactive", job.SourceSlug))
	}

	ad, err := s.Adapters.Resolve(src.Kind)
	if err != nil {
		return jobFailed, nil, s.fail(ctx, job.ID, err)
	}

	timeout := s.Config.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	result, err := ad.Fetch(fetchCtx, *src, adapter.FetchParams{Since: src.LastSyncAt})
	cancel()
	if err != nil {
		return jobFailed, nil, s.failFetch(ctx, job.ID, src.Slug, fmt.Errorf("fetch: %w", err))
	}

	raws, awards, cats, malformed := s.collect(src.Slug, result.Records)
	if malformed > 0 {
		s.Logger.Warn("malformed records skipped",
			zap.String("source", src.Slug),
			zap.Int("skipped", malformed))
	}

	if len(raws) > 0 {
		if err := s.Repo.InsertRawRecords(ctx, raws); err != nil {
			return jobFailed, nil, s.fail(ctx, job.ID, fmt.Errorf("persist records: %w", err))
		}
	}
	for i := range awards {
		if err := s.Repo.UpsertAward(ctx, &awards[i]); err != nil {
			s.Logger.Warn("award upsert failed",
				zap.String("award_id", awards[i].AwardID),
				zap.Error(err))
		}
	}

	if err := s.Repo.MarkJobCompleted(ctx, job.ID, len(raws)); err != nil {
		return jobFailed, nil, fmt.Errorf("mark completed: %w", err)
	}
	if err := s.Repo.IncrementSourceCounters(ctx, src.Slug, 1, int64(len(raws)), now); err != nil {
		s.Logger.Warn("source counter update failed",
			zap.String("source", src.Slug),
			zap.Error(err))
	}
	return jobCompleted, cats, nil
}

// collect validates fetched records and splits them into raw rows and award
// rows. Malformed items are dropped, never persisted partially.
func (s *Scheduler) collect(slug string, records []adapter.Record) ([]models.RawRecord, []models.Award, []string, int) {
	raws := make([]models.RawRecord, 0, len(records))
	awards := make([]models.Award, 0)
	seen := map[string]struct{}{}
	cats := make([]string, 0, 2)
	malformed := 0

	for _, rec := range records {
		category := strings.ToLower(strings.TrimSpace(rec.Category))
		name := strings.TrimSpace(rec.Name)
		if category == "" || name == "" {
			malformed++
			continue
		}
		if (rec.Lat == nil) != (rec.Lon == nil) {
			malformed++
			continue
		}
		confidence := rec.Confidence
		if confidence < 0 || confidence > 1 {
			malformed++
			continue
		}

		var props datatypes.JSON
		if len(rec.Properties) > 0 {
			b, err := json.Marshal(rec.Properties)
			if err != nil {
				malformed++
				continue
			}
			props = datatypes.JSON(b)
		}

		raws = append(raws, models.RawRecord{
			SourceSlug: slug,
			Category:   category,
			Name:       name,
			Lat:        rec.Lat,
			Lon:        rec.Lon,
			Properties: props,
			Confidence: confidence,
			EntityName: strings.TrimSpace(rec.EntityName),
		})
		if _, ok := seen[category]; !ok {
			seen[category] = struct{}{}
			cats = append(cats, category)
		}

		if rec.Award != nil {
			if rec.Award.AwardID == "" || rec.Award.AwardedAt.IsZero() {
				malformed++
				continue
			}
			awards = append(awards, models.Award{
				AwardID:     rec.Award.AwardID,
				SourceSlug:  slug,
				Description: rec.Award.Description,
				Amount:      rec.Award.Amount,
				Location:    rec.Award.Location,
				AwardedAt:   rec.Award.AwardedAt.UTC(),
			})
		}
	}
	return raws, awards, cats, malformed
}

func (s *Scheduler) fail(ctx context.Context, jobID uint64, cause error) error {
	if err := s.Repo.MarkJobFailed(ctx, jobID, cause.Error()); err != nil {
		s.Logger.Warn("mark failed errored", zap.Uint64("job_id", jobID), zap.Error(err))
	}
	return cause
}

// failFetch is fail for errors where the upstream call actually went out: the
// source's call counter and failure streak advance along with the job status.
func (s *Scheduler) failFetch(ctx context.Context, jobID uint64, slug string, cause error) error {
	if err := s.Repo.RecordFetchFailure(ctx, slug, s.Config.FailingThreshold, time.Now().UTC()); err != nil {
		s.Logger.Warn("fetch failure update errored", zap.String("source", slug), zap.Error(err))
	}
	return s.fail(ctx, jobID, cause)
}

// throttle spaces out consecutive calls against the same source. The delay
// is clamped to a sane range so a bad config value cannot hammer an upstream
// or wedge the batch.
func (s *Scheduler) throttle(ctx context.Context, last map[string]time.Time, slug string) {
	delay := s.Config.InterCallDelay
	if delay <= 0 {
		delay = 750 * time.Millisecond
	}
	if delay < 300*time.Millisecond {
		delay = 300 * time.Millisecond
	}
	if delay > 1500*time.Millisecond {
		delay = 1500 * time.Millisecond
	}
	if prev, ok := last[slug]; ok {
		if wait := delay - time.Since(prev); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
		}
	}
	last[slug] = time.Now()
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
