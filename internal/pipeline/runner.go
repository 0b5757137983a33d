package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"civicsource/internal/config"
	"civicsource/internal/lock"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

const leaseName = "pipeline:runner"

// Query is the stored shape of a scheduled pipeline's bound query. All fields
// are optional; an empty query collects everything in the lookback window.
type Query struct {
	Category   string `json:"category,omitempty"`
	GroupLabel string `json:"group_label,omitempty"`
	SourceSlug string `json:"source_slug,omitempty"`
	Search     string `json:"search,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Runner executes due scheduled pipelines. Every invocation advances
// next_run_at, success or failure, so a broken pipeline never wedges the
// due list.
type Runner struct {
	Repo   repository.Repository
	Lease  lock.Lease
	Logger *zap.Logger
	Config config.PipelinesConfig
}

func (r *Runner) Run(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		r.Logger.Error("pipeline run failed", zap.Error(err))
	}
}

func (r *Runner) RunOnce(ctx context.Context) error {
	if r == nil || r.Repo == nil {
		return nil
	}
	if r.Lease != nil {
		ok, err := r.Lease.Acquire(ctx, leaseName, r.Config.LeaseTTL)
		if err != nil {
			return fmt.Errorf("acquire pipeline lease: %w", err)
		}
		if !ok {
			r.Logger.Debug("pipeline lease held elsewhere, skipping")
			return nil
		}
		defer r.Lease.Release(ctx, leaseName)
	}

	batch := r.Config.BatchSize
	if batch <= 0 {
		batch = 10
	}
	now := time.Now().UTC()
	due, err := r.Repo.ListDuePipelines(ctx, now, batch)
	if err != nil {
		return fmt.Errorf("list due pipelines: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var succeeded, failed int
	for i := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runOne(ctx, &due[i]); err != nil {
			failed++
			r.Logger.Warn("pipeline invocation failed",
				zap.Uint64("pipeline_id", due[i].ID),
				zap.String("name", due[i].Name),
				zap.Error(err))
		} else {
			succeeded++
		}
	}

	r.Logger.Info("pipeline run finished",
		zap.Int("due", len(due)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed))
	return nil
}

func (r *Runner) runOne(ctx context.Context, p *models.ScheduledPipeline) error {
	started := time.Now().UTC()
	run := &models.PipelineRun{
		PipelineID: p.ID,
		Status:     models.RunRunning,
		StartedAt:  started,
	}
	if err := r.Repo.CreatePipelineRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	collected, sources, execErr := r.execute(ctx, p)
	finished := time.Now().UTC()
	result := repository.PipelineRunResult{
		RecordsCollected: collected,
		SourcesQueried:   sources,
		ProcessingTimeMs: finished.Sub(started).Milliseconds(),
		FinishedAt:       finished,
	}
	status := models.RunCompleted
	if execErr != nil {
		status = models.RunFailed
		msg := execErr.Error()
		result.Error = &msg
	}
	if err := r.Repo.FinishPipelineRun(ctx, run.ID, status, result); err != nil {
		r.Logger.Warn("finish run errored", zap.Uint64("run_id", run.ID), zap.Error(err))
	}

	// Advance even on failure. A malformed cron expression falls back to an
	// hourly retry so the row never reappears in every due batch.
	next, cronErr := nextRun(p.CronExpr, finished)
	if cronErr != nil {
		r.Logger.Warn("invalid cron expression",
			zap.Uint64("pipeline_id", p.ID),
			zap.String("expr", p.CronExpr),
			zap.Error(cronErr))
		next = finished.Add(time.Hour)
		if execErr == nil {
			execErr = cronErr
		}
	}
	if err := r.Repo.AdvancePipeline(ctx, p.ID, next, execErr == nil); err != nil {
		return fmt.Errorf("advance pipeline: %w", err)
	}
	return execErr
}

func (r *Runner) execute(ctx context.Context, p *models.ScheduledPipeline) (int, int, error) {
	var q Query
	if len(p.Query) > 0 {
		if err := json.Unmarshal(p.Query, &q); err != nil {
			return 0, 0, fmt.Errorf("parse query: %w", err)
		}
	}

	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	params := repository.ListCanonicalParams{Limit: limit}
	if q.Category != "" {
		params.Category = &q.Category
	}
	if q.GroupLabel != "" {
		params.GroupLabel = &q.GroupLabel
	}
	if q.SourceSlug != "" {
		params.SourceSlug = &q.SourceSlug
	}
	if q.Search != "" {
		params.Search = &q.Search
	}

	records, err := r.Repo.ListCanonicalRecords(ctx, params)
	if err != nil {
		return 0, 0, fmt.Errorf("collect records: %w", err)
	}
	return len(records), distinctSources(records), nil
}

// distinctSources counts the unique source slugs across the collected
// records' provenance lists.
func distinctSources(records []models.CanonicalRecord) int {
	seen := map[string]struct{}{}
	for i := range records {
		var slugs []string
		if err := json.Unmarshal(records[i].Sources, &slugs); err != nil {
			continue
		}
		for _, slug := range slugs {
			seen[slug] = struct{}{}
		}
	}
	return len(seen)
}

func nextRun(expr string, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
