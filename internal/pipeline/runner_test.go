package pipeline

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"civicsource/internal/config"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

type stubRepo struct {
	repository.Repository

	pipelines map[uint64]*models.ScheduledPipeline
	runs      []models.PipelineRun
	results   map[uint64]repository.PipelineRunResult
	records   []models.CanonicalRecord
	listErr   error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		pipelines: map[uint64]*models.ScheduledPipeline{},
		results:   map[uint64]repository.PipelineRunResult{},
	}
}

func (s *stubRepo) ListDuePipelines(ctx context.Context, now time.Time, limit int) ([]models.ScheduledPipeline, error) {
	out := make([]models.ScheduledPipeline, 0)
	for _, p := range s.pipelines {
		if p.Enabled && !p.NextRunAt.After(now) {
			out = append(out, *p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *stubRepo) CreatePipelineRun(ctx context.Context, item *models.PipelineRun) error {
	item.ID = uint64(len(s.runs) + 1)
	s.runs = append(s.runs, *item)
	return nil
}

func (s *stubRepo) FinishPipelineRun(ctx context.Context, id uint64, status string, result repository.PipelineRunResult) error {
	s.runs[id-1].Status = status
	s.results[id] = result
	return nil
}

func (s *stubRepo) AdvancePipeline(ctx context.Context, id uint64, nextRunAt time.Time, success bool) error {
	p := s.pipelines[id]
	p.NextRunAt = nextRunAt
	p.RunCount++
	if success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	return nil
}

func (s *stubRepo) ListCanonicalRecords(ctx context.Context, params repository.ListCanonicalParams) ([]models.CanonicalRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.CanonicalRecord, 0)
	for _, rec := range s.records {
		if params.Category != nil && rec.Category != *params.Category {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func newRunner(repo *stubRepo) *Runner {
	return &Runner{
		Repo:   repo,
		Logger: zap.NewNop(),
		Config: config.PipelinesConfig{BatchSize: 10},
	}
}

func duePipeline(id uint64, cronExpr string, query string) *models.ScheduledPipeline {
	return &models.ScheduledPipeline{
		ID:        id,
		Name:      "daily facility pull",
		Query:     datatypes.JSON(query),
		CronExpr:  cronExpr,
		Enabled:   true,
		NextRunAt: time.Now().UTC().Add(-time.Minute),
	}
}

func TestRunOnceCollectsAndAdvances(t *testing.T) {
	repo := newStubRepo()
	repo.pipelines[1] = duePipeline(1, "@every 1h", `{"category":"facility"}`)
	repo.records = []models.CanonicalRecord{
		{DedupKey: "f1", Category: "facility", Sources: datatypes.JSON(`["a","b"]`)},
		{DedupKey: "f2", Category: "facility", Sources: datatypes.JSON(`["b"]`)},
		{DedupKey: "s1", Category: "species", Sources: datatypes.JSON(`["c"]`)},
	}
	r := newRunner(repo)

	before := time.Now().UTC()
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(repo.runs) != 1 || repo.runs[0].Status != models.RunCompleted {
		t.Fatalf("runs=%+v", repo.runs)
	}
	result := repo.results[1]
	if result.RecordsCollected != 2 {
		t.Fatalf("records_collected=%d want 2", result.RecordsCollected)
	}
	if result.SourcesQueried != 2 {
		t.Fatalf("sources_queried=%d want 2", result.SourcesQueried)
	}

	p := repo.pipelines[1]
	if !p.NextRunAt.After(before) {
		t.Fatalf("next_run_at=%v did not advance past %v", p.NextRunAt, before)
	}
	if p.RunCount != 1 || p.SuccessCount != 1 || p.FailureCount != 0 {
		t.Fatalf("counters=%+v", p)
	}
}

func TestRunOnceAdvancesOnFailure(t *testing.T) {
	repo := newStubRepo()
	repo.pipelines[1] = duePipeline(1, "@every 1h", `{invalid json`)
	r := newRunner(repo)

	before := time.Now().UTC()
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(repo.runs) != 1 || repo.runs[0].Status != models.RunFailed {
		t.Fatalf("runs=%+v", repo.runs)
	}
	if repo.results[1].Error == nil {
		t.Fatal("failed run missing error")
	}
	p := repo.pipelines[1]
	if !p.NextRunAt.After(before) {
		t.Fatalf("next_run_at=%v did not advance after failure", p.NextRunAt)
	}
	if p.FailureCount != 1 || p.SuccessCount != 0 {
		t.Fatalf("counters=%+v", p)
	}
}

func TestRunOnceFallsBackHourlyOnBadCron(t *testing.T) {
	repo := newStubRepo()
	repo.pipelines[1] = duePipeline(1, "not a cron expr", `{}`)
	r := newRunner(repo)

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := repo.pipelines[1]
	delta := time.Until(p.NextRunAt)
	if delta < 55*time.Minute || delta > 65*time.Minute {
		t.Fatalf("next_run_at about %v away, want roughly one hour", delta)
	}
	if p.FailureCount != 1 {
		t.Fatalf("failure_count=%d want 1, bad cron counts as failure", p.FailureCount)
	}
}
