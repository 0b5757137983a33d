package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"civicsource/internal/models"
	"civicsource/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- sources & health -------------------------------------------------------

func (s *Store) UpsertSource(ctx context.Context, item *models.Source) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Slug) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"kind",
			"endpoint",
			"probe_url",
			"priority",
			"active",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSourceBySlug(ctx context.Context, slug string) (*models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Source
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListActiveSources(ctx context.Context) ([]models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Source
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("priority desc, slug asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSources(ctx context.Context, params repository.ListSourcesParams) ([]models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Source{})
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	if params.Health != nil && strings.TrimSpace(*params.Health) != "" {
		query = query.Where("health_status = ?", strings.TrimSpace(*params.Health))
	}
	var items []models.Source
	err := query.
		Order("priority desc, slug asc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertHealthProbe(ctx context.Context, item *models.HealthProbe) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListProbesBySource(ctx context.Context, slug string, limit int) ([]models.HealthProbe, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.HealthProbe
	err := s.db.WithContext(ctx).
		Where("source_slug = ?", slug).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteProbesBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.HealthProbe{})
	return res.RowsAffected, res.Error
}

// RecordProbeSuccess resets consecutive_failures and folds the sample into
// the rolling average in one statement.
func (s *Store) RecordProbeSuccess(ctx context.Context, slug string, responseMs int64, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Source{}).
		Where("slug = ?", slug).
		Updates(map[string]any{
			"health_status":        models.HealthHealthy,
			"consecutive_failures": 0,
			"avg_response_ms":      rollingAvgExpr(responseMs),
			"last_probe_at":        at,
			"updated_at":           at,
		}).Error
}

// RecordProbeFailure bumps consecutive_failures atomically and escalates the
// externally visible health from degraded to failing at the threshold.
func (s *Store) RecordProbeFailure(ctx context.Context, slug string, responseMs int64, failingThreshold int, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if failingThreshold <= 0 {
		failingThreshold = 2
	}
	return s.db.WithContext(ctx).Model(&models.Source{}).
		Where("slug = ?", slug).
		Updates(map[string]any{
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
			"health_status": gorm.Expr(
				"CASE WHEN consecutive_failures + 1 >= ? THEN ? ELSE ? END",
				failingThreshold, models.HealthFailing, models.HealthDegraded,
			),
			"avg_response_ms": rollingAvgExpr(responseMs),
			"last_probe_at":   at,
			"updated_at":      at,
		}).Error
}

func rollingAvgExpr(sample int64) clause.Expr {
	return gorm.Expr(
		"CASE WHEN avg_response_ms = 0 THEN ? ELSE avg_response_ms * 0.8 + ? * 0.2 END",
		float64(sample), float64(sample),
	)
}

// IncrementSourceCounters folds a completed sync into the source aggregates.
// A sync that reached the upstream and persisted records is the strongest
// health signal available, so it also clears the failure streak.
func (s *Store) IncrementSourceCounters(ctx context.Context, slug string, calls, records int64, syncedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Source{}).
		Where("slug = ?", slug).
		Updates(map[string]any{
			"calls_made":           gorm.Expr("calls_made + ?", calls),
			"total_records":        gorm.Expr("total_records + ?", records),
			"consecutive_failures": 0,
			"health_status":        models.HealthHealthy,
			"last_sync_at":         syncedAt,
			"updated_at":           syncedAt,
		}).Error
}

// RecordFetchFailure counts a failed sync against the source. The call still
// went out, so calls_made advances alongside the failure streak, and health
// escalates on the same threshold the probe path uses.
func (s *Store) RecordFetchFailure(ctx context.Context, slug string, failingThreshold int, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if failingThreshold <= 0 {
		failingThreshold = 2
	}
	return s.db.WithContext(ctx).Model(&models.Source{}).
		Where("slug = ?", slug).
		Updates(map[string]any{
			"calls_made":           gorm.Expr("calls_made + 1"),
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
			"health_status": gorm.Expr(
				"CASE WHEN consecutive_failures + 1 >= ? THEN ? ELSE ? END",
				failingThreshold, models.HealthFailing, models.HealthDegraded,
			),
			"updated_at": at,
		}).Error
}

// --- jobs -------------------------------------------------------------------

func (s *Store) InsertJob(ctx context.Context, item *models.Job) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListDueJobs(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", models.JobPending).
		Where("scheduled_for <= ?", now).
		Order("priority desc, scheduled_for asc").
		Limit(normalizeLimit(limit, 10)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListJobs(ctx context.Context, params repository.ListJobsParams) ([]models.Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Job{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.SourceSlug != nil && strings.TrimSpace(*params.SourceSlug) != "" {
		query = query.Where("source_slug = ?", strings.TrimSpace(*params.SourceSlug))
	}
	var items []models.Job
	err := query.
		Order("scheduled_for desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// MarkJobRunning leases a pending job; the status guard makes a double lease
// a no-op under overlapping invocations.
func (s *Store) MarkJobRunning(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobPending).
		Updates(map[string]any{
			"status":          models.JobRunning,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Store) MarkJobCompleted(ctx context.Context, id uint64, recordsFetched int) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          models.JobCompleted,
			"records_fetched": recordsFetched,
			"last_error":      nil,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (s *Store) MarkJobFailed(ctx context.Context, id uint64, errMsg string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.JobFailed,
			"last_error": errMsg,
			"updated_at": time.Now().UTC(),
		}).Error
}

// --- raw records ------------------------------------------------------------

func (s *Store) InsertRawRecords(ctx context.Context, items []models.RawRecord) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (s *Store) ListRawRecordsByCategory(ctx context.Context, category string, limit, offset int) ([]models.RawRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.RawRecord
	err := s.db.WithContext(ctx).
		Where("category = ?", category).
		Order("id asc").
		Limit(normalizeLimit(limit, 500)).
		Offset(normalizeOffset(offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListUnresolvedRawRecords(ctx context.Context, limit int) ([]models.RawRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.RawRecord
	err := s.db.WithContext(ctx).
		Where("entity_id IS NULL").
		Where("entity_name <> ''").
		Order("id asc").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) BackfillEntityByName(ctx context.Context, entityName string, entityID uint64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.RawRecord{}).
		Where("entity_id IS NULL").
		Where("entity_name = ?", entityName).
		Update("entity_id", entityID)
	return res.RowsAffected, res.Error
}

func (s *Store) CountEntityFactsSince(ctx context.Context, entityID uint64, since time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.RawRecord{}).
		Where("entity_id = ?", entityID).
		Where("created_at > ?", since).
		Count(&n).Error
	return n, err
}

// --- canonical records & votes ----------------------------------------------

// UpsertCanonicalRecords regenerates derived columns only; vote tallies and
// quality_score are deliberately absent from the assignment list so crowd
// feedback survives rebuilds.
func (s *Store) UpsertCanonicalRecords(ctx context.Context, tx *gorm.DB, items []models.CanonicalRecord) error {
	if s == nil || len(items) == 0 {
		return nil
	}
	db := tx
	if db == nil {
		db = s.db
	}
	if db == nil {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category",
			"display_name",
			"group_label",
			"duplicate_count",
			"sources",
			"best_confidence",
			"updated_at",
		}),
	}).CreateInBatches(items, 200).Error
}

func (s *Store) DeleteCanonicalNotIn(ctx context.Context, tx *gorm.DB, category string, keepKeys []string) (int64, error) {
	if s == nil {
		return 0, nil
	}
	db := tx
	if db == nil {
		db = s.db
	}
	if db == nil {
		return 0, nil
	}
	query := db.WithContext(ctx).Where("category = ?", category)
	if len(keepKeys) > 0 {
		query = query.Where("dedup_key NOT IN ?", keepKeys)
	}
	res := query.Delete(&models.CanonicalRecord{})
	return res.RowsAffected, res.Error
}

func (s *Store) GetCanonicalByKey(ctx context.Context, dedupKey string) (*models.CanonicalRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.CanonicalRecord
	err := s.db.WithContext(ctx).Where("dedup_key = ?", dedupKey).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListCanonicalRecords(ctx context.Context, params repository.ListCanonicalParams) ([]models.CanonicalRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyCanonicalFilters(s.db.WithContext(ctx).Model(&models.CanonicalRecord{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "best_confidence")
	var items []models.CanonicalRecord
	err := query.
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountCanonicalRecords(ctx context.Context, params repository.ListCanonicalParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	err := applyCanonicalFilters(s.db.WithContext(ctx).Model(&models.CanonicalRecord{}), params).Count(&n).Error
	return n, err
}

func applyCanonicalFilters(query *gorm.DB, params repository.ListCanonicalParams) *gorm.DB {
	if params.Category != nil && strings.TrimSpace(*params.Category) != "" {
		query = query.Where("category = ?", strings.TrimSpace(*params.Category))
	}
	if params.GroupLabel != nil && strings.TrimSpace(*params.GroupLabel) != "" {
		query = query.Where("group_label = ?", strings.TrimSpace(*params.GroupLabel))
	}
	if params.SourceSlug != nil && strings.TrimSpace(*params.SourceSlug) != "" {
		query = query.Where("sources @> ?", `["`+strings.TrimSpace(*params.SourceSlug)+`"]`)
	}
	if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
		query = query.Where("display_name ILIKE ?", "%"+strings.TrimSpace(*params.Search)+"%")
	}
	return query
}

func (s *Store) GetVote(ctx context.Context, dedupKey, actorID string) (*models.RecordVote, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.RecordVote
	err := s.db.WithContext(ctx).
		Where("dedup_key = ? AND actor_id = ?", dedupKey, actorID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertVote(ctx context.Context, item *models.RecordVote) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dedup_key"}, {Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"feedback_type",
			"correction",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ApplyVoteDelta(ctx context.Context, dedupKey string, dUp, dDown, dFlags int) error {
	if s == nil || s.db == nil {
		return nil
	}
	if dUp == 0 && dDown == 0 && dFlags == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.CanonicalRecord{}).
		Where("dedup_key = ?", dedupKey).
		Updates(map[string]any{
			"upvotes":    gorm.Expr("GREATEST(upvotes + ?, 0)", dUp),
			"downvotes":  gorm.Expr("GREATEST(downvotes + ?, 0)", dDown),
			"flags":      gorm.Expr("GREATEST(flags + ?, 0)", dFlags),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Store) UpdateQualityScore(ctx context.Context, dedupKey string, score float64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.CanonicalRecord{}).
		Where("dedup_key = ?", dedupKey).
		Update("quality_score", score).Error
}

// --- entities ---------------------------------------------------------------

// CreateEntity inserts unless the name key (or identifier) already exists;
// callers re-resolve after a conflict, which keeps resolution idempotent.
func (s *Store) CreateEntity(ctx context.Context, item *models.Entity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name_key"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) GetEntityByID(ctx context.Context, id uint64) (*models.Entity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Entity
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetEntityByIdentifier(ctx context.Context, identifier string) (*models.Entity, error) {
	if s == nil || s.db == nil || strings.TrimSpace(identifier) == "" {
		return nil, nil
	}
	var item models.Entity
	err := s.db.WithContext(ctx).Where("identifier = ?", identifier).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetEntityByNameKey(ctx context.Context, nameKey string) (*models.Entity, error) {
	if s == nil || s.db == nil || strings.TrimSpace(nameKey) == "" {
		return nil, nil
	}
	var item models.Entity
	err := s.db.WithContext(ctx).Where("name_key = ?", nameKey).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) IncrementEntityFacts(ctx context.Context, id uint64, n int64) error {
	if s == nil || s.db == nil || n == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Entity{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"fact_count": gorm.Expr("fact_count + ?", n),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Store) CountEntitiesCreatedSinceMatching(ctx context.Context, since time.Time, keyword string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Entity{}).
		Where("created_at > ?", since)
	if strings.TrimSpace(keyword) != "" {
		query = query.Where("canonical_name ILIKE ?", "%"+strings.TrimSpace(keyword)+"%")
	}
	var n int64
	err := query.Count(&n).Error
	return n, err
}

func (s *Store) ListEntitiesUpdatedSinceWithMinScore(ctx context.Context, since time.Time, minScore float64, limit int) ([]models.Entity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Entity
	err := s.db.WithContext(ctx).
		Where("updated_at > ?", since).
		Where("score >= ?", minScore).
		Order("score desc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- awards -----------------------------------------------------------------

func (s *Store) UpsertAward(ctx context.Context, item *models.Award) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.AwardID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "award_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"entity_id",
			"description",
			"amount",
			"location",
			"awarded_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListAwardsSince(ctx context.Context, since time.Time, limit int) ([]models.Award, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Award
	err := s.db.WithContext(ctx).
		Where("created_at > ?", since).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 500)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- scheduled pipelines ----------------------------------------------------

func (s *Store) UpsertScheduledPipeline(ctx context.Context, item *models.ScheduledPipeline) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListDuePipelines(ctx context.Context, now time.Time, limit int) ([]models.ScheduledPipeline, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ScheduledPipeline
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("next_run_at <= ?", now).
		Order("next_run_at asc").
		Limit(normalizeLimit(limit, 10)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListScheduledPipelines(ctx context.Context, limit, offset int) ([]models.ScheduledPipeline, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ScheduledPipeline
	err := s.db.WithContext(ctx).
		Order("id asc").
		Limit(normalizeLimit(limit, 200)).
		Offset(normalizeOffset(offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreatePipelineRun(ctx context.Context, item *models.PipelineRun) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) FinishPipelineRun(ctx context.Context, id uint64, status string, result repository.PipelineRunResult) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.PipelineRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             status,
			"records_collected":  result.RecordsCollected,
			"sources_queried":    result.SourcesQueried,
			"processing_time_ms": result.ProcessingTimeMs,
			"error":              result.Error,
			"finished_at":        result.FinishedAt,
		}).Error
}

// AdvancePipeline moves next_run_at forward and bumps run counters in one
// statement, so the pipeline makes progress whatever the run outcome was.
func (s *Store) AdvancePipeline(ctx context.Context, id uint64, nextRunAt time.Time, success bool) error {
	if s == nil || s.db == nil {
		return nil
	}
	updates := map[string]any{
		"next_run_at": nextRunAt,
		"run_count":   gorm.Expr("run_count + 1"),
		"updated_at":  time.Now().UTC(),
	}
	if success {
		updates["success_count"] = gorm.Expr("success_count + 1")
	} else {
		updates["failure_count"] = gorm.Expr("failure_count + 1")
	}
	return s.db.WithContext(ctx).Model(&models.ScheduledPipeline{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// --- alerts & notifications -------------------------------------------------

func (s *Store) CreateAlert(ctx context.Context, item *models.Alert) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListAlerts(ctx context.Context, params repository.ListAlertsParams) ([]models.Alert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Alert{})
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("alert_type = ?", strings.TrimSpace(*params.Type))
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	var items []models.Alert
	err := query.
		Order("id asc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Alert
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkAlertTriggered(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"trigger_count":     gorm.Expr("trigger_count + 1"),
			"last_triggered_at": at,
			"updated_at":        at,
		}).Error
}

func (s *Store) InsertNotification(ctx context.Context, item *models.Notification) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListNotifications(ctx context.Context, params repository.ListNotificationsParams) ([]models.Notification, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Notification{})
	if params.AlertID != nil {
		query = query.Where("alert_id = ?", *params.AlertID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	var items []models.Notification
	err := query.
		Order("created_at desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	col := strings.TrimSpace(orderBy)
	switch col {
	case "best_confidence", "display_name", "updated_at", "quality_score", "duplicate_count":
	default:
		col = fallback
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(col + " " + dir)
}
