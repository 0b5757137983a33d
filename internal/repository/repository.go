package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"civicsource/internal/models"
)

// Repository is the single durable-store surface shared by the ingestion
// core. All mutation is idempotent upsert-by-natural-key (source slug, job
// id, dedup key, award id, entity identity); counters are updated with
// atomic SQL increments, never read-modify-write.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Sources & health.
	UpsertSource(ctx context.Context, item *models.Source) error
	GetSourceBySlug(ctx context.Context, slug string) (*models.Source, error)
	ListActiveSources(ctx context.Context) ([]models.Source, error)
	ListSources(ctx context.Context, params ListSourcesParams) ([]models.Source, error)
	InsertHealthProbe(ctx context.Context, item *models.HealthProbe) error
	ListProbesBySource(ctx context.Context, slug string, limit int) ([]models.HealthProbe, error)
	DeleteProbesBefore(ctx context.Context, before time.Time) (int64, error)
	RecordProbeSuccess(ctx context.Context, slug string, responseMs int64, at time.Time) error
	RecordProbeFailure(ctx context.Context, slug string, responseMs int64, failingThreshold int, at time.Time) error
	IncrementSourceCounters(ctx context.Context, slug string, calls, records int64, syncedAt time.Time) error
	RecordFetchFailure(ctx context.Context, slug string, failingThreshold int, at time.Time) error

	// Jobs.
	InsertJob(ctx context.Context, item *models.Job) error
	ListDueJobs(ctx context.Context, now time.Time, limit int) ([]models.Job, error)
	ListJobs(ctx context.Context, params ListJobsParams) ([]models.Job, error)
	MarkJobRunning(ctx context.Context, id uint64, at time.Time) error
	MarkJobCompleted(ctx context.Context, id uint64, recordsFetched int) error
	MarkJobFailed(ctx context.Context, id uint64, errMsg string) error

	// Raw records.
	InsertRawRecords(ctx context.Context, items []models.RawRecord) error
	ListRawRecordsByCategory(ctx context.Context, category string, limit, offset int) ([]models.RawRecord, error)
	ListUnresolvedRawRecords(ctx context.Context, limit int) ([]models.RawRecord, error)
	BackfillEntityByName(ctx context.Context, entityName string, entityID uint64) (int64, error)
	CountEntityFactsSince(ctx context.Context, entityID uint64, since time.Time) (int64, error)

	// Canonical records & votes.
	UpsertCanonicalRecords(ctx context.Context, tx *gorm.DB, items []models.CanonicalRecord) error
	DeleteCanonicalNotIn(ctx context.Context, tx *gorm.DB, category string, keepKeys []string) (int64, error)
	GetCanonicalByKey(ctx context.Context, dedupKey string) (*models.CanonicalRecord, error)
	ListCanonicalRecords(ctx context.Context, params ListCanonicalParams) ([]models.CanonicalRecord, error)
	CountCanonicalRecords(ctx context.Context, params ListCanonicalParams) (int64, error)
	GetVote(ctx context.Context, dedupKey, actorID string) (*models.RecordVote, error)
	UpsertVote(ctx context.Context, item *models.RecordVote) error
	ApplyVoteDelta(ctx context.Context, dedupKey string, dUp, dDown, dFlags int) error
	UpdateQualityScore(ctx context.Context, dedupKey string, score float64) error

	// Entities.
	CreateEntity(ctx context.Context, item *models.Entity) error
	GetEntityByID(ctx context.Context, id uint64) (*models.Entity, error)
	GetEntityByIdentifier(ctx context.Context, identifier string) (*models.Entity, error)
	GetEntityByNameKey(ctx context.Context, nameKey string) (*models.Entity, error)
	IncrementEntityFacts(ctx context.Context, id uint64, n int64) error
	CountEntitiesCreatedSinceMatching(ctx context.Context, since time.Time, keyword string) (int64, error)
	ListEntitiesUpdatedSinceWithMinScore(ctx context.Context, since time.Time, minScore float64, limit int) ([]models.Entity, error)

	// Awards.
	UpsertAward(ctx context.Context, item *models.Award) error
	ListAwardsSince(ctx context.Context, since time.Time, limit int) ([]models.Award, error)

	// Scheduled pipelines.
	UpsertScheduledPipeline(ctx context.Context, item *models.ScheduledPipeline) error
	ListDuePipelines(ctx context.Context, now time.Time, limit int) ([]models.ScheduledPipeline, error)
	ListScheduledPipelines(ctx context.Context, limit, offset int) ([]models.ScheduledPipeline, error)
	CreatePipelineRun(ctx context.Context, item *models.PipelineRun) error
	FinishPipelineRun(ctx context.Context, id uint64, status string, result PipelineRunResult) error
	AdvancePipeline(ctx context.Context, id uint64, nextRunAt time.Time, success bool) error

	// Alerts & notifications.
	CreateAlert(ctx context.Context, item *models.Alert) error
	ListAlerts(ctx context.Context, params ListAlertsParams) ([]models.Alert, error)
	ListActiveAlerts(ctx context.Context) ([]models.Alert, error)
	MarkAlertTriggered(ctx context.Context, id uint64, at time.Time) error
	InsertNotification(ctx context.Context, item *models.Notification) error
	ListNotifications(ctx context.Context, params ListNotificationsParams) ([]models.Notification, error)
}

type ListSourcesParams struct {
	Limit  int
	Offset int
	Active *bool
	Health *string
}

type ListJobsParams struct {
	Limit      int
	Offset     int
	Status     *string
	SourceSlug *string
}

type ListCanonicalParams struct {
	Limit      int
	Offset     int
	Category   *string
	GroupLabel *string
	SourceSlug *string
	Search     *string
	OrderBy    string
	Asc        *bool
}

type ListAlertsParams struct {
	Limit  int
	Offset int
	Type   *string
	Active *bool
}

type ListNotificationsParams struct {
	Limit   int
	Offset  int
	AlertID *uint64
	Since   *time.Time
}

type PipelineRunResult struct {
	RecordsCollected int
	SourcesQueried   int
	ProcessingTimeMs int64
	Error            *string
	FinishedAt       time.Time
}
