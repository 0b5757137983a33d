package models

import "time"

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is one scheduled unit of fetch-and-persist work against a source.
// completed and failed are terminal; this core never requeues.
type Job struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SourceSlug string `gorm:"type:varchar(100);not null;index"`
	Status     string `gorm:"type:varchar(20);not null;default:pending;index"`
	Priority   int    `gorm:"default:0;index"`

	ScheduledFor  time.Time  `gorm:"type:timestamptz;not null;index"`
	Attempts      int        `gorm:"not null;default:0"`
	LastAttemptAt *time.Time `gorm:"type:timestamptz"`
	LastError     *string    `gorm:"type:text"`
	RecordsFetched int       `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}
