package models

import "time"

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

type PipelineRun struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	PipelineID uint64 `gorm:"not null;index"`
	Status     string `gorm:"type:varchar(20);not null;index"`

	RecordsCollected int     `gorm:"not null;default:0"`
	SourcesQueried   int     `gorm:"not null;default:0"`
	ProcessingTimeMs int64   `gorm:"not null;default:0"`
	Error            *string `gorm:"type:text"`

	StartedAt  time.Time  `gorm:"type:timestamptz;not null"`
	FinishedAt *time.Time `gorm:"type:timestamptz"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
