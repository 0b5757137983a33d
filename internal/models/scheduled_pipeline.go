package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScheduledPipeline is a user-defined recurring query. next_run_at always
// advances after an invocation, success or failure.
type ScheduledPipeline struct {
	ID      uint64         `gorm:"primaryKey;autoIncrement"`
	Name    string         `gorm:"type:varchar(200);not null"`
	Query   datatypes.JSON `gorm:"type:jsonb;not null"`
	CronExpr string        `gorm:"type:varchar(100);not null"`
	Enabled bool           `gorm:"default:true;index"`

	NextRunAt    time.Time `gorm:"type:timestamptz;not null;index"`
	RunCount     int64     `gorm:"not null;default:0"`
	SuccessCount int64     `gorm:"not null;default:0"`
	FailureCount int64     `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ScheduledPipeline) TableName() string {
	return "scheduled_pipelines"
}
