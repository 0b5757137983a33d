package models

import "time"

const (
	HealthUnknown  = "unknown"
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthFailing  = "failing"
)

// Source is an external data provider. Rows are never deleted, only
// deactivated; health fields are mutated by the health monitor and the
// scheduler only.
type Source struct {
	Slug     string `gorm:"primaryKey;type:varchar(100)"`
	Name     string `gorm:"type:varchar(200);not null"`
	Kind     string `gorm:"type:varchar(50);not null;index"`
	Endpoint string `gorm:"type:text;not null"`
	ProbeURL string `gorm:"type:text"`
	Priority int    `gorm:"default:0;index"`
	Active   bool   `gorm:"default:true;index"`

	HealthStatus        string  `gorm:"type:varchar(20);not null;default:unknown;index"`
	ConsecutiveFailures int     `gorm:"not null;default:0"`
	AvgResponseMs       float64 `gorm:"not null;default:0"`
	CallsMade           int64   `gorm:"not null;default:0"`
	TotalRecords        int64   `gorm:"not null;default:0"`

	LastProbeAt *time.Time `gorm:"type:timestamptz"`
	LastSyncAt  *time.Time `gorm:"type:timestamptz"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Source) TableName() string {
	return "sources"
}
