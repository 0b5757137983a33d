package models

import "time"

const (
	ProbeHealthy   = "healthy"
	ProbeDegraded  = "degraded"
	ProbeUnhealthy = "unhealthy"
	ProbeTimeout   = "timeout"
	ProbeError     = "error"
)

// HealthProbe is one probe outcome against a source's test endpoint.
// Append-only; swept by a retention cron.
type HealthProbe struct {
	ID             uint64  `gorm:"primaryKey;autoIncrement"`
	SourceSlug     string  `gorm:"type:varchar(100);not null;index"`
	Status         string  `gorm:"type:varchar(20);not null"`
	HTTPStatus     int     `gorm:"not null;default:0"`
	ResponseTimeMs int64   `gorm:"not null;default:0"`
	Error          *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (HealthProbe) TableName() string {
	return "health_probes"
}
