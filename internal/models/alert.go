package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AlertEntityChange    = "entity_change"
	AlertNewContract     = "new_contract"
	AlertThreshold       = "threshold"
	AlertKeyword         = "keyword"
	AlertHighOpportunity = "high_opportunity"
)

// Alert is a user-defined condition evaluated periodically against data
// changed since last_triggered_at.
type Alert struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	AlertType string         `gorm:"type:varchar(30);not null;index"`
	Condition datatypes.JSON `gorm:"type:jsonb;not null"`
	Active    bool           `gorm:"default:true;index"`

	LastTriggeredAt *time.Time `gorm:"type:timestamptz"`
	TriggerCount    int64      `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Alert) TableName() string {
	return "alerts"
}
