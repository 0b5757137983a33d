package models

import (
	"time"

	"gorm.io/datatypes"
)

// RawRecord is an unprocessed item as collected from a source. The payload is
// immutable once written; only entity_id is backfilled by the resolver.
type RawRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SourceSlug string `gorm:"type:varchar(100);not null;index"`
	Category   string `gorm:"type:varchar(50);not null;index"`
	Name       string `gorm:"type:text;not null"`

	Lat *float64 `gorm:"type:numeric"`
	Lon *float64 `gorm:"type:numeric"`

	Properties datatypes.JSON `gorm:"type:jsonb"`
	Confidence float64        `gorm:"not null;default:0"`

	// EntityName is the free-text reference this record carries, if any.
	// EntityID stays NULL until the resolver links or creates the entity.
	EntityName string  `gorm:"type:text;index"`
	EntityID   *uint64 `gorm:"index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (RawRecord) TableName() string {
	return "raw_records"
}
