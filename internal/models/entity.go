package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EntityUniversity   = "university"
	EntityAgency       = "agency"
	EntityMunicipality = "municipality"
	EntityContractor   = "contractor"
	EntityOrganization = "organization"
)

// Entity is a resolved, named real-world organization referenced by many raw
// records. Created once per unique (name, identifier) pair; never merged
// automatically.
type Entity struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	CanonicalName string `gorm:"type:text;not null"`
	// NameKey is the lowercased canonical name used for case-insensitive
	// exact matching.
	NameKey    string  `gorm:"type:text;not null;uniqueIndex"`
	EntityType string  `gorm:"type:varchar(30);not null;index"`
	Identifier *string `gorm:"type:varchar(100);uniqueIndex"`

	Score      float64        `gorm:"not null;default:0;index"`
	Attributes datatypes.JSON `gorm:"type:jsonb"`
	FactCount  int64          `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (Entity) TableName() string {
	return "entities"
}
