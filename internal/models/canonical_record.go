package models

import (
	"time"

	"gorm.io/datatypes"
)

// CanonicalRecord is the display-ready representative of one dedup cluster,
// keyed by the cluster's dedup key so regeneration upserts in place. Vote
// tally columns are excluded from regeneration updates so crowd feedback
// survives re-canonicalization.
type CanonicalRecord struct {
	DedupKey string `gorm:"primaryKey;type:varchar(300)"`
	Category string `gorm:"type:varchar(50);not null;index"`

	DisplayName    string         `gorm:"type:text;not null"`
	GroupLabel     string         `gorm:"type:varchar(100);not null;index"`
	DuplicateCount int            `gorm:"not null;default:1"`
	Sources        datatypes.JSON `gorm:"type:jsonb;not null"`
	BestConfidence float64        `gorm:"not null;default:0;index"`

	Upvotes      int     `gorm:"not null;default:0"`
	Downvotes    int     `gorm:"not null;default:0"`
	Flags        int     `gorm:"not null;default:0"`
	QualityScore float64 `gorm:"not null;default:0.5"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (CanonicalRecord) TableName() string {
	return "canonical_records"
}
