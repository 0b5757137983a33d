package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Award is one observed contract award, upserted by its upstream award id.
type Award struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	AwardID    string `gorm:"type:varchar(100);not null;uniqueIndex"`
	SourceSlug string `gorm:"type:varchar(100);not null;index"`
	EntityID   *uint64 `gorm:"index"`

	Description string          `gorm:"type:text"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Location    string          `gorm:"type:varchar(200);index"`

	AwardedAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Award) TableName() string {
	return "awards"
}
