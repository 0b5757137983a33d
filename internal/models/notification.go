package models

import "time"

// Notification is emitted exactly once per alert trigger. Immutable.
type Notification struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	AlertID   uint64 `gorm:"not null;index"`
	AlertType string `gorm:"type:varchar(30);not null"`
	Title     string `gorm:"type:text;not null"`
	Message   string `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Notification) TableName() string {
	return "notifications"
}
