package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	FeedbackUpvote     = "upvote"
	FeedbackDownvote   = "downvote"
	FeedbackFlag       = "flag"
	FeedbackCorrection = "correction"
)

// RecordVote is one identified actor's current vote on a canonical record.
// At most one row per (record, actor); resubmission overwrites. Anonymous
// votes have no row and bump the record aggregates directly.
type RecordVote struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement"`
	DedupKey     string         `gorm:"type:varchar(300);not null;uniqueIndex:uq_record_actor,priority:1"`
	ActorID      string         `gorm:"type:varchar(100);not null;uniqueIndex:uq_record_actor,priority:2"`
	FeedbackType string         `gorm:"type:varchar(20);not null"`
	Correction   datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (RecordVote) TableName() string {
	return "record_votes"
}
