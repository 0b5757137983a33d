package quality

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"civicsource/internal/models"
	"civicsource/internal/repository"
)

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrInvalidFeedback = errors.New("invalid feedback type")
)

// VoteService applies crowd feedback to canonical records and keeps each
// record's quality score current. Identified actors hold at most one vote
// per record; a resubmission replaces the prior vote. Anonymous submissions
// bump the aggregates directly and are not idempotent; replays skew the
// score, which is an accepted product limitation.
type VoteService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type SubmitInput struct {
	DedupKey       string
	ActorID        string
	FeedbackType   string
	CorrectionData datatypes.JSON
}

type SubmitResult struct {
	Success         bool
	NewQualityScore float64
	Upvotes         int
	Downvotes       int
	Flags           int
}

func (s *VoteService) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	var result SubmitResult
	if s == nil || s.Repo == nil {
		return result, nil
	}
	if !validFeedback(input.FeedbackType) {
		return result, ErrInvalidFeedback
	}

	record, err := s.Repo.GetCanonicalByKey(ctx, input.DedupKey)
	if err != nil {
		return result, err
	}
	if record == nil {
		return result, ErrRecordNotFound
	}

	actor := strings.TrimSpace(input.ActorID)
	if actor != "" {
		if err := s.submitIdentified(ctx, input, actor); err != nil {
			return result, err
		}
	} else {
		dUp, dDown, dFlags := voteDelta(input.FeedbackType)
		if err := s.Repo.ApplyVoteDelta(ctx, input.DedupKey, dUp, dDown, dFlags); err != nil {
			return result, err
		}
	}

	// Recompute synchronously on the fresh tallies and persist on the record.
	record, err = s.Repo.GetCanonicalByKey(ctx, input.DedupKey)
	if err != nil {
		return result, err
	}
	if record == nil {
		return result, ErrRecordNotFound
	}
	score := Score(record.Upvotes, record.Downvotes, record.Flags)
	if err := s.Repo.UpdateQualityScore(ctx, input.DedupKey, score); err != nil {
		return result, err
	}

	return SubmitResult{
		Success:         true,
		NewQualityScore: score,
		Upvotes:         record.Upvotes,
		Downvotes:       record.Downvotes,
		Flags:           record.Flags,
	}, nil
}

func (s *VoteService) submitIdentified(ctx context.Context, input SubmitInput, actor string) error {
	prior, err := s.Repo.GetVote(ctx, input.DedupKey, actor)
	if err != nil {
		return err
	}

	vote := &models.RecordVote{
		DedupKey:     input.DedupKey,
		ActorID:      actor,
		FeedbackType: input.FeedbackType,
		Correction:   input.CorrectionData,
	}
	if err := s.Repo.UpsertVote(ctx, vote); err != nil {
		return err
	}

	dUp, dDown, dFlags := voteDelta(input.FeedbackType)
	if prior != nil {
		// Overwrite, not double-count: back out the prior vote first.
		pUp, pDown, pFlags := voteDelta(prior.FeedbackType)
		dUp -= pUp
		dDown -= pDown
		dFlags -= pFlags
	}
	return s.Repo.ApplyVoteDelta(ctx, input.DedupKey, dUp, dDown, dFlags)
}

func voteDelta(feedbackType string) (up, down, flags int) {
	switch feedbackType {
	case models.FeedbackUpvote:
		return 1, 0, 0
	case models.FeedbackDownvote:
		return 0, 1, 0
	case models.FeedbackFlag:
		return 0, 0, 1
	default:
		// Corrections are recorded but count as neither up nor down.
		return 0, 0, 0
	}
}

func validFeedback(feedbackType string) bool {
	switch feedbackType {
	case models.FeedbackUpvote, models.FeedbackDownvote, models.FeedbackFlag, models.FeedbackCorrection:
		return true
	}
	return false
}
