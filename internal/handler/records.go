package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"civicsource/internal/quality"
	"civicsource/internal/repository"
)

type RecordHandler struct {
	Repo  repository.Repository
	Votes *quality.VoteService
}

func (h *RecordHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/records")
	group.GET("", h.listRecords)
	group.GET("/:key", h.getRecord)
	group.POST("/:key/votes", h.submitVote)
}

func (h *RecordHandler) listRecords(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	params := repository.ListCanonicalParams{
		Limit:   limit,
		Offset:  offset,
		OrderBy: strings.TrimSpace(c.Query("order_by")),
		Asc:     boolQueryPtr(c, "asc"),
	}
	if v := strings.TrimSpace(c.Query("category")); v != "" {
		params.Category = &v
	}
	if v := strings.TrimSpace(c.Query("group_label")); v != "" {
		params.GroupLabel = &v
	}
	if v := strings.TrimSpace(c.Query("source")); v != "" {
		params.SourceSlug = &v
	}
	if v := strings.TrimSpace(c.Query("search")); v != "" {
		params.Search = &v
	}

	items, err := h.Repo.ListCanonicalRecords(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountCanonicalRecords(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	meta := paginationMeta(limit, offset, total)
	Ok(c, items, meta)
}

func (h *RecordHandler) getRecord(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		Error(c, http.StatusBadRequest, "record key required", nil)
		return
	}
	item, err := h.Repo.GetCanonicalByKey(c.Request.Context(), key)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "record not found", nil)
		return
	}
	Ok(c, item, nil)
}

type submitVoteRequest struct {
	ActorID        string         `json:"actor_id"`
	FeedbackType   string         `json:"feedback_type"`
	CorrectionData map[string]any `json:"correction_data"`
}

func (h *RecordHandler) submitVote(c *gin.Context) {
	if h.Votes == nil {
		Error(c, http.StatusServiceUnavailable, "voting disabled", nil)
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		Error(c, http.StatusBadRequest, "record key required", nil)
		return
	}
	var req submitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}

	var correction datatypes.JSON
	if len(req.CorrectionData) > 0 {
		b, err := json.Marshal(req.CorrectionData)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid correction_data", nil)
			return
		}
		correction = datatypes.JSON(b)
	}

	result, err := h.Votes.Submit(c.Request.Context(), quality.SubmitInput{
		DedupKey:       key,
		ActorID:        strings.TrimSpace(req.ActorID),
		FeedbackType:   strings.TrimSpace(req.FeedbackType),
		CorrectionData: correction,
	})
	if err != nil {
		switch {
		case errors.Is(err, quality.ErrInvalidFeedback):
			Error(c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, quality.ErrRecordNotFound):
			Error(c, http.StatusNotFound, err.Error(), nil)
		default:
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}

	Ok(c, gin.H{
		"success":           result.Success,
		"new_quality_score": result.NewQualityScore,
		"vote_counts": gin.H{
			"upvotes":   result.Upvotes,
			"downvotes": result.Downvotes,
			"flags":     result.Flags,
		},
	}, nil)
}
