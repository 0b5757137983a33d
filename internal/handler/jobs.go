package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"civicsource/internal/models"
	"civicsource/internal/repository"
)

type JobHandler struct {
	Repo repository.Repository
}

func (h *JobHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/jobs")
	group.GET("", h.listJobs)
	group.POST("", h.enqueueJob)
}

func (h *JobHandler) listJobs(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	params := repository.ListJobsParams{
		Limit:  limit,
		Offset: offset,
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		params.Status = &v
	}
	if v := strings.TrimSpace(c.Query("source")); v != "" {
		params.SourceSlug = &v
	}

	items, err := h.Repo.ListJobs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, items, meta)
}

type enqueueJobRequest struct {
	SourceSlug   string     `json:"source_slug"`
	Priority     *int       `json:"priority"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

func (h *JobHandler) enqueueJob(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req enqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.SourceSlug = strings.TrimSpace(req.SourceSlug)
	if req.SourceSlug == "" {
		Error(c, http.StatusBadRequest, "source_slug required", nil)
		return
	}

	src, err := h.Repo.GetSourceBySlug(c.Request.Context(), req.SourceSlug)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if src == nil {
		Error(c, http.StatusNotFound, "source not found", nil)
		return
	}

	item := &models.Job{
		SourceSlug:   req.SourceSlug,
		Status:       models.JobPending,
		Priority:     src.Priority,
		ScheduledFor: time.Now().UTC(),
	}
	if req.Priority != nil {
		item.Priority = *req.Priority
	}
	if req.ScheduledFor != nil {
		item.ScheduledFor = req.ScheduledFor.UTC()
	}
	if err := h.Repo.InsertJob(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}
