package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"

	"civicsource/internal/models"
	"civicsource/internal/repository"
)

type PipelineHandler struct {
	Repo repository.Repository
}

func (h *PipelineHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/pipelines")
	group.GET("", h.listPipelines)
	group.POST("", h.createPipeline)
}

func (h *PipelineHandler) listPipelines(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListScheduledPipelines(c.Request.Context(), limit, offset)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, items, meta)
}

type createPipelineRequest struct {
	Name     string         `json:"name"`
	Query    map[string]any `json:"query"`
	CronExpr string         `json:"cron_expr"`
	Enabled  *bool          `json:"enabled"`
}

func (h *PipelineHandler) createPipeline(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req createPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.CronExpr = strings.TrimSpace(req.CronExpr)
	if req.Name == "" || req.CronExpr == "" {
		Error(c, http.StatusBadRequest, "name and cron_expr required", nil)
		return
	}

	// Reject bad expressions at the door; the runner's hourly fallback is for
	// rows that went bad after creation.
	sched, err := cron.ParseStandard(req.CronExpr)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid cron_expr", nil)
		return
	}

	query, err := json.Marshal(req.Query)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid query", nil)
		return
	}
	item := &models.ScheduledPipeline{
		Name:      req.Name,
		Query:     datatypes.JSON(query),
		CronExpr:  req.CronExpr,
		Enabled:   true,
		NextRunAt: sched.Next(time.Now().UTC()),
	}
	if req.Enabled != nil {
		item.Enabled = *req.Enabled
	}
	if err := h.Repo.UpsertScheduledPipeline(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}
