package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"civicsource/internal/models"
	"civicsource/internal/repository"
)

type SourceHandler struct {
	Repo repository.Repository
}

func (h *SourceHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/sources")
	group.GET("", h.listSources)
	group.POST("", h.upsertSource)
	group.GET("/:slug", h.getSource)
	group.GET("/:slug/probes", h.listProbes)
}

func (h *SourceHandler) listSources(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	health := strings.TrimSpace(c.Query("health"))

	params := repository.ListSourcesParams{
		Limit:  limit,
		Offset: offset,
		Active: boolQueryPtr(c, "active"),
	}
	if health != "" {
		params.Health = &health
	}

	items, err := h.Repo.ListSources(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, items, meta)
}

type upsertSourceRequest struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Endpoint string `json:"endpoint"`
	ProbeURL string `json:"probe_url"`
	Priority *int   `json:"priority"`
	Active   *bool  `json:"active"`
}

func (h *SourceHandler) upsertSource(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req upsertSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.Slug = strings.TrimSpace(req.Slug)
	req.Name = strings.TrimSpace(req.Name)
	req.Kind = strings.TrimSpace(req.Kind)
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Slug == "" || req.Name == "" || req.Kind == "" || req.Endpoint == "" {
		Error(c, http.StatusBadRequest, "slug, name, kind and endpoint required", nil)
		return
	}

	item := &models.Source{
		Slug:         req.Slug,
		Name:         req.Name,
		Kind:         req.Kind,
		Endpoint:     req.Endpoint,
		ProbeURL:     strings.TrimSpace(req.ProbeURL),
		Active:       true,
		HealthStatus: models.HealthUnknown,
	}
	if req.Priority != nil {
		item.Priority = *req.Priority
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if err := h.Repo.UpsertSource(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *SourceHandler) getSource(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		Error(c, http.StatusBadRequest, "slug required", nil)
		return
	}
	item, err := h.Repo.GetSourceBySlug(c.Request.Context(), slug)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "source not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *SourceHandler) listProbes(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		Error(c, http.StatusBadRequest, "slug required", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	items, err := h.Repo.ListProbesBySource(c.Request.Context(), slug, limit)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
