package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"civicsource/internal/models"
	"civicsource/internal/repository"
)

type AlertHandler struct {
	Repo repository.Repository
}

func (h *AlertHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/alerts")
	group.GET("", h.listAlerts)
	group.POST("", h.createAlert)
	r.GET("/api/v1/notifications", h.listNotifications)
}

func (h *AlertHandler) listAlerts(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	params := repository.ListAlertsParams{
		Limit:  limit,
		Offset: offset,
		Active: boolQueryPtr(c, "active"),
	}
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		params.Type = &v
	}

	items, err := h.Repo.ListAlerts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, items, meta)
}

type createAlertRequest struct {
	AlertType string         `json:"alert_type"`
	Condition map[string]any `json:"condition"`
	Active    *bool          `json:"active"`
}

func (h *AlertHandler) createAlert(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.AlertType = strings.TrimSpace(req.AlertType)
	if !validAlertType(req.AlertType) {
		Error(c, http.StatusBadRequest, "unknown alert_type", nil)
		return
	}
	if len(req.Condition) == 0 && req.AlertType != models.AlertNewContract &&
		req.AlertType != models.AlertHighOpportunity {
		Error(c, http.StatusBadRequest, "condition required", nil)
		return
	}

	cond, err := json.Marshal(req.Condition)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid condition", nil)
		return
	}
	item := &models.Alert{
		AlertType: req.AlertType,
		Condition: datatypes.JSON(cond),
		Active:    true,
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if err := h.Repo.CreateAlert(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *AlertHandler) listNotifications(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	params := repository.ListNotificationsParams{
		Limit:  limit,
		Offset: offset,
	}
	if v := strings.TrimSpace(c.Query("alert_id")); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			params.AlertID = &id
		}
	}
	if v := strings.TrimSpace(c.Query("since")); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			params.Since = &ts
		}
	}

	items, err := h.Repo.ListNotifications(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, items, meta)
}

func validAlertType(t string) bool {
	switch t {
	case models.AlertEntityChange, models.AlertNewContract, models.AlertThreshold,
		models.AlertKeyword, models.AlertHighOpportunity:
		return true
	}
	return false
}
