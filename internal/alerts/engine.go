package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"civicsource/internal/config"
	"civicsource/internal/lock"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

const (
	leaseName = "alerts:evaluate"

	// equalsEpsilon absorbs float round-trip noise on the "=" operator.
	equalsEpsilon = 1e-9
)

// Engine evaluates every active alert against data changed since the alert
// last triggered. One alert failing never blocks the rest; failures are
// logged and the alert is retried on the next pass.
type Engine struct {
	Repo   repository.Repository
	Lease  lock.Lease
	Logger *zap.Logger
	Config config.AlertsConfig
}

func (e *Engine) Run(ctx context.Context) {
	if err := e.RunOnce(ctx); err != nil {
		e.Logger.Error("alert evaluation failed", zap.Error(err))
	}
}

func (e *Engine) RunOnce(ctx context.Context) error {
	if e == nil || e.Repo == nil {
		return nil
	}
	if e.Lease != nil {
		ok, err := e.Lease.Acquire(ctx, leaseName, e.Config.LeaseTTL)
		if err != nil {
			return fmt.Errorf("acquire alert lease: %w", err)
		}
		if !ok {
			e.Logger.Debug("alert lease held elsewhere, skipping")
			return nil
		}
		defer e.Lease.Release(ctx, leaseName)
	}

	alerts, err := e.Repo.ListActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("list active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	var triggered, failed int
	for i := range alerts {
		if err := ctx.Err(); err != nil {
			return err
		}
		fired, err := e.evaluate(ctx, &alerts[i])
		if err != nil {
			failed++
			e.Logger.Warn("alert evaluation errored",
				zap.Uint64("alert_id", alerts[i].ID),
				zap.String("type", alerts[i].AlertType),
				zap.Error(err))
			continue
		}
		if fired {
			triggered++
		}
	}

	e.Logger.Info("alert pass finished",
		zap.Int("evaluated", len(alerts)),
		zap.Int("triggered", triggered),
		zap.Int("failed", failed))
	return nil
}

func (e *Engine) evaluate(ctx context.Context, alert *models.Alert) (bool, error) {
	since := e.lookbackStart(alert)

	var message string
	var matched bool
	var err error
	switch alert.AlertType {
	case models.AlertEntityChange:
		matched, message, err = e.evalEntityChange(ctx, alert, since)
	case models.AlertNewContract:
		matched, message, err = e.evalNewContract(ctx, alert, since)
	case models.AlertThreshold:
		matched, message, err = e.evalThreshold(ctx, alert)
	case models.AlertKeyword:
		matched, message, err = e.evalKeyword(ctx, alert, since)
	case models.AlertHighOpportunity:
		matched, message, err = e.evalHighOpportunity(ctx, alert, since)
	default:
		return false, fmt.Errorf("unknown alert type %q", alert.AlertType)
	}
	if err != nil || !matched {
		return false, err
	}
	return true, e.trigger(ctx, alert, message)
}

// lookbackStart is last_triggered_at, or the configured default window for
// alerts that have never fired.
func (e *Engine) lookbackStart(alert *models.Alert) time.Time {
	if alert.LastTriggeredAt != nil {
		return *alert.LastTriggeredAt
	}
	lookback := e.Config.DefaultLookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return time.Now().UTC().Add(-lookback)
}

func (e *Engine) trigger(ctx context.Context, alert *models.Alert, message string) error {
	now := time.Now().UTC()
	if err := e.Repo.MarkAlertTriggered(ctx, alert.ID, now); err != nil {
		return fmt.Errorf("mark triggered: %w", err)
	}
	notif := &models.Notification{
		ID:        uuid.NewString(),
		AlertID:   alert.ID,
		AlertType: alert.AlertType,
		Title:     title(alert.AlertType),
		Message:   message,
	}
	if err := e.Repo.InsertNotification(ctx, notif); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

type entityChangeCondition struct {
	EntityID uint64 `json:"entity_id"`
}

func (e *Engine) evalEntityChange(ctx context.Context, alert *models.Alert, since time.Time) (bool, string, error) {
	var cond entityChangeCondition
	if err := json.Unmarshal(alert.Condition, &cond); err != nil {
		return false, "", fmt.Errorf("parse condition: %w", err)
	}
	if cond.EntityID == 0 {
		return false, "", fmt.Errorf("entity_change condition missing entity_id")
	}

	entity, err := e.Repo.GetEntityByID(ctx, cond.EntityID)
	if err != nil {
		return false, "", err
	}
	if entity == nil {
		return false, "", fmt.Errorf("entity %d not found", cond.EntityID)
	}

	n, err := e.Repo.CountEntityFactsSince(ctx, cond.EntityID, since)
	if err != nil {
		return false, "", err
	}
	if n == 0 {
		return false, "", nil
	}
	return true, entityChangeMessage(n, entity.CanonicalName), nil
}

type newContractCondition struct {
	MinAmount *float64 `json:"min_amount,omitempty"`
	MaxAmount *float64 `json:"max_amount,omitempty"`
	Location  string   `json:"location,omitempty"`
}

func (e *Engine) evalNewContract(ctx context.Context, alert *models.Alert, since time.Time) (bool, string, error) {
	var cond newContractCondition
	if len(alert.Condition) > 0 {
		if err := json.Unmarshal(alert.Condition, &cond); err != nil {
			return false, "", fmt.Errorf("parse condition: %w", err)
		}
	}

	awards, err := e.Repo.ListAwardsSince(ctx, since, 1000)
	if err != nil {
		return false, "", err
	}

	matched := 0
	for i := range awards {
		if matchAward(&awards[i], cond) {
			matched++
		}
	}
	if matched == 0 {
		return false, "", nil
	}
	return true, newContractMessage(matched), nil
}

func matchAward(a *models.Award, cond newContractCondition) bool {
	if cond.MinAmount != nil && a.Amount.LessThan(decimal.NewFromFloat(*cond.MinAmount)) {
		return false
	}
	if cond.MaxAmount != nil && a.Amount.GreaterThan(decimal.NewFromFloat(*cond.MaxAmount)) {
		return false
	}
	if cond.Location != "" &&
		!strings.Contains(strings.ToLower(a.Location), strings.ToLower(cond.Location)) {
		return false
	}
	return true
}

type thresholdCondition struct {
	EntityID uint64  `json:"entity_id"`
	Field    string  `json:"field"`
	Operator string  `json:"operator"`
	Value    float64 `json:"value"`
}

func (e *Engine) evalThreshold(ctx context.Context, alert *models.Alert) (bool, string, error) {
	var cond thresholdCondition
	if err := json.Unmarshal(alert.Condition, &cond); err != nil {
		return false, "", fmt.Errorf("parse condition: %w", err)
	}
	if cond.EntityID == 0 || cond.Field == "" {
		return false, "", fmt.Errorf("threshold condition missing entity_id or field")
	}

	entity, err := e.Repo.GetEntityByID(ctx, cond.EntityID)
	if err != nil {
		return false, "", err
	}
	if entity == nil {
		return false, "", fmt.Errorf("entity %d not found", cond.EntityID)
	}

	value, ok := entityField(entity, cond.Field)
	if !ok {
		return false, "", nil
	}
	if !compare(value, cond.Operator, cond.Value) {
		return false, "", nil
	}
	return true, thresholdMessage(cond.Field, value, cond.Value), nil
}

// entityField reads a numeric field off the entity: "score" is the column,
// anything else is looked up in the attributes document.
func entityField(entity *models.Entity, field string) (float64, bool) {
	if field == "score" {
		return entity.Score, true
	}
	if len(entity.Attributes) == 0 {
		return 0, false
	}
	var attrs map[string]any
	if err := json.Unmarshal(entity.Attributes, &attrs); err != nil {
		return 0, false
	}
	v, ok := attrs[field]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func compare(value float64, operator string, target float64) bool {
	switch operator {
	case ">":
		return value > target
	case "<":
		return value < target
	case ">=", "≥":
		return value >= target
	case "<=", "≤":
		return value <= target
	case "=", "==":
		return math.Abs(value-target) < equalsEpsilon
	}
	return false
}

type keywordCondition struct {
	Keyword string `json:"keyword"`
}

func (e *Engine) evalKeyword(ctx context.Context, alert *models.Alert, since time.Time) (bool, string, error) {
	var cond keywordCondition
	if err := json.Unmarshal(alert.Condition, &cond); err != nil {
		return false, "", fmt.Errorf("parse condition: %w", err)
	}
	if cond.Keyword == "" {
		return false, "", fmt.Errorf("keyword condition missing keyword")
	}

	n, err := e.Repo.CountEntitiesCreatedSinceMatching(ctx, since, cond.Keyword)
	if err != nil {
		return false, "", err
	}
	if n == 0 {
		return false, "", nil
	}
	return true, keywordMessage(n, cond.Keyword), nil
}

func (e *Engine) evalHighOpportunity(ctx context.Context, alert *models.Alert, since time.Time) (bool, string, error) {
	minScore := e.Config.HighOpportunityScore
	if minScore <= 0 {
		minScore = 80
	}
	matches, err := e.Repo.ListEntitiesUpdatedSinceWithMinScore(ctx, since, minScore, 1000)
	if err != nil {
		return false, "", err
	}
	if len(matches) == 0 {
		return false, "", nil
	}
	return true, highOpportunityMessage(len(matches), minScore), nil
}
