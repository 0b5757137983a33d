package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"civicsource/internal/config"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

type stubRepo struct {
	repository.Repository

	alerts        []models.Alert
	entities      map[uint64]*models.Entity
	factCounts    map[uint64]int64
	awards        []models.Award
	keywordCounts map[string]int64
	highScore     []models.Entity
	notifications []models.Notification
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		entities:      map[uint64]*models.Entity{},
		factCounts:    map[uint64]int64{},
		keywordCounts: map[string]int64{},
	}
}

func (s *stubRepo) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	out := make([]models.Alert, 0)
	for _, a := range s.alerts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubRepo) GetEntityByID(ctx context.Context, id uint64) (*models.Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *stubRepo) CountEntityFactsSince(ctx context.Context, entityID uint64, since time.Time) (int64, error) {
	return s.factCounts[entityID], nil
}

func (s *stubRepo) ListAwardsSince(ctx context.Context, since time.Time, limit int) ([]models.Award, error) {
	return s.awards, nil
}

func (s *stubRepo) CountEntitiesCreatedSinceMatching(ctx context.Context, since time.Time, keyword string) (int64, error) {
	return s.keywordCounts[keyword], nil
}

func (s *stubRepo) ListEntitiesUpdatedSinceWithMinScore(ctx context.Context, since time.Time, minScore float64, limit int) ([]models.Entity, error) {
	return s.highScore, nil
}

func (s *stubRepo) MarkAlertTriggered(ctx context.Context, id uint64, at time.Time) error {
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].LastTriggeredAt = &at
			s.alerts[i].TriggerCount++
		}
	}
	return nil
}

func (s *stubRepo) InsertNotification(ctx context.Context, item *models.Notification) error {
	s.notifications = append(s.notifications, *item)
	return nil
}

func newEngine(repo *stubRepo) *Engine {
	return &Engine{
		Repo:   repo,
		Logger: zap.NewNop(),
		Config: config.AlertsConfig{
			DefaultLookback:      24 * time.Hour,
			HighOpportunityScore: 80,
		},
	}
}

func thresholdAlert(id uint64) models.Alert {
	return models.Alert{
		ID:        id,
		AlertType: models.AlertThreshold,
		Active:    true,
		Condition: datatypes.JSON(`{"entity_id":1,"field":"risk_score","operator":">","value":70}`),
	}
}

func award(awardID string, amount int64, location string) models.Award {
	return models.Award{
		AwardID:   awardID,
		Amount:    decimal.NewFromInt(amount),
		Location:  location,
		AwardedAt: time.Now().UTC(),
	}
}

func TestThresholdAlertTriggersAboveValue(t *testing.T) {
	repo := newStubRepo()
	repo.entities[1] = &models.Entity{
		ID:            1,
		CanonicalName: "Acme Construction LLC",
		Attributes:    datatypes.JSON(`{"risk_score":75}`),
	}
	repo.alerts = []models.Alert{thresholdAlert(1)}
	e := newEngine(repo)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("notifications=%d want 1", len(repo.notifications))
	}
	n := repo.notifications[0]
	if n.Message != "risk_score is now 75 (threshold 70)" {
		t.Fatalf("message=%q", n.Message)
	}
	if n.ID == "" || n.AlertID != 1 || n.AlertType != models.AlertThreshold {
		t.Fatalf("notification=%+v", n)
	}
	if repo.alerts[0].TriggerCount != 1 || repo.alerts[0].LastTriggeredAt == nil {
		t.Fatalf("alert bookkeeping=%+v", repo.alerts[0])
	}
}

func TestThresholdAlertHoldsBelowValue(t *testing.T) {
	repo := newStubRepo()
	repo.entities[1] = &models.Entity{
		ID:         1,
		Attributes: datatypes.JSON(`{"risk_score":65}`),
	}
	repo.alerts = []models.Alert{thresholdAlert(1)}
	e := newEngine(repo)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.notifications) != 0 {
		t.Fatalf("notifications=%d want 0", len(repo.notifications))
	}
	if repo.alerts[0].TriggerCount != 0 {
		t.Fatalf("trigger_count=%d want 0", repo.alerts[0].TriggerCount)
	}
}

func TestEntityChangeAlert(t *testing.T) {
	repo := newStubRepo()
	repo.entities[7] = &models.Entity{ID: 7, CanonicalName: "City of Springfield"}
	repo.factCounts[7] = 4
	repo.alerts = []models.Alert{{
		ID:        1,
		AlertType: models.AlertEntityChange,
		Active:    true,
		Condition: datatypes.JSON(`{"entity_id":7}`),
	}}
	e := newEngine(repo)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("notifications=%d want 1", len(repo.notifications))
	}
	if repo.notifications[0].Message != "4 new data points for City of Springfield" {
		t.Fatalf("message=%q", repo.notifications[0].Message)
	}
}

func TestKeywordAlert(t *testing.T) {
	repo := newStubRepo()
	repo.keywordCounts["solar"] = 2
	repo.alerts = []models.Alert{{
		ID:        1,
		AlertType: models.AlertKeyword,
		Active:    true,
		Condition: datatypes.JSON(`{"keyword":"solar"}`),
	}}
	e := newEngine(repo)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("notifications=%d want 1", len(repo.notifications))
	}
	if repo.notifications[0].Message != `2 new entities matching "solar"` {
		t.Fatalf("message=%q", repo.notifications[0].Message)
	}
}

func TestHighOpportunityAlert(t *testing.T) {
	repo := newStubRepo()
	repo.highScore = []models.Entity{{ID: 1, Score: 88}, {ID: 2, Score: 91}}
	repo.alerts = []models.Alert{{
		ID:        1,
		AlertType: models.AlertHighOpportunity,
		Active:    true,
		Condition: datatypes.JSON(`{}`),
	}}
	e := newEngine(repo)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("notifications=%d want 1", len(repo.notifications))
	}
	if repo.notifications[0].Message != "2 entities now score ≥80" {
		t.Fatalf("message=%q", repo.notifications[0].Message)
	}
}

func TestOneFailingAlertDoesNotBlockOthers(t *testing.T) {
	repo := newStubRepo()
	repo.keywordCounts["bridge"] = 1
	repo.alerts = []models.Alert{
		{
			ID:        1,
			AlertType: models.AlertThreshold,
			Active:    true,
			// Bound entity is gone; evaluation errors.
			Condition: datatypes.JSON(`{"entity_id":99,"field":"risk_score","operator":">","value":1}`),
		},
		{
			ID:        2,
			AlertType: models.AlertKeyword,
			Active:    true,
			Condition: datatypes.JSON(`{"keyword":"bridge"}`),
		},
	}
	e := newEngine(repo)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.notifications) != 1 || repo.notifications[0].AlertID != 2 {
		t.Fatalf("notifications=%+v, healthy alert must still fire", repo.notifications)
	}
}

func TestNewContractAlertFilters(t *testing.T) {
	repo := newStubRepo()
	repo.awards = []models.Award{
		award("AW-1", 50000, "Springfield"),
		award("AW-2", 250000, "Springfield"),
		award("AW-3", 300000, "Shelbyville"),
	}
	repo.alerts = []models.Alert{{
		ID:        1,
		AlertType: models.AlertNewContract,
		Active:    true,
		Condition: datatypes.JSON(`{"min_amount":100000,"location":"springfield"}`),
	}}
	e := newEngine(repo)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("notifications=%d want 1", len(repo.notifications))
	}
	if repo.notifications[0].Message != "1 new matching contract(s)" {
		t.Fatalf("message=%q", repo.notifications[0].Message)
	}
}
