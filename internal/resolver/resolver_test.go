package resolver

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"civicsource/internal/config"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

// stubRepo keeps entities and raw records in memory; the embedded interface
// panics on anything the resolver should never touch.
type stubRepo struct {
	repository.Repository

	nextID   uint64
	entities map[uint64]*models.Entity
	raws     []models.RawRecord
}

func newStubRepo(raws []models.RawRecord) *stubRepo {
	return &stubRepo{
		entities: map[uint64]*models.Entity{},
		raws:     raws,
	}
}

func (s *stubRepo) ListUnresolvedRawRecords(ctx context.Context, limit int) ([]models.RawRecord, error) {
	out := make([]models.RawRecord, 0, limit)
	for _, raw := range s.raws {
		if raw.EntityID == nil && raw.EntityName != "" {
			out = append(out, raw)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *stubRepo) GetEntityByIdentifier(ctx context.Context, identifier string) (*models.Entity, error) {
	for _, e := range s.entities {
		if e.Identifier != nil && *e.Identifier == identifier {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) GetEntityByNameKey(ctx context.Context, nameKey string) (*models.Entity, error) {
	for _, e := range s.entities {
		if e.NameKey == nameKey {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) CreateEntity(ctx context.Context, item *models.Entity) error {
	for _, e := range s.entities {
		if e.NameKey == item.NameKey {
			// Conflict leaves the inserted id zero, as OnConflict DoNothing does.
			item.ID = 0
			return nil
		}
	}
	s.nextID++
	item.ID = s.nextID
	cp := *item
	s.entities[item.ID] = &cp
	return nil
}

func (s *stubRepo) BackfillEntityByName(ctx context.Context, entityName string, entityID uint64) (int64, error) {
	var n int64
	for i := range s.raws {
		if s.raws[i].EntityID == nil && strings.TrimSpace(s.raws[i].EntityName) == entityName {
			s.raws[i].EntityID = &entityID
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) IncrementEntityFacts(ctx context.Context, id uint64, n int64) error {
	s.entities[id].FactCount += n
	return nil
}

func newResolver(repo *stubRepo) *Resolver {
	return &Resolver{
		Repo:   repo,
		Rules:  DefaultTypeRules(),
		Logger: zap.NewNop(),
		Config: config.ResolverConfig{BatchSize: 100},
	}
}

func TestResolveBatchCreatesAndLinks(t *testing.T) {
	repo := newStubRepo([]models.RawRecord{
		{ID: 1, EntityName: "State University of Springfield"},
		{ID: 2, EntityName: "State University of Springfield"},
		{ID: 3, EntityName: "City of Springfield"},
	})
	r := newResolver(repo)

	result, err := r.ResolveBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 2 || result.Created != 2 || result.Linked != 3 || result.Failed != 0 {
		t.Fatalf("result=%+v", result)
	}
	for _, raw := range repo.raws {
		if raw.EntityID == nil {
			t.Fatalf("record %d left unresolved", raw.ID)
		}
	}
}

func TestResolveBatchIdempotent(t *testing.T) {
	repo := newStubRepo([]models.RawRecord{
		{ID: 1, EntityName: "Acme Construction LLC"},
		{ID: 2, EntityName: "Acme Construction LLC"},
	})
	r := newResolver(repo)
	ctx := context.Background()

	if _, err := r.ResolveBatch(ctx); err != nil {
		t.Fatal(err)
	}
	entitiesAfterFirst := len(repo.entities)

	// The same unresolved shape again: a later batch carrying the same name.
	repo.raws = append(repo.raws, models.RawRecord{ID: 3, EntityName: "Acme Construction LLC"})
	if _, err := r.ResolveBatch(ctx); err != nil {
		t.Fatal(err)
	}
	if len(repo.entities) != entitiesAfterFirst {
		t.Fatalf("entities grew from %d to %d on resolve of a known name", entitiesAfterFirst, len(repo.entities))
	}
}

func TestResolveBatchPrefersStrongIdentifier(t *testing.T) {
	repo := newStubRepo([]models.RawRecord{
		{ID: 1, EntityName: "Springfield Housing Agency", Properties: datatypes.JSON(`{"identifier":"SHA-001"}`)},
	})
	ident := "SHA-001"
	repo.nextID = 10
	repo.entities[10] = &models.Entity{
		ID:            10,
		CanonicalName: "SHA",
		NameKey:       "sha",
		EntityType:    models.EntityAgency,
		Identifier:    &ident,
	}
	r := newResolver(repo)

	result, err := r.ResolveBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 0 {
		t.Fatalf("created=%d, identifier match must not create", result.Created)
	}
	if repo.raws[0].EntityID == nil || *repo.raws[0].EntityID != 10 {
		t.Fatalf("record linked to %v, want entity 10", repo.raws[0].EntityID)
	}
}

func TestClassifyType(t *testing.T) {
	rules := DefaultTypeRules()
	cases := map[string]string{
		"State University of Springfield": models.EntityUniversity,
		"Department of Transportation":    models.EntityAgency,
		"City of Springfield":             models.EntityMunicipality,
		"Acme Construction LLC":           models.EntityContractor,
		"Friends of the River":            models.EntityOrganization,
	}
	for name, want := range cases {
		if got := ClassifyType(rules, name); got != want {
			t.Errorf("ClassifyType(%q)=%q want %q", name, got, want)
		}
	}
}
