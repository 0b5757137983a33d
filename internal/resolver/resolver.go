package resolver

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"civicsource/internal/config"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

// Resolver links unresolved raw-record references to canonical entities,
// creating entities as needed. Resolution order is strict: strong identifier
// first, then case-insensitive name match, then create. A no-match is not an
// error; creating a fresh entity is the documented fallback.
type Resolver struct {
	Repo   repository.Repository
	Rules  []TypeRule
	Logger *zap.Logger
	Config config.ResolverConfig
}

type BatchResult struct {
	Processed int
	Linked    int64
	Created   int
	Failed    int
}

// ResolveBatch drains one bounded batch of unresolved references. The owning
// cron re-invokes until the backlog is empty. Re-running over the same
// inputs finds the entities a prior run created, so no duplicates appear.
func (r *Resolver) ResolveBatch(ctx context.Context) (BatchResult, error) {
	var result BatchResult
	if r == nil || r.Repo == nil {
		return result, nil
	}
	if len(r.Rules) == 0 {
		r.Rules = DefaultTypeRules()
	}
	limit := r.Config.BatchSize
	if limit <= 0 {
		limit = 100
	}

	raws, err := r.Repo.ListUnresolvedRawRecords(ctx, limit)
	if err != nil {
		return result, err
	}

	// One resolution per distinct name string; backfill covers the rest of
	// the batch sharing it.
	byName := map[string]models.RawRecord{}
	for _, raw := range raws {
		name := strings.TrimSpace(raw.EntityName)
		if name == "" {
			continue
		}
		if _, ok := byName[name]; !ok {
			byName[name] = raw
		}
	}

	for name, raw := range byName {
		result.Processed++
		entity, created, err := r.resolveOne(ctx, name, raw)
		if err != nil || entity == nil {
			result.Failed++
			if r.Logger != nil {
				r.Logger.Warn("entity resolution failed", zap.String("name", name), zap.Error(err))
			}
			continue
		}
		if created {
			result.Created++
		}
		n, err := r.Repo.BackfillEntityByName(ctx, name, entity.ID)
		if err != nil {
			result.Failed++
			if r.Logger != nil {
				r.Logger.Warn("entity backfill failed", zap.String("name", name), zap.Error(err))
			}
			continue
		}
		result.Linked += n
		if err := r.Repo.IncrementEntityFacts(ctx, entity.ID, n); err != nil && r.Logger != nil {
			r.Logger.Warn("entity fact count update failed", zap.Uint64("entity_id", entity.ID), zap.Error(err))
		}
	}

	if r.Logger != nil && result.Processed > 0 {
		r.Logger.Info("resolver batch done",
			zap.Int("processed", result.Processed),
			zap.Int64("linked", result.Linked),
			zap.Int("created", result.Created),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func (r *Resolver) resolveOne(ctx context.Context, name string, raw models.RawRecord) (*models.Entity, bool, error) {
	identifier := strongIdentifier(raw)
	if identifier != "" {
		entity, err := r.Repo.GetEntityByIdentifier(ctx, identifier)
		if err != nil {
			return nil, false, err
		}
		if entity != nil {
			return entity, false, nil
		}
	}

	nameKey := strings.ToLower(name)
	entity, err := r.Repo.GetEntityByNameKey(ctx, nameKey)
	if err != nil {
		return nil, false, err
	}
	if entity != nil {
		return entity, false, nil
	}

	item := &models.Entity{
		CanonicalName: name,
		NameKey:       nameKey,
		EntityType:    ClassifyType(r.Rules, name),
	}
	if identifier != "" {
		item.Identifier = &identifier
	}
	if err := r.Repo.CreateEntity(ctx, item); err != nil {
		return nil, false, err
	}
	// A conflicting concurrent create leaves item.ID zero; re-fetch either
	// way so the caller always holds the persisted row.
	if item.ID != 0 {
		return item, true, nil
	}
	entity, err = r.Repo.GetEntityByNameKey(ctx, nameKey)
	if err != nil {
		return nil, false, err
	}
	return entity, false, nil
}

func strongIdentifier(raw models.RawRecord) string {
	if len(raw.Properties) == 0 {
		return ""
	}
	var props map[string]any
	if err := json.Unmarshal(raw.Properties, &props); err != nil {
		return ""
	}
	if v, ok := props["identifier"]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
