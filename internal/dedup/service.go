package dedup

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"civicsource/internal/config"
	"civicsource/internal/models"
	"civicsource/internal/repository"
)

// Rebuilder regenerates the canonical records of a category from the full
// raw set. Canonical rows are never patched incrementally: the cluster set
// is recomputed and upserted by dedup key, and keys no longer produced are
// dropped. Vote tallies live outside the regenerated columns and survive.
type Rebuilder struct {
	Repo   repository.Repository
	Engine *Engine
	Logger *zap.Logger
	Config config.DedupConfig
}

func (r *Rebuilder) RebuildCategory(ctx context.Context, category string) (int, error) {
	if r == nil || r.Repo == nil {
		return 0, nil
	}
	engine := r.Engine
	if engine == nil {
		engine = &Engine{GeoPrecision: r.Config.GeoPrecision}
	}

	batch := r.Config.BatchSize
	if batch <= 0 {
		batch = 500
	}

	var raws []models.RawRecord
	offset := 0
	for {
		page, err := r.Repo.ListRawRecordsByCategory(ctx, category, batch, offset)
		if err != nil {
			return 0, err
		}
		raws = append(raws, page...)
		if len(page) < batch {
			break
		}
		offset += batch
	}
	if len(raws) == 0 {
		return 0, nil
	}

	canonical := engine.Cluster(raws)
	keep := make([]string, 0, len(canonical))
	for _, c := range canonical {
		keep = append(keep, c.DedupKey)
	}

	err := r.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := r.Repo.UpsertCanonicalRecords(ctx, tx, canonical); err != nil {
			return err
		}
		_, err := r.Repo.DeleteCanonicalNotIn(ctx, tx, category, keep)
		return err
	})
	if err != nil {
		return 0, err
	}

	if r.Logger != nil {
		r.Logger.Info("canonical rebuild done",
			zap.String("category", category),
			zap.Int("raw_records", len(raws)),
			zap.Int("canonical", len(canonical)),
		)
	}
	return len(canonical), nil
}
