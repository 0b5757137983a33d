package dedup

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"civicsource/internal/models"
)

// Engine clusters raw records into canonical records. Clustering is pure and
// deterministic: the dedup key is a function of the record alone, so any
// permutation of the input yields the same groups.
type Engine struct {
	// GeoPrecision controls coordinate truncation; 4 buckets roughly a
	// city-block scale cell.
	GeoPrecision int
}

func (e *Engine) precision() int {
	if e != nil && e.GeoPrecision > 0 {
		return e.GeoPrecision
	}
	return 4
}

// DedupKey is category + normalized name + geo bucket.
func (e *Engine) DedupKey(category, name string, lat, lon *float64) string {
	return category + "|" + NormalizeName(name) + "|" + e.geoBucket(lat, lon)
}

func (e *Engine) geoBucket(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return "nogeo"
	}
	scale := math.Pow10(e.precision() - 2)
	return fmt.Sprintf("%d:%d",
		int64(math.Floor(*lat*scale)),
		int64(math.Floor(*lon*scale)),
	)
}

// NormalizeName lowercases, strips non-alphanumerics and collapses
// whitespace.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Cluster groups raw records by dedup key and emits one canonical record per
// group, sorted by best confidence descending. The duplicate counts of the
// output always sum to len(input).
func (e *Engine) Cluster(records []models.RawRecord) []models.CanonicalRecord {
	type group struct {
		primary models.RawRecord
		count   int
		sources map[string]struct{}
		best    float64
	}

	groups := map[string]*group{}
	order := make([]string, 0, len(records))
	for _, rec := range records {
		key := e.DedupKey(rec.Category, rec.Name, rec.Lat, rec.Lon)
		g, ok := groups[key]
		if !ok {
			g = &group{primary: rec, best: rec.Confidence, sources: map[string]struct{}{}}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		g.sources[rec.SourceSlug] = struct{}{}
		if rec.Confidence > g.best {
			g.best = rec.Confidence
			g.primary = rec
		}
	}

	now := time.Now().UTC()
	out := make([]models.CanonicalRecord, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		slugs := make([]string, 0, len(g.sources))
		for s := range g.sources {
			slugs = append(slugs, s)
		}
		sort.Strings(slugs)
		raw, _ := json.Marshal(slugs)

		out = append(out, models.CanonicalRecord{
			DedupKey:       key,
			Category:       g.primary.Category,
			DisplayName:    DisplayName(g.primary.Name),
			GroupLabel:     GroupLabel(g.primary.Category, g.primary.Name),
			DuplicateCount: g.count,
			Sources:        datatypes.JSON(raw),
			BestConfidence: g.best,
			QualityScore:   0.5,
			UpdatedAt:      now,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BestConfidence != out[j].BestConfidence {
			return out[i].BestConfidence > out[j].BestConfidence
		}
		return out[i].DedupKey < out[j].DedupKey
	})
	return out
}
