package dedup

import (
	"testing"

	"civicsource/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestDedupKeyNoGeo(t *testing.T) {
	e := &Engine{}
	key := e.DedupKey("facility", "Main St. Library", nil, nil)
	if key != "facility|main st library|nogeo" {
		t.Fatalf("key=%q", key)
	}
}

func TestDedupKeyNearbyCoordinatesShareBucket(t *testing.T) {
	e := &Engine{GeoPrecision: 4}
	a := e.DedupKey("facility", "Central Park", floatPtr(40.7812), floatPtr(-73.9665))
	b := e.DedupKey("facility", "central park", floatPtr(40.7819), floatPtr(-73.9668))
	if a != b {
		t.Fatalf("expected same bucket, got %q vs %q", a, b)
	}
	far := e.DedupKey("facility", "Central Park", floatPtr(41.9), floatPtr(-73.9665))
	if a == far {
		t.Fatalf("distant coordinate collapsed into same key %q", a)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  The Main-St.  LIBRARY ": "the main st library",
		"Oak (Quercus alba)":       "oak quercus alba",
		"":                         "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestClusterDuplicateCountsSumToInput(t *testing.T) {
	e := &Engine{}
	records := []models.RawRecord{
		{SourceSlug: "a", Category: "facility", Name: "Main Library", Confidence: 0.5},
		{SourceSlug: "b", Category: "facility", Name: "main library", Confidence: 0.7},
		{SourceSlug: "a", Category: "facility", Name: "City Hall", Confidence: 0.9},
		{SourceSlug: "c", Category: "species", Name: "Red Oak", Confidence: 0.4},
		{SourceSlug: "c", Category: "species", Name: "Red Oak", Lat: floatPtr(40.1), Lon: floatPtr(-73.2), Confidence: 0.4},
	}

	out := e.Cluster(records)
	sum := 0
	for _, rec := range out {
		sum += rec.DuplicateCount
	}
	if sum != len(records) {
		t.Fatalf("duplicate counts sum to %d, want %d", sum, len(records))
	}
}

func TestClusterOrderIndependent(t *testing.T) {
	e := &Engine{}
	records := []models.RawRecord{
		{SourceSlug: "a", Category: "facility", Name: "Main Library", Confidence: 0.5},
		{SourceSlug: "b", Category: "facility", Name: "main library", Confidence: 0.9},
		{SourceSlug: "a", Category: "facility", Name: "City Hall", Confidence: 0.3},
		{SourceSlug: "c", Category: "species", Name: "Red Oak", Confidence: 0.4},
	}
	reversed := make([]models.RawRecord, len(records))
	for i, rec := range records {
		reversed[len(records)-1-i] = rec
	}

	forward := e.Cluster(records)
	backward := e.Cluster(reversed)
	if len(forward) != len(backward) {
		t.Fatalf("cluster counts differ: %d vs %d", len(forward), len(backward))
	}
	for i := range forward {
		f, b := forward[i], backward[i]
		if f.DedupKey != b.DedupKey || f.DuplicateCount != b.DuplicateCount ||
			f.BestConfidence != b.BestConfidence || string(f.Sources) != string(b.Sources) {
			t.Fatalf("cluster %d differs between orderings:\n%+v\n%+v", i, f, b)
		}
	}
}

func TestClusterMergesSharedKey(t *testing.T) {
	e := &Engine{}
	records := []models.RawRecord{
		{SourceSlug: "a", Category: "facility", Name: "Main Library", Lat: floatPtr(40.7812), Lon: floatPtr(-73.9665), Confidence: 0.6},
		{SourceSlug: "b", Category: "facility", Name: "MAIN library", Lat: floatPtr(40.7815), Lon: floatPtr(-73.9661), Confidence: 0.9},
		{SourceSlug: "a", Category: "facility", Name: "City Hall", Confidence: 0.5},
		{SourceSlug: "b", Category: "species", Name: "Red Oak", Confidence: 0.4},
		{SourceSlug: "c", Category: "facility", Name: "Fire Station 4", Confidence: 0.7},
	}

	out := e.Cluster(records)
	if len(out) != 4 {
		t.Fatalf("got %d canonical records, want 4", len(out))
	}

	var merged *models.CanonicalRecord
	for i := range out {
		if out[i].DuplicateCount == 2 {
			merged = &out[i]
		}
	}
	if merged == nil {
		t.Fatal("no merged cluster found")
	}
	if merged.BestConfidence != 0.9 {
		t.Fatalf("merged bestConfidence=%v want 0.9", merged.BestConfidence)
	}
	if string(merged.Sources) != `["a","b"]` {
		t.Fatalf("merged sources=%s", merged.Sources)
	}
	// Output is sorted best-confidence first, so the merged cluster leads.
	if out[0].DedupKey != merged.DedupKey {
		t.Fatalf("expected merged cluster first, got %q", out[0].DedupKey)
	}
}

func TestClusterPrimaryIsHighestConfidence(t *testing.T) {
	e := &Engine{}
	records := []models.RawRecord{
		{SourceSlug: "a", Category: "facility", Name: "main st library", Confidence: 0.2},
		{SourceSlug: "b", Category: "facility", Name: "Main St. Library", Confidence: 0.8},
	}
	out := e.Cluster(records)
	if len(out) != 1 {
		t.Fatalf("got %d clusters, want 1", len(out))
	}
	if out[0].DisplayName != "Main St. Library" {
		t.Fatalf("displayName=%q, want the high-confidence record's rendering", out[0].DisplayName)
	}
}
