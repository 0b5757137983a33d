package dedup

import "strings"

// labelRule assigns a group label when any keyword appears in the normalized
// name. Rules are evaluated in order; first match wins.
type labelRule struct {
	Label    string
	Keywords []string
}

// speciesRules bucket flora records into coarse taxonomic groups.
var speciesRules = []labelRule{
	{Label: "Broadleaf", Keywords: []string{"oak", "maple", "elm", "ash", "birch", "sycamore", "linden"}},
	{Label: "Conifer", Keywords: []string{"pine", "spruce", "fir", "cedar", "cypress", "juniper"}},
	{Label: "Palm", Keywords: []string{"palm"}},
	{Label: "Fruit", Keywords: []string{"apple", "cherry", "plum", "pear"}},
}

// facilityRules bucket public facilities by type.
var facilityRules = []labelRule{
	{Label: "Education", Keywords: []string{"school", "library", "college", "campus"}},
	{Label: "Healthcare", Keywords: []string{"hospital", "clinic", "health center"}},
	{Label: "Recreation", Keywords: []string{"park", "playground", "pool", "recreation", "stadium"}},
	{Label: "Transit", Keywords: []string{"station", "depot", "terminal", "garage"}},
	{Label: "Civic", Keywords: []string{"city hall", "courthouse", "fire", "police", "precinct"}},
}

// GroupLabel picks a category-specific group for a canonical record:
// taxonomic buckets for species, facility-type buckets for facilities, and a
// title-cased category name otherwise.
func GroupLabel(category, name string) string {
	norm := NormalizeName(name)
	switch category {
	case "species":
		if label := matchRules(speciesRules, norm); label != "" {
			return label
		}
		return "Other Flora"
	case "facility":
		if label := matchRules(facilityRules, norm); label != "" {
			return label
		}
		return "General Facility"
	default:
		return titleCategory(category)
	}
}

func matchRules(rules []labelRule, norm string) string {
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(norm, kw) {
				return rule.Label
			}
		}
	}
	return ""
}

func titleCategory(category string) string {
	fields := strings.Fields(strings.ReplaceAll(strings.ToLower(category), "_", " "))
	for i, tok := range fields {
		fields[i] = titleToken(tok)
	}
	return strings.Join(fields, " ")
}
