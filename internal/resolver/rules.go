package resolver

import "strings"

// TypeRule assigns an entity type when the name matches. Rules are evaluated
// top to bottom; Tokens match whole words of the normalized name, Phrases
// match as substrings. New types are added by appending rules, not by
// touching control flow.
type TypeRule struct {
	Type    string
	Tokens  []string
	Phrases []string
}

func DefaultTypeRules() []TypeRule {
	return []TypeRule{
		{Type: "university", Tokens: []string{"university", "college", "institute"}},
		{Type: "agency", Tokens: []string{"department", "agency", "commission", "bureau", "authority"}},
		{Type: "municipality", Tokens: []string{"county", "borough"}, Phrases: []string{"city of", "town of", "village of"}},
		{Type: "contractor", Tokens: []string{"inc", "llc", "corp", "ltd", "co", "company", "construction"}},
	}
}

// ClassifyType returns the first matching rule's type, or "organization".
func ClassifyType(rules []TypeRule, name string) string {
	norm := normalizeName(name)
	tokens := map[string]struct{}{}
	for _, tok := range strings.Fields(norm) {
		tokens[tok] = struct{}{}
	}
	for _, rule := range rules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(norm, phrase) {
				return rule.Type
			}
		}
		for _, want := range rule.Tokens {
			if _, ok := tokens[want]; ok {
				return rule.Type
			}
		}
	}
	return "organization"
}

func normalizeName(name string) string {
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
