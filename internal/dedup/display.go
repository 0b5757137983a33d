package dedup

import "strings"

// displayAliases maps raw name tokens to their preferred display form.
var displayAliases = map[string]string{
	"st":    "St.",
	"ave":   "Avenue",
	"blvd":  "Boulevard",
	"dept":  "Department",
	"dpw":   "DPW",
	"intl":  "International",
	"govt":  "Government",
	"assoc": "Association",
	"ctr":   "Center",
	"hq":    "HQ",
}

// DisplayName derives the display form of a raw name: drop a leading "the",
// title-case multi-letter tokens, substitute known aliases.
func DisplayName(name string) string {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) > 0 && strings.EqualFold(fields[0], "the") {
		fields = fields[1:]
	}
	for i, tok := range fields {
		key := strings.ToLower(strings.Trim(tok, ".,"))
		if alias, ok := displayAliases[key]; ok {
			fields[i] = alias
			continue
		}
		fields[i] = titleToken(tok)
	}
	return strings.Join(fields, " ")
}

func titleToken(tok string) string {
	if len(tok) < 2 {
		return tok
	}
	runes := []rune(strings.ToLower(tok))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}
