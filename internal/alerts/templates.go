package alerts

import (
	"fmt"
	"strconv"

	"civicsource/internal/models"
)

// Notification text is derived from a fixed template per alert type so the
// same match payload always renders the same message.

var titles = map[string]string{
	models.AlertEntityChange:    "Entity activity",
	models.AlertNewContract:     "New contracts",
	models.AlertThreshold:       "Threshold crossed",
	models.AlertKeyword:         "Keyword match",
	models.AlertHighOpportunity: "High opportunity",
}

func title(alertType string) string {
	if t, ok := titles[alertType]; ok {
		return t
	}
	return "Alert"
}

func entityChangeMessage(n int64, entity string) string {
	return fmt.Sprintf("%d new data points for %s", n, entity)
}

func newContractMessage(n int) string {
	return fmt.Sprintf("%d new matching contract(s)", n)
}

func thresholdMessage(field string, value, threshold float64) string {
	return fmt.Sprintf("%s is now %s (threshold %s)",
		field, formatNumber(value), formatNumber(threshold))
}

func keywordMessage(n int64, keyword string) string {
	return fmt.Sprintf("%d new entities matching %q", n, keyword)
}

func highOpportunityMessage(n int, minScore float64) string {
	return fmt.Sprintf("%d entities now score ≥%s", n, formatNumber(minScore))
}

// formatNumber renders without a trailing ".0" for whole values so messages
// stay stable across integer and float condition payloads.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
