package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes orderDir to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField maps a client-facing sort key to its column.
// Unknown keys fall back to defaultColumn, so nothing the client sends
// ever reaches the ORDER BY clause verbatim.
func ValidateSortField(sortField string, columns map[string]string, defaultColumn string) string {
	if column, ok := columns[strings.TrimSpace(sortField)]; ok {
		return column
	}
	return defaultColumn
}

// HerbBatchSortColumns are the herb batch list sort keys
var HerbBatchSortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"species":     "species",
	"status":      "status",
	"collectorId": "collector_id",
}
