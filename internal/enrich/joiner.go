package enrich

import (
	"strings"

	"github.com/bugdigest/bug-digest/internal/domain"
)

// Custom field names the reports read, matched case-insensitively.
const (
	FieldImpact      = "impact"
	FieldProductArea = "product area"
)

// GroupFieldsByTask indexes assignments by task id, resolving field names from the
// dictionary. Missing inputs yield an empty index. Each task's list keeps the order
// of the assignments.
func GroupFieldsByTask(fields map[domain.FieldID]domain.CustomField, assignments domain.Assignments) map[domain.TaskID][]domain.FieldValue {
	grouped := make(map[domain.TaskID][]domain.FieldValue)
	if len(fields) == 0 || len(assignments) == 0 {
		return grouped
	}

	for _, a := range assignments {
		grouped[a.TaskID] = append(grouped[a.TaskID], domain.FieldValue{
			FieldID: a.FieldID,
			Name:    fields[a.FieldID].Name,
			Value:   a.Value,
		})
	}
	return grouped
}

// FieldValueByName returns the value of the first field whose name matches,
// ignoring case. The second result is false when nothing matches.
func FieldValueByName(values []domain.FieldValue, name string) (string, bool) {
	for _, v := range values {
		if v.Name != "" && strings.EqualFold(v.Name, name) {
			return v.Value, true
		}
	}
	return "", false
}
