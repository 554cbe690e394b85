// Package cards formats work item fields for printed task cards.
package cards

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jask/taskcards/internal/workitem"
)

// HoursPerDay converts original estimates (hours) into days.
const HoursPerDay = 8

// Estimate renders the original estimate in days. Missing estimates render as
// "-" and values that cannot be read as a number render as "Error: <msg>".
func Estimate(item workitem.WorkItem) string {
	v, ok := item.Field(workitem.FieldOriginalEstimate)
	if !ok || v == nil {
		return "-"
	}
	hours, err := toFloat(v)
	if err != nil {
		return "Error: " + err.Error()
	}
	return strconv.FormatFloat(hours/HoursPerDay, 'f', -1, 64)
}

// EstimateDays returns the estimate in days and whether one was present and
// numeric.
func EstimateDays(item workitem.WorkItem) (float64, bool) {
	v, ok := item.Field(workitem.FieldOriginalEstimate)
	if !ok || v == nil {
		return 0, false
	}
	hours, err := toFloat(v)
	if err != nil {
		return 0, false
	}
	return hours / HoursPerDay, true
}

// Header renders "<Type> <ID>", or "-" when the item has no type.
func Header(item workitem.WorkItem) string {
	if strings.TrimSpace(item.Type) == "" {
		return "-"
	}
	return fmt.Sprintf("%s %d", item.Type, item.ID)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("estimate %q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("estimate has unsupported type %T", v)
	}
}
