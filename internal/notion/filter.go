package notion

import "time"

// Filter is a Notion database query filter object.
type Filter map[string]any

// LastEditedAfter matches pages edited strictly after t.
func LastEditedAfter(t time.Time) Filter {
	return Filter{
		"timestamp": "last_edited_time",
		"last_edited_time": map[string]any{
			"after": t.UTC().Format(time.RFC3339Nano),
		},
	}
}

// And combines filters; nil filters are skipped and a single remaining filter
// is returned unwrapped.
func And(filters ...Filter) Filter {
	var parts []any
	var only Filter
	for _, f := range filters {
		if len(f) == 0 {
			continue
		}
		parts = append(parts, map[string]any(f))
		only = f
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return only
	}
	return Filter{"and": parts}
}
