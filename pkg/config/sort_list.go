package config

import (
	"fmt"
	"strings"

	"github.com/tabwire/tabwire/pkg/sorting"
)

// ParseSortList parses the compact sort form: comma-separated
// "field:direction" entries where the direction is optional and defaults
// to asc. Example: "dept,salary:desc".
// Returns nil for an empty string.
func ParseSortList(s string) ([]sorting.Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	entries := strings.Split(s, ",")
	specs := make([]sorting.Spec, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, fmt.Errorf("empty sort entry in %q", s)
		}

		field := entry
		dirName := ""
		if idx := strings.LastIndex(entry, ":"); idx >= 0 {
			field = strings.TrimSpace(entry[:idx])
			dirName = strings.TrimSpace(entry[idx+1:])
		}
		if field == "" {
			return nil, fmt.Errorf("empty field name in sort entry %q", entry)
		}

		dir, err := sorting.ParseDirection(dirName)
		if err != nil {
			return nil, fmt.Errorf("sort entry %q: %w", entry, err)
		}
		specs = append(specs, sorting.Spec{Field: field, Direction: dir})
	}
	return specs, nil
}
