package sheet

import "strings"

// ParsedRow is one source row: a mapping from column header to raw cell
// value, annotated with its original 1-based row number for error
// attribution. Header lookup is alias- and case-insensitive.
type ParsedRow struct {
	Number int
	Cells  map[string]string
}

// Get returns the trimmed value of the first non-empty cell matching any of
// the given column aliases.
func (r ParsedRow) Get(aliases ...string) string {
	for _, alias := range aliases {
		for header, value := range r.Cells {
			if !strings.EqualFold(normalizeHeader(header), normalizeHeader(alias)) {
				continue
			}
			if v := strings.TrimSpace(value); v != "" {
				return v
			}
		}
	}
	return ""
}

// IsEmpty reports whether every cell of the row is blank.
func (r ParsedRow) IsEmpty() bool {
	for _, value := range r.Cells {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

// NormalizeKey folds a human-readable identifier (title, email, name) into
// the natural key used to deduplicate and link entities across rows.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// InitiativeKey namespaces an initiative title under its parent objective
// title, so the same initiative name under two objectives stays distinct.
func InitiativeKey(objectiveTitle, initiativeTitle string) string {
	return NormalizeKey(objectiveTitle) + "::" + NormalizeKey(initiativeTitle)
}
