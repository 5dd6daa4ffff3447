package catalog

import "strings"

// Filter narrows List results. Empty fields match everything; string matches
// are case-insensitive substring matches.
type Filter struct {
	// Query matches name, manufacturer or primary hex.
	Query        string
	MaterialType string
	Manufacturer string
	// HasTransmittance, when set, keeps only records with (or without) a
	// transmittance color.
	HasTransmittance *bool
	// Limit caps the result size; 0 means unlimited.
	Limit  int
	Offset int
}

// Matches reports whether rec passes every clause of f. Limit and Offset are
// applied by the caller.
func (f Filter) Matches(rec MaterialRecord) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !containsFold(rec.Name, q) && !containsFold(rec.Manufacturer, q) && !containsFold(rec.ColorHex(), q) {
			return false
		}
	}
	if t := strings.ToLower(strings.TrimSpace(f.MaterialType)); t != "" && !containsFold(rec.MaterialType, t) {
		return false
	}
	if m := strings.ToLower(strings.TrimSpace(f.Manufacturer)); m != "" && !containsFold(rec.Manufacturer, m) {
		return false
	}
	if f.HasTransmittance != nil && (rec.Transmittance != nil) != *f.HasTransmittance {
		return false
	}
	return true
}

func containsFold(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}
