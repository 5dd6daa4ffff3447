package catalog

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// RGB is an 8-bit-per-channel color triple.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the canonical "#RRGGBB" encoding (upper case).
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ParseHex decodes "#RRGGBB" or "RRGGBB" (any case) into an RGB triple.
func ParseHex(s string) (RGB, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(raw) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return RGB{R: b[0], G: b[1], B: b[2]}, nil
}

// MustParseHex is ParseHex for literals known to be valid; it panics otherwise.
func MustParseHex(s string) *RGB {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return &c
}

// MaterialRecord is one catalogued filament color. Hex strings are always
// derived from the RGB triples so the two can never disagree.
type MaterialRecord struct {
	ID            int64    `json:"id"`
	Key           string   `json:"key"`
	Name          string   `json:"name,omitempty"`
	Manufacturer  string   `json:"manufacturer,omitempty"`
	ColorName     string   `json:"color_name,omitempty"`
	MaterialType  string   `json:"material_type,omitempty"`
	Color         *RGB     `json:"color,omitempty"`
	Transmittance *RGB     `json:"transmittance,omitempty"`
	BedTemp       string   `json:"bed_temp,omitempty"`
	HotendTemp    string   `json:"hotend_temp,omitempty"`
	Transparent   bool     `json:"transparent"`
	Glitter       bool     `json:"glitter"`
	Glow          bool     `json:"glow"`
	Notes         string   `json:"notes,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	Tags          []string `json:"tags"`
}

// ColorHex returns the primary color as "#RRGGBB", or "" when unknown.
func (r MaterialRecord) ColorHex() string {
	if r.Color == nil {
		return ""
	}
	return r.Color.Hex()
}

// TransmittanceHex returns the transmittance color as "#RRGGBB", or "".
func (r MaterialRecord) TransmittanceHex() string {
	if r.Transmittance == nil {
		return ""
	}
	return r.Transmittance.Hex()
}

// Complete reports whether the record has a name, a manufacturer and a primary
// color. Incomplete records are the only ones re-fetched in incremental mode.
func (r MaterialRecord) Complete() bool {
	return r.Name != "" && r.Manufacturer != "" && r.ColorHex() != ""
}

// Clone returns a deep copy so callers can hand records across goroutines.
func (r MaterialRecord) Clone() MaterialRecord {
	out := r
	if r.Color != nil {
		c := *r.Color
		out.Color = &c
	}
	if r.Transmittance != nil {
		c := *r.Transmittance
		out.Transmittance = &c
	}
	out.Tags = append([]string(nil), r.Tags...)
	return out
}

// NormalizeTags lowercases, trims, drops empties and deduplicates tags. The
// result is sorted so stored tag sets compare equal regardless of page order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
