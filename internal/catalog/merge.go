package catalog

// fieldRule describes one mergeable field of a MaterialRecord.
type fieldRule struct {
	name   string
	empty  func(r *MaterialRecord) bool
	assign func(dst, src *MaterialRecord)
}

// mergeRules enumerates every field Merge touches. Key, ID and Tags are not
// listed: the key is immutable, the id belongs to the store, and tags are
// always replaced wholesale.
var mergeRules = []fieldRule{
	{
		name:   "name",
		empty:  func(r *MaterialRecord) bool { return r.Name == "" },
		assign: func(dst, src *MaterialRecord) { dst.Name = src.Name },
	},
	{
		name:   "manufacturer",
		empty:  func(r *MaterialRecord) bool { return r.Manufacturer == "" },
		assign: func(dst, src *MaterialRecord) { dst.Manufacturer = src.Manufacturer },
	},
	{
		name:   "color_name",
		empty:  func(r *MaterialRecord) bool { return r.ColorName == "" },
		assign: func(dst, src *MaterialRecord) { dst.ColorName = src.ColorName },
	},
	{
		name:   "material_type",
		empty:  func(r *MaterialRecord) bool { return r.MaterialType == "" },
		assign: func(dst, src *MaterialRecord) { dst.MaterialType = src.MaterialType },
	},
	{
		name:   "color",
		empty:  func(r *MaterialRecord) bool { return r.Color == nil },
		assign: func(dst, src *MaterialRecord) { dst.Color = copyRGB(src.Color) },
	},
	{
		name:   "transmittance",
		empty:  func(r *MaterialRecord) bool { return r.Transmittance == nil },
		assign: func(dst, src *MaterialRecord) { dst.Transmittance = copyRGB(src.Transmittance) },
	},
	{
		name:   "bed_temp",
		empty:  func(r *MaterialRecord) bool { return r.BedTemp == "" },
		assign: func(dst, src *MaterialRecord) { dst.BedTemp = src.BedTemp },
	},
	{
		name:   "hotend_temp",
		empty:  func(r *MaterialRecord) bool { return r.HotendTemp == "" },
		assign: func(dst, src *MaterialRecord) { dst.HotendTemp = src.HotendTemp },
	},
	{
		name:   "transparent",
		empty:  func(r *MaterialRecord) bool { return !r.Transparent },
		assign: func(dst, src *MaterialRecord) { dst.Transparent = src.Transparent },
	},
	{
		name:   "glitter",
		empty:  func(r *MaterialRecord) bool { return !r.Glitter },
		assign: func(dst, src *MaterialRecord) { dst.Glitter = src.Glitter },
	},
	{
		name:   "glow",
		empty:  func(r *MaterialRecord) bool { return !r.Glow },
		assign: func(dst, src *MaterialRecord) { dst.Glow = src.Glow },
	},
	{
		name:   "notes",
		empty:  func(r *MaterialRecord) bool { return r.Notes == "" },
		assign: func(dst, src *MaterialRecord) { dst.Notes = src.Notes },
	},
	{
		name:   "image_url",
		empty:  func(r *MaterialRecord) bool { return r.ImageURL == "" },
		assign: func(dst, src *MaterialRecord) { dst.ImageURL = src.ImageURL },
	},
}

// MergedFields lists the field names Merge considers, in evaluation order.
func MergedFields() []string {
	names := make([]string, len(mergeRules))
	for i, rule := range mergeRules {
		names[i] = rule.name
	}
	return names
}

// Merge folds incoming into stored and returns the result.
//
// With fullRefresh every field takes the incoming value, empty or not. In
// incremental mode a field is replaced only when the stored value is empty and
// the incoming one is not, so data captured earlier is never erased. Tags are
// replaced in both modes. The stored record's Key and ID are preserved.
func Merge(stored, incoming MaterialRecord, fullRefresh bool) MaterialRecord {
	out := stored.Clone()
	src := incoming.Clone()
	for _, rule := range mergeRules {
		if fullRefresh || (rule.empty(&out) && !rule.empty(&src)) {
			rule.assign(&out, &src)
		}
	}
	out.Tags = NormalizeTags(src.Tags)
	return out
}

func copyRGB(c *RGB) *RGB {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
