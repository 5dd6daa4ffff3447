package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRecord() MaterialRecord {
	return MaterialRecord{
		ID:            7,
		Key:           "https://example.com/swatch/1",
		Name:          "Red",
		Manufacturer:  "X",
		ColorName:     "Signal Red",
		MaterialType:  "PLA",
		Color:         MustParseHex("#FF0000"),
		Transmittance: MustParseHex("#220000"),
		BedTemp:       "60",
		HotendTemp:    "210",
		Transparent:   true,
		Glitter:       true,
		Glow:          true,
		Notes:         "nice",
		ImageURL:      "https://example.com/a.jpg",
		Tags:          []string{"matte"},
	}
}

func TestMergeIncrementalKeepsStoredValues(t *testing.T) {
	t.Parallel()

	stored := fullRecord()
	got := Merge(stored, MaterialRecord{Key: "other", ID: 99}, false)

	want := stored
	want.Tags = []string{}
	assert.Equal(t, want, got)
}

func TestMergeIncrementalFillsGaps(t *testing.T) {
	t.Parallel()

	stored := MaterialRecord{ID: 3, Key: "k", Name: "Red"}
	incoming := MaterialRecord{
		Name:         "Other name",
		Manufacturer: "X",
		Color:        MustParseHex("#FF0000"),
		Glow:         true,
		Tags:         []string{"Silk"},
	}
	got := Merge(stored, incoming, false)

	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, "k", got.Key)
	assert.Equal(t, "Red", got.Name)
	assert.Equal(t, "X", got.Manufacturer)
	assert.Equal(t, "#FF0000", got.ColorHex())
	assert.True(t, got.Glow)
	assert.False(t, got.Glitter)
	assert.Equal(t, []string{"silk"}, got.Tags)
	assert.True(t, got.Complete())
}

func TestMergeNeverRegressesInIncrementalMode(t *testing.T) {
	t.Parallel()

	stored := fullRecord()
	updates := []MaterialRecord{
		{},
		{Name: "New", Manufacturer: "Y", Color: MustParseHex("#00FF00")},
		{Notes: "", Transparent: false, ImageURL: ""},
	}
	for _, upd := range updates {
		got := Merge(stored, upd, false)
		for _, rule := range mergeRules {
			require.False(t, rule.empty(&got), "field %s regressed", rule.name)
		}
		assert.Equal(t, stored.Name, got.Name)
		assert.Equal(t, stored.ColorHex(), got.ColorHex())
	}
}

func TestMergeFullRefreshOverwritesWithEmpty(t *testing.T) {
	t.Parallel()

	stored := fullRecord()
	got := Merge(stored, MaterialRecord{Name: "Only"}, true)

	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, stored.Key, got.Key)
	assert.Equal(t, "Only", got.Name)
	assert.Empty(t, got.Manufacturer)
	assert.Nil(t, got.Color)
	assert.Nil(t, got.Transmittance)
	assert.False(t, got.Transparent)
	assert.False(t, got.Glitter)
	assert.False(t, got.Glow)
	assert.Empty(t, got.Notes)
	assert.Empty(t, got.ImageURL)
	assert.False(t, got.Complete())
}

func TestMergeDoesNotAliasIncoming(t *testing.T) {
	t.Parallel()

	incoming := MaterialRecord{Color: MustParseHex("#010101")}
	got := Merge(MaterialRecord{}, incoming, false)
	incoming.Color.R = 200
	assert.Equal(t, "#010101", got.ColorHex())
}

func TestMergedFieldsCoversRecord(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"name", "manufacturer", "color_name", "material_type", "color", "transmittance",
		"bed_temp", "hotend_temp", "transparent", "glitter", "glow", "notes", "image_url",
	}, MergedFields())
}
