package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexRoundTrip(t *testing.T) {
	t.Parallel()

	for _, h := range []string{"#000000", "#FFFFFF", "#FF0000", "#0A1B2C", "#7F7F80"} {
		c, err := ParseHex(h)
		require.NoError(t, err)
		assert.Equal(t, h, c.Hex())
	}

	c, err := ParseHex("  0a1b2c ")
	require.NoError(t, err)
	assert.Equal(t, RGB{R: 0x0a, G: 0x1b, B: 0x2c}, c)
	assert.Equal(t, "#0A1B2C", c.Hex())
}

func TestRGBEncodeDecodeAllChannels(t *testing.T) {
	t.Parallel()

	for v := 0; v < 256; v++ {
		in := RGB{R: uint8(v), G: uint8(255 - v), B: uint8(v * 7 % 256)}
		out, err := ParseHex(in.Hex())
		require.NoError(t, err)
		require.Equal(t, in, out, fmt.Sprintf("channel value %d", v))
	}
}

func TestParseHexRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, h := range []string{"", "#FFF", "#GGGGGG", "#FF00001", "red"} {
		_, err := ParseHex(h)
		require.ErrorIs(t, err, ErrInvalidHex, h)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	rec := MaterialRecord{Name: "Red", Manufacturer: "X", Color: MustParseHex("#FF0000")}
	assert.True(t, rec.Complete())

	noColor := rec
	noColor.Color = nil
	assert.False(t, noColor.Complete())

	noName := rec
	noName.Name = ""
	assert.False(t, noName.Complete())

	assert.Equal(t, "", MaterialRecord{}.ColorHex())
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	got := NormalizeTags([]string{" Matte ", "PLA", "matte", "", "silk"})
	assert.Equal(t, []string{"matte", "pla", "silk"}, got)
	assert.Empty(t, NormalizeTags(nil))
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	rec := MaterialRecord{Color: MustParseHex("#010203"), Tags: []string{"a"}}
	cp := rec.Clone()
	cp.Color.R = 9
	cp.Tags[0] = "b"
	assert.Equal(t, uint8(1), rec.Color.R)
	assert.Equal(t, "a", rec.Tags[0])
}
