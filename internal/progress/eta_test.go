package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "0s"},
		{in: -5 * time.Second, want: "0s"},
		{in: 42 * time.Second, want: "42s"},
		{in: 187 * time.Second, want: "3m 7s"},
		{in: time.Hour + 12*time.Minute + 9*time.Second, want: "1h 12m"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatDuration(tc.in), tc.in.String())
	}
}

func TestRateETA(t *testing.T) {
	t.Parallel()

	_, ok := RateETA(time.Second, 0, 10)
	assert.False(t, ok)

	eta, ok := RateETA(10*time.Second, 5, 20)
	assert.True(t, ok)
	assert.Equal(t, 40*time.Second, eta)

	eta, ok = RateETA(10*time.Second, 5, 0)
	assert.True(t, ok)
	assert.Zero(t, eta)
}
