package progress

import (
	"fmt"
	"time"
)

// FormatDuration renders an ETA as "42s", "3m 7s" or "1h 12m".
func FormatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	}
}

// RateETA extrapolates the time needed for remaining units from done units
// completed in elapsed. ok is false until there is a usable rate.
func RateETA(elapsed time.Duration, done, remaining int) (time.Duration, bool) {
	if done <= 0 || elapsed <= 0 {
		return 0, false
	}
	if remaining <= 0 {
		return 0, true
	}
	per := elapsed / time.Duration(done)
	return per * time.Duration(remaining), true
}
