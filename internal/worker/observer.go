package worker

import "github.com/JakeFAU/filament-catalog/internal/catalog"

// Observer receives the driver's outbound signals. Methods are called from
// the crawl goroutine and must not block for long.
type Observer interface {
	Progress(current, total int, message string)
	RecordUpdated(rec catalog.MaterialRecord)
	Finished(total int)
	Paused(cursor, total int)
	Stopped()
	Failed(diagnostic string)
}

// NopObserver ignores every signal.
type NopObserver struct{}

// Progress implements Observer.
func (NopObserver) Progress(int, int, string) {}

// RecordUpdated implements Observer.
func (NopObserver) RecordUpdated(catalog.MaterialRecord) {}

// Finished implements Observer.
func (NopObserver) Finished(int) {}

// Paused implements Observer.
func (NopObserver) Paused(int, int) {}

// Stopped implements Observer.
func (NopObserver) Stopped() {}

// Failed implements Observer.
func (NopObserver) Failed(string) {}

// MultiObserver fans every signal out to each member in order.
type MultiObserver []Observer

// Progress implements Observer.
func (m MultiObserver) Progress(current, total int, message string) {
	for _, o := range m {
		o.Progress(current, total, message)
	}
}

// RecordUpdated implements Observer.
func (m MultiObserver) RecordUpdated(rec catalog.MaterialRecord) {
	for _, o := range m {
		o.RecordUpdated(rec)
	}
}

// Finished implements Observer.
func (m MultiObserver) Finished(total int) {
	for _, o := range m {
		o.Finished(total)
	}
}

// Paused implements Observer.
func (m MultiObserver) Paused(cursor, total int) {
	for _, o := range m {
		o.Paused(cursor, total)
	}
}

// Stopped implements Observer.
func (m MultiObserver) Stopped() {
	for _, o := range m {
		o.Stopped()
	}
}

// Failed implements Observer.
func (m MultiObserver) Failed(diagnostic string) {
	for _, o := range m {
		o.Failed(diagnostic)
	}
}
