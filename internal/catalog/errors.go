package catalog

import "errors"

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidHex reports a malformed "#RRGGBB" string.
	ErrInvalidHex = errors.New("invalid hex color")
	// ErrInvalidCheckpoint reports a checkpoint whose cursor is out of range.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
	// ErrDiscoveryFailed means the list page could not be rendered at all.
	ErrDiscoveryFailed = errors.New("discovery failed")
	// ErrEngineUnavailable means the rendering facility cannot serve requests.
	ErrEngineUnavailable = errors.New("rendering engine unavailable")
	// ErrCrawlRunning is returned when a crawl is started while one is active.
	ErrCrawlRunning = errors.New("crawl already running")
	// ErrNoCrawlRunning is returned for pause/stop requests while idle.
	ErrNoCrawlRunning = errors.New("no crawl running")
	// ErrNoCheckpoint is returned when resuming without a stored checkpoint.
	ErrNoCheckpoint = errors.New("no checkpoint to resume")
)
