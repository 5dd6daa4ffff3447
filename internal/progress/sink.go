package progress

import "context"

// Sink receives flushed batches from a Hub. Consume is called from the hub's
// single batching goroutine and must respect ctx; Close runs once on shutdown.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter is what the crawl driver and the store adapter report to.
type Emitter interface {
	Emit(evt Event)
}
