package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type exampleCountingSink struct {
	total int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	s.total += len(batch)
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit shows consecutive discovery polls collapsing into one
// event before they reach the sinks.
func ExampleHub_Emit() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{
		BufferSize:     16,
		MaxBatchEvents: 16,
		MaxBatchWait:   time.Minute,
	}, sink)

	session := UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	hub.Emit(Event{SessionID: session, TS: time.Unix(0, 0), Stage: StageCrawlStart})
	for _, found := range []int64{12, 30, 41} {
		hub.Emit(Event{SessionID: session, TS: time.Unix(0, 0), Stage: StageDiscoveryPoll, Current: found})
	}
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("events forwarded: %d\n", sink.total)
	// Output:
	// events forwarded: 2
}

// ExampleSink implements a custom Sink that counts skipped items.
func ExampleSink() {
	skipped := 0
	capture := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageItemSkipped {
				skipped++
			}
		}
		return nil
	})
	hub := NewHub(Config{
		BufferSize:     2,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Second,
	}, capture)

	hub.Emit(Event{
		SessionID: UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000002")),
		TS:        time.Unix(0, 0),
		Stage:     StageItemSkipped,
		Key:       "https://example.com/swatch/7/",
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("items skipped: %d\n", skipped)
	// Output:
	// items skipped: 1
}

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
