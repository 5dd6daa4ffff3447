package memory

import (
	"context"
	"testing"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/notify"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	if err := pub.Publish(context.Background(), catalog.MaterialRecord{ID: 1, Key: "a"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Publish(context.Background(), catalog.MaterialRecord{ID: 2, Key: "b"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Key != "a" || msgs[1].ID != 2 || msgs[0].Type != notify.EventRecordUpdated {
		t.Fatalf("messages not recorded correctly: %+v", msgs)
	}

	msgs[0].Key = "modified"
	if pub.Messages()[0].Key == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}

	if err := pub.Close(); err != nil || !pub.Closed() {
		t.Fatalf("expected closed publisher, err=%v", err)
	}
}
