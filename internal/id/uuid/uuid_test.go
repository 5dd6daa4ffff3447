// Package uuid includes tests for the session id generator.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewSessionID ensures generated IDs are unique version 7 UUIDs.
func TestGeneratorNewSessionID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID() error = %v", err)
	}
	id2, err := gen.NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	if id1.Version() != 7 || id2.Version() != 7 {
		t.Fatalf("expected v7 ids, got %d and %d", id1.Version(), id2.Version())
	}
	if id1 == goUUID.Nil {
		t.Fatal("expected non-nil id")
	}
}
