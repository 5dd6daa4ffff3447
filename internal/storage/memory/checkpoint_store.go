package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// CheckpointStore keeps the encoded checkpoint document in memory. It is not
// durable across restarts; use the local, GCS or Redis stores for that.
type CheckpointStore struct {
	mu   sync.Mutex
	doc  []byte
	fail error
}

// NewCheckpointStore constructs an empty CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

// FailWith makes Save return err until reset with nil.
func (s *CheckpointStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Save replaces the stored checkpoint.
func (s *CheckpointStore) Save(_ context.Context, cp catalog.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.doc = data
	return nil
}

// Load returns the stored checkpoint or nil when none exists.
func (s *CheckpointStore) Load(_ context.Context) (*catalog.Checkpoint, error) {
	s.mu.Lock()
	data := s.doc
	s.mu.Unlock()
	if data == nil {
		return nil, nil
	}
	var cp catalog.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Clear removes the stored checkpoint.
func (s *CheckpointStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = nil
	return nil
}
