// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// RecordStore is an in-memory catalog.Catalog. Records are kept in insertion
// order, which doubles as id order.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]catalog.MaterialRecord
	order   []string
	nextID  int64
	fail    error
}

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]catalog.MaterialRecord)}
}

// FailWith makes every subsequent write return err; nil restores normal
// operation. It lets callers simulate an unavailable store.
func (s *RecordStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Get returns a copy of the record for key.
func (s *RecordStore) Get(_ context.Context, key string) (catalog.MaterialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return catalog.MaterialRecord{}, catalog.ErrNotFound
	}
	return rec.Clone(), nil
}

// IsComplete reports whether key exists and is complete.
func (s *RecordStore) IsComplete(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return ok && rec.Complete(), nil
}

// Upsert inserts or merges the record for key.
func (s *RecordStore) Upsert(
	_ context.Context,
	key string,
	partial catalog.MaterialRecord,
	fullRefresh bool,
) (int64, error) {
	if key == "" {
		return 0, errors.New("record key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	existing, ok := s.records[key]
	var next catalog.MaterialRecord
	if ok {
		next = catalog.Merge(existing, partial, fullRefresh)
	} else {
		s.nextID++
		next = partial.Clone()
		next.ID = s.nextID
		next.Key = key
		next.Tags = catalog.NormalizeTags(partial.Tags)
		s.order = append(s.order, key)
	}
	s.records[key] = next
	return next.ID, nil
}

// List returns matching records in id order.
func (s *RecordStore) List(_ context.Context, filter catalog.Filter) ([]catalog.MaterialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.MaterialRecord, 0)
	skipped := 0
	for _, key := range s.order {
		rec := s.records[key]
		if !filter.Matches(rec) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, rec.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Manufacturers returns the sorted distinct non-empty manufacturers.
func (s *RecordStore) Manufacturers(_ context.Context) ([]string, error) {
	return s.distinct(func(r catalog.MaterialRecord) string { return r.Manufacturer }), nil
}

// MaterialTypes returns the sorted distinct non-empty material types.
func (s *RecordStore) MaterialTypes(_ context.Context) ([]string, error) {
	return s.distinct(func(r catalog.MaterialRecord) string { return r.MaterialType }), nil
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *RecordStore) distinct(field func(catalog.MaterialRecord) string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range s.records {
		v := field(rec)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
