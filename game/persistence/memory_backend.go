package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryBackend keeps records in process memory. Records are stored encoded so
// callers never share state with the backend.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

// Save stores a copy of rec
func (mb *MemoryBackend) Save(ctx context.Context, rec Record) error {
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal map record: %w", err)
	}
	mb.mu.Lock()
	mb.records[rec.ID] = data
	mb.mu.Unlock()
	return nil
}

// Load returns a copy of the stored record
func (mb *MemoryBackend) Load(ctx context.Context, id string) (Record, error) {
	mb.mu.RLock()
	data, ok := mb.records[id]
	mb.mu.RUnlock()
	if !ok {
		return Record{}, ErrMapNotFound
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal map record: %w", err)
	}
	return rec, nil
}

// Delete removes a record
func (mb *MemoryBackend) Delete(ctx context.Context, id string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if _, ok := mb.records[id]; !ok {
		return ErrMapNotFound
	}
	delete(mb.records, id)
	return nil
}

// List returns the stored IDs, sorted
func (mb *MemoryBackend) List(ctx context.Context) ([]string, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	ids := make([]string, 0, len(mb.records))
	for id := range mb.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
