// Package memory provides an in-memory record store for development/testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/crawlkit/crawld/internal/crawl"
)

// RecordStore keeps crawl records in process memory. The hash index
// tracks the most recently created record per content hash, so the
// create-or-fetch-on-conflict semantics match the Postgres store.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]crawl.Record
	byHash  map[string]string
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]crawl.Record),
		byHash:  make(map[string]string),
	}
}

// Create stores a new record unless one with the same hash exists.
func (s *RecordStore) Create(_ context.Context, rec crawl.Record) (crawl.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byHash[rec.ContentHash]; ok {
		return s.records[existingID], false, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	s.records[rec.ID] = rec
	s.byHash[rec.ContentHash] = rec.ID
	return rec, true, nil
}

// GetByID fetches a record by ID.
func (s *RecordStore) GetByID(_ context.Context, id string) (crawl.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return crawl.Record{}, crawl.ErrNotFound
	}
	return rec, nil
}

// GetByHash resolves the dedup index entry for the hash.
func (s *RecordStore) GetByHash(_ context.Context, hash string) (crawl.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	if !ok {
		return crawl.Record{}, crawl.ErrNotFound
	}
	return s.records[id], nil
}

// UpdateStatus transitions a record. ArtifactRef survives only on Complete.
func (s *RecordStore) UpdateStatus(_ context.Context, id string, status crawl.Status, artifactRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return crawl.ErrNotFound
	}
	rec.Status = status
	if status == crawl.StatusComplete {
		rec.ArtifactRef = artifactRef
	} else {
		rec.ArtifactRef = ""
	}
	rec.UpdatedAt = time.Now().UTC()
	s.records[id] = rec
	return nil
}

// SetTaskID records the most recently dispatched task for a record.
func (s *RecordStore) SetTaskID(_ context.Context, id, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return crawl.ErrNotFound
	}
	rec.TaskID = taskID
	rec.UpdatedAt = time.Now().UTC()
	s.records[id] = rec
	return nil
}
