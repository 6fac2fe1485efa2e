// Package memory is an in-memory mirror used in tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"financas/internal/backup"
)

type Store struct {
	mu   sync.Mutex
	rows map[string][]backup.Record // keyed by collection
}

// Ensure interface conformance
var (
	_ backup.RecordWriter  = (*Store)(nil)
	_ backup.RecordDeleter = (*Store)(nil)
)

func New() *Store {
	return &Store{rows: make(map[string][]backup.Record)}
}

// AppendRecord stores the record and returns a synthetic row reference.
func (s *Store) AppendRecord(_ context.Context, rec backup.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[rec.Collection] = append(s.rows[rec.Collection], rec)
	return fmt.Sprintf("mem:%s:%d", rec.Collection, len(s.rows[rec.Collection])), nil
}

// DeleteRecord removes every stored record with the given id.
func (s *Store) DeleteRecord(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[collection][:0]
	for _, rec := range s.rows[collection] {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	s.rows[collection] = kept
	return nil
}

// Records returns a copy of everything mirrored for a collection.
func (s *Store) Records(collection string) []backup.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]backup.Record(nil), s.rows[collection]...)
}
