// Package mem is an in-process document store used for tests and local runs.
package mem

import (
	"context"
	"sync"

	"smsrelay/internal/domain"
	"smsrelay/internal/store"
)

type Store struct {
	mu   sync.Mutex
	docs map[string]*domain.Record
}

func New() *Store { return &Store{docs: map[string]*domain.Record{}} }

func (s *Store) Create(_ context.Context, rec *domain.Record) (store.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[rec.ID]; ok {
		return store.Change{}, store.ErrExists
	}
	s.docs[rec.ID] = rec.Clone()
	return store.Change{ID: rec.ID, After: rec.Clone()}, nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Update(_ context.Context, id string, p store.Patch) (store.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[id]
	if !ok {
		return store.Change{}, store.ErrNotFound
	}
	next := cur.Clone()
	if err := store.Apply(next, p); err != nil {
		return store.Change{}, err
	}
	s.docs[id] = next
	return store.Change{ID: id, Before: cur.Clone(), After: next.Clone()}, nil
}

func (s *Store) Delete(_ context.Context, id string) (store.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[id]
	if !ok {
		return store.Change{}, store.ErrNotFound
	}
	delete(s.docs, id)
	return store.Change{ID: id, Before: cur}, nil
}

func (s *Store) Ping(context.Context) error { return nil }
