// Package memstore keeps user records in process memory. The whole
// check-and-create runs under one mutex, so it is atomic within a process.
package memstore

import (
	"context"
	"sync"
	"time"

	"ignews-service/internal/users"

	"github.com/google/uuid"
)

type Store struct {
	mu    sync.Mutex
	byKey map[string]users.Record
	now   func() time.Time
}

func New() *Store {
	return &Store{
		byKey: make(map[string]users.Record),
		now:   time.Now,
	}
}

func (s *Store) Upsert(ctx context.Context, key string, email string) (users.Result, error) {
	if err := ctx.Err(); err != nil {
		return users.Result{}, users.NewPermanent("memstore upsert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byKey[key]; ok {
		return users.Result{Record: rec, Outcome: users.Fetched}, nil
	}

	rec := users.Record{
		ID:        uuid.NewString(),
		Key:       key,
		Data:      users.Data{Email: email},
		CreatedAt: s.now().UTC(),
	}
	s.byKey[key] = rec

	return users.Result{Record: rec, Outcome: users.Created}, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// Get returns the record stored under key.
func (s *Store) Get(key string) (users.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key]
	return rec, ok
}
