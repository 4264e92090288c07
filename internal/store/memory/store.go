// Package memory is the in-process result store. It backs tests and
// single-instance deployments that do not configure Redis or Postgres.
package memory

import (
	"context"
	"sync"

	"icra-sorgu/internal/models"
	"icra-sorgu/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	results map[models.ResultKey]models.QueryResult
}

var _ store.ResultStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		results: make(map[models.ResultKey]models.QueryResult),
	}
}

func (s *Store) Save(_ context.Context, result models.QueryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.Key()] = result
	return nil
}

func (s *Store) Latest(_ context.Context, key models.ResultKey) (*models.QueryResult, error) {
	s.mu.RLock()
	result, ok := s.results[key]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return &result, nil
}

func (s *Store) Close() error {
	return nil
}
