// Package store defines the result store contract. A store keeps
// exactly the latest result per (case file, debtor, query type) key;
// a new save overwrites the prior entry and no history is kept.
package store

import (
	"context"
	"errors"

	"icra-sorgu/internal/models"
)

// ErrNotFound is returned by Latest when no result exists for a key.
var ErrNotFound = errors.New("store: no result for key")

// ResultStore persists and retrieves the latest result per key.
// All implementations must be safe for concurrent use; concurrent
// saves to the same key resolve last-write-wins.
type ResultStore interface {
	// Save overwrites the current result for the result's key.
	Save(ctx context.Context, result models.QueryResult) error

	// Latest returns the current result for the key, or ErrNotFound.
	Latest(ctx context.Context, key models.ResultKey) (*models.QueryResult, error)

	// Close releases backend resources.
	Close() error
}
