// Package postgres keeps the latest result per key in a single
// query_results table, one row per (case_file_id, debtor_id,
// query_type), overwritten on save.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	stderrors "icra-sorgu/internal/common/errors"
	"icra-sorgu/internal/models"
	"icra-sorgu/internal/store"
)

const upsertQuery = `
INSERT INTO query_results (case_file_id, debtor_id, query_type, payload, observed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (case_file_id, debtor_id, query_type)
DO UPDATE SET payload = EXCLUDED.payload, observed_at = EXCLUDED.observed_at`

const latestQuery = `
SELECT payload, observed_at FROM query_results
WHERE case_file_id = $1 AND debtor_id = $2 AND query_type = $3`

type Store struct {
	db *sql.DB
}

var _ store.ResultStore = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, result models.QueryResult) error {
	_, err := s.db.ExecContext(ctx, upsertQuery,
		result.CaseFileID,
		result.DebtorID,
		string(result.QueryType),
		[]byte(result.Payload),
		result.ObservedAt.UTC(),
	)
	if err != nil {
		return stderrors.NewStoreUnavailableError(fmt.Errorf("failed to upsert result: %w", err))
	}
	return nil
}

func (s *Store) Latest(ctx context.Context, key models.ResultKey) (*models.QueryResult, error) {
	var (
		payload    []byte
		observedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, latestQuery,
		key.CaseFileID,
		key.DebtorID,
		string(key.QueryType),
	).Scan(&payload, &observedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, stderrors.NewStoreUnavailableError(fmt.Errorf("failed to read result: %w", err))
	}

	return &models.QueryResult{
		CaseFileID: key.CaseFileID,
		DebtorID:   key.DebtorID,
		QueryType:  key.QueryType,
		Payload:    payload,
		ObservedAt: observedAt,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
