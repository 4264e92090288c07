// Package redis keeps the latest result per key as a JSON blob under
// sorgu:{caseFileId}:{debtorId}:{queryType}.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	stderrors "icra-sorgu/internal/common/errors"
	"icra-sorgu/internal/models"
	"icra-sorgu/internal/store"
)

type Store struct {
	client *goredis.Client
	ttl    time.Duration // 0 means no expiry
}

var _ store.ResultStore = (*Store)(nil)

func NewStore(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

func key(k models.ResultKey) string {
	return fmt.Sprintf("sorgu:%d:%d:%s", k.CaseFileID, k.DebtorID, k.QueryType)
}

func (s *Store) Save(ctx context.Context, result models.QueryResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return stderrors.NewStoreUnavailableError(fmt.Errorf("failed to marshal result: %w", err))
	}
	if err := s.client.Set(ctx, key(result.Key()), data, s.ttl).Err(); err != nil {
		return stderrors.NewStoreUnavailableError(err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context, k models.ResultKey) (*models.QueryResult, error) {
	data, err := s.client.Get(ctx, key(k)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, stderrors.NewStoreUnavailableError(err)
	}

	var result models.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, stderrors.NewStoreUnavailableError(fmt.Errorf("failed to unmarshal stored result: %w", err))
	}
	return &result, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
