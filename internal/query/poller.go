package query

import (
	"context"
	"time"

	stderrors "icra-sorgu/internal/common/errors"
	"icra-sorgu/internal/common/logger"
	"icra-sorgu/internal/common/metrics"
	"icra-sorgu/internal/models"
	"icra-sorgu/internal/registry"
	"icra-sorgu/internal/store"
)

// PollPolicy bounds a poll loop. The default mirrors the lookup policy
// the consuming views expect: up to 10 attempts at 1-second intervals,
// a ~10-second worst case before timeout.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{MaxAttempts: 10, Interval: time.Second}
}

// Poller retrieves delayed results through bounded sequential
// attempts. Each open view runs its own loop; loops for different keys
// never share state, and cancellation of the caller's context stops
// pending waits immediately.
type Poller struct {
	client registry.Client
	store  store.ResultStore
	logger logger.Logger
}

func NewPoller(client registry.Client, st store.ResultStore, log logger.Logger) *Poller {
	return &Poller{
		client: client,
		store:  st,
		logger: log,
	}
}

// Await polls the backing retrieval endpoint until a result appears or
// the attempt budget is exhausted. A missing result is a retry signal;
// a transport error aborts immediately instead of burning the
// remaining attempts. Successful results are normalized and saved to
// the store before being returned. Attempts are strictly sequential:
// attempt N+1 starts only after attempt N answered and the interval
// elapsed.
func (p *Poller) Await(ctx context.Context, key models.ResultKey, policy PollPolicy) (*models.QueryResult, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	start := time.Now()
	label := string(key.QueryType)

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		metrics.PollAttempts.WithLabelValues(label).Inc()

		result, err := p.client.FetchResult(ctx, key)
		if err != nil {
			metrics.PollDuration.WithLabelValues(label, "error").Observe(time.Since(start).Seconds())
			p.logger.Error("poll aborted on transport failure", map[string]interface{}{
				"key":     key.String(),
				"attempt": attempt,
				"error":   err.Error(),
			})
			return nil, err
		}

		if result != nil && !result.Empty() {
			p.normalizeAndStore(ctx, result)
			metrics.PollDuration.WithLabelValues(label, "resolved").Observe(time.Since(start).Seconds())
			p.logger.Info("poll resolved", map[string]interface{}{
				"key":     key.String(),
				"attempt": attempt,
			})
			return result, nil
		}

		p.logger.Debug("result not yet available", map[string]interface{}{
			"key":     key.String(),
			"attempt": attempt,
		})

		if err := wait(ctx, policy.Interval); err != nil {
			return nil, err
		}
	}

	metrics.PollTimeouts.WithLabelValues(label).Inc()
	metrics.PollDuration.WithLabelValues(label, "timeout").Observe(time.Since(start).Seconds())
	return nil, stderrors.NewPollTimeoutError(key.String(), policy.MaxAttempts)
}

// Fetch reads whatever was last stored for the key without triggering
// or polling. Views that only display historical lookups use this on
// open.
func (p *Poller) Fetch(ctx context.Context, key models.ResultKey) (*models.QueryResult, error) {
	result, err := p.store.Latest(ctx, key)
	if err == store.ErrNotFound {
		return nil, stderrors.NewResultNotFoundError(key.String())
	}
	return result, err
}

// normalizeAndStore rewrites the payload into its recognized shape
// when one is found; an unrecognized payload is stored unchanged so
// nothing is ever discarded.
func (p *Poller) normalizeAndStore(ctx context.Context, result *models.QueryResult) {
	normalized := Normalize(result.QueryType, result.Payload)
	if normalized.Shape == ShapeUnknown {
		p.logger.Warn("payload matched no recognized shape, storing raw", map[string]interface{}{
			"key": result.Key().String(),
		})
	} else {
		result.Payload = normalized.Marshal()
	}

	if err := p.store.Save(ctx, *result); err != nil {
		p.logger.Error("failed to persist poll result", map[string]interface{}{
			"key":   result.Key().String(),
			"error": err.Error(),
		})
	}
}

// wait sleeps for the interval or returns early when the caller
// abandons interest. The timer is always stopped; a leaked repeating
// timer outliving its view is a defect.
func wait(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
