// Package query implements the trigger and retrieval half of the
// orchestration: the dispatcher that asks the registry to begin a
// lookup, the poller that waits for its result, and the normalization
// of the registry's inconsistently nested payloads.
package query

import (
	"context"
	"strconv"
	"time"

	stderrors "icra-sorgu/internal/common/errors"
	"icra-sorgu/internal/common/logger"
	"icra-sorgu/internal/common/metrics"
	"icra-sorgu/internal/models"
	"icra-sorgu/internal/registry"
	"icra-sorgu/internal/session"
)

// Dispatcher validates a lookup request against the session state and
// capability set, then forwards a single fire-and-forget trigger to
// the registry. Rejections never reach the network.
type Dispatcher struct {
	client   registry.Client
	sessions *session.Manager
	logger   logger.Logger
	disabled map[models.QueryType]bool
}

func NewDispatcher(client registry.Client, sessions *session.Manager, disabledQueries []string, log logger.Logger) *Dispatcher {
	disabled := make(map[models.QueryType]bool, len(disabledQueries))
	for _, slug := range disabledQueries {
		if qt, ok := models.ParseQueryType(slug); ok {
			disabled[qt] = true
		}
	}
	return &Dispatcher{
		client:   client,
		sessions: sessions,
		logger:   log,
		disabled: disabled,
	}
}

// Supported reports whether the query type is inside the registry's
// current capability set.
func (d *Dispatcher) Supported(qt models.QueryType) bool {
	return qt.Valid() && !d.disabled[qt]
}

// Trigger asks the registry to begin the lookup described by req.
// It returns nil on acceptance; the result materializes out of band
// and is retrieved through the poller.
func (d *Dispatcher) Trigger(ctx context.Context, req models.QueryRequest) error {
	if !req.QueryType.Valid() {
		metrics.TriggersRejected.WithLabelValues(string(req.QueryType), "unknown_type").Inc()
		return stderrors.NewUnsupportedQueryTypeError(string(req.QueryType))
	}
	if d.disabled[req.QueryType] {
		metrics.TriggersRejected.WithLabelValues(string(req.QueryType), "disabled").Inc()
		return stderrors.NewUnsupportedQueryTypeError(string(req.QueryType))
	}
	if req.CaseFileID <= 0 {
		metrics.TriggersRejected.WithLabelValues(string(req.QueryType), "missing_case_file").Inc()
		return stderrors.NewTriggerRejectedError("case file id is required")
	}
	if req.DebtorID <= 0 {
		metrics.TriggersRejected.WithLabelValues(string(req.QueryType), "missing_debtor").Inc()
		return stderrors.NewTriggerRejectedError("debtor id is required")
	}

	sessionID := d.sessions.SessionID()
	if sessionID == "" {
		metrics.TriggersRejected.WithLabelValues(string(req.QueryType), "not_connected").Inc()
		return stderrors.NewTriggerRejectedError("session is not connected")
	}

	dosyaNo := req.CaseFileRef
	if dosyaNo == "" {
		dosyaNo = strconv.FormatInt(req.CaseFileID, 10)
	}

	if req.TriggeredAt.IsZero() {
		req.TriggeredAt = time.Now().UTC()
	}

	err := d.client.TriggerQuery(ctx, registry.TriggerRequest{
		DosyaNo:   dosyaNo,
		SorguTipi: req.QueryType.ExternalName(),
		BorcluID:  req.DebtorID,
	})
	if err != nil {
		d.logger.Error("query trigger failed", map[string]interface{}{
			"caseFileId": req.CaseFileID,
			"debtorId":   req.DebtorID,
			"queryType":  string(req.QueryType),
			"error":      err.Error(),
		})
		return err
	}

	metrics.QueriesTriggered.WithLabelValues(string(req.QueryType)).Inc()
	d.logger.Info("query triggered", map[string]interface{}{
		"caseFileId": req.CaseFileID,
		"debtorId":   req.DebtorID,
		"queryType":  string(req.QueryType),
		"sessionId":  sessionID,
	})
	return nil
}
