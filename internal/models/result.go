package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResultKey uniquely identifies the current result for a lookup.
// A new successful retrieval for the same key overwrites the prior
// one; no history is kept.
type ResultKey struct {
	CaseFileID int64     `json:"caseFileId"`
	DebtorID   int64     `json:"debtorId"`
	QueryType  QueryType `json:"queryType"`
}

func (k ResultKey) String() string {
	return fmt.Sprintf("%d:%d:%s", k.CaseFileID, k.DebtorID, k.QueryType)
}

// Validate checks that the key identifies a real lookup target.
func (k ResultKey) Validate() error {
	if k.CaseFileID <= 0 {
		return fmt.Errorf("case file id is required")
	}
	if k.DebtorID <= 0 {
		return fmt.Errorf("debtor id is required")
	}
	if !k.QueryType.Valid() {
		return fmt.Errorf("unknown query type %q", k.QueryType)
	}
	return nil
}

// QueryRequest is the ephemeral record of an in-flight trigger call.
// It is never persisted beyond the call itself.
type QueryRequest struct {
	CaseFileID  int64     `json:"caseFileId"`
	CaseFileRef string    `json:"caseFileRef,omitempty"` // external reference number, e.g. "2019/1234"
	DebtorID    int64     `json:"debtorId"`
	QueryType   QueryType `json:"queryType"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

// Key returns the result key the request resolves to.
func (r QueryRequest) Key() ResultKey {
	return ResultKey{CaseFileID: r.CaseFileID, DebtorID: r.DebtorID, QueryType: r.QueryType}
}

// QueryResult is the latest retrieved payload for a key. The payload
// is opaque to the store; only the presentation layer interprets it.
type QueryResult struct {
	CaseFileID int64           `json:"caseFileId"`
	DebtorID   int64           `json:"debtorId"`
	QueryType  QueryType       `json:"queryType"`
	Payload    json.RawMessage `json:"payload"`
	ObservedAt time.Time       `json:"observedAt"`
}

// Key returns the result's identifying key.
func (r QueryResult) Key() ResultKey {
	return ResultKey{CaseFileID: r.CaseFileID, DebtorID: r.DebtorID, QueryType: r.QueryType}
}

// Empty reports whether the result carries no usable payload yet.
// The registry answers with empty bodies while a lookup is still
// processing, so "empty" is a retry signal, not an error.
func (r QueryResult) Empty() bool {
	if len(r.Payload) == 0 {
		return true
	}
	switch string(r.Payload) {
	case "null", "{}", "[]", `""`:
		return true
	}
	return false
}
