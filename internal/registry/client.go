// Package registry implements the HTTP client for the external
// registry system that runs the actual lookups. All methods map
// transport failures to CONNECTION_LOST; remote refusals map to the
// error the operation's contract names.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	stderrors "icra-sorgu/internal/common/errors"
	"icra-sorgu/internal/common/httpclient"
	"icra-sorgu/internal/models"
)

// Client is the surface the session manager, dispatcher and poller
// consume. The HTTP implementation below is the production one; tests
// substitute fakes.
type Client interface {
	Login(ctx context.Context, credential string) (string, error)
	Logout(ctx context.Context, sessionID string) error
	ActiveSessions(ctx context.Context) ([]string, error)
	TriggerQuery(ctx context.Context, req TriggerRequest) error
	FetchResult(ctx context.Context, key models.ResultKey) (*models.QueryResult, error)
	SearchFiles(ctx context.Context, sessionID string) error
	ExtractData(ctx context.Context, sessionID string) error
}

// TriggerRequest is the wire body of the trigger-query endpoint.
type TriggerRequest struct {
	DosyaNo   string `json:"dosya_no"`
	SorguTipi string `json:"sorgu_tipi"`
	BorcluID  int64  `json:"borclu_id"`
}

type sessionRequest struct {
	Action     string `json:"action"`
	Credential string `json:"credential,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

type sessionResponse struct {
	Success        bool     `json:"success"`
	SessionID      string   `json:"session_id,omitempty"`
	ActiveSessions []string `json:"active_sessions,omitempty"`
	Message        string   `json:"message,omitempty"`
}

type triggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HTTPClient talks to the registry control surface over JSON/HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *httpclient.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpclient.NewClient(timeout),
	}
}

// stamp tags the outbound request so registry-side logs can be
// correlated with ours.
func stamp(req *http.Request) *http.Request {
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req
}

// Login opens a session and returns the opaque session token.
func (c *HTTPClient) Login(ctx context.Context, credential string) (string, error) {
	resp, err := c.postSession(ctx, sessionRequest{Action: "login", Credential: credential})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", stderrors.NewAuthFailedError(resp.Message)
	}
	if resp.SessionID == "" {
		return "", stderrors.NewAuthFailedError("registry returned no session id")
	}
	return resp.SessionID, nil
}

// Logout tears down the remote session. Callers are expected to drop
// their local state regardless of the outcome here.
func (c *HTTPClient) Logout(ctx context.Context, sessionID string) error {
	resp, err := c.postSession(ctx, sessionRequest{Action: "logout", SessionID: sessionID})
	if err != nil {
		return err
	}
	if !resp.Success {
		return stderrors.NewConnectionLostError("logout", fmt.Errorf("registry refused logout: %s", resp.Message))
	}
	return nil
}

// ActiveSessions returns every session the registry still considers
// live. The registry may track more than one; the full list is
// preserved and selection is the caller's policy decision.
func (c *HTTPClient) ActiveSessions(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/session?action=status", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, stderrors.NewConnectionLostError("status", err)
	}

	httpResp, err := c.httpClient.Do(stamp(req))
	if err != nil {
		return nil, stderrors.NewConnectionLostError("status", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, stderrors.NewConnectionLostError("status",
			fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(body)))
	}

	var resp sessionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, stderrors.NewConnectionLostError("status", fmt.Errorf("failed to decode response: %w", err))
	}
	return resp.ActiveSessions, nil
}

// TriggerQuery asks the registry to begin a lookup. The call does not
// return the result; the registry processes out of band and the result
// is fetched separately.
func (c *HTTPClient) TriggerQuery(ctx context.Context, tr TriggerRequest) error {
	url := fmt.Sprintf("%s/trigger-query", c.baseURL)

	jsonData, err := json.Marshal(tr)
	if err != nil {
		return stderrors.NewConnectionLostError("trigger", fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return stderrors.NewConnectionLostError("trigger", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(stamp(req))
	if err != nil {
		return stderrors.NewConnectionLostError("trigger", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return stderrors.NewConnectionLostError("trigger", fmt.Errorf("failed to read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
		return stderrors.NewConnectionLostError("trigger",
			fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(body)))
	}

	var resp triggerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return stderrors.NewConnectionLostError("trigger", fmt.Errorf("failed to decode response: %w", err))
	}
	if !resp.Success {
		return stderrors.NewTriggerRejectedError(fmt.Sprintf("registry refused trigger: %s", resp.Message))
	}
	return nil
}

// resultMetaKeys are the envelope fields on the results endpoint; the
// remaining keys are the query-type-specific payload.
var resultMetaKeys = map[string]bool{
	"file_id":   true,
	"borclu_id": true,
	"timestamp": true,
}

// FetchResult reads the current result for a key. A missing result
// (404 or empty payload) returns a nil result with no error so the
// poller can distinguish "not yet" from a genuine transport failure.
func (c *HTTPClient) FetchResult(ctx context.Context, key models.ResultKey) (*models.QueryResult, error) {
	url := fmt.Sprintf("%s/results/%d/%d/%s", c.baseURL, key.CaseFileID, key.DebtorID, key.QueryType.Slug())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, stderrors.NewConnectionLostError("fetch", err)
	}

	httpResp, err := c.httpClient.Do(stamp(req))
	if err != nil {
		return nil, stderrors.NewConnectionLostError("fetch", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, stderrors.NewConnectionLostError("fetch",
			fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(body)))
	}

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(httpResp.Body).Decode(&envelope); err != nil {
		return nil, stderrors.NewConnectionLostError("fetch", fmt.Errorf("failed to decode response: %w", err))
	}

	observedAt := time.Now().UTC()
	if raw, ok := envelope["timestamp"]; ok {
		if ts := parseTimestamp(raw); !ts.IsZero() {
			observedAt = ts
		}
	}

	payload := make(map[string]json.RawMessage, len(envelope))
	for k, v := range envelope {
		if !resultMetaKeys[k] {
			payload[k] = v
		}
	}
	if len(payload) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, stderrors.NewConnectionLostError("fetch", fmt.Errorf("failed to re-encode payload: %w", err))
	}

	result := &models.QueryResult{
		CaseFileID: key.CaseFileID,
		DebtorID:   key.DebtorID,
		QueryType:  key.QueryType,
		Payload:    raw,
		ObservedAt: observedAt,
	}
	if result.Empty() {
		return nil, nil
	}
	return result, nil
}

// SearchFiles starts the bulk file-discovery maintenance operation.
func (c *HTTPClient) SearchFiles(ctx context.Context, sessionID string) error {
	return c.bulkAction(ctx, "search-files", sessionID)
}

// ExtractData starts the bulk data-extraction maintenance operation.
func (c *HTTPClient) ExtractData(ctx context.Context, sessionID string) error {
	return c.bulkAction(ctx, "extract-data", sessionID)
}

func (c *HTTPClient) bulkAction(ctx context.Context, action, sessionID string) error {
	resp, err := c.postSession(ctx, sessionRequest{Action: action, SessionID: sessionID})
	if err != nil {
		return err
	}
	if !resp.Success {
		return stderrors.NewConnectionLostError(action, fmt.Errorf("registry refused %s: %s", action, resp.Message))
	}
	return nil
}

func (c *HTTPClient) postSession(ctx context.Context, body sessionRequest) (*sessionResponse, error) {
	url := fmt.Sprintf("%s/session", c.baseURL)

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, stderrors.NewConnectionLostError(body.Action, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, stderrors.NewConnectionLostError(body.Action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(stamp(req))
	if err != nil {
		return nil, stderrors.NewConnectionLostError(body.Action, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, stderrors.NewConnectionLostError(body.Action, fmt.Errorf("failed to read response body: %w", err))
	}

	// The registry reports refusals in the body with success=false,
	// also on 401; everything else non-200 is transport trouble.
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusUnauthorized {
		return nil, stderrors.NewConnectionLostError(body.Action,
			fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var resp sessionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, stderrors.NewConnectionLostError(body.Action, fmt.Errorf("failed to decode response: %w", err))
	}
	return &resp, nil
}

// parseTimestamp accepts the registry's two observed timestamp
// encodings: RFC3339 strings and unix seconds.
func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts
		}
		return time.Time{}
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return time.Unix(n, 0).UTC()
	}
	return time.Time{}
}
