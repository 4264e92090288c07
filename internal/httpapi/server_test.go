package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icra-sorgu/internal/common/logger"
	"icra-sorgu/internal/models"
	"icra-sorgu/internal/query"
	"icra-sorgu/internal/registry"
	"icra-sorgu/internal/session"
	"icra-sorgu/internal/store/memory"
)

// ==========================
// Fake Registry Client
// ==========================

type fakeRegistry struct {
	mu sync.Mutex

	fetchFunc func(ctx context.Context, key models.ResultKey) (*models.QueryResult, error)

	triggers   []registry.TriggerRequest
	fetchCalls int
}

func (f *fakeRegistry) Login(ctx context.Context, credential string) (string, error) {
	return "session-1", nil
}

func (f *fakeRegistry) Logout(ctx context.Context, sessionID string) error {
	return nil
}

func (f *fakeRegistry) ActiveSessions(ctx context.Context) ([]string, error) {
	return []string{"session-1"}, nil
}

func (f *fakeRegistry) TriggerQuery(ctx context.Context, req registry.TriggerRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, req)
	return nil
}

func (f *fakeRegistry) FetchResult(ctx context.Context, key models.ResultKey) (*models.QueryResult, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchFunc != nil {
		return f.fetchFunc(ctx, key)
	}
	return nil, nil
}

func (f *fakeRegistry) SearchFiles(ctx context.Context, sessionID string) error {
	return nil
}

func (f *fakeRegistry) ExtractData(ctx context.Context, sessionID string) error {
	return nil
}

func (f *fakeRegistry) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

func (f *fakeRegistry) triggerAt(i int) registry.TriggerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers[i]
}

func (f *fakeRegistry) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// ==========================
// Test Harness
// ==========================

type harness struct {
	client  *fakeRegistry
	manager *session.Manager
	server  *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := &fakeRegistry{}
	log := logger.NewNoOpLogger()
	manager := session.NewManager(client, log)
	controller := session.NewController(manager, "9092", log)
	dispatcher := query.NewDispatcher(client, manager, nil, log)
	st := memory.NewStore()
	poller := query.NewPoller(client, st, log)

	// A short poll budget keeps long-poll tests fast.
	policy := query.PollPolicy{MaxAttempts: 5, Interval: 5 * time.Millisecond}
	srv := NewServer(manager, controller, dispatcher, poller, st, policy, log)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &harness{client: client, manager: manager, server: ts}
}

func (h *harness) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (h *harness) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(h.server.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	resp, body := h.post(t, "/session", map[string]string{"action": "login", "credential": "9092"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// ==========================
// Session Endpoints
// ==========================

func TestSessionLoginAndLogout(t *testing.T) {
	h := newHarness(t)

	resp, body := h.post(t, "/session", map[string]string{"action": "login", "credential": "9092"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "session-1", body["session_id"])
	assert.Equal(t, models.StatusConnected, h.manager.Status())

	resp, body = h.post(t, "/session", map[string]string{"action": "logout"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, models.StatusDisconnected, h.manager.Status())
}

func TestSessionUnknownAction(t *testing.T) {
	h := newHarness(t)

	resp, body := h.post(t, "/session", map[string]string{"action": "reboot"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestSessionStatusListsActiveSessions(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "/session?action=status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"session-1"}, body["active_sessions"])
}

func TestConnectionToggleRoundTrip(t *testing.T) {
	h := newHarness(t)

	_, body := h.get(t, "/connection")
	assert.Equal(t, string(models.StatusDisconnected), body["status"])

	resp, body := h.post(t, "/connection/toggle", struct{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.StatusConnected), body["status"])

	resp, body = h.post(t, "/connection/toggle", struct{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.StatusDisconnected), body["status"])
}

// ==========================
// Trigger Endpoint
// ==========================

func TestTriggerQueryAccepted(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	resp, body := h.post(t, "/trigger-query", map[string]interface{}{
		"dosya_no":   "42",
		"sorgu_tipi": "vehicle",
		"borclu_id":  7,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	require.Equal(t, 1, h.client.triggerCount())
	assert.Equal(t, "egm", h.client.triggerAt(0).SorguTipi)
	assert.Equal(t, int64(7), h.client.triggerAt(0).BorcluID)
}

func TestTriggerQueryAcceptsRegistrySideName(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	resp, _ := h.post(t, "/trigger-query", map[string]interface{}{
		"dosya_no":   "42",
		"sorgu_tipi": "mernis",
		"borclu_id":  7,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, h.client.triggerCount())
	assert.Equal(t, "mernis", h.client.triggerAt(0).SorguTipi)
}

func TestTriggerQueryWhileDisconnected(t *testing.T) {
	h := newHarness(t)

	resp, body := h.post(t, "/trigger-query", map[string]interface{}{
		"dosya_no":   "42",
		"sorgu_tipi": "address",
		"borclu_id":  7,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Zero(t, h.client.triggerCount())
}

func TestTriggerQueryValidation(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{
			name: "missing sorgu_tipi",
			body: map[string]interface{}{"dosya_no": "42", "borclu_id": 7},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown query type",
			body: map[string]interface{}{"dosya_no": "42", "sorgu_tipi": "palmistry", "borclu_id": 7},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "non-numeric dosya_no",
			body: map[string]interface{}{"dosya_no": "2019/1234", "sorgu_tipi": "address", "borclu_id": 7},
			want: http.StatusBadRequest,
		},
		{
			name: "unexpected extra field",
			body: map[string]interface{}{"dosya_no": "42", "sorgu_tipi": "address", "borclu_id": 7, "admin": true},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := h.post(t, "/trigger-query", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Zero(t, h.client.triggerCount())
}

// ==========================
// Results Endpoint
// ==========================

func TestResultLifecycleWithLongPoll(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	// The registry answers "not yet" twice, then delivers.
	var mu sync.Mutex
	calls := 0
	h.client.fetchFunc = func(ctx context.Context, key models.ResultKey) (*models.QueryResult, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			return nil, nil
		}
		return &models.QueryResult{
			CaseFileID: key.CaseFileID,
			DebtorID:   key.DebtorID,
			QueryType:  key.QueryType,
			Payload:    json.RawMessage(`{"T.C Kimlik No": "12345678901", "Adres": "ANKARA"}`),
			ObservedAt: time.Now().UTC(),
		}, nil
	}

	resp, _ := h.post(t, "/trigger-query", map[string]interface{}{
		"dosya_no":   "42",
		"sorgu_tipi": "address",
		"borclu_id":  7,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.get(t, "/results/42/7/address?wait=true")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(42), body["file_id"])
	assert.Equal(t, float64(7), body["borclu_id"])
	assert.Equal(t, "ANKARA", body["Adres"])
	assert.NotEmpty(t, body["timestamp"])

	// A later store-only read serves the persisted result without
	// touching the registry again.
	before := h.client.fetchCount()
	resp, body = h.get(t, "/results/42/7/address")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ANKARA", body["Adres"])
	assert.Equal(t, before, h.client.fetchCount())
}

func TestResultListPayloadRidesUnderRecords(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.client.fetchFunc = func(ctx context.Context, key models.ResultKey) (*models.QueryResult, error) {
		return &models.QueryResult{
			CaseFileID: key.CaseFileID,
			DebtorID:   key.DebtorID,
			QueryType:  key.QueryType,
			Payload:    json.RawMessage(`[{"Plaka": "06ABC123"}]`),
			ObservedAt: time.Now().UTC(),
		}, nil
	}

	resp, body := h.get(t, "/results/42/7/vehicle?wait=true")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	records, ok := body["records"].([]interface{})
	require.True(t, ok)
	require.Len(t, records, 1)
}

func TestResultNotYetAvailable(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "/results/42/7/address")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no data yet", body["message"])
	assert.Equal(t, float64(42), body["file_id"])
}

func TestResultLongPollTimeoutDegradesGracefully(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	resp, body := h.get(t, "/results/42/7/address?wait=true")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no data yet", body["message"])
	assert.Equal(t, 5, h.client.fetchCount())
}

func TestResultUnknownQueryType(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get(t, "/results/42/7/astrology")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResultRejectsNonNumericIDs(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get(t, "/results/forty-two/7/address")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
