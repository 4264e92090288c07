package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "icra-sorgu/internal/common/errors"
	"icra-sorgu/internal/common/logger"
	"icra-sorgu/internal/models"
	"icra-sorgu/internal/registry"
)

// ==========================
// Fake Registry Client
// ==========================

type fakeRegistry struct {
	mu sync.Mutex

	loginFunc  func(ctx context.Context, credential string) (string, error)
	logoutFunc func(ctx context.Context, sessionID string) error
	statusFunc func(ctx context.Context) ([]string, error)

	loginCalls   int
	logoutCalls  []string
	triggerCalls int
	searchCalls  []string
	extractCalls []string
}

func (f *fakeRegistry) Login(ctx context.Context, credential string) (string, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	if f.loginFunc != nil {
		return f.loginFunc(ctx, credential)
	}
	return "session-1", nil
}

func (f *fakeRegistry) Logout(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	f.logoutCalls = append(f.logoutCalls, sessionID)
	f.mu.Unlock()
	if f.logoutFunc != nil {
		return f.logoutFunc(ctx, sessionID)
	}
	return nil
}

func (f *fakeRegistry) ActiveSessions(ctx context.Context) ([]string, error) {
	if f.statusFunc != nil {
		return f.statusFunc(ctx)
	}
	return nil, nil
}

func (f *fakeRegistry) TriggerQuery(ctx context.Context, req registry.TriggerRequest) error {
	f.mu.Lock()
	f.triggerCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeRegistry) FetchResult(ctx context.Context, key models.ResultKey) (*models.QueryResult, error) {
	return nil, nil
}

func (f *fakeRegistry) SearchFiles(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, sessionID)
	f.mu.Unlock()
	return nil
}

func (f *fakeRegistry) ExtractData(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	f.extractCalls = append(f.extractCalls, sessionID)
	f.mu.Unlock()
	return nil
}

func (f *fakeRegistry) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logoutCalls)
}

// ==========================
// Login / Logout
// ==========================

func TestLoginSuccess(t *testing.T) {
	client := &fakeRegistry{}
	manager := NewManager(client, logger.NewNoOpLogger())

	require.Equal(t, models.StatusDisconnected, manager.Status())

	sess, err := manager.Login(context.Background(), "9092")
	require.NoError(t, err)
	assert.Equal(t, "session-1", sess.ID)
	assert.Equal(t, models.StatusConnected, manager.Status())
	assert.Equal(t, "session-1", manager.SessionID())
}

func TestLoginAuthFailure(t *testing.T) {
	client := &fakeRegistry{
		loginFunc: func(ctx context.Context, credential string) (string, error) {
			return "", stderrors.NewAuthFailedError("bad credential")
		},
	}
	manager := NewManager(client, logger.NewNoOpLogger())

	_, err := manager.Login(context.Background(), "wrong")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeAuthFailed, stderrors.CodeOf(err))
	assert.Equal(t, models.StatusDisconnected, manager.Status())
}

func TestLoginTransportFailureRevertsToDisconnected(t *testing.T) {
	client := &fakeRegistry{
		loginFunc: func(ctx context.Context, credential string) (string, error) {
			return "", stderrors.NewConnectionLostError("login", errors.New("dial tcp: refused"))
		},
	}
	manager := NewManager(client, logger.NewNoOpLogger())

	_, err := manager.Login(context.Background(), "9092")
	require.Error(t, err)
	assert.Equal(t, models.StatusDisconnected, manager.Status())
}

func TestLoginThenLogoutReturnsToDisconnected(t *testing.T) {
	client := &fakeRegistry{}
	manager := NewManager(client, logger.NewNoOpLogger())

	_, err := manager.Login(context.Background(), "9092")
	require.NoError(t, err)

	require.NoError(t, manager.Logout(context.Background()))
	assert.Equal(t, models.StatusDisconnected, manager.Status())
	assert.Equal(t, []string{"session-1"}, client.logoutCalls)
}

func TestLogoutLocalStateSurvivesRemoteFailure(t *testing.T) {
	client := &fakeRegistry{
		logoutFunc: func(ctx context.Context, sessionID string) error {
			return stderrors.NewConnectionLostError("logout", errors.New("registry down"))
		},
	}
	manager := NewManager(client, logger.NewNoOpLogger())

	_, err := manager.Login(context.Background(), "9092")
	require.NoError(t, err)

	err = manager.Logout(context.Background())
	require.Error(t, err)
	// The user asked to disconnect; local state must not stay stuck
	// Connected because the remote call failed.
	assert.Equal(t, models.StatusDisconnected, manager.Status())
}

func TestLogoutWhileDisconnectedIsNoOp(t *testing.T) {
	client := &fakeRegistry{}
	manager := NewManager(client, logger.NewNoOpLogger())

	require.NoError(t, manager.Logout(context.Background()))
	assert.Zero(t, client.logoutCount())
}

func TestReloginImplicitlyLogsOutOldSession(t *testing.T) {
	ids := []string{"session-a", "session-b"}
	client := &fakeRegistry{}
	client.loginFunc = func(ctx context.Context, credential string) (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	manager := NewManager(client, logger.NewNoOpLogger())

	_, err := manager.Login(context.Background(), "9092")
	require.NoError(t, err)

	sess, err := manager.Login(context.Background(), "9092")
	require.NoError(t, err)
	assert.Equal(t, "session-b", sess.ID)
	assert.Equal(t, []string{"session-a"}, client.logoutCalls)
	assert.Equal(t, models.StatusConnected, manager.Status())
}

// ==========================
// Connecting Critical Section
// ==========================

func TestLoginWhileConnectingIsRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	client := &fakeRegistry{
		loginFunc: func(ctx context.Context, credential string) (string, error) {
			close(entered)
			<-release
			return "session-1", nil
		},
	}
	manager := NewManager(client, logger.NewNoOpLogger())

	done := make(chan error, 1)
	go func() {
		_, err := manager.Login(context.Background(), "9092")
		done <- err
	}()

	<-entered
	assert.Equal(t, models.StatusConnecting, manager.Status())

	_, err := manager.Login(context.Background(), "9092")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeSessionBusy, stderrors.CodeOf(err))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, client.loginCalls)
}

func TestLogoutWhileConnectingIsQueued(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	client := &fakeRegistry{
		loginFunc: func(ctx context.Context, credential string) (string, error) {
			close(entered)
			<-release
			return "session-1", nil
		},
	}
	manager := NewManager(client, logger.NewNoOpLogger())

	done := make(chan *models.Session, 1)
	go func() {
		sess, _ := manager.Login(context.Background(), "9092")
		done <- sess
	}()

	<-entered
	// Queued, not raced: no remote logout yet.
	require.NoError(t, manager.Logout(context.Background()))
	assert.Zero(t, client.logoutCount())

	close(release)
	sess := <-done
	require.NotNil(t, sess)
	assert.Equal(t, models.StatusDisconnected, sess.Status)
	assert.Equal(t, models.StatusDisconnected, manager.Status())
	assert.Equal(t, []string{"session-1"}, client.logoutCalls)
}

// ==========================
// Recovery
// ==========================

func TestRecoverAdoptsFirstActiveSession(t *testing.T) {
	client := &fakeRegistry{
		statusFunc: func(ctx context.Context) ([]string, error) {
			return []string{"stale-1", "stale-2"}, nil
		},
	}
	manager := NewManager(client, logger.NewNoOpLogger())

	sess, err := manager.Recover(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "stale-1", sess.ID)
	assert.Equal(t, models.StatusConnected, manager.Status())
	assert.Zero(t, client.loginCalls)
}

func TestRecoverWithNoActiveSessionsStaysDisconnected(t *testing.T) {
	client := &fakeRegistry{
		statusFunc: func(ctx context.Context) ([]string, error) {
			return nil, nil
		},
	}
	manager := NewManager(client, logger.NewNoOpLogger())

	sess, err := manager.Recover(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, models.StatusDisconnected, manager.Status())
}

// ==========================
// Bulk Maintenance Operations
// ==========================

func TestBulkOperationsRequireConnectedSession(t *testing.T) {
	client := &fakeRegistry{}
	manager := NewManager(client, logger.NewNoOpLogger())

	err := manager.SearchFiles(context.Background())
	require.Error(t, err)
	assert.Empty(t, client.searchCalls)

	err = manager.ExtractData(context.Background())
	require.Error(t, err)
	assert.Empty(t, client.extractCalls)

	_, err = manager.Login(context.Background(), "9092")
	require.NoError(t, err)

	require.NoError(t, manager.SearchFiles(context.Background()))
	require.NoError(t, manager.ExtractData(context.Background()))
	assert.Equal(t, []string{"session-1"}, client.searchCalls)
	assert.Equal(t, []string{"session-1"}, client.extractCalls)
}

func TestSessionCreatedAtIsSet(t *testing.T) {
	client := &fakeRegistry{}
	manager := NewManager(client, logger.NewNoOpLogger())

	before := time.Now().UTC()
	sess, err := manager.Login(context.Background(), "9092")
	require.NoError(t, err)
	assert.False(t, sess.CreatedAt.Before(before))
}
