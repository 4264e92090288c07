// Package session owns the connection lifecycle to the external
// registry. The Manager is the single shared source of connection
// state; dispatchers and pollers read the session id from it and never
// mutate it.
package session

import (
	"context"
	"sync"
	"time"

	stderrors "icra-sorgu/internal/common/errors"
	"icra-sorgu/internal/common/logger"
	"icra-sorgu/internal/common/metrics"
	"icra-sorgu/internal/models"
	"icra-sorgu/internal/registry"
)

// Manager drives the Disconnected -> Connecting -> Connected state
// machine. Connecting is a critical section: only one login attempt
// may be outstanding, and a logout requested mid-Connecting is queued
// until the login settles.
type Manager struct {
	client registry.Client
	logger logger.Logger

	mu            sync.Mutex
	current       models.Session
	pendingLogout bool
}

func NewManager(client registry.Client, log logger.Logger) *Manager {
	return &Manager{
		client: client,
		logger: log,
		current: models.Session{
			Status: models.StatusDisconnected,
		},
	}
}

// Status returns the current connection state.
func (m *Manager) Status() models.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Status
}

// Current returns a copy of the active session, or nil when not
// Connected.
func (m *Manager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Status != models.StatusConnected {
		return nil
	}
	s := m.current
	return &s
}

// SessionID returns the active session token, or "" when not
// Connected.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Status != models.StatusConnected {
		return ""
	}
	return m.current.ID
}

// Login opens a session with the registry. While Connected it first
// performs an implicit logout; while Connecting it rejects with
// SESSION_BUSY instead of interleaving attempts. The returned session
// reflects the final state: when a logout was queued mid-Connecting it
// is applied after the login settles and the session comes back
// Disconnected.
func (m *Manager) Login(ctx context.Context, credential string) (*models.Session, error) {
	m.mu.Lock()
	switch m.current.Status {
	case models.StatusConnecting:
		m.mu.Unlock()
		return nil, stderrors.NewSessionBusyError("login")
	case models.StatusConnected:
		// Implicit logout before re-login. Callers are expected to
		// toggle, not double-login, but the double-login path must not
		// leak the old remote session.
		oldID := m.current.ID
		m.current = models.Session{Status: models.StatusConnecting}
		m.mu.Unlock()
		if err := m.client.Logout(ctx, oldID); err != nil {
			m.logger.Warn("implicit logout before re-login failed", map[string]interface{}{
				"sessionId": oldID,
				"error":     err.Error(),
			})
		}
	default:
		m.current = models.Session{Status: models.StatusConnecting}
		m.mu.Unlock()
	}
	metrics.SessionTransitions.WithLabelValues(string(models.StatusConnecting)).Inc()

	id, err := m.client.Login(ctx, credential)

	m.mu.Lock()
	if err != nil {
		m.current = models.Session{Status: models.StatusDisconnected}
		m.pendingLogout = false
		m.mu.Unlock()
		metrics.SessionTransitions.WithLabelValues(string(models.StatusDisconnected)).Inc()
		m.logger.Error("registry login failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	m.current = models.Session{
		ID:        id,
		Status:    models.StatusConnected,
		CreatedAt: time.Now().UTC(),
	}
	pending := m.pendingLogout
	m.pendingLogout = false
	session := m.current
	m.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues(string(models.StatusConnected)).Inc()
	m.logger.Info("registry login succeeded", map[string]interface{}{
		"sessionId": id,
	})

	if pending {
		m.logger.Info("applying logout queued during login", map[string]interface{}{
			"sessionId": id,
		})
		if err := m.Logout(ctx); err != nil {
			m.logger.Warn("queued logout failed remotely", map[string]interface{}{
				"sessionId": id,
				"error":     err.Error(),
			})
		}
		session.Status = models.StatusDisconnected
	}

	return &session, nil
}

// Logout tears the session down. The local state always transitions to
// Disconnected, even when the remote call fails; the remote failure is
// returned for surfacing but the disconnect is never blocked on it.
// A logout while Connecting is queued and applied once the login
// settles.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	switch m.current.Status {
	case models.StatusConnecting:
		m.pendingLogout = true
		m.mu.Unlock()
		return nil
	case models.StatusDisconnected:
		m.mu.Unlock()
		return nil
	}

	id := m.current.ID
	m.current = models.Session{Status: models.StatusDisconnected}
	m.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues(string(models.StatusDisconnected)).Inc()

	if err := m.client.Logout(ctx, id); err != nil {
		m.logger.Warn("remote logout failed, local state is disconnected", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
		return err
	}

	m.logger.Info("registry logout succeeded", map[string]interface{}{
		"sessionId": id,
	})
	return nil
}

// Recover consults the registry status endpoint and adopts an
// already-open session, used at startup to avoid a fresh login after a
// restart. The registry may report several live sessions; the first
// listed one is adopted and the full list is logged so leaked sessions
// stay visible.
func (m *Manager) Recover(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	if m.current.Status != models.StatusDisconnected {
		m.mu.Unlock()
		return nil, stderrors.NewSessionBusyError("recover")
	}
	m.mu.Unlock()

	ids, err := m.client.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > 1 {
		m.logger.Warn("registry reports multiple active sessions, adopting the first", map[string]interface{}{
			"activeSessions": ids,
		})
	}

	m.mu.Lock()
	m.current = models.Session{
		ID:        ids[0],
		Status:    models.StatusConnected,
		CreatedAt: time.Now().UTC(),
	}
	session := m.current
	m.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues(string(models.StatusConnected)).Inc()
	m.logger.Info("recovered existing registry session", map[string]interface{}{
		"sessionId": session.ID,
	})
	return &session, nil
}

// ActiveSessions passes the registry's session list through untouched.
func (m *Manager) ActiveSessions(ctx context.Context) ([]string, error) {
	return m.client.ActiveSessions(ctx)
}

// SearchFiles runs the bulk file-discovery maintenance operation on
// the active session.
func (m *Manager) SearchFiles(ctx context.Context) error {
	id, err := m.usableSessionID("search-files")
	if err != nil {
		return err
	}
	return m.client.SearchFiles(ctx, id)
}

// ExtractData runs the bulk data-extraction maintenance operation on
// the active session.
func (m *Manager) ExtractData(ctx context.Context) error {
	id, err := m.usableSessionID("extract-data")
	if err != nil {
		return err
	}
	return m.client.ExtractData(ctx, id)
}

func (m *Manager) usableSessionID(op string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Status == models.StatusConnecting {
		return "", stderrors.NewSessionBusyError(op)
	}
	if !m.current.IsUsable() {
		return "", stderrors.NewTriggerRejectedError("session is not connected")
	}
	return m.current.ID, nil
}
