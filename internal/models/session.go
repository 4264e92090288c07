package models

import "time"

// SessionStatus is the local view of the registry connection.
type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusConnected    SessionStatus = "connected"
)

// Session represents an open session with the external registry.
// The ID is an opaque token issued by the registry at login; every
// subsequent call carries it as a read-only credential. Only the
// session manager mutates a Session.
type Session struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// IsUsable reports whether queries may be attached to this session.
func (s *Session) IsUsable() bool {
	return s != nil && s.Status == StatusConnected && s.ID != ""
}
