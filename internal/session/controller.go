package session

import (
	"context"

	"icra-sorgu/internal/common/logger"
	"icra-sorgu/internal/models"
)

// Controller is the thin facade presentation collaborators use for the
// connect/disconnect toggle. It exposes no session internals beyond
// the displayable state.
type Controller struct {
	manager    *Manager
	logger     logger.Logger
	credential string
}

func NewController(manager *Manager, credential string, log logger.Logger) *Controller {
	return &Controller{
		manager:    manager,
		logger:     log,
		credential: credential,
	}
}

// Status returns the connection state for display purposes only.
func (c *Controller) Status() models.SessionStatus {
	return c.manager.Status()
}

// Toggle flips the connection: Disconnected logs in, Connected logs
// out. While Connecting the call is a no-op so rapid repeated toggling
// cannot issue overlapping login attempts.
func (c *Controller) Toggle(ctx context.Context) error {
	switch c.manager.Status() {
	case models.StatusConnecting:
		c.logger.Debug("toggle ignored while connecting", nil)
		return nil
	case models.StatusConnected:
		return c.manager.Logout(ctx)
	default:
		_, err := c.manager.Login(ctx, c.credential)
		return err
	}
}
