package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campuschat/chatlink/internal/api"
	"github.com/campuschat/chatlink/internal/infrastructure/config"
	"github.com/campuschat/chatlink/internal/infrastructure/logging"
	"github.com/campuschat/chatlink/internal/infrastructure/monitoring"
	"github.com/campuschat/chatlink/internal/infrastructure/resilience"
	"github.com/campuschat/chatlink/internal/transport"
)

// ErrNoSession is returned when neither the streaming handshake nor the
// HTTP fallback produced a session identifier.
var ErrNoSession = errors.New("no session available")

// Info is a read-only snapshot of the current session.
type Info struct {
	SessionID string
}

// Coordinator owns the process's single streaming connection and mediates
// all session and message operations for UI callers.
type Coordinator struct {
	cfg     *config.Config
	api     *api.Client
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	conn      *transport.Conn
	sessionID string
}

// NewCoordinator creates a coordinator. apiClient handles the synchronous
// HTTP surface, including the session-creation fallback.
func NewCoordinator(cfg *config.Config, apiClient *api.Client, logger *logging.Logger, metrics *monitoring.Metrics) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	if apiClient == nil {
		apiClient = api.NewClient(cfg.Backend, logger, metrics)
	}
	return &Coordinator{
		cfg:     cfg,
		api:     apiClient,
		logger:  logger,
		metrics: metrics,
	}
}

// InitializeConnection ensures an open connection exists for userID. It is a
// no-op when one is already open and carries a known session id; otherwise
// the current connection (if any) is replaced.
func (c *Coordinator) InitializeConnection(ctx context.Context, userID string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil && conn.UserID() == userID &&
		conn.State() == transport.StateOpen && conn.SessionID() != "" {
		return nil
	}

	_, err := c.replaceConnection(ctx, userID)
	return err
}

// CreateSession establishes a fresh connection for userID and returns its
// session identifier. The streaming handshake gets a bounded window to
// deliver one; after that the HTTP fallback is used.
func (c *Coordinator) CreateSession(ctx context.Context, userID string) (string, error) {
	conn, err := c.replaceConnection(ctx, userID)
	if err != nil {
		// The streaming path is down; the HTTP fallback may still work.
		c.logger.Warn("Streaming connect failed, relying on HTTP fallback",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	if conn != nil {
		if sessionID := c.awaitSessionID(ctx, conn); sessionID != "" {
			c.metrics.SessionsCreated.Inc()
			c.setSessionID(sessionID)
			return sessionID, nil
		}
		c.logger.Warn("Streaming handshake yielded no session id, falling back",
			zap.String("user_id", userID),
			zap.Duration("deadline", c.cfg.Session.CreateTimeout),
		)
	}

	sessionID, fallbackErr := c.api.CreateSession(ctx, userID)
	if fallbackErr != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, fallbackErr)
	}

	c.metrics.SessionsCreated.Inc()
	c.metrics.SessionFallbacks.Inc()
	c.setSessionID(sessionID)
	if conn != nil {
		conn.AdoptSessionID(sessionID)
	}
	return sessionID, nil
}

// SendMessage sends a query and returns the backend's response text. A
// connection is initialized lazily when none exists.
func (c *Coordinator) SendMessage(ctx context.Context, query, userID string) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		var err error
		conn, err = c.replaceConnection(ctx, userID)
		if err != nil {
			return "", err
		}
	}

	return conn.Send(ctx, query)
}

// SessionInfo returns a snapshot of the tracked session identifier. The
// connection's observed id wins; the coordinator's own record covers the
// fallback case where no streaming connection survived. Empty when no
// session has been assigned yet.
func (c *Coordinator) SessionInfo() Info {
	c.mu.Lock()
	conn := c.conn
	sessionID := c.sessionID
	c.mu.Unlock()

	if conn != nil {
		if id := conn.SessionID(); id != "" {
			return Info{SessionID: id}
		}
	}
	return Info{SessionID: sessionID}
}

// DeleteSession removes a session server-side. Callers may drop the
// conversation locally even when this fails.
func (c *Coordinator) DeleteSession(ctx context.Context, sessionID string) error {
	return c.api.DeleteSession(ctx, sessionID)
}

// Cleanup tears down the current connection. Idempotent; safe with no
// active connection.
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.sessionID = ""
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Warn("Error closing connection", zap.Error(err))
		}
	}
}

// replaceConnection closes any existing connection and connects a new one.
// On connect failure no connection is retained.
func (c *Coordinator) replaceConnection(ctx context.Context, userID string) (*transport.Conn, error) {
	conn := transport.NewConn(userID, transport.Options{
		BaseURL: c.cfg.Backend.BaseURL,
		Backoff: resilience.NewBackoff(c.cfg.Reconnect.BaseDelay, c.cfg.Reconnect.MaxAttempts),
		Logger:  c.logger,
		Metrics: c.metrics,
	})

	c.mu.Lock()
	prev := c.conn
	c.conn = conn
	c.sessionID = ""
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	if err := conn.Connect(ctx); err != nil {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		return nil, err
	}
	return conn, nil
}

func (c *Coordinator) setSessionID(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

// awaitSessionID polls the connection until a session id arrives, the
// deadline passes, or ctx is done.
func (c *Coordinator) awaitSessionID(ctx context.Context, conn *transport.Conn) string {
	deadline := time.NewTimer(c.cfg.Session.CreateTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.Session.PollInterval)
	defer ticker.Stop()

	for {
		if sessionID := conn.SessionID(); sessionID != "" {
			return sessionID
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return ""
		case <-ctx.Done():
			return ""
		}
	}
}
