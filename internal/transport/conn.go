package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/campuschat/chatlink/internal/infrastructure/logging"
	"github.com/campuschat/chatlink/internal/infrastructure/monitoring"
	"github.com/campuschat/chatlink/internal/infrastructure/resilience"
	"github.com/campuschat/chatlink/internal/protocol"
)

var (
	// ErrNotConnected is returned by Send when the connection is not open.
	ErrNotConnected = errors.New("not connected")

	// ErrRequestInFlight is returned by Send while another query on the same
	// connection is still awaiting its reply.
	ErrRequestInFlight = errors.New("request already in flight")

	// ErrConnectionClosed rejects pending requests when the connection goes
	// away before their reply arrives.
	ErrConnectionClosed = errors.New("connection closed")
)

// ServerError is a structured error frame received from the backend.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a Conn.
type Options struct {
	// BaseURL is the backend base URL (http, https, ws or wss scheme).
	BaseURL string
	// Dialer is the websocket dialer. Defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Backoff drives automatic reconnection. Defaults to the package
	// defaults in resilience.
	Backoff *resilience.Backoff
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Conn is one streaming connection to the backend for a single user.
type Conn struct {
	userID  string
	baseURL string
	dialer  *websocket.Dialer
	backoff *resilience.Backoff
	logger  *logging.Logger
	metrics *monitoring.Metrics
	pending correlator

	mu             sync.Mutex
	state          State
	ws             *websocket.Conn
	sessionID      string
	closed         bool
	reconnectTimer *time.Timer
}

// NewConn creates a connection in the Idle state. Connect must be called
// before Send.
func NewConn(userID string, opts Options) *Conn {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Backoff == nil {
		opts.Backoff = resilience.NewBackoff(0, 0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}
	return &Conn{
		userID:  userID,
		baseURL: opts.BaseURL,
		dialer:  opts.Dialer,
		backoff: opts.Backoff,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		state:   StateIdle,
	}
}

// UserID returns the owning user's identifier.
func (c *Conn) UserID() string {
	return c.userID
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the session identifier observed on this connection, or
// empty when none has arrived yet.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// AdoptSessionID records a session identifier obtained out of band (the HTTP
// fallback). The first non-empty value wins for the connection's lifetime.
func (c *Conn) AdoptSessionID(sessionID string) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	if c.sessionID == "" {
		c.sessionID = sessionID
	}
	c.mu.Unlock()
}

// Connect opens the streaming transport. It is idempotent while the
// connection is already open and fails once the connection has been
// explicitly closed.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	ws, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		return err
	}

	c.install(ws)
	return nil
}

// Send writes a query frame and blocks until the matching reply, context
// cancellation, or connection teardown. Only one query may be in flight per
// connection: the wire format has no correlation id.
func (c *Conn) Send(ctx context.Context, query string) (string, error) {
	c.mu.Lock()
	if c.state != StateOpen || c.ws == nil {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	if c.pending.size() > 0 {
		c.mu.Unlock()
		return "", ErrRequestInFlight
	}
	ws := c.ws
	ch := c.pending.add()
	c.mu.Unlock()

	c.metrics.PendingRequests.Inc()
	defer c.metrics.PendingRequests.Dec()

	data, err := protocol.Encode(protocol.QueryFrame(query))
	if err != nil {
		c.pending.remove(ch)
		return "", err
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.pending.remove(ch)
		return "", fmt.Errorf("failed to send query: %w", err)
	}
	c.metrics.RecordFrame("out", "query")

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		if !c.pending.remove(ch) {
			// Reply raced the cancellation; it is already in the channel.
			r := <-ch
			return r.text, r.err
		}
		return "", ctx.Err()
	}
}

// Close tears the connection down for good. Pending requests are rejected
// and no reconnection is attempted. Safe to call repeatedly.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	c.pending.failAll(ErrConnectionClosed)

	if ws != nil {
		c.metrics.ConnectionsActive.Dec()
		return ws.Close()
	}
	return nil
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := c.endpointURL()
	if err != nil {
		return nil, err
	}
	ws, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	return ws, nil
}

// endpointURL derives the user-scoped streaming endpoint from the base URL.
func (c *Conn) endpointURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}
	u.Path = "/ws/" + c.userID
	return u.String(), nil
}

// install adopts a freshly dialed socket and starts its read loop. When two
// connects race, the socket installed second displaces the first, which is
// closed; its read loop then exits through the stale-socket check in
// connectionLost.
func (c *Conn) install(ws *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	displaced := c.ws
	c.ws = ws
	c.state = StateOpen
	c.mu.Unlock()

	if displaced != nil {
		displaced.Close()
		c.metrics.ConnectionsActive.Dec()
	}

	c.backoff.Reset()
	c.metrics.ConnectionsActive.Inc()
	c.logger.Info("Streaming connection open", zap.String("user_id", c.userID))

	go c.readLoop(ws)
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.connectionLost(ws, err)
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", zap.Error(err))
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Conn) handleFrame(frame protocol.Frame) {
	// Session identifiers ride along on any frame, reply or not.
	if frame.SessionID != "" {
		c.metrics.RecordFrame("in", "session")
		c.mu.Lock()
		if c.sessionID == "" {
			c.sessionID = frame.SessionID
		}
		c.mu.Unlock()
	}

	switch {
	case frame.Error != "":
		c.metrics.RecordFrame("in", "error")
		c.pending.fulfill(reply{err: &ServerError{Message: frame.Error}})
	case frame.Response != "":
		c.metrics.RecordFrame("in", "response")
		if !c.pending.fulfill(reply{text: frame.Response}) {
			c.logger.Warn("Unsolicited response frame dropped",
				zap.String("user_id", c.userID))
		}
	}
}

// connectionLost handles an unexpected read failure on ws. Stale loops from
// an already replaced socket are ignored.
func (c *Conn) connectionLost(ws *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.state = StateClosed
	intentional := c.closed
	c.mu.Unlock()

	c.metrics.ConnectionsActive.Dec()
	c.pending.failAll(fmt.Errorf("%w: %v", ErrConnectionClosed, cause))

	if intentional {
		return
	}

	c.logger.Warn("Streaming connection lost",
		zap.String("user_id", c.userID),
		zap.Error(cause),
	)
	c.scheduleReconnect()
}

func (c *Conn) scheduleReconnect() {
	delay, ok := c.backoff.Next()
	if !ok {
		c.logger.Error("Reconnect attempts exhausted",
			zap.String("user_id", c.userID),
			zap.Int("attempts", c.backoff.Attempt()),
		)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = time.AfterFunc(delay, c.tryReconnect)
	c.mu.Unlock()

	c.metrics.ReconnectsTotal.Inc()
	c.logger.Info("Reconnect scheduled",
		zap.String("user_id", c.userID),
		zap.Duration("delay", delay),
		zap.Int("attempt", c.backoff.Attempt()),
	)
}

func (c *Conn) tryReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	ws, err := c.dial(context.Background())
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		c.logger.Warn("Reconnect failed", zap.String("user_id", c.userID), zap.Error(err))
		c.scheduleReconnect()
		return
	}

	c.install(ws)
}
