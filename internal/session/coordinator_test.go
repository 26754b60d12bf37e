package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuschat/chatlink/internal/infrastructure/config"
	"github.com/campuschat/chatlink/internal/protocol"
	"github.com/campuschat/chatlink/internal/stubserver"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Backend.BaseURL = baseURL
	cfg.Reconnect.BaseDelay = 20 * time.Millisecond
	cfg.Session.CreateTimeout = 500 * time.Millisecond
	cfg.Session.PollInterval = 20 * time.Millisecond
	return cfg
}

func newTestCoordinator(t *testing.T, opts stubserver.Options) (*Coordinator, *stubserver.Server) {
	t.Helper()
	stub := stubserver.New(opts)
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	coordinator := NewCoordinator(testConfig(ts.URL), nil, nil, nil)
	t.Cleanup(coordinator.Cleanup)
	return coordinator, stub
}

func TestCreateSessionViaHandshake(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, stubserver.Options{})

	sessionID, err := coordinator.CreateSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sessionID, "u1_"))

	// The returned id matches what the snapshot reports.
	assert.Equal(t, sessionID, coordinator.SessionInfo().SessionID)
}

func TestCreateSessionFallsBackToHTTP(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, stubserver.Options{SuppressHandshake: true})

	sessionID, err := coordinator.CreateSession(context.Background(), "u1")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	// The fallback id is adopted by the live connection.
	assert.Equal(t, sessionID, coordinator.SessionInfo().SessionID)
}

func TestCreateSessionFallbackWithoutStreaming(t *testing.T) {
	// No websocket endpoint at all: the streaming path cannot even connect,
	// yet createSession still succeeds through the HTTP endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("POST /create_session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"session_id": "sid-123"}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	coordinator := NewCoordinator(testConfig(ts.URL), nil, nil, nil)
	defer coordinator.Cleanup()

	sessionID, err := coordinator.CreateSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "sid-123", sessionID)

	// Even with no connection to pin it to, the coordinator keeps reporting
	// the id it handed out.
	assert.Equal(t, "sid-123", coordinator.SessionInfo().SessionID)
}

func TestCreateSessionNoPathAvailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "down"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	coordinator := NewCoordinator(testConfig(ts.URL), nil, nil, nil)
	defer coordinator.Cleanup()

	_, err := coordinator.CreateSession(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSendMessageLazyInit(t *testing.T) {
	coordinator, stub := newTestCoordinator(t, stubserver.Options{})

	response, err := coordinator.SendMessage(context.Background(), "hello", "u1")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", response)
	assert.Equal(t, 1, stub.Upgrades())
}

func TestSendMessageServerError(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, stubserver.Options{
		Reply: func(query string) protocol.Frame {
			return protocol.Frame{Error: "boom"}
		},
	})

	_, err := coordinator.SendMessage(context.Background(), "hello", "u1")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestInitializeConnectionIdempotent(t *testing.T) {
	coordinator, stub := newTestCoordinator(t, stubserver.Options{})

	require.NoError(t, coordinator.InitializeConnection(context.Background(), "u1"))
	require.Eventually(t, func() bool {
		return coordinator.SessionInfo().SessionID != ""
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, coordinator.InitializeConnection(context.Background(), "u1"))
	assert.Equal(t, 1, stub.Upgrades())
}

func TestCreateSessionSupersedesConnection(t *testing.T) {
	coordinator, stub := newTestCoordinator(t, stubserver.Options{})

	first, err := coordinator.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	second, err := coordinator.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, second, coordinator.SessionInfo().SessionID)
	assert.Equal(t, 2, stub.Upgrades())
}

func TestCleanupIdempotent(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, stubserver.Options{})

	_, err := coordinator.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	coordinator.Cleanup()
	coordinator.Cleanup()

	assert.Empty(t, coordinator.SessionInfo().SessionID)
}

func TestDeleteSession(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, stubserver.Options{})

	sessionID, err := coordinator.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	assert.NoError(t, coordinator.DeleteSession(context.Background(), sessionID))
}
