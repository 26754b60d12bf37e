package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuschat/chatlink/internal/infrastructure/config"
	"github.com/campuschat/chatlink/internal/stubserver"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	stub := stubserver.New(stubserver.Options{})
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	return NewClient(config.BackendConfig{BaseURL: ts.URL, HTTPTimeout: config.Default().Backend.HTTPTimeout}, nil, nil)
}

func TestCreateSession(t *testing.T) {
	client := newTestClient(t)

	sessionID, err := client.CreateSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sessionID, "u1_"))
}

func TestCreateSessionEmptyID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewClient(config.BackendConfig{BaseURL: ts.URL}, nil, nil)
	_, err := client.CreateSession(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty session id")
}

func TestLogin(t *testing.T) {
	client := newTestClient(t)

	user, err := client.Login(context.Background(), "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, user.UserID)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestLoginRejected(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Login(context.Background(), "alice@example.com", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6 characters")
}

func TestChat(t *testing.T) {
	client := newTestClient(t)

	response, err := client.Chat(context.Background(), "hello", "u1")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", response)
}

func TestChatEmptyQuery(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Chat(context.Background(), "   ", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Empty query")
}

func TestChatRecordsHistory(t *testing.T) {
	client := newTestClient(t)

	// Chat reuses the user's existing session, so the exchange lands in its
	// history.
	sessionID, err := client.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), "hello", "u1")
	require.NoError(t, err)

	history, err := client.History(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Query)
}

func TestDeleteSessionIdempotent(t *testing.T) {
	client := newTestClient(t)

	sessionID, err := client.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, client.DeleteSession(context.Background(), sessionID))
	// Deleting again is a 404 server-side but still a success for the caller.
	require.NoError(t, client.DeleteSession(context.Background(), sessionID))
}

func TestHealth(t *testing.T) {
	client := newTestClient(t)
	assert.NoError(t, client.Health(context.Background()))
}

func TestHistoryEmptySession(t *testing.T) {
	client := newTestClient(t)

	sessionID, err := client.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	history, err := client.History(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRequestFailureSurfacesError(t *testing.T) {
	client := NewClient(config.BackendConfig{BaseURL: "http://127.0.0.1:1"}, nil, nil)
	_, err := client.CreateSession(context.Background(), "u1")
	assert.Error(t, err)
}
