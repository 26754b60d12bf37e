package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/campuschat/chatlink/internal/infrastructure/config"
	"github.com/campuschat/chatlink/internal/infrastructure/logging"
	"github.com/campuschat/chatlink/internal/infrastructure/monitoring"
	"github.com/campuschat/chatlink/internal/infrastructure/resilience"
)

// ErrNotFound marks a 404 from the backend.
var ErrNotFound = errors.New("not found")

// User is the identity returned by the login endpoint.
type User struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// HistoryEntry is one query/response pair from a session's history.
type HistoryEntry struct {
	Query     string `json:"query"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type chatRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type historyResponse struct {
	SessionID           string         `json:"session_id"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Client wraps resty with retries, a rate limiter, and a circuit breaker.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewClient creates a backend HTTP client from configuration.
func NewClient(cfg config.BackendConfig, logger *logging.Logger, metrics *monitoring.Metrics) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.HTTPTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("User-Agent", "chatlink/1.0").
		SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.NewBreaker("backend-http", resilience.BreakerSettings{
		FailureThreshold: 5,
		CoolDown:         30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
	}
}

// CreateSession asks the backend for a fresh session id. This is the HTTP
// fallback behind the streaming handshake.
func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	var out createSessionResponse
	err := c.do(ctx, "create_session", func() (*resty.Response, error) {
		return c.resty.R().
			SetContext(ctx).
			SetBody(createSessionRequest{UserID: userID}).
			SetResult(&out).
			Post("/create_session")
	})
	if err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("backend returned an empty session id")
	}
	return out.SessionID, nil
}

// Login exchanges credentials for a user identity.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var out User
	err := c.do(ctx, "login", func() (*resty.Response, error) {
		return c.resty.R().
			SetContext(ctx).
			SetBody(loginRequest{Email: email, Password: password}).
			SetResult(&out).
			Post("/login")
	})
	if err != nil {
		return User{}, err
	}
	return out, nil
}

// DeleteSession removes a session server-side. A missing session is treated
// as success: the caller removes the conversation locally either way.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	err := c.do(ctx, "delete_session", func() (*resty.Response, error) {
		return c.resty.R().
			SetContext(ctx).
			Delete("/session/" + sessionID)
	})
	if err != nil && errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Chat sends one query over the synchronous HTTP path and returns the
// backend's response. The backend resolves the user's session itself, so no
// streaming connection or handshake is needed.
func (c *Client) Chat(ctx context.Context, query, userID string) (string, error) {
	var out chatResponse
	err := c.do(ctx, "chat", func() (*resty.Response, error) {
		return c.resty.R().
			SetContext(ctx).
			SetBody(chatRequest{Query: query, UserID: userID}).
			SetResult(&out).
			Post("/chat")
	})
	if err != nil {
		return "", err
	}
	return out.Response, nil
}

// History fetches the stored conversation for a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	var out historyResponse
	err := c.do(ctx, "history", func() (*resty.Response, error) {
		return c.resty.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/session/" + sessionID + "/history")
	})
	if err != nil {
		return nil, err
	}
	return out.ConversationHistory, nil
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", func() (*resty.Response, error) {
		return c.resty.R().SetContext(ctx).Get("/health")
	})
}

// do runs one request through the rate limiter and breaker, translating
// non-2xx statuses into errors and recording metrics.
func (c *Client) do(ctx context.Context, operation string, fn func() (*resty.Response, error)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.RecordHTTPRequest(operation, status, time.Since(start))
	}()

	return c.breaker.Execute(func() error {
		resp, err := fn()
		if err != nil {
			return fmt.Errorf("%s request failed: %w", operation, err)
		}
		status = strconv.Itoa(resp.StatusCode())
		if resp.IsError() {
			if resp.StatusCode() == http.StatusNotFound {
				return fmt.Errorf("%s failed: %w", operation, ErrNotFound)
			}
			return fmt.Errorf("%s failed: %s", operation, apiErrorMessage(resp))
		}
		return nil
	})
}

// apiErrorMessage extracts the backend's error detail, falling back to the
// HTTP status line.
func apiErrorMessage(resp *resty.Response) string {
	var e errorResponse
	if err := sonic.Unmarshal(resp.Body(), &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return resp.Status()
}
