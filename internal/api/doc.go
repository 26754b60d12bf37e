// Package api is the synchronous HTTP client for the chat backend.
//
// It covers the non-streaming surface: login, session creation (the fallback
// used when the streaming handshake does not deliver a session id in time),
// session deletion, conversation history, and health. Requests go through
// resty on top of a retrying transport, behind a circuit breaker so a
// degraded backend stops receiving fallback traffic, and a rate limiter.
package api
