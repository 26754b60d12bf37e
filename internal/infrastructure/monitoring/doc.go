// Package monitoring provides Prometheus metrics for the connection session
// layer.
//
// Metrics cover the streaming transport (connection gauge, reconnect
// attempts, frames by direction and kind) and the HTTP fallback path
// (requests by operation and status, session fallbacks). A long-running
// client can expose them via Handler on a local listener.
package monitoring
