// Package transport owns one streaming websocket connection to the chat
// backend, keyed by user id.
//
// A Conn moves through Idle → Connecting → Open → Closed. An unexpected
// closure is handed to the reconnection policy, which schedules bounded
// exponential retries; an explicit Close is terminal. The first non-empty
// session identifier observed on a connection sticks for its lifetime.
//
// The wire protocol carries no per-message correlation id, so replies are
// matched to the earliest registered handler. To keep that matching sound,
// a Conn allows at most one in-flight query at a time; an overlapping Send
// fails with ErrRequestInFlight rather than risking a mismatched reply.
package transport
