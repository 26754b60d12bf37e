// Package session provides the Coordinator, the single access point UI
// callers use to talk to the chat backend.
//
// The Coordinator owns at most one streaming connection at a time. Creating
// a session always supersedes the previous connection, waits a bounded time
// for the streaming handshake to deliver a session id, and falls back to the
// synchronous HTTP endpoint when it doesn't. Sending a message lazily
// establishes a connection when none exists.
//
// The Coordinator is an explicitly constructed service object: build one at
// application start, share it by reference, tear it down with Cleanup.
package session
