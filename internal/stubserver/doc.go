// Package stubserver is a stand-in chat backend for local development and
// tests.
//
// It mirrors the endpoint surface of the real service: a per-user streaming
// endpoint at /ws/{user_id} that hands out a session id on accept and
// answers query frames, plus the REST endpoints for login, session
// creation, deletion, history, and health. Responses are canned; there is
// no retrieval pipeline behind it.
//
// Behavior knobs on Options let tests simulate the awkward cases: a
// handshake that never delivers a session id, scripted error frames, and a
// server that drops the socket on receipt of a query.
package stubserver
