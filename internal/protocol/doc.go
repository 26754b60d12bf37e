// Package protocol defines the JSON wire format spoken over the streaming
// channel between the client and the chat backend.
//
// Every logical message is one JSON frame. The client only ever sends
// queries; the server answers with at most one of response/error per frame
// and may attach a session identifier to any frame it sends.
//
// Frames (Client → Server):
//   - {"query": "..."}
//
// Frames (Server → Client):
//   - {"session_id": "..."}                       handshake
//   - {"session_id": "...", "response": "..."}    answer
//   - {"error": "..."}                            failure
//
// Encoding uses bytedance/sonic for both directions.
package protocol
