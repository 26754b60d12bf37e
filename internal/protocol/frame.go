package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Frame is one logical message on the streaming channel. A server frame
// carries at most one of Response/Error; a client frame carries only Query.
type Frame struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query,omitempty"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// QueryFrame builds the outbound frame for a user query.
func QueryFrame(query string) Frame {
	return Frame{Query: query}
}

// IsReply reports whether the frame completes a pending request.
// Handshake frames carry only a session id and complete nothing.
func (f Frame) IsReply() bool {
	return f.Response != "" || f.Error != ""
}

// Encode serializes a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	data, err := sonic.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// Decode parses a wire message into a frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return f, nil
}
