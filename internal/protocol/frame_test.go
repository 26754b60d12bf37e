package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryFrameEncoding(t *testing.T) {
	data, err := Encode(QueryFrame("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query": "hello"}`, string(data))
}

func TestDecodeHandshake(t *testing.T) {
	frame, err := Decode([]byte(`{"session_id": "u1_abc"}`))
	require.NoError(t, err)

	assert.Equal(t, "u1_abc", frame.SessionID)
	assert.False(t, frame.IsReply())
}

func TestDecodeReplies(t *testing.T) {
	frame, err := Decode([]byte(`{"session_id": "u1_abc", "response": "hi"}`))
	require.NoError(t, err)
	assert.True(t, frame.IsReply())

	frame, err = Decode([]byte(`{"error": "boom"}`))
	require.NoError(t, err)
	assert.True(t, frame.IsReply())
	assert.Equal(t, "boom", frame.Error)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"query": `))
	assert.Error(t, err)
}
