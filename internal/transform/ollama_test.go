package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-claude-router/ucr/internal/canon"
)

func TestOllamaRequestNoAuthHeader(t *testing.T) {
	tr := NewOllama()
	provider := &canon.Provider{BaseURL: "http://localhost:11434"}
	req := &canon.CanonicalRequest{Model: "llama3", Messages: []canon.Message{textMessage(canon.RoleUser, "hi")}}

	out, err := tr.Request(req, provider)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/api/chat", out.URL)
	_, hasAuth := out.Headers["Authorization"]
	assert.False(t, hasAuth)
}

func TestOllamaStreamChunkSkipsTerminal(t *testing.T) {
	tr := NewOllama()
	ev, err := tr.StreamChunk([]byte(`{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`))
	require.NoError(t, err)
	assert.Nil(t, ev)

	ev2, err := tr.StreamChunk([]byte(`{"model":"llama3","message":{"role":"assistant","content":"hi"},"done":false}`))
	require.NoError(t, err)
	require.NotNil(t, ev2)
	assert.Equal(t, "hi", ev2.Delta.Text)
}
