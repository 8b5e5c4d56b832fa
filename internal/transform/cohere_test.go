package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-claude-router/ucr/internal/canon"
)

func TestCohereSeparatesMessageFromHistory(t *testing.T) {
	tr := NewCohere()
	provider := &canon.Provider{BaseURL: "https://api.cohere.ai", APIKey: "k"}
	req := &canon.CanonicalRequest{
		System: "Be nice.",
		Messages: []canon.Message{
			textMessage(canon.RoleUser, "hi"),
			textMessage(canon.RoleAssistant, "hello"),
			textMessage(canon.RoleUser, "how are you"),
		},
	}

	out, err := tr.Request(req, provider)
	require.NoError(t, err)
	var body cohereRequest
	require.NoError(t, json.Unmarshal(out.Body, &body))
	assert.Equal(t, "how are you", body.Message)
	assert.Equal(t, "Be nice.", body.Preamble)
	require.Len(t, body.ChatHistory, 2)
	assert.Equal(t, "USER", body.ChatHistory[0].Role)
	assert.Equal(t, "CHATBOT", body.ChatHistory[1].Role)
}

func TestCohereStreamTextGenerationEvent(t *testing.T) {
	tr := NewCohere()
	ev, err := tr.StreamChunk([]byte(`data: {"event_type":"text-generation","text":"Hel"}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "Hel", ev.Delta.Text)

	ev2, err := tr.StreamChunk([]byte(`data: {"event_type":"stream-end"}`))
	require.NoError(t, err)
	assert.Nil(t, ev2)
}
