package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-claude-router/ucr/internal/canon"
)

func textMessage(role canon.Role, text string) canon.Message {
	return canon.Message{Role: role, Content: canon.MessageContent{Parts: []canon.ContentPart{{Type: canon.PartText, Text: text}}}}
}

func TestAnthropicRequestHeaders(t *testing.T) {
	tr := NewAnthropic()
	provider := &canon.Provider{BaseURL: "https://api.anthropic.com", APIKey: "sk-ant-test"}
	req := &canon.CanonicalRequest{
		Model:    "claude-3-5-sonnet-20241022",
		Messages: []canon.Message{textMessage(canon.RoleUser, "Hi")},
	}

	out, err := tr.Request(req, provider)
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", out.URL)
	assert.Equal(t, "2023-06-01", out.Headers["anthropic-version"])
	assert.Equal(t, "sk-ant-test", out.Headers["x-api-key"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Body, &body))
	assert.Equal(t, "claude-3-5-sonnet-20241022", body["model"])
}

func TestAnthropicResponseRoundTrip(t *testing.T) {
	tr := NewAnthropic()
	raw := []byte(`{"id":"msg_1","role":"assistant","content":[{"type":"text","text":"Hello"}],"model":"claude-3-5-sonnet-20241022","stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":2}}`)

	resp, err := tr.Response(raw, &canon.CanonicalRequest{})
	require.NoError(t, err)
	assert.Equal(t, "assistant", resp.Role)
	assert.Equal(t, "Hello", resp.Text())
	assert.Equal(t, canon.StopEndTurn, resp.StopReason)
	assert.Equal(t, 5, resp.Usage.InputTokens)
	assert.Equal(t, 2, resp.Usage.OutputTokens)
}

func TestAnthropicStreamChunkTextDelta(t *testing.T) {
	tr := NewAnthropic()
	line := []byte(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`)
	ev, err := tr.StreamChunk(line)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "Hel", ev.Delta.Text)
}

func TestAnthropicStreamChunkIgnoresNonDelta(t *testing.T) {
	tr := NewAnthropic()
	line := []byte(`data: {"type":"message_stop"}`)
	ev, err := tr.StreamChunk(line)
	require.NoError(t, err)
	assert.Nil(t, ev)
}
