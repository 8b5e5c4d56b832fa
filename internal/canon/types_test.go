package canon

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageContentUnmarshalString(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &m)
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Text())
	assert.False(t, m.HasImage())
}

func TestMessageContentUnmarshalParts(t *testing.T) {
	var m Message
	raw := `{"role":"user","content":[{"type":"text","text":"hi"},{"type":"image","image":{"mediaType":"image/png","base64":"AA=="}}]}`
	err := json.Unmarshal([]byte(raw), &m)
	require.NoError(t, err)
	assert.Equal(t, "hi", m.Text())
	assert.True(t, m.HasImage())
}

func TestCanonicalRequestValidateEmptyMessages(t *testing.T) {
	r := &CanonicalRequest{}
	err := r.Validate()
	require.Error(t, err)
	var invalid *RequestInvalidError
	require.ErrorAs(t, err, &invalid)
}

func TestCanonicalRequestValidateBadTemperature(t *testing.T) {
	temp := 3.5
	r := &CanonicalRequest{
		Messages: []Message{{Role: RoleUser, Content: MessageContent{Parts: []ContentPart{{Type: PartText, Text: "hi"}}}}},
		Sampling: SamplingParams{Temperature: &temp},
	}
	err := r.Validate()
	require.Error(t, err)
}

func TestCanonicalRequestValidateOK(t *testing.T) {
	r := &CanonicalRequest{
		Messages: []Message{{Role: RoleUser, Content: MessageContent{Parts: []ContentPart{{Type: PartText, Text: "hi"}}}}},
	}
	assert.NoError(t, r.Validate())
}

func TestCredentialNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(2 * time.Minute).UnixMilli()
	c := &Credential{ExpiresAtMs: &soon}
	assert.True(t, c.NeedsRefresh(now, 5*time.Minute))

	far := now.Add(time.Hour).UnixMilli()
	c2 := &Credential{ExpiresAtMs: &far}
	assert.False(t, c2.NeedsRefresh(now, 5*time.Minute))

	c3 := &Credential{}
	assert.False(t, c3.NeedsRefresh(now, 5*time.Minute))
}
