package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-claude-router/ucr/internal/canon"
)

type stubTransformer struct{ name string }

func (s *stubTransformer) Name() string { return s.name }
func (s *stubTransformer) Request(*canon.CanonicalRequest, *canon.Provider) (*OutgoingRequest, error) {
	return nil, nil
}
func (s *stubTransformer) Response([]byte, *canon.CanonicalRequest) (*canon.CanonicalResponse, error) {
	return nil, nil
}
func (s *stubTransformer) StreamChunk([]byte) (*StreamEvent, error) { return nil, nil }
func (s *stubTransformer) SupportsStreaming() bool                  { return false }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func() Transformer { return &stubTransformer{name: "stub"} })

	got, err := r.Get("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", got.Name())

	assert.Equal(t, []string{"stub"}, r.Names())
}

func TestRegistryGetUnknownErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	require.Error(t, err)
}

func TestRegistryDoubleRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func() Transformer { return &stubTransformer{name: "stub"} })
	assert.Panics(t, func() {
		r.Register("stub", func() Transformer { return &stubTransformer{name: "stub"} })
	})
}

func TestRegisterDefaultsCoversAllProviders(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	names := r.Names()
	for _, want := range []string{"anthropic", "openai", "github-copilot", "deepseek", "openrouter", "groq", "mistral", "perplexity", "together", "gemini", "cohere", "ollama", "replicate"} {
		assert.Contains(t, names, want)
	}
}
