package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// replicateTransformer is the most divergent of the six adapters:
// Replicate's prediction-based API has no chat history concept, no
// streaming, and no token usage, so the canonical message list gets
// flattened into a single prompt string instead.
type replicateTransformer struct{}

// NewReplicate returns the Replicate transformer.
func NewReplicate() Transformer { return &replicateTransformer{} }

func (t *replicateTransformer) Name() string { return "replicate" }

type replicateInput struct {
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_new_tokens,omitempty"`
}

type replicateRequest struct {
	Version string         `json:"version,omitempty"`
	Input   replicateInput `json:"input"`
}

func flattenToPrompt(req *canon.CanonicalRequest) string {
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		switch m.Role {
		case canon.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Text())
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}

func (t *replicateTransformer) Request(req *canon.CanonicalRequest, provider *canon.Provider) (*OutgoingRequest, error) {
	rr := replicateRequest{
		Version: metaOr(provider, "modelVersion", ""),
		Input: replicateInput{
			Prompt:      flattenToPrompt(req),
			Temperature: req.Sampling.Temperature,
			TopP:        req.Sampling.TopP,
			MaxTokens:   req.Sampling.MaxTokens,
		},
	}

	body, err := json.Marshal(rr)
	if err != nil {
		return nil, &canon.TransformerError{Provider: t.Name(), Reason: fmt.Sprintf("marshal request: %v", err)}
	}

	return &OutgoingRequest{
		Method: "POST",
		URL:    provider.BaseURL + "/v1/predictions",
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Token " + provider.APIKey,
		},
		Body: body,
	}, nil
}

type replicateResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// joinOutput handles Replicate's output shape, which is either a single
// string or an array of token-sized string fragments to concatenate.
func joinOutput(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var asSlice []string
	if err := json.Unmarshal(raw, &asSlice); err == nil {
		return strings.Join(asSlice, ""), nil
	}
	return "", fmt.Errorf("unrecognized output shape")
}

func (t *replicateTransformer) Response(rawBody []byte, original *canon.CanonicalRequest) (*canon.CanonicalResponse, error) {
	var rr replicateResponse
	if err := json.Unmarshal(rawBody, &rr); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if rr.Error != "" {
		return nil, &canon.UpstreamError{Provider: t.Name(), StatusCode: 502, Body: rr.Error}
	}
	if len(rr.Output) == 0 {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: "no output in response"}
	}
	text, err := joinOutput(rr.Output)
	if err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}

	return &canon.CanonicalResponse{
		ID:         rr.ID,
		Type:       "message",
		Role:       "assistant",
		Content:    []canon.ContentPart{{Type: canon.PartText, Text: text}},
		Model:      original.Model,
		StopReason: canon.StopEndTurn,
		// Replicate does not report token usage.
	}, nil
}

// StreamChunk always errors: Replicate has no streaming mode, so
// SupportsStreaming reports false and no caller should invoke this.
func (t *replicateTransformer) StreamChunk(raw []byte) (*StreamEvent, error) {
	return nil, &canon.TransformerError{Provider: t.Name(), Reason: "replicate does not support streaming"}
}

func (t *replicateTransformer) SupportsStreaming() bool { return false }
