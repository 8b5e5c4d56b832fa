package transform

import (
	"encoding/json"
	"fmt"

	"github.com/universal-claude-router/ucr/internal/canon"
)

const anthropicVersion = "2023-06-01"

// anthropicTransformer is a near pass-through adapter: the canonical
// dialect is modeled directly on Anthropic's /v1/messages, so this is the
// thinnest of the six adapters, mostly just re-shaping the multi-part
// content blocks and forwarding the rest unchanged.
type anthropicTransformer struct{}

// NewAnthropic returns the Anthropic native transformer.
func NewAnthropic() Transformer { return &anthropicTransformer{} }

func (t *anthropicTransformer) Name() string { return "anthropic" }

type anthropicContentBlock struct {
	Type   string              `json:"type"`
	Text   string              `json:"text,omitempty"`
	Source *anthropicImageData `json:"source,omitempty"`
}

type anthropicImageData struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
}

func toAnthropicContent(parts []canon.ContentPart) []anthropicContentBlock {
	out := make([]anthropicContentBlock, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case canon.PartText:
			out = append(out, anthropicContentBlock{Type: "text", Text: p.Text})
		case canon.PartImage:
			if p.Image == nil {
				continue
			}
			out = append(out, anthropicContentBlock{
				Type: "image",
				Source: &anthropicImageData{
					Type:      "base64",
					MediaType: p.Image.MediaType,
					Data:      p.Image.Base64,
				},
			})
		}
	}
	return out
}

func (t *anthropicTransformer) Request(req *canon.CanonicalRequest, provider *canon.Provider) (*OutgoingRequest, error) {
	maxTokens := 1024
	if req.Sampling.MaxTokens != nil {
		maxTokens = *req.Sampling.MaxTokens
	}

	ar := anthropicRequest{
		Model:         req.Model,
		System:        req.System,
		MaxTokens:     maxTokens,
		Temperature:   req.Sampling.Temperature,
		TopP:          req.Sampling.TopP,
		TopK:          req.Sampling.TopK,
		StopSequences: req.Sampling.StopSequences,
		Stream:        req.Stream,
	}
	for _, m := range req.Messages {
		ar.Messages = append(ar.Messages, anthropicMessage{
			Role:    string(m.Role),
			Content: toAnthropicContent(m.Parts()),
		})
	}

	body, err := json.Marshal(ar)
	if err != nil {
		return nil, &canon.TransformerError{Provider: t.Name(), Reason: fmt.Sprintf("marshal request: %v", err)}
	}

	return &OutgoingRequest{
		Method: "POST",
		URL:    provider.BaseURL + "/v1/messages",
		Headers: map[string]string{
			"Content-Type":      "application/json",
			"x-api-key":         provider.APIKey,
			"anthropic-version": anthropicVersion,
		},
		Body: body,
	}, nil
}

type anthropicResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Content      []anthropicContentBlock `json:"content"`
	Model        string                  `json:"model"`
	StopReason   string                  `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func anthropicStopReason(s string) canon.StopReason {
	switch s {
	case "end_turn", "":
		return canon.StopEndTurn
	case "max_tokens":
		return canon.StopMaxTokens
	case "stop_sequence":
		return canon.StopSequenceStop
	default:
		return canon.StopOther
	}
}

func (t *anthropicTransformer) Response(rawBody []byte, original *canon.CanonicalRequest) (*canon.CanonicalResponse, error) {
	var ar anthropicResponse
	if err := json.Unmarshal(rawBody, &ar); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if ar.Role == "" {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: "missing role"}
	}

	content := make([]canon.ContentPart, 0, len(ar.Content))
	for _, b := range ar.Content {
		if b.Type == "text" {
			content = append(content, canon.ContentPart{Type: canon.PartText, Text: b.Text})
		}
	}

	return &canon.CanonicalResponse{
		ID:           ar.ID,
		Type:         "message",
		Role:         ar.Role,
		Content:      content,
		Model:        ar.Model,
		StopReason:   anthropicStopReason(ar.StopReason),
		StopSequence: ar.StopSequence,
		Usage: canon.Usage{
			InputTokens:  ar.Usage.InputTokens,
			OutputTokens: ar.Usage.OutputTokens,
		},
	}, nil
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (t *anthropicTransformer) StreamChunk(raw []byte) (*StreamEvent, error) {
	data, ok := SSEData(raw)
	if !ok {
		return nil, nil
	}
	var ev anthropicStreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	switch ev.Type {
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
			return NewTextDelta(ev.Delta.Text), nil
		}
		return nil, nil
	case "error":
		return nil, &canon.UpstreamError{Provider: t.Name(), StatusCode: 502, Body: ev.Error.Message}
	default:
		return nil, nil
	}
}

func (t *anthropicTransformer) SupportsStreaming() bool { return true }
