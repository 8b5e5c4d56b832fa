package transform

import (
	"encoding/json"
	"fmt"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// ollamaTransformer gets its own adapter rather than reusing the generic
// OpenAI-compatible one: Ollama's actual wire format (/api/chat, an
// "options" bag, NDJSON streaming) diverges enough from the generic
// OpenAI-ish shape to need dedicated request/response translation.
type ollamaTransformer struct{}

// NewOllama returns the Ollama transformer.
func NewOllama() Transformer { return &ollamaTransformer{} }

func (t *ollamaTransformer) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Options  *ollamaOptions  `json:"options,omitempty"`
	Stream   bool            `json:"stream"`
}

func (t *ollamaTransformer) Request(req *canon.CanonicalRequest, provider *canon.Provider) (*OutgoingRequest, error) {
	or := ollamaRequest{Model: req.Model, Stream: req.Stream}
	if req.System != "" {
		or.Messages = append(or.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		or.Messages = append(or.Messages, ollamaMessage{Role: string(m.Role), Content: m.Text()})
	}
	if req.Sampling.Temperature != nil || req.Sampling.TopP != nil || req.Sampling.TopK != nil || req.Sampling.MaxTokens != nil {
		or.Options = &ollamaOptions{
			Temperature: req.Sampling.Temperature,
			TopP:        req.Sampling.TopP,
			TopK:        req.Sampling.TopK,
			NumPredict:  req.Sampling.MaxTokens,
		}
	}

	body, err := json.Marshal(or)
	if err != nil {
		return nil, &canon.TransformerError{Provider: t.Name(), Reason: fmt.Sprintf("marshal request: %v", err)}
	}

	return &OutgoingRequest{
		Method:  "POST",
		URL:     provider.BaseURL + "/api/chat",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, nil
}

type ollamaResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	EvalCount       int `json:"eval_count"`
	PromptEvalCount int `json:"prompt_eval_count"`
}

func (t *ollamaTransformer) Response(rawBody []byte, original *canon.CanonicalRequest) (*canon.CanonicalResponse, error) {
	var or ollamaResponse
	if err := json.Unmarshal(rawBody, &or); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if or.Message.Content == "" && !or.Done {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: "empty message"}
	}

	stopReason := canon.StopOther
	if or.Done {
		stopReason = canon.StopEndTurn
	}

	return &canon.CanonicalResponse{
		Type:       "message",
		Role:       "assistant",
		Content:    []canon.ContentPart{{Type: canon.PartText, Text: or.Message.Content}},
		Model:      or.Model,
		StopReason: stopReason,
		Usage: canon.Usage{
			InputTokens:  or.PromptEvalCount,
			OutputTokens: or.EvalCount,
		},
	}, nil
}

// StreamChunk parses one NDJSON object (no SSE "data:" prefix).
func (t *ollamaTransformer) StreamChunk(raw []byte) (*StreamEvent, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var or ollamaResponse
	if err := json.Unmarshal(raw, &or); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if or.Done || or.Message.Content == "" {
		return nil, nil
	}
	return NewTextDelta(or.Message.Content), nil
}

func (t *ollamaTransformer) SupportsStreaming() bool { return true }
