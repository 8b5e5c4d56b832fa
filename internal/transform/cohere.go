package transform

import (
	"encoding/json"
	"fmt"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// cohereTransformer translates to Cohere's message/chat_history/preamble
// request contract, using the same wire-struct idiom as the other
// adapters.
type cohereTransformer struct{}

// NewCohere returns the Cohere transformer.
func NewCohere() Transformer { return &cohereTransformer{} }

func (t *cohereTransformer) Name() string { return "cohere" }

type cohereHistoryEntry struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type cohereRequest struct {
	Model         string               `json:"model"`
	Message       string               `json:"message"`
	ChatHistory   []cohereHistoryEntry `json:"chat_history,omitempty"`
	Preamble      string               `json:"preamble,omitempty"`
	Temperature   *float64             `json:"temperature,omitempty"`
	P             *float64             `json:"p,omitempty"`
	K             *int                 `json:"k,omitempty"`
	MaxTokens     *int                 `json:"max_tokens,omitempty"`
	StopSequences []string             `json:"stop_sequences,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
}

func cohereRole(r canon.Role) string {
	if r == canon.RoleAssistant {
		return "CHATBOT"
	}
	return "USER"
}

func (t *cohereTransformer) Request(req *canon.CanonicalRequest, provider *canon.Provider) (*OutgoingRequest, error) {
	if len(req.Messages) == 0 {
		return nil, &canon.TransformerError{Provider: t.Name(), Reason: "no messages to send"}
	}

	cr := cohereRequest{
		Model:         req.Model,
		Preamble:      req.System,
		Temperature:   req.Sampling.Temperature,
		P:             req.Sampling.TopP,
		K:             req.Sampling.TopK,
		MaxTokens:     req.Sampling.MaxTokens,
		StopSequences: req.Sampling.StopSequences,
		Stream:        req.Stream,
	}

	last := req.Messages[len(req.Messages)-1]
	cr.Message = last.Text()
	for _, m := range req.Messages[:len(req.Messages)-1] {
		cr.ChatHistory = append(cr.ChatHistory, cohereHistoryEntry{Role: cohereRole(m.Role), Message: m.Text()})
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return nil, &canon.TransformerError{Provider: t.Name(), Reason: fmt.Sprintf("marshal request: %v", err)}
	}

	return &OutgoingRequest{
		Method: "POST",
		URL:    provider.BaseURL + "/v1/chat",
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + provider.APIKey,
		},
		Body: body,
	}, nil
}

type cohereResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Meta         struct {
		Tokens struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"tokens"`
	} `json:"meta"`
}

func cohereFinishReason(s string) canon.StopReason {
	switch s {
	case "COMPLETE", "":
		return canon.StopEndTurn
	case "MAX_TOKENS":
		return canon.StopMaxTokens
	case "ERROR_TOXIC", "ERROR_LIMIT":
		return canon.StopSequenceStop
	default:
		return canon.StopOther
	}
}

func (t *cohereTransformer) Response(rawBody []byte, original *canon.CanonicalRequest) (*canon.CanonicalResponse, error) {
	var cr cohereResponse
	if err := json.Unmarshal(rawBody, &cr); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if cr.Text == "" && cr.FinishReason == "" {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: "empty response"}
	}

	return &canon.CanonicalResponse{
		Type:       "message",
		Role:       "assistant",
		Content:    []canon.ContentPart{{Type: canon.PartText, Text: cr.Text}},
		Model:      original.Model,
		StopReason: cohereFinishReason(cr.FinishReason),
		Usage: canon.Usage{
			InputTokens:  cr.Meta.Tokens.InputTokens,
			OutputTokens: cr.Meta.Tokens.OutputTokens,
		},
	}, nil
}

type cohereStreamEvent struct {
	EventType string `json:"event_type"`
	Text      string `json:"text"`
}

func (t *cohereTransformer) StreamChunk(raw []byte) (*StreamEvent, error) {
	data, ok := SSEData(raw)
	if !ok {
		return nil, nil
	}
	var ev cohereStreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if ev.EventType != "text-generation" || ev.Text == "" {
		return nil, nil
	}
	return NewTextDelta(ev.Text), nil
}

func (t *cohereTransformer) SupportsStreaming() bool { return true }
