package transform

import (
	"encoding/json"
	"fmt"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// compatProfile captures the per-provider quirks of the OpenAI-compatible
// family: one adapter, many registrations, each carrying its own
// header/vision behavior (OpenAI itself, GitHub Copilot, DeepSeek,
// OpenRouter, Groq, Mistral, Perplexity and Together). Gemini gets
// its own adapter instead of a profile here since its wire shape diverges
// too far to share this one.
type compatProfile struct {
	name          string
	supportsImage bool
	extraHeaders  func(provider *canon.Provider) map[string]string
}

var compatProfiles = map[string]compatProfile{
	"openai": {name: "openai", supportsImage: true},
	"github-copilot": {
		name:          "github-copilot",
		supportsImage: false,
		extraHeaders: func(p *canon.Provider) map[string]string {
			return map[string]string{
				"Editor-Version":        metaOr(p, "editorVersion", "vscode/1.85.0"),
				"Editor-Plugin-Version": metaOr(p, "editorPluginVersion", "copilot-chat/0.11.1"),
				"User-Agent":            metaOr(p, "userAgent", "GitHubCopilotChat/0.11.1"),
			}
		},
	},
	"deepseek":    {name: "deepseek", supportsImage: false},
	"openrouter": {
		name:          "openrouter",
		supportsImage: true,
		extraHeaders: func(p *canon.Provider) map[string]string {
			return map[string]string{
				"HTTP-Referer": metaOr(p, "httpReferer", "https://ucr.local"),
				"X-Title":      metaOr(p, "xTitle", "Universal Claude Router"),
			}
		},
	},
	"groq":       {name: "groq", supportsImage: false},
	"mistral":    {name: "mistral", supportsImage: false},
	"perplexity": {name: "perplexity", supportsImage: false},
	"together":   {name: "together", supportsImage: true},
}

func metaOr(p *canon.Provider, key, fallback string) string {
	if p != nil && p.Metadata != nil {
		if v, ok := p.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}

// RegisterOpenAICompat registers one transformer per name in
// compatProfiles onto r.
func RegisterOpenAICompat(r *Registry) {
	for name := range compatProfiles {
		profile := compatProfiles[name]
		r.Register(name, func() Transformer { return &openAICompatTransformer{profile: profile} })
	}
}

type openAICompatTransformer struct {
	profile compatProfile
}

func (t *openAICompatTransformer) Name() string { return t.profile.name }

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	TopK        *int            `json:"top_k,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

func (t *openAICompatTransformer) Request(req *canon.CanonicalRequest, provider *canon.Provider) (*OutgoingRequest, error) {
	cr := compatRequest{
		Model:       req.Model,
		Temperature: req.Sampling.Temperature,
		TopP:        req.Sampling.TopP,
		TopK:        req.Sampling.TopK,
		MaxTokens:   req.Sampling.MaxTokens,
		Stop:        req.Sampling.StopSequences,
		Stream:      req.Stream,
	}
	if req.System != "" {
		cr.Messages = append(cr.Messages, compatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		text := m.Text()
		if text == "" && m.HasImage() && !t.profile.supportsImage {
			return nil, &canon.TransformerError{
				Provider: t.Name(),
				Reason:   "message contains only image content but this provider does not support vision",
			}
		}
		cr.Messages = append(cr.Messages, compatMessage{Role: string(m.Role), Content: text})
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return nil, &canon.TransformerError{Provider: t.Name(), Reason: fmt.Sprintf("marshal request: %v", err)}
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + provider.APIKey,
	}
	if t.profile.extraHeaders != nil {
		for k, v := range t.profile.extraHeaders(provider) {
			headers[k] = v
		}
	}

	return &OutgoingRequest{
		Method:  "POST",
		URL:     provider.BaseURL + "/chat/completions",
		Headers: headers,
		Body:    body,
	}, nil
}

type compatChoice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type compatResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []compatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func compatFinishReason(s string) canon.StopReason {
	switch s {
	case "stop", "eos", "":
		return canon.StopEndTurn
	case "length":
		return canon.StopMaxTokens
	case "content_filter":
		return canon.StopSequenceStop
	default:
		return canon.StopEndTurn
	}
}

func (t *openAICompatTransformer) Response(rawBody []byte, original *canon.CanonicalRequest) (*canon.CanonicalResponse, error) {
	var cr compatResponse
	if err := json.Unmarshal(rawBody, &cr); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if len(cr.Choices) == 0 {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: "no choices in response"}
	}
	choice := cr.Choices[0]

	return &canon.CanonicalResponse{
		ID:         cr.ID,
		Type:       "message",
		Role:       "assistant",
		Content:    []canon.ContentPart{{Type: canon.PartText, Text: choice.Message.Content}},
		Model:      cr.Model,
		StopReason: compatFinishReason(choice.FinishReason),
		Usage: canon.Usage{
			InputTokens:  cr.Usage.PromptTokens,
			OutputTokens: cr.Usage.CompletionTokens,
		},
	}, nil
}

type compatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (t *openAICompatTransformer) StreamChunk(raw []byte) (*StreamEvent, error) {
	data, ok := SSEData(raw)
	if !ok {
		return nil, nil
	}
	if IsSSEDone(data) {
		return nil, nil
	}
	var chunk compatStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return nil, nil
	}
	return NewTextDelta(chunk.Choices[0].Delta.Content), nil
}

func (t *openAICompatTransformer) SupportsStreaming() bool { return true }
