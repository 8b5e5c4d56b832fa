package transform

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// geminiTransformer speaks both of Google's Gemini wire shapes (AI
// Studio and Vertex), using the same wire-struct idiom as the other
// adapters.
type geminiTransformer struct{}

// NewGemini returns the Google Gemini transformer (AI Studio + Vertex).
func NewGemini() Transformer { return &geminiTransformer{} }

func (t *geminiTransformer) Name() string { return "gemini" }

// isVertexMode detects Vertex AI mode from the base URL: the host must be
// under googleapis.com AND some dot-label ends with or equals
// "aiplatform" or "vertexai".
func isVertexMode(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if !strings.HasSuffix(host, "googleapis.com") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "aiplatform" || label == "vertexai" || strings.HasSuffix(label, "aiplatform") || strings.HasSuffix(label, "vertexai") {
			return true
		}
	}
	return false
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

func geminiRole(r canon.Role) string {
	if r == canon.RoleAssistant {
		return "model"
	}
	return "user"
}

// mergeConsecutive folds consecutive same-role messages into one content,
// joining text parts with "\n" (Gemini rejects back-to-back same-role
// turns).
func mergeConsecutive(messages []canon.Message) []geminiContent {
	var out []geminiContent
	for _, m := range messages {
		role := geminiRole(m.Role)
		text := m.Text()
		if len(out) > 0 && out[len(out)-1].Role == role {
			last := &out[len(out)-1]
			if len(last.Parts) > 0 {
				last.Parts[0].Text += "\n" + text
				continue
			}
		}
		out = append(out, geminiContent{Role: role, Parts: []geminiPart{{Text: text}}})
	}
	return out
}

func (t *geminiTransformer) Request(req *canon.CanonicalRequest, provider *canon.Provider) (*OutgoingRequest, error) {
	gr := geminiRequest{Contents: mergeConsecutive(req.Messages)}
	if req.System != "" {
		gr.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.Sampling.Temperature != nil || req.Sampling.TopP != nil || req.Sampling.TopK != nil ||
		req.Sampling.MaxTokens != nil || len(req.Sampling.StopSequences) > 0 {
		gr.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Sampling.Temperature,
			TopP:            req.Sampling.TopP,
			TopK:            req.Sampling.TopK,
			MaxOutputTokens: req.Sampling.MaxTokens,
			StopSequences:   req.Sampling.StopSequences,
		}
	}

	body, err := json.Marshal(gr)
	if err != nil {
		return nil, &canon.TransformerError{Provider: t.Name(), Reason: fmt.Sprintf("marshal request: %v", err)}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	var reqURL string

	if isVertexMode(provider.BaseURL) {
		project := metaOr(provider, "projectId", "default")
		location := metaOr(provider, "location", "us-central1")
		reqURL = fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			provider.BaseURL, project, location, req.Model)
		headers["Authorization"] = "Bearer " + provider.APIKey
	} else {
		reqURL = fmt.Sprintf("%s/v1beta/models/%s:generateContent", provider.BaseURL, req.Model)
		headers["x-goog-api-key"] = provider.APIKey
	}

	return &OutgoingRequest{Method: "POST", URL: reqURL, Headers: headers, Body: body}, nil
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func geminiFinishReason(s string) canon.StopReason {
	switch s {
	case "STOP", "":
		return canon.StopEndTurn
	case "MAX_TOKENS":
		return canon.StopMaxTokens
	case "SAFETY", "RECITATION":
		return canon.StopSequenceStop
	default:
		return canon.StopOther
	}
}

func (t *geminiTransformer) Response(rawBody []byte, original *canon.CanonicalRequest) (*canon.CanonicalResponse, error) {
	var gr geminiResponse
	if err := json.Unmarshal(rawBody, &gr); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if len(gr.Candidates) == 0 {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: "no candidates in response"}
	}
	cand := gr.Candidates[0]

	var text string
	for _, p := range cand.Content.Parts {
		text += p.Text
	}

	model := gr.ModelVersion
	if model == "" {
		model = original.Model
	}

	return &canon.CanonicalResponse{
		Type:       "message",
		Role:       "assistant",
		Content:    []canon.ContentPart{{Type: canon.PartText, Text: text}},
		Model:      model,
		StopReason: geminiFinishReason(cand.FinishReason),
		Usage: canon.Usage{
			InputTokens:  gr.UsageMetadata.PromptTokenCount,
			OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func (t *geminiTransformer) StreamChunk(raw []byte) (*StreamEvent, error) {
	data, ok := SSEData(raw)
	if !ok {
		return nil, nil
	}
	var gr geminiResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, &canon.UpstreamInvalidBodyError{Provider: t.Name(), Reason: err.Error()}
	}
	if len(gr.Candidates) == 0 {
		return nil, nil
	}
	var text string
	for _, p := range gr.Candidates[0].Content.Parts {
		text += p.Text
	}
	if text == "" {
		return nil, nil
	}
	return NewTextDelta(text), nil
}

func (t *geminiTransformer) SupportsStreaming() bool { return true }
