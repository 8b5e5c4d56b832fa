// Package canon defines the canonical request/response dialect the proxy
// speaks to its clients, the Provider configuration record, and the other
// data-model types shared across the router, transformer and cache layers.
//
// The canonical request/response shapes model the Anthropic Messages API:
// multi-part message content (text and image parts), a separate system
// prompt, and a typed stop reason instead of a free-form string.
package canon

import (
	"encoding/json"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// AuthKind enumerates how a Provider authenticates to its upstream.
type AuthKind string

const (
	AuthAPIKey      AuthKind = "apiKey"
	AuthBearerToken AuthKind = "bearerToken"
	AuthOAuth       AuthKind = "oauth"
	AuthBasic       AuthKind = "basic"
	AuthNone        AuthKind = "none"
)

// Provider is an immutable per-reload description of one upstream LLM
// backend. A new Provider value is built on every config load; nothing
// mutates a Provider in place.
type Provider struct {
	ID              string
	DisplayName     string
	BaseURL         string
	DefaultModel    string
	Models          []string
	AuthType        AuthKind
	APIKey          string
	Priority        int
	Enabled         bool
	Timeout         time.Duration
	RetryCount      int
	ExtraHeaders    map[string]string
	Metadata        map[string]interface{}
	InsertionOrder  int
	// TransformerName is the registry key used to look up this
	// provider's Transformer adapter. Defaults to the provider's own ID
	// when the config doesn't set one explicitly (so a provider named
	// "anthropic" just works), but lets multiple differently-named
	// providers share one adapter, e.g. several OpenAI-compatible
	// vendors all set transformer: "openai".
	TransformerName string
}

// ---------------------------------------------------------------------------
// Canonical message content
// ---------------------------------------------------------------------------

// Role is the speaker of a canonical message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType distinguishes the kinds of content a message part can carry.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ImageSource carries inline base64 image bytes, mirroring Anthropic's
// content-block shape.
type ImageSource struct {
	MediaType string `json:"mediaType"`
	Base64    string `json:"base64"`
}

// ContentPart is one element of a message's content sequence. Exactly one
// of Text or Image is populated, selected by Type.
type ContentPart struct {
	Type  PartType     `json:"type"`
	Text  string       `json:"text,omitempty"`
	Image *ImageSource `json:"image,omitempty"`
}

// MessageContent normalizes the two wire shapes Anthropic's Messages API
// accepts for a message's "content" field: a bare string, or an array of
// typed content blocks. It always marshals back out as an array.
type MessageContent struct {
	Parts []ContentPart
}

// UnmarshalJSON accepts either a JSON string (wrapped into a single text
// part) or an array of content-part objects.
func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		mc.Parts = []ContentPart{{Type: PartText, Text: asString}}
		return nil
	}
	var asParts []ContentPart
	if err := json.Unmarshal(data, &asParts); err != nil {
		return fmt.Errorf("content: expected string or content-part array: %w", err)
	}
	mc.Parts = asParts
	return nil
}

// MarshalJSON always emits the normalized content-part array shape.
func (mc MessageContent) MarshalJSON() ([]byte, error) {
	if mc.Parts == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(mc.Parts)
}

// Message is one turn in the conversation. Content may be a bare string
// (UnmarshalJSON accepts either shape) or a part sequence; callers should
// use Parts() to get a normalized view.
type Message struct {
	Role    Role           `json:"role"`
	Content MessageContent `json:"content"`
}

// Parts returns the message content as a normalized part sequence,
// whichever wire shape it arrived in.
func (m Message) Parts() []ContentPart {
	return m.Content.Parts
}

// Text concatenates every text part of the message, ignoring images.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// HasImage reports whether any content part is an image.
func (m Message) HasImage() bool {
	for _, p := range m.Content.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Sampling knobs
// ---------------------------------------------------------------------------

// SamplingParams bundles the optional generation knobs a canonical request
// may set. Nil pointer fields mean "let the provider use its default".
type SamplingParams struct {
	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	TopK          *int
	StopSequences []string
}

// ---------------------------------------------------------------------------
// Canonical request
// ---------------------------------------------------------------------------

// CanonicalRequest is the proxy's external request dialect, modeled on
// Anthropic's /v1/messages. Sampling knobs are a nested Go struct for
// convenience everywhere else in this codebase, but the wire shape is flat
// (maxTokens, temperature, topP, topK, stopSequences sitting alongside
// model/messages/system/stream), so MarshalJSON/UnmarshalJSON below
// flatten SamplingParams in and out of the wire form.
type CanonicalRequest struct {
	Model    string
	Messages []Message
	System   string
	Sampling SamplingParams
	Stream   bool
	Metadata map[string]interface{}
}

type canonicalRequestWire struct {
	Model         string                 `json:"model"`
	Messages      []Message              `json:"messages"`
	System        string                 `json:"system,omitempty"`
	MaxTokens     *int                   `json:"maxTokens,omitempty"`
	Temperature   *float64               `json:"temperature,omitempty"`
	TopP          *float64               `json:"topP,omitempty"`
	TopK          *int                   `json:"topK,omitempty"`
	StopSequences []string               `json:"stopSequences,omitempty"`
	Stream        bool                   `json:"stream,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

func (r CanonicalRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(canonicalRequestWire{
		Model:         r.Model,
		Messages:      r.Messages,
		System:        r.System,
		MaxTokens:     r.Sampling.MaxTokens,
		Temperature:   r.Sampling.Temperature,
		TopP:          r.Sampling.TopP,
		TopK:          r.Sampling.TopK,
		StopSequences: r.Sampling.StopSequences,
		Stream:        r.Stream,
		Metadata:      r.Metadata,
	})
}

func (r *CanonicalRequest) UnmarshalJSON(data []byte) error {
	var w canonicalRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Model = w.Model
	r.Messages = w.Messages
	r.System = w.System
	r.Stream = w.Stream
	r.Metadata = w.Metadata
	r.Sampling = SamplingParams{
		MaxTokens:     w.MaxTokens,
		Temperature:   w.Temperature,
		TopP:          w.TopP,
		TopK:          w.TopK,
		StopSequences: w.StopSequences,
	}
	return nil
}

// Validate checks CanonicalRequest's structural and range invariants.
func (r *CanonicalRequest) Validate() error {
	if len(r.Messages) == 0 {
		return &RequestInvalidError{Reason: "messages must not be empty"}
	}
	for i, m := range r.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return &RequestInvalidError{Reason: fmt.Sprintf("message %d: role must be user or assistant", i)}
		}
		if len(m.Content.Parts) == 0 {
			return &RequestInvalidError{Reason: fmt.Sprintf("message %d: content must not be empty", i)}
		}
	}
	if t := r.Sampling.Temperature; t != nil && (*t < 0 || *t > 2) {
		return &RequestInvalidError{Reason: "temperature must be in [0,2]"}
	}
	if p := r.Sampling.TopP; p != nil && (*p < 0 || *p > 1) {
		return &RequestInvalidError{Reason: "top_p must be in [0,1]"}
	}
	if k := r.Sampling.TopK; k != nil && *k < 0 {
		return &RequestInvalidError{Reason: "top_k must be >= 0"}
	}
	if mt := r.Sampling.MaxTokens; mt != nil && *mt < 1 {
		return &RequestInvalidError{Reason: "max_tokens must be >= 1"}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Canonical response
// ---------------------------------------------------------------------------

// StopReason classifies why generation stopped. "other" exists alongside
// the three Anthropic-native reasons so that an upstream finish reason an
// adapter does not recognize is never silently misreported as a real
// stop-sequence match.
type StopReason string

const (
	StopEndTurn      StopReason = "endTurn"
	StopMaxTokens    StopReason = "maxTokens"
	StopSequenceStop StopReason = "stopSequence"
	StopOther        StopReason = "other"
	StopNone         StopReason = ""
)

// Usage reports token accounting for a completed request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CanonicalResponse is the proxy's external response dialect.
type CanonicalResponse struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Role         string        `json:"role"`
	Content      []ContentPart `json:"content"`
	Model        string        `json:"model"`
	StopReason   StopReason    `json:"stop_reason"`
	StopSequence *string       `json:"stop_sequence"`
	Usage        Usage         `json:"usage"`
}

// Text concatenates every text part of the response content.
func (r *CanonicalResponse) Text() string {
	var out string
	for _, p := range r.Content {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// CredentialKind mirrors AuthKind for the subset of auth schemes that carry
// persisted secret material.
type CredentialKind string

const (
	CredAPIKey      CredentialKind = "apiKey"
	CredBearerToken CredentialKind = "bearerToken"
	CredOAuth       CredentialKind = "oauth"
	CredBasic       CredentialKind = "basic"
)

// Credential is one provider's persisted secret material.
type Credential struct {
	ProviderID   string                 `json:"providerId"`
	Kind         CredentialKind         `json:"kind"`
	APIKey       string                 `json:"apiKey,omitempty"`
	BearerToken  string                 `json:"bearerToken,omitempty"`
	AccessToken  string                 `json:"accessToken,omitempty"`
	RefreshToken string                 `json:"refreshToken,omitempty"`
	ExpiresAtMs  *int64                 `json:"expiresAt,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NeedsRefresh reports whether the OAuth credential expires within the
// given horizon (callers use a 5 minute horizon).
func (c *Credential) NeedsRefresh(now time.Time, horizon time.Duration) bool {
	if c.ExpiresAtMs == nil {
		return false
	}
	expiry := time.UnixMilli(*c.ExpiresAtMs)
	return expiry.Sub(now) < horizon
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

// TaskType classifies an inbound request for routing purposes.
type TaskType string

const (
	TaskDefault     TaskType = "default"
	TaskThink       TaskType = "think"
	TaskBackground  TaskType = "background"
	TaskLongContext TaskType = "longContext"
	TaskWebSearch   TaskType = "webSearch"
	TaskImage       TaskType = "image"
)

// RouteResult is the outcome of the router's provider-selection algorithm.
type RouteResult struct {
	Provider   *Provider
	Model      string
	TaskType   TaskType
	TokenCount int
	Reason     string
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

// CachedResponse is one entry stored in the response cache.
type CachedResponse struct {
	Response  CanonicalResponse
	Size      int
	InsertedAt time.Time
}
