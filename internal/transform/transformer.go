// Package transform converts between the canonical request/response
// dialect (internal/canon) and each upstream provider's wire format. A
// Transformer never performs network I/O itself — internal/httpclient
// executes the request it builds — so adapters stay pure, synchronous,
// and trivially testable, with translation kept separate from transport.
package transform

import (
	"github.com/universal-claude-router/ucr/internal/canon"
)

// OutgoingRequest is everything needed to make the upstream HTTP call:
// built by Transformer.Request, executed by internal/httpclient.
type OutgoingRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// StreamEvent is one canonical SSE payload derived from a raw upstream
// streaming chunk. Proxy serializes it as `data: <json>\n\n`.
type StreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// NewTextDelta builds the text-delta StreamEvent shape:
// {type:"content_block_delta", delta:{type:"text_delta", text:"..."}}.
func NewTextDelta(text string) *StreamEvent {
	e := &StreamEvent{Type: "content_block_delta"}
	e.Delta.Type = "text_delta"
	e.Delta.Text = text
	return e
}

// Transformer is the capability set one upstream provider adapter
// implements. StreamChunk's absence of support is expressed via
// SupportsStreaming returning false, not a nil method — Go has no
// optional interface methods, so non-streaming adapters (Replicate)
// implement StreamChunk to return an error if ever called.
type Transformer interface {
	// Name identifies the adapter for error messages and metrics, not
	// necessarily identical to any one provider id (openaicompat serves
	// several).
	Name() string

	// Request builds the outgoing HTTP call for req against provider.
	// Returns *canon.TransformerError on unrepresentable input.
	Request(req *canon.CanonicalRequest, provider *canon.Provider) (*OutgoingRequest, error)

	// Response parses a complete non-streaming upstream body into the
	// canonical shape. Returns *canon.UpstreamInvalidBodyError on a
	// malformed or incomplete body.
	Response(rawBody []byte, original *canon.CanonicalRequest) (*canon.CanonicalResponse, error)

	// StreamChunk parses one raw streaming unit (one SSE "data:" line for
	// most adapters, one NDJSON line for Ollama) into a StreamEvent. A nil
	// event with a nil error means "chunk carried no visible text, skip
	// it" (e.g. a role-only SSE event, or the terminal [DONE]/done=true
	// marker).
	StreamChunk(raw []byte) (*StreamEvent, error)

	// SupportsStreaming reports whether StreamChunk is meaningful for
	// this adapter.
	SupportsStreaming() bool
}
