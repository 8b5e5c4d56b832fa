package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// fingerprintInput is a stable, minimal projection of a CanonicalRequest
// used to key the response cache: model, messages, temperature, and
// maxTokens are the only fields that change what answer a request should
// get back. Field order here is fixed by struct declaration and
// json.Marshal's deterministic encoding, so two requests with identical
// logical content always hash identically.
type fingerprintInput struct {
	Model       string   `json:"model"`
	Messages    []msgKey `json:"messages"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

type msgKey struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Fingerprint computes a deterministic sha256 hex digest for a
// non-streaming CanonicalRequest, hashing a stably-serialized projection
// of it to derive a cache key.
func Fingerprint(req *canon.CanonicalRequest) string {
	in := fingerprintInput{
		Model:       req.Model,
		Temperature: req.Sampling.Temperature,
		MaxTokens:   req.Sampling.MaxTokens,
	}
	in.Messages = make([]msgKey, len(req.Messages))
	for i, m := range req.Messages {
		in.Messages[i] = msgKey{Role: string(m.Role), Text: m.Text()}
	}

	b, err := json.Marshal(in)
	if err != nil {
		// Marshal of this projection cannot fail (no channels, funcs, or
		// cyclic data), but never panic on a cache lookup path.
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
