package router

import (
	"math"
	"strings"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// Keyword sets tested in precedence order. Classification is a
// first-match-wins chain, the same shape as a flag → env → config →
// fallback resolution, just applied to message content instead of
// configuration sources.
var webSearchKeywords = []string{
	"search for", "look up", "find information about",
	"what is the latest", "current events", "recent news", "browse",
	"web search",
}

var backgroundKeywords = []string{
	"in the background", "asynchronously",
	"run this later", "schedule", "batch process",
}

var thinkKeywords = []string{
	"think about", "analyze", "reason through", "step by step",
	"explain why", "reasoning", "let's think", "chain of thought",
}

const longContextCharThreshold = 50_000

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Classify decides a request's task type purely from the most recent
// user message, precedence image > webSearch > background > think >
// longContext > default.
func Classify(req *canon.CanonicalRequest) canon.TaskType {
	last := lastUserMessage(req)
	if last != nil && last.HasImage() {
		return canon.TaskImage
	}

	text := ""
	if last != nil {
		text = strings.ToLower(last.Text())
	}

	switch {
	case containsAny(text, webSearchKeywords):
		return canon.TaskWebSearch
	case containsAny(text, backgroundKeywords):
		return canon.TaskBackground
	case containsAny(text, thinkKeywords):
		return canon.TaskThink
	}

	if totalTextChars(req) > longContextCharThreshold {
		return canon.TaskLongContext
	}
	return canon.TaskDefault
}

func lastUserMessage(req *canon.CanonicalRequest) *canon.Message {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == canon.RoleUser {
			return &req.Messages[i]
		}
	}
	if len(req.Messages) > 0 {
		return &req.Messages[len(req.Messages)-1]
	}
	return nil
}

func totalTextChars(req *canon.CanonicalRequest) int {
	total := 0
	for _, m := range req.Messages {
		total += len(m.Text())
	}
	return total
}

func countImages(req *canon.CanonicalRequest) int {
	n := 0
	for _, m := range req.Messages {
		for _, p := range m.Parts() {
			if p.Type == canon.PartImage {
				n++
			}
		}
	}
	return n
}

const (
	charsPerToken      = 4
	perMessageOverhead = 4
	systemOverhead     = 4
	baseOverhead       = 10
	tokensPerImage     = 1000
)

// TokenCount is a cheap character-count-based approximation of request
// token usage, deliberately not an exact tokenizer: good enough to decide
// routing, not meant for billing-grade accounting.
func TokenCount(req *canon.CanonicalRequest) int {
	totalChars := totalTextChars(req)
	count := int(math.Ceil(float64(totalChars)/charsPerToken)) + perMessageOverhead*len(req.Messages)
	if req.System != "" {
		count += int(math.Ceil(float64(len(req.System))/charsPerToken)) + systemOverhead
	}
	count += baseOverhead
	count += tokensPerImage * countImages(req)
	return count
}
