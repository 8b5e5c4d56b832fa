package transform

import (
	"bufio"
	"bytes"
	"io"
)

const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 1024 * 1024
)

// NewSSEScanner returns a *bufio.Scanner over r with an enlarged buffer:
// some upstreams emit single SSE data lines well past bufio.Scanner's
// 64KiB default (a large tool-call payload, for instance).
func NewSSEScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, scannerInitialBuffer), scannerMaxBuffer)
	return sc
}

// NewNDJSONScanner is the same sizing, named separately for Ollama's
// newline-delimited-JSON stream (no "data: " prefix to strip).
func NewNDJSONScanner(r io.Reader) *bufio.Scanner {
	return NewSSEScanner(r)
}

const ssePrefix = "data: "
const ssePrefixNoSpace = "data:"

// SSEData extracts the JSON payload from one SSE line, stripping the
// "data: " prefix. Returns ok=false for blank lines, comments (lines
// starting with ':'), or any other non-data SSE field (event:, id:,
// retry:), which callers should skip.
func SSEData(line []byte) (data []byte, ok bool) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}
	if bytes.HasPrefix(line, []byte(ssePrefix)) {
		return line[len(ssePrefix):], true
	}
	if bytes.HasPrefix(line, []byte(ssePrefixNoSpace)) {
		return bytes.TrimSpace(line[len(ssePrefixNoSpace):]), true
	}
	return nil, false
}

// IsSSEDone reports whether a data payload is the OpenAI-style terminal
// sentinel "[DONE]".
func IsSSEDone(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("[DONE]"))
}
