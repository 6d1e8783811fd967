package reasoning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnstructured indicates the model returned output that does not
// contain a parseable JSON payload. Callers keep the raw text and fall
// back to their neutral defaults; they never retry the parse themselves.
var ErrUnstructured = errors.New("unstructured model output")

// Decode extracts the JSON payload from model output and unmarshals it
// into v. Markdown code fences (with or without a language tag) and
// surrounding prose are stripped.
func Decode(text string, v any) error {
	payload := stripFences(text)

	if err := json.Unmarshal([]byte(payload), v); err == nil {
		return nil
	}

	// The model sometimes wraps the payload in prose. Take the widest
	// brace- or bracket-delimited span and try once more.
	if inner, ok := widestJSONSpan(payload); ok {
		if err := json.Unmarshal([]byte(inner), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %.80s", ErrUnstructured, strings.TrimSpace(text))
}

func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if i := strings.Index(t, "```"); i >= 0 {
		t = t[i+3:]
		if j := strings.Index(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
		t = strings.TrimPrefix(t, "json")
	}
	return strings.TrimSpace(t)
}

func widestJSONSpan(t string) (string, bool) {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(t, pair[0])
		end := strings.LastIndexByte(t, pair[1])
		if start >= 0 && end > start {
			return t[start : end+1], true
		}
	}
	return "", false
}
