package intake

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	inputPolicyOnce sync.Once
	inputPolicy     *bluemonday.Policy
)

// sanitizeTree strips markup from every string in a decoded JSON payload.
// Entities are unescaped afterwards so plain text such as "A & B" survives.
func sanitizeTree(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case string:
		return sanitizeString(typed)
	case map[string]any:
		return sanitizeTree(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return value
	}
}

func sanitizeString(raw string) string {
	if !strings.ContainsAny(raw, "<>&") {
		return raw
	}
	return html.UnescapeString(inputSanitizer().Sanitize(raw))
}

func inputSanitizer() *bluemonday.Policy {
	inputPolicyOnce.Do(func() {
		inputPolicy = bluemonday.StrictPolicy()
	})
	return inputPolicy
}
