package render

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// ErrorMapping splits a remote error payload into messages keyed by the
// dotted field names of a form and form-level messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// FieldErrors keeps the first message per field.
func (m ErrorMapping) FieldErrors() validation.ErrorMap {
	out := validation.ErrorMap{}
	for name, messages := range m.Fields {
		if len(messages) > 0 {
			out[name] = messages[0]
		}
	}
	return out
}

// MapErrorPayload resolves remote error keys (dotted names, JSON pointers,
// bracketed indexes, wrapper prefixes such as "body" or "data") onto the
// declared field names of form. Keys that match no field become form-level
// messages so nothing is lost.
func MapErrorPayload(form *model.Form, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	if len(payload) == 0 {
		return mapping
	}

	fieldPaths := make(map[string]struct{})
	for _, field := range form.Fields() {
		fieldPaths[field.Name] = struct{}{}
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, rawPath := range keys {
		messages := normalizeMessages(payload[rawPath])
		if len(messages) == 0 {
			continue
		}
		mapped, formLevel := mapErrorPath(rawPath, fieldPaths)
		if formLevel {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		mapping.Fields[mapped] = normalizeMessages(append(mapping.Fields[mapped], messages...))
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapErrorPath(raw string, fieldPaths map[string]struct{}) (string, bool) {
	if isFormLevelKey(raw) {
		return "", true
	}
	segments := parsePathSegments(raw)
	if len(segments) == 0 {
		return "", true
	}

	best := ""
	for _, variant := range segmentVariants(segments) {
		path := longestMatchingPath(variant, fieldPaths)
		if len(path) > len(best) {
			best = path
		}
	}
	if best == "" {
		return "", true
	}
	return best, false
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	clean = strings.TrimLeft(clean, "#$/.")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

var wrapperSegments = map[string]struct{}{
	"body":       {},
	"request":    {},
	"payload":    {},
	"data":       {},
	"attributes": {},
	"fields":     {},
}

func segmentVariants(segments []string) [][]string {
	unwrapped := segments
	for len(unwrapped) > 0 {
		if _, ok := wrapperSegments[strings.ToLower(unwrapped[0])]; !ok {
			break
		}
		unwrapped = unwrapped[1:]
	}
	return [][]string{
		segments,
		unwrapped,
		withoutIndexes(segments),
		withoutIndexes(unwrapped),
	}
}

func withoutIndexes(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func longestMatchingPath(segments []string, fieldPaths map[string]struct{}) string {
	for end := len(segments); end > 0; end-- {
		candidate := strings.Join(segments[:end], ".")
		if _, ok := fieldPaths[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors", "message", "error":
		return true
	default:
		return false
	}
}
