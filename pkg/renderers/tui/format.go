package tui

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// FormatPayload serializes a normalized payload for terminal output. Keys are
// emitted in sorted order so output is stable.
func FormatPayload(values map[string]any, format OutputFormat) ([]byte, error) {
	switch format {
	case "", OutputFormatJSON:
		return json.MarshalIndent(values, "", "  ")
	case OutputFormatFormURLEncoded:
		flattened := url.Values{}
		flatten("", values, flattened)
		return []byte(flattened.Encode()), nil
	case OutputFormatPrettyText:
		var b strings.Builder
		writePretty(&b, "", values)
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("tui: unknown output format %q", format)
	}
}

func flatten(prefix string, value any, out url.Values) {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range sortedKeys(v) {
			flatten(join(prefix, key), v[key], out)
		}
	case []string:
		for _, val := range v {
			out.Add(prefix+"[]", val)
		}
	case []any:
		for _, val := range v {
			out.Add(prefix+"[]", fmt.Sprint(val))
		}
	default:
		out.Set(prefix, fmt.Sprint(v))
	}
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range sortedKeys(v) {
			writePretty(b, join(prefix, key), v[key])
		}
	case []string:
		for idx, val := range v {
			fmt.Fprintf(b, "%s[%d]=%s\n", prefix, idx, val)
		}
	case []any:
		for idx, val := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), val)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%v\n", prefix, v)
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
