package openlibrary

import (
	"encoding/json"
	"strings"
)

// NormalizeDescription flattens the forms OpenLibrary uses for descriptions:
// a plain string, an object {"type": ..., "value": string} or a list of
// strings (joined with a space). Anything else yields "".
func NormalizeDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return extractDescription(v)
}

func extractDescription(desc any) string {
	switch v := desc.(type) {
	case string:
		return v
	case map[string]any:
		if val, ok := v["value"].(string); ok {
			return val
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// Truncate cuts s to at most limit characters (runes, not bytes).
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
