package llmclient

import (
	"encoding/json"
	"strings"
)

// ParseJSONResponse extracts a JSON object from model output. Models wrap
// JSON in markdown fences or prepend prose more often than not, so this
// strips fences, then falls back to the outermost brace pair. A result
// that cannot be parsed yields an empty map, never an error - agents
// back-fill missing fields themselves.
func ParseJSONResponse(text string) map[string]any {
	cleaned := strings.TrimSpace(text)

	if idx := strings.Index(cleaned, "```json"); idx >= 0 {
		cleaned = cleaned[idx+len("```json"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	} else if strings.Contains(cleaned, "```") {
		parts := strings.SplitN(cleaned, "```", 3)
		if len(parts) >= 2 {
			cleaned = parts[1]
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	if result := tryUnmarshal(cleaned); result != nil {
		return result
	}

	// Last resort: take the outermost object literal.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if result := tryUnmarshal(cleaned[start : end+1]); result != nil {
			return result
		}
	}

	return map[string]any{}
}

func tryUnmarshal(text string) map[string]any {
	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil
	}
	if result == nil {
		return map[string]any{}
	}
	return result
}

// ValidateResponse checks that the parsed response carries non-empty
// values for the expected fields and returns the ones that are missing.
// Callers back-fill placeholders for anything reported missing so that
// downstream consumers never see absent keys.
func ValidateResponse(response map[string]any, expectedFields []string) []string {
	var missing []string
	for _, field := range expectedFields {
		value, ok := response[field]
		if !ok || value == nil {
			missing = append(missing, field)
			continue
		}
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				missing = append(missing, field)
			}
		case []any:
			if len(v) == 0 {
				missing = append(missing, field)
			}
		case map[string]any:
			if len(v) == 0 {
				missing = append(missing, field)
			}
		}
	}
	return missing
}

// Accessor helpers for loosely-typed model output. Missing or mistyped
// values return zero values, keeping the never-crash-on-missing-data
// policy in one place.

// Str returns a string field, or empty.
func Str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Num returns a numeric field as float64, or 0.
func Num(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case int:
		return float64(v)
	}
	return 0
}

// Obj returns a nested object field, or an empty map.
func Obj(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// List returns a list field, or nil.
func List(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

// StrList returns a list field as strings, skipping non-string entries.
func StrList(m map[string]any, key string) []string {
	var out []string
	for _, v := range List(m, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func containsJSONHint(prompt string) bool {
	return strings.Contains(strings.ToUpper(prompt), "JSON")
}
