package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleString accepts a JSON string, number, or null and keeps its textual form.
// Models are inconsistent about quoting amounts, so amounts travel as text until normalized.
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleString(strings.TrimSpace(s))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported value %s: %w", string(data), err)
		}
		*f = FlexibleString(n.String())
		return nil
	}
}

// String returns the raw text.
func (f FlexibleString) String() string {
	return string(f)
}

// cleanMarkdownWrapper strips ```json fences that models like to wrap responses in.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if idx := strings.Index(content, "\n"); idx >= 0 {
		// Drop the language tag line.
		content = content[idx+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// extractJSONObject returns the outermost JSON object embedded in content.
func extractJSONObject(content string) (string, error) {
	content = cleanMarkdownWrapper(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return content[start : end+1], nil
}

// decodeResponse parses a model response into T, tolerating markdown fences and surrounding prose.
func decodeResponse[T any](content string) (T, error) {
	var out T
	raw, err := extractJSONObject(content)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("failed to decode response JSON: %w", err)
	}
	return out, nil
}
