package analyze

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripFences removes surrounding Markdown code-fence markup from a
// completion, tolerating a language tag on the opening fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{}") {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject locates the first balanced top-level JSON object embedded in
// free text by brace matching, skipping braces inside string literals.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// parseRanking decodes the analyzer's structured ranking from raw completion
// text: fence strip, then a direct parse, then brace-matched extraction. A
// completion with no recoverable object is a parse failure, not retried.
func parseRanking(raw string) (ranking, error) {
	clean := stripFences(raw)

	var r ranking
	if err := json.Unmarshal([]byte(clean), &r); err == nil {
		return r, nil
	}

	obj, ok := extractObject(clean)
	if !ok {
		return ranking{}, fmt.Errorf("analyze: no ranking object in completion")
	}
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return ranking{}, fmt.Errorf("analyze: parse extracted ranking: %w", err)
	}
	return r, nil
}
