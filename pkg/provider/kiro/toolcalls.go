package kiro

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kirogate/kirogate/pkg/provider"
)

const toolCallMarker = "[tool_call:"

// ParseBracketToolCalls extracts inline tool-call markers of the form
//
//	[tool_call:name{"arg": "value"}]
//
// from assistant text. Markers are matched by balanced-brace scanning,
// so argument objects may nest freely; brace counting ignores braces
// inside JSON strings. A marker whose argument object is not valid
// JSON still yields a call, with empty arguments, so one malformed
// marker cannot sink the message.
//
// Markers split across chunk boundaries are not reassembled; a partial
// marker is plain text.
func ParseBracketToolCalls(text string, logger *slog.Logger) []provider.ToolCall {
	if logger == nil {
		logger = slog.Default()
	}
	var calls []provider.ToolCall
	for {
		start := strings.Index(text, toolCallMarker)
		if start < 0 {
			return calls
		}
		rest := text[start+len(toolCallMarker):]

		braceStart := strings.IndexByte(rest, '{')
		if braceStart < 0 {
			return calls
		}
		name := rest[:braceStart]
		if !validToolName(name) {
			text = rest
			continue
		}

		body, ok := matchBraces(rest[braceStart:])
		if !ok || !strings.HasPrefix(rest[braceStart+len(body):], "]") {
			text = rest
			continue
		}

		call := provider.ToolCall{Name: name, Arguments: map[string]any{}}
		if err := json.Unmarshal([]byte(body), &call.Arguments); err != nil {
			logger.Warn("inline tool call arguments are not valid JSON, substituting empty object",
				"tool_name", name, "error", err)
			call.Arguments = map[string]any{}
		}
		calls = append(calls, call)

		text = rest[braceStart+len(body)+1:]
	}
}

// matchBraces returns the prefix of s forming one balanced JSON object,
// starting at the opening brace. Braces inside string literals do not
// count toward the balance.
func matchBraces(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
				return s[:i+1], true
			}
		}
	}
	return "", false
}

func validToolName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
