package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/infrastructure/metrics"
)

// jsonLayer is one attempt at reading a JSON object out of model output.
// Layers run in order and the first success wins.
type jsonLayer struct {
	name  string
	parse func(text string) (map[string]any, error)
}

var jsonLayers = []jsonLayer{
	{name: "direct", parse: parseDirect},
	{name: "first-object", parse: parseFirstObject},
	{name: "strip-prose", parse: parseStrippedProse},
	{name: "repair", parse: parseRepaired},
}

var errNoObject = errors.New("no JSON object found")

// ParseStructured extracts a JSON object from free-form model text.
func ParseStructured(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		metrics.IncParseOutcome("json", "failed")
		return nil, &entity.UnparsableResponseError{Raw: text, Reason: "empty response"}
	}

	var errs []string
	for _, layer := range jsonLayers {
		v, err := layer.parse(trimmed)
		if err == nil {
			metrics.IncParseOutcome("json-"+layer.name, "accepted")
			return v, nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", layer.name, err))
	}

	metrics.IncParseOutcome("json", "failed")
	return nil, &entity.UnparsableResponseError{Raw: text, Reason: strings.Join(errs, "; ")}
}

func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %T, not an object", v)
	}
	return obj, nil
}

func parseDirect(text string) (map[string]any, error) {
	return decodeObject(text)
}

func parseFirstObject(text string) (map[string]any, error) {
	span, ok := firstObjectSpan(text)
	if !ok {
		return nil, errNoObject
	}
	return decodeObject(span)
}

// parseStrippedProse drops everything before the first brace and after the
// last one.
func parseStrippedProse(text string) (map[string]any, error) {
	span, ok := outerBraces(text)
	if !ok {
		return nil, errNoObject
	}
	return decodeObject(span)
}

func parseRepaired(text string) (map[string]any, error) {
	span, ok := outerBraces(text)
	if !ok {
		start := strings.Index(text, "{")
		if start < 0 {
			return nil, errNoObject
		}
		span = text[start:]
	}
	return decodeObject(RepairJSON(span))
}

// RepairJSON applies the textual fixes models most often need: line
// comments, single-quoted strings, bare keys and trailing commas.
func RepairJSON(s string) string {
	s = stripLineComments(s)
	s = singleToDoubleQuotes(s)
	return quoteKeysAndTrimCommas(s)
}

// firstObjectSpan returns the first balanced top-level {...} span, honouring
// string literals and escapes.
func firstObjectSpan(s string) (string, bool) {
	depth := 0
	start := -1
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
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func outerBraces(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func stripLineComments(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return strings.Join(lines, "\n")
}

// stripLineComment removes a // comment that is not inside a string.
func stripLineComment(line string) string {
	inString := false
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				inString = false
			}
			continue
		}
		if c == '"' || c == '\'' {
			inString = true
			quote = c
			continue
		}
		if c == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// singleToDoubleQuotes rewrites '...' string literals as "..." while leaving
// apostrophes inside double-quoted strings alone.
func singleToDoubleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble, inSingle := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inDouble:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				inDouble = false
			}
		case inSingle:
			switch c {
			case '\\':
				if i+1 < len(s) && s[i+1] == '\'' {
					b.WriteByte('\'')
					i++
				} else {
					b.WriteByte(c)
				}
			case '"':
				b.WriteString(`\"`)
			case '\'':
				b.WriteByte('"')
				inSingle = false
			default:
				b.WriteByte(c)
			}
		case c == '"':
			inDouble = true
			b.WriteByte(c)
		case c == '\'':
			inSingle = true
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// quoteKeysAndTrimCommas quotes bare object keys and drops commas right
// before a closing bracket. Input must already use double quotes only;
// string contents are copied untouched.
func quoteKeysAndTrimCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inString := false
	// afterOpen is true while the last significant byte was '{' or ','.
	afterOpen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			afterOpen = false
			b.WriteByte(c)
		case c == ',':
			j := skipSpace(s, i+1)
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
			afterOpen = true
			b.WriteByte(c)
		case c == '{':
			afterOpen = true
			b.WriteByte(c)
		case afterOpen && isKeyStart(c):
			j := i + 1
			for j < len(s) && isKeyByte(s[j]) {
				j++
			}
			if k := skipSpace(s, j); k < len(s) && s[k] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:j])
				b.WriteByte('"')
			} else {
				b.WriteString(s[i:j])
			}
			i = j - 1
			afterOpen = false
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			b.WriteByte(c)
		default:
			afterOpen = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isKeyStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKeyByte(c byte) bool {
	return isKeyStart(c) || c == '-' || (c >= '0' && c <= '9')
}
