package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// fencePattern matches the body of the first markdown code fence.
var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \\t]*\\n?(.*?)```")

// Sanitize turns a raw generation into text that should parse as JSON:
// the body of the first code fence (else the first balanced top-level
// object, else the raw text), with // comments and trailing commas removed.
// It is pure and idempotent.
func Sanitize(raw string) string {
	candidate := raw
	if m := fencePattern.FindStringSubmatch(raw); len(m) > 1 {
		candidate = m[1]
	}
	if span, ok := balancedSpan(candidate, '{', '}'); ok {
		candidate = span
	}
	return cleanJSON(strings.TrimSpace(candidate))
}

// ExtractJSONArray extracts a JSON array from a response string, or "".
func ExtractJSONArray(content string) string {
	candidate := content
	if m := fencePattern.FindStringSubmatch(content); len(m) > 1 {
		candidate = m[1]
	}
	span, ok := balancedSpan(candidate, '[', ']')
	if !ok {
		return ""
	}
	return cleanJSON(span)
}

// DecodeJSON sanitizes raw and unmarshals it into v. When the sanitized
// text is not valid JSON it is passed through jsonrepair and decoded once
// more. Failures are returned as InvalidError.
func DecodeJSON(raw string, v any) error {
	text := Sanitize(raw)
	if text == "" {
		return NewInvalidError(fmt.Errorf("no JSON found in response"))
	}

	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}

	repaired, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return NewInvalidError(fmt.Errorf("parse response JSON: %w", err))
	}
	if err2 := json.Unmarshal([]byte(repaired), v); err2 != nil {
		return NewInvalidError(fmt.Errorf("parse repaired response JSON: %w", err2))
	}
	return nil
}

// balancedSpan returns the first top-level open...close span of s. Braces
// inside strings and // comments are ignored. When the span never closes,
// the text from the opening brace to the end is returned so a repair pass
// can complete it; ok is false only when s has no opening brace.
func balancedSpan(s string, open, close byte) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch {
		case ch == '"':
			if start >= 0 {
				inString = true
			}
		case ch == '/' && i+1 < len(s) && s[i+1] == '/' && start >= 0:
			if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(s)
			}
		case ch == open:
			if start < 0 {
				start = i
			}
			depth++
		case ch == close && start >= 0:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	if start < 0 {
		return "", false
	}
	return s[start:], true
}

// cleanJSON removes JavaScript-style comments and trailing commas from JSON.
// LLMs commonly produce these invalid JSON artifacts.
func cleanJSON(raw string) string {
	// Remove // comments that are NOT inside JSON string values.
	// Strategy: process line by line, only strip comments outside of strings.
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	return stripTrailingCommas(strings.Join(cleaned, "\n"))
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
// For example:
//
//	"EF 10km",             // easy day        → "EF 10km",
//	"url": "http://x.org"  // comment         → "url": "http://x.org"
//	"url": "http://x.org"                     → "url": "http://x.org" (no change)
func stripLineComment(line string) string {
	// Fast path: no // at all
	if !strings.Contains(line, "//") {
		return line
	}

	// Walk the line character by character, tracking whether we're inside a string.
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// stripTrailingCommas drops a comma that is followed, after whitespace, by
// } or ]. Commas inside strings are kept.
func stripTrailingCommas(s string) string {
	if !strings.Contains(s, ",") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			b.WriteByte(ch)
			continue
		}
		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}
