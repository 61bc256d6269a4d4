// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package decoder extracts the JSON payload buried in an LLM's raw text
// response. Models wrap their output in markdown fences, preambles and
// postambles; the decoder digs the payload out with a fixed fallback order:
//
//  1. fenced ```json (or bare ```) code block
//  2. first balanced [...] array
//  3. first balanced {...} object
//  4. the raw trimmed text, as a last resort
//
// The fallback order is part of the service contract and is unit-tested
// against literal fixture strings, never against a live model.
package decoder

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no parseable JSON payload can be located.
var ErrNoJSON = errors.New("no JSON payload found in response")

// ExtractJSON returns the first parseable JSON document inside raw,
// following the package's fallback order. The returned string is always
// valid JSON; callers unmarshal it into their own shapes.
func ExtractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrNoJSON
	}

	if fenced, ok := extractFenced(trimmed); ok {
		if json.Valid([]byte(fenced)) {
			return fenced, nil
		}
	}

	if arr, ok := extractBalanced(trimmed, '[', ']'); ok {
		if json.Valid([]byte(arr)) {
			return arr, nil
		}
	}

	if obj, ok := extractBalanced(trimmed, '{', '}'); ok {
		if json.Valid([]byte(obj)) {
			return obj, nil
		}
	}

	return "", ErrNoJSON
}

// ExtractJSONWithFallback behaves like ExtractJSON but never fails: when no
// parseable JSON exists, it returns the trimmed raw text and false. The
// caller decides how to degrade.
func ExtractJSONWithFallback(raw string) (string, bool) {
	if payload, err := ExtractJSON(raw); err == nil {
		return payload, true
	}
	return strings.TrimSpace(raw), false
}

// extractFenced pulls the body of the first markdown code fence. A ```json
// language tag (any case) is accepted, as is a bare fence.
func extractFenced(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start == -1 {
		return "", false
	}
	rest := s[start+3:]

	// Skip an optional language tag on the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || strings.EqualFold(tag, "json") {
			rest = rest[nl+1:]
		} else if !strings.HasPrefix(tag, "{") && !strings.HasPrefix(tag, "[") {
			// Fence for some other language; not our payload.
			return "", false
		}
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// extractBalanced scans for the first balanced open..close run, tracking
// string literals and escapes so braces inside quoted text don't miscount.
func extractBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// Delimiters inside strings don't count.
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
