// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"strings"
	"unicode"
)

// stripFences removes a surrounding markdown code fence, and its language
// tag, from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && isTag(s[:nl]) {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isTag(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		if !isLetter(r) {
			return false
		}
	}
	return true
}

// fencedBlock returns the contents of the first ```json (or bare ```) block
// found anywhere in s.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start:]
	end := strings.Index(rest[3:], "```")
	if end < 0 {
		return "", false
	}
	return stripFences(rest[:end+6]), true
}

// firstObject returns the first balanced {...} span in s, ignoring braces
// that appear inside string literals.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
		switch ch {
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

// repairJSON fixes the formatting slips small models make most often:
// keys missing their opening quote (`, type":`), bare keys (`{label:`) and
// trailing commas before a closing bracket. String contents are left alone.
func repairJSON(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+32)
	inString := false

	for i := 0; i < len(in); i++ {
		ch := in[i]
		if inString {
			out = append(out, ch)
			switch ch {
			case '\\':
				if i+1 < len(in) {
					i++
					out = append(out, in[i])
				}
			case '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			out = append(out, ch)
		case ',':
			if j := skipSpace(in, i+1); j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue
			}
			out = append(out, ch)
			out, i = quoteKey(in, i+1, out)
		case '{':
			out = append(out, ch)
			out, i = quoteKey(in, i+1, out)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

// quoteKey copies the whitespace at in[start:] and, if an unquoted or
// half-quoted key follows, emits it properly quoted. It returns the index
// of the last rune consumed.
func quoteKey(in []rune, start int, out []rune) ([]rune, int) {
	j := skipSpace(in, start)
	out = append(out, in[start:j]...)
	if j >= len(in) || !isLetter(in[j]) {
		return out, j - 1
	}

	k := j
	for k < len(in) && (isLetter(in[k]) || unicode.IsDigit(in[k]) || in[k] == '_') {
		k++
	}
	key := in[j:k]
	switch {
	case k+1 < len(in) && in[k] == '"' && in[k+1] == ':':
		out = append(out, '"')
		out = append(out, key...)
		out = append(out, '"')
		return out, k
	case k < len(in) && in[k] == ':':
		out = append(out, '"')
		out = append(out, key...)
		out = append(out, '"')
		return out, k - 1
	}
	return out, j - 1
}

func skipSpace(in []rune, i int) int {
	for i < len(in) && unicode.IsSpace(in[i]) {
		i++
	}
	return i
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
