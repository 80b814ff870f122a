// Package sanitize normalizes sentence text received from MCP clients before
// it reaches the classifier or an inline corpus.
package sanitize

import (
	"strings"
	"unicode"
)

// MaxSentenceLength bounds a sanitized sentence, in bytes.
const MaxSentenceLength = 1024

// MaxInflectionLength bounds an illocution tag such as DEC or Q.
const MaxInflectionLength = 8

// Sentence strips control characters, collapses whitespace to single spaces
// and truncates the result to MaxSentenceLength on a token boundary.
func Sentence(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}

	s := b.String()
	if len(s) <= MaxSentenceLength {
		return s
	}
	s = s[:MaxSentenceLength]
	if i := strings.LastIndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return strings.ToValidUTF8(s, "")
}

// Inflection keeps the ASCII letters of an illocution tag, upper-cased.
func Inflection(input string) string {
	var b strings.Builder
	for _, r := range input {
		if b.Len() == MaxInflectionLength {
			break
		}
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
