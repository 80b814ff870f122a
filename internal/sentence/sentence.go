// Package sentence parses annotated corpus sentences and classifies their
// surface word order.
//
// Sentences in the corpus are sequences of role tags ("S", "Aux", "Verb",
// "O1", "O2", "P", "O3", "Adv", ...). Tags may carry extra markup, so
// lookups use substring containment rather than exact matches.
package sentence

import "strings"

// Positional markers used to detect topicalized obliques.
const (
	MarkerO1 = "O1"
	MarkerO2 = "O2"
	MarkerP  = "P"
	MarkerO3 = "O3"
)

// Sentence is an immutable, parsed corpus sentence.
type Sentence struct {
	language   string
	inflection string
	text       string
	tokens     []string

	nonCanonicalOblique bool
}

// New parses text into a Sentence for the given language id and
// inflection (illocution) tag.
func New(language, inflection, text string) Sentence {
	tokens := strings.Fields(text)
	return Sentence{
		language:            language,
		inflection:          inflection,
		text:                text,
		tokens:              tokens,
		nonCanonicalOblique: classifyOblique(tokens),
	}
}

// FromTuple builds a Sentence from a (language, inflection, sentence) tuple.
func FromTuple(info [3]string) Sentence {
	return New(info[0], info[1], info[2])
}

// Language returns the source corpus identifier.
func (s Sentence) Language() string { return s.language }

// Inflection returns the grammatical sub-tag (e.g. "DEC", "Q", "IMP").
func (s Sentence) Inflection() string { return s.inflection }

// Text returns the original annotated string.
func (s Sentence) Text() string { return s.text }

// Len returns the number of tokens.
func (s Sentence) Len() int { return len(s.tokens) }

// Tokens returns a copy of the whitespace-separated tokens.
func (s Sentence) Tokens() []string {
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Token returns the i-th token.
func (s Sentence) Token(i int) string { return s.tokens[i] }

// IndexOf returns the position of the first token containing key,
// or -1 if no token contains it.
func (s Sentence) IndexOf(key string) int {
	return IndexOf(s.tokens, key)
}

// Contains reports whether any token contains key.
func (s Sentence) Contains(key string) bool {
	return IndexOf(s.tokens, key) != -1
}

// NonCanonicalOblique reports whether something other than the subject has
// been topicalized, i.e. the sentence leaves canonical argument order.
func (s Sentence) NonCanonicalOblique() bool { return s.nonCanonicalOblique }

// IndexOf returns the index of the first token that contains key as a
// substring, or -1 if none does.
func IndexOf(tokens []string, key string) int {
	for i, tok := range tokens {
		if strings.Contains(tok, key) {
			return i
		}
	}
	return -1
}

// Positions holds the marker indices found in a sentence (-1 when absent).
type Positions struct {
	O1, O2, P, O3 int
}

// MarkerPositions locates the four oblique markers in tokens.
func MarkerPositions(tokens []string) Positions {
	return Positions{
		O1: IndexOf(tokens, MarkerO1),
		O2: IndexOf(tokens, MarkerO2),
		P:  IndexOf(tokens, MarkerP),
		O3: IndexOf(tokens, MarkerO3),
	}
}

// NonCanonicalOblique applies the word-order policy to the marker positions.
//
// The -1 "absent" sentinel participates in the ordering comparisons as a
// plain integer, so partially tagged sentences can match a canonical pattern.
func (p Positions) NonCanonicalOblique() bool {
	switch {
	case p.O1 != -1 && p.O1 < p.O2 && p.O2 < p.P && p.O3 == p.P+1:
		// Subject topicalization, arguments in order.
		return false
	case p.O3 != -1 && p.O3 < p.O2 && p.O2 < p.O1 && p.P == p.O3+1:
		// Mirror order.
		return false
	case p.O1 != -1 && p.O2 != -1 && p.P != -1 && p.O3 != -1:
		return true
	default:
		return false
	}
}

func classifyOblique(tokens []string) bool {
	return MarkerPositions(tokens).NonCanonicalOblique()
}
