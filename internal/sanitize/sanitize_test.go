package sanitize

import (
	"strings"
	"testing"
)

func TestSentence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "S Aux Verb O1", "S Aux Verb O1"},
		{"collapses whitespace", "  S\tAux \n Verb   O1  ", "S Aux Verb O1"},
		{"strips control chars", "S\x00 Aux\x1b Verb\x7f", "S Aux Verb"},
		{"only whitespace", " \t\n ", ""},
		{"keeps unicode", "S O1 ÷ P", "S O1 ÷ P"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sentence(tt.input); got != tt.want {
				t.Errorf("Sentence(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSentenceTruncates(t *testing.T) {
	input := strings.Repeat("Verb ", MaxSentenceLength)
	got := Sentence(input)
	if len(got) > MaxSentenceLength {
		t.Fatalf("len = %d, want <= %d", len(got), MaxSentenceLength)
	}
	if strings.HasSuffix(got, " ") || !strings.HasSuffix(got, "Verb") {
		t.Errorf("truncated mid-token: %q", got[len(got)-10:])
	}

	long := strings.Repeat("x", MaxSentenceLength+10)
	if got := Sentence(long); len(got) != MaxSentenceLength {
		t.Errorf("single token len = %d, want %d", len(got), MaxSentenceLength)
	}
}

func TestInflection(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"DEC", "DEC"},
		{" q ", "Q"},
		{"imp\n", "IMP"},
		{"<DEC>", "DEC"},
		{"ABCDEFGHIJ", "ABCDEFGH"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Inflection(tt.input); got != tt.want {
			t.Errorf("Inflection(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
