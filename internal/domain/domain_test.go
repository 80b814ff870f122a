package domain

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func testEntries() []Entry {
	return []Entry{
		{Grammar: 1, Inflection: "DEC", Sentence: "S Verb O1"},
		{Grammar: 1, Inflection: "Q", Sentence: "S Verb O1 ka"},
		{Grammar: 2, Inflection: "DEC", Sentence: "S Verb O1"}, // shared with grammar 1
		{Grammar: 2, Inflection: "DEC", Sentence: "O1 Verb S"},
		{Grammar: 3, Inflection: "IMP", Sentence: "Verb O1"},
	}
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func initialized(t *testing.T, entries []Entry) *Store {
	t.Helper()
	s := NewMemory(entries)
	if err := s.Initialize(0.9, 0.0005); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func TestStore_NotInitialized(t *testing.T) {
	s := NewMemory(testEntries())
	rng := newTestRand()

	if _, err := s.SentenceInLanguage(rng, 1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SentenceInLanguage before Initialize: err = %v, want ErrNotInitialized", err)
	}
	if _, err := s.SentenceNotInLanguage(rng, 1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SentenceNotInLanguage before Initialize: err = %v, want ErrNotInitialized", err)
	}
	if s.Size() != 0 || s.Grammars() != 0 || s.HasGrammar(1) {
		t.Error("uninitialized store should report an empty corpus")
	}
}

func TestStore_Initialize(t *testing.T) {
	s := initialized(t, testEntries())

	if s.Size() != 5 {
		t.Errorf("Size() = %d, want 5", s.Size())
	}
	if s.Grammars() != 3 {
		t.Errorf("Grammars() = %d, want 3", s.Grammars())
	}
	if !s.HasGrammar(2) || s.HasGrammar(4) {
		t.Error("HasGrammar returned unexpected membership")
	}
	rate, cons := s.Rates()
	if rate != 0.9 || cons != 0.0005 {
		t.Errorf("Rates() = (%g, %g), want (0.9, 0.0005)", rate, cons)
	}
}

func TestStore_SentenceInLanguage(t *testing.T) {
	s := initialized(t, testEntries())
	rng := newTestRand()

	for range 200 {
		sent, err := s.SentenceInLanguage(rng, 1)
		if err != nil {
			t.Fatalf("SentenceInLanguage: %v", err)
		}
		if sent.Language() != "1" {
			t.Fatalf("sampled sentence from language %q, want 1", sent.Language())
		}
	}
}

func TestStore_SentenceNotInLanguage(t *testing.T) {
	s := initialized(t, testEntries())
	rng := newTestRand()

	seen := make(map[string]bool)
	for range 500 {
		sent, err := s.SentenceNotInLanguage(rng, 1)
		if err != nil {
			t.Fatalf("SentenceNotInLanguage: %v", err)
		}
		if sent.Language() == "1" {
			t.Fatalf("noise sentence came from the target grammar: %q", sent.Text())
		}
		if sent.Text() == "S Verb O1" {
			t.Fatalf("noise sentence %q is also a sentence of the target language", sent.Text())
		}
		seen[sent.Text()] = true
	}
	if !seen["O1 Verb S"] || !seen["Verb O1"] {
		t.Errorf("expected both eligible noise sentences to be sampled, got %v", seen)
	}
}

func TestStore_SentenceNotInLanguage_DenseOverlap(t *testing.T) {
	// Only one of many rows is eligible, forcing the fallback scan.
	entries := []Entry{{Grammar: 1, Inflection: "DEC", Sentence: "S Verb"}}
	for range 500 {
		entries = append(entries, Entry{Grammar: 2, Inflection: "DEC", Sentence: "S Verb"})
	}
	entries = append(entries, Entry{Grammar: 3, Inflection: "DEC", Sentence: "Verb S"})
	s := initialized(t, entries)
	rng := newTestRand()

	for range 20 {
		sent, err := s.SentenceNotInLanguage(rng, 1)
		if err != nil {
			t.Fatalf("SentenceNotInLanguage: %v", err)
		}
		if sent.Text() != "Verb S" {
			t.Fatalf("got %q, want the only eligible sentence", sent.Text())
		}
	}
}

func TestStore_SentenceNotInLanguage_NoneEligible(t *testing.T) {
	s := initialized(t, []Entry{
		{Grammar: 1, Inflection: "DEC", Sentence: "S Verb"},
		{Grammar: 2, Inflection: "DEC", Sentence: "S Verb"},
	})

	_, err := s.SentenceNotInLanguage(newTestRand(), 1)
	if !errors.Is(err, ErrNoNoiseSentence) {
		t.Errorf("err = %v, want ErrNoNoiseSentence", err)
	}
}

func TestStore_UnknownGrammar(t *testing.T) {
	s := initialized(t, testEntries())
	rng := newTestRand()

	_, err := s.SentenceInLanguage(rng, 42)
	var uge *UnknownGrammarError
	if !errors.As(err, &uge) {
		t.Fatalf("SentenceInLanguage(42): err = %v, want *UnknownGrammarError", err)
	}
	if uge.Grammar != 42 {
		t.Errorf("UnknownGrammarError.Grammar = %d, want 42", uge.Grammar)
	}
	if !errors.Is(err, ErrUnknownGrammar) {
		t.Error("UnknownGrammarError should match ErrUnknownGrammar")
	}

	if _, err := s.SentenceNotInLanguage(rng, 42); !errors.Is(err, ErrUnknownGrammar) {
		t.Errorf("SentenceNotInLanguage(42): err = %v, want ErrUnknownGrammar", err)
	}
}

func TestStore_ConcurrentReads(t *testing.T) {
	s := initialized(t, testEntries())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := range 8 {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed))
			for range 1000 {
				if _, err := s.SentenceInLanguage(rng, 2); err != nil {
					errs <- err
					return
				}
				if _, err := s.SentenceNotInLanguage(rng, 2); err != nil {
					errs <- err
					return
				}
			}
		}(uint64(w))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read failed: %v", err)
	}
}

func TestReadFlatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")
	content := strings.Join([]string{
		"# grammar\tillocution\tsentence",
		"611\tDEC\tS Verb O1",
		"",
		"611\tQ\tAux S Verb O1\t1\t2",
		"584\tDEC\tS Aux Verb O1\r",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write corpus: %v", err)
	}

	entries, err := ReadFlatFile(path)
	if err != nil {
		t.Fatalf("ReadFlatFile: %v", err)
	}
	want := []Entry{
		{Grammar: 611, Inflection: "DEC", Sentence: "S Verb O1"},
		{Grammar: 611, Inflection: "Q", Sentence: "Aux S Verb O1"},
		{Grammar: 584, Inflection: "DEC", Sentence: "S Aux Verb O1"},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestReadFlatFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{"too few fields", "611\tDEC\n", ":1:"},
		{"bad grammar id", "611\tDEC\tS Verb\nabc\tDEC\tS Verb\n", ":2:"},
		{"empty sentence", "611\tDEC\t   \n", "empty sentence"},
		{"only comments", "# nothing here\n\n", "no sentences"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "corpus.txt")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("failed to write corpus: %v", err)
			}
			_, err := ReadFlatFile(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestNewFlatFile_MissingFile(t *testing.T) {
	s := NewFlatFile(filepath.Join(t.TempDir(), "missing.txt"))
	if err := s.Initialize(0.9, 0.0005); err == nil {
		t.Error("Initialize with a missing file should fail")
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"English", English, false},
		{"french", French, false},
		{" GERMAN ", German, false},
		{"Japanese", Japanese, false},
		{"1234", 1234, false},
		{"klingon", 0, true},
		{"-3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLanguage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLanguage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLanguage(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestLanguageName(t *testing.T) {
	if got := LanguageName(English); got != "English" {
		t.Errorf("LanguageName(English) = %q, want English", got)
	}
	if got := LanguageName(17); got != "17" {
		t.Errorf("LanguageName(17) = %q, want 17", got)
	}
}
