// Package domain provides the sentence corpus that echildren learn from.
//
// A Store is loaded once by Initialize and is read-only afterwards, so any
// number of trials may sample from it concurrently.
package domain

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/echild-lab/echild/internal/sentence"
)

var (
	// ErrUnknownGrammar is matched by UnknownGrammarError.
	ErrUnknownGrammar = errors.New("unknown grammar")
	// ErrNotInitialized is returned when sampling before Initialize.
	ErrNotInitialized = errors.New("domain not initialized")
	// ErrNoNoiseSentence is returned when every sentence in the corpus also
	// belongs to the target language.
	ErrNoNoiseSentence = errors.New("no sentence outside the target language")
)

// UnknownGrammarError reports a grammar id absent from the corpus.
type UnknownGrammarError struct {
	Grammar int
}

func (e *UnknownGrammarError) Error() string {
	return fmt.Sprintf("grammar %d not found in domain", e.Grammar)
}

func (e *UnknownGrammarError) Unwrap() error { return ErrUnknownGrammar }

// Corpus supplies sentences for a grammar.
type Corpus interface {
	// Initialize loads the corpus. It must complete before any sampling.
	Initialize(learningRate, conservativeRate float64) error
	// SentenceInLanguage samples a sentence of the grammar's language.
	SentenceInLanguage(rng *rand.Rand, grammarID int) (sentence.Sentence, error)
	// SentenceNotInLanguage samples a sentence of some other grammar that is
	// not also a sentence of grammarID.
	SentenceNotInLanguage(rng *rand.Rand, grammarID int) (sentence.Sentence, error)
}

// Entry is one row of the corpus.
type Entry struct {
	Grammar    int    `json:"grammar"`
	Inflection string `json:"inflection"`
	Sentence   string `json:"sentence"`
}

// maxNoiseAttempts bounds rejection sampling before falling back to a scan.
const maxNoiseAttempts = 64

type tagged struct {
	grammar int
	s       sentence.Sentence
}

type index struct {
	byGrammar map[int][]sentence.Sentence
	texts     map[int]map[string]struct{}
	all       []tagged

	learningRate     float64
	conservativeRate float64
}

// Store is the default Corpus implementation.
type Store struct {
	load func() ([]Entry, error)

	initMu sync.Mutex
	idx    atomic.Pointer[index]
}

// NewMemory returns a Store backed by the given entries.
func NewMemory(entries []Entry) *Store {
	cp := append([]Entry(nil), entries...)
	return &Store{load: func() ([]Entry, error) { return cp, nil }}
}

// Initialize builds the sampling index. Calling it again reloads the corpus.
func (s *Store) Initialize(learningRate, conservativeRate float64) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	entries, err := s.load()
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}

	idx := &index{
		byGrammar:        make(map[int][]sentence.Sentence),
		texts:            make(map[int]map[string]struct{}),
		all:              make([]tagged, 0, len(entries)),
		learningRate:     learningRate,
		conservativeRate: conservativeRate,
	}
	for _, e := range entries {
		sent := sentence.New(strconv.Itoa(e.Grammar), e.Inflection, e.Sentence)
		idx.byGrammar[e.Grammar] = append(idx.byGrammar[e.Grammar], sent)
		set, ok := idx.texts[e.Grammar]
		if !ok {
			set = make(map[string]struct{})
			idx.texts[e.Grammar] = set
		}
		set[e.Sentence] = struct{}{}
		idx.all = append(idx.all, tagged{grammar: e.Grammar, s: sent})
	}

	s.idx.Store(idx)
	return nil
}

// Rates returns the learning rates recorded by Initialize.
func (s *Store) Rates() (learningRate, conservativeRate float64) {
	idx := s.idx.Load()
	if idx == nil {
		return 0, 0
	}
	return idx.learningRate, idx.conservativeRate
}

// Grammars returns the number of distinct grammars in the corpus.
func (s *Store) Grammars() int {
	idx := s.idx.Load()
	if idx == nil {
		return 0
	}
	return len(idx.byGrammar)
}

// Size returns the number of sentences in the corpus.
func (s *Store) Size() int {
	idx := s.idx.Load()
	if idx == nil {
		return 0
	}
	return len(idx.all)
}

// HasGrammar reports whether grammarID is part of the corpus.
func (s *Store) HasGrammar(grammarID int) bool {
	idx := s.idx.Load()
	if idx == nil {
		return false
	}
	_, ok := idx.byGrammar[grammarID]
	return ok
}

// SentenceInLanguage implements Corpus.
func (s *Store) SentenceInLanguage(rng *rand.Rand, grammarID int) (sentence.Sentence, error) {
	idx := s.idx.Load()
	if idx == nil {
		return sentence.Sentence{}, ErrNotInitialized
	}
	sents, ok := idx.byGrammar[grammarID]
	if !ok {
		return sentence.Sentence{}, &UnknownGrammarError{Grammar: grammarID}
	}
	return sents[rng.IntN(len(sents))], nil
}

// SentenceNotInLanguage implements Corpus.
func (s *Store) SentenceNotInLanguage(rng *rand.Rand, grammarID int) (sentence.Sentence, error) {
	idx := s.idx.Load()
	if idx == nil {
		return sentence.Sentence{}, ErrNotInitialized
	}
	own, ok := idx.texts[grammarID]
	if !ok {
		return sentence.Sentence{}, &UnknownGrammarError{Grammar: grammarID}
	}

	for range maxNoiseAttempts {
		c := idx.all[rng.IntN(len(idx.all))]
		if c.grammar == grammarID {
			continue
		}
		if _, inLang := own[c.s.Text()]; inLang {
			continue
		}
		return c.s, nil
	}

	// Dense overlap: reservoir-sample over the eligible sentences.
	var (
		picked sentence.Sentence
		seen   int
	)
	for _, c := range idx.all {
		if c.grammar == grammarID {
			continue
		}
		if _, inLang := own[c.s.Text()]; inLang {
			continue
		}
		seen++
		if rng.IntN(seen) == 0 {
			picked = c.s
		}
	}
	if seen == 0 {
		return sentence.Sentence{}, fmt.Errorf("grammar %d: %w", grammarID, ErrNoNoiseSentence)
	}
	return picked, nil
}
