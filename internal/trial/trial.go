// Package trial runs a single echild simulation.
package trial

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/echild-lab/echild/internal/domain"
	"github.com/echild-lab/echild/internal/experiment"
	"github.com/echild-lab/echild/internal/learner"
	"github.com/echild-lab/echild/internal/sentence"
)

// cancelCheckInterval is how many sentences run between context checks.
const cancelCheckInterval = 4096

// Result is the outcome of one trial.
type Result struct {
	Timestamp      time.Time          `json:"timestamp"`
	Duration       time.Duration      `json:"duration"`
	TargetLanguage int                `json:"target_language"`
	Grammar        map[string]float64 `json:"grammar"`

	Params experiment.TrialParameters `json:"params"`

	InLanguageDraws int `json:"in_language_draws"`
	NoiseDraws      int `json:"noise_draws"`
}

// Error reports a failed trial together with its parameters.
type Error struct {
	Params experiment.TrialParameters
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("trial %s: %v", e.Params, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Runner executes trials against a shared, read-only corpus.
type Runner struct {
	Corpus     domain.Corpus
	NewLearner learner.Factory

	// Logger receives per-trial debug output. Nil disables it.
	Logger *slog.Logger

	// Now and NewRand are injectable for tests.
	Now     func() time.Time
	NewRand func() *rand.Rand
}

// NewRunner returns a Runner using the NDChild learner.
func NewRunner(corpus domain.Corpus, logger *slog.Logger) *Runner {
	return &Runner{
		Corpus:     corpus,
		NewLearner: learner.NewNDChildLearner,
		Logger:     logger,
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) newRand() *rand.Rand {
	if r.NewRand != nil {
		return r.NewRand()
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Run drives a fresh learner through p.NumSentences sentences and packages
// the outcome. Each sentence is drawn from outside the target language with
// probability p.Noise. Any corpus error aborts the trial.
func (r *Runner) Run(ctx context.Context, p experiment.TrialParameters) (Result, error) {
	if r.Logger != nil {
		r.Logger.Debug("running echild", "params", p.String())
	}

	rng := r.newRand()
	child := r.NewLearner(p.Rate, p.ConservativeRate, p.Language)

	var inLang, noise int
	then := r.now()
	for i := range p.NumSentences {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, &Error{Params: p, Err: err}
			}
		}

		var (
			sent sentence.Sentence
			err  error
		)
		if rng.Float64() < p.Noise {
			sent, err = r.Corpus.SentenceNotInLanguage(rng, p.Language)
			noise++
		} else {
			sent, err = r.Corpus.SentenceInLanguage(rng, p.Language)
			inLang++
		}
		if err != nil {
			return Result{}, &Error{Params: p, Err: err}
		}
		child.Consume(sent)
	}
	now := r.now()

	res := Result{
		Timestamp:       now,
		Duration:        now.Sub(then),
		TargetLanguage:  child.TargetLanguage(),
		Grammar:         child.Grammar(),
		Params:          p,
		InLanguageDraws: inLang,
		NoiseDraws:      noise,
	}

	if r.Logger != nil {
		r.Logger.Debug("experiment results",
			"language", res.TargetLanguage,
			"noise", p.Noise,
			"duration", res.Duration,
			"grammar", res.Grammar)
	}
	return res, nil
}
