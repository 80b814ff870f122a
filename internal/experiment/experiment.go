// Package experiment describes parameter sweeps and expands them into
// independent trials.
package experiment

import (
	"errors"
	"fmt"
	"iter"
)

// Default sweep settings.
const (
	DefaultRate             = 0.9
	DefaultConservativeRate = 0.0005
	DefaultNumSentences     = 500000
	DefaultNumEChildren     = 100
)

// DefaultNoiseLevels returns the noise levels swept when none are given.
func DefaultNoiseLevels() []float64 {
	return []float64{0, 0.05, 0.10, 0.25, 0.50}
}

// ErrInvalidParameters is returned by Validate for malformed sweeps.
var ErrInvalidParameters = errors.New("invalid experiment parameters")

// Parameters describes a full sweep.
type Parameters struct {
	Languages        []int     `json:"languages"`
	NoiseLevels      []float64 `json:"noise_levels"`
	LearningRate     float64   `json:"learning_rate"`
	ConservativeRate float64   `json:"conservative_rate"`
	NumSentences     int       `json:"num_sentences"`
	NumEChildren     int       `json:"num_echildren"`
	NumWorkers       int       `json:"num_workers"`
}

// TrialParameters are the inputs of a single echild simulation.
type TrialParameters struct {
	Language         int     `json:"language"`
	Noise            float64 `json:"noise"`
	Rate             float64 `json:"rate"`
	ConservativeRate float64 `json:"conservative_rate"`
	NumSentences     int     `json:"num_sentences"`
}

// String implements fmt.Stringer.
func (t TrialParameters) String() string {
	return fmt.Sprintf("language=%d noise=%g rate=%g conservativerate=%g numberofsentences=%d",
		t.Language, t.Noise, t.Rate, t.ConservativeRate, t.NumSentences)
}

// Validate checks that the sweep can be run.
func (p Parameters) Validate() error {
	if len(p.Languages) == 0 {
		return fmt.Errorf("%w: at least one language is required", ErrInvalidParameters)
	}
	if len(p.NoiseLevels) == 0 {
		return fmt.Errorf("%w: at least one noise level is required", ErrInvalidParameters)
	}
	for _, n := range p.NoiseLevels {
		// written so NaN fails too
		if !(n >= 0 && n <= 1) {
			return fmt.Errorf("%w: noise level must be between 0 and 1, got %g", ErrInvalidParameters, n)
		}
	}
	if p.LearningRate < 0 || p.LearningRate > 1 {
		return fmt.Errorf("%w: learning rate must be between 0 and 1, got %g", ErrInvalidParameters, p.LearningRate)
	}
	if p.ConservativeRate < 0 || p.ConservativeRate > 1 {
		return fmt.Errorf("%w: conservative rate must be between 0 and 1, got %g", ErrInvalidParameters, p.ConservativeRate)
	}
	if p.NumSentences < 0 {
		return fmt.Errorf("%w: number of sentences must be non-negative, got %d", ErrInvalidParameters, p.NumSentences)
	}
	if p.NumEChildren < 1 {
		return fmt.Errorf("%w: number of echildren must be positive, got %d", ErrInvalidParameters, p.NumEChildren)
	}
	if p.NumWorkers < 1 {
		return fmt.Errorf("%w: number of workers must be positive, got %d", ErrInvalidParameters, p.NumWorkers)
	}
	return nil
}

// NumTrials returns the number of trials the sweep expands to.
func (p Parameters) NumTrials() int {
	return len(p.Languages) * len(p.NoiseLevels) * p.NumEChildren
}

// Trials lazily enumerates every (language, noise, replication) combination
// exactly once. Languages form the outer loop, noise levels the middle and
// replications the inner one; consumers must not depend on that order.
// Ranging over the returned sequence again restarts it.
func Trials(p Parameters) iter.Seq[TrialParameters] {
	languages := append([]int(nil), p.Languages...)
	noise := append([]float64(nil), p.NoiseLevels...)

	return func(yield func(TrialParameters) bool) {
		for _, lang := range languages {
			for _, n := range noise {
				tp := TrialParameters{
					Language:         lang,
					Noise:            n,
					Rate:             p.LearningRate,
					ConservativeRate: p.ConservativeRate,
					NumSentences:     p.NumSentences,
				}
				for range p.NumEChildren {
					if !yield(tp) {
						return
					}
				}
			}
		}
	}
}
