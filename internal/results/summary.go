package results

import (
	"cmp"
	"iter"
	"slices"

	"github.com/echild-lab/echild/internal/domain"
	"github.com/echild-lab/echild/internal/trial"
)

// Group aggregates the trials of one (language, noise) cell of a sweep.
type Group struct {
	Language     int                `json:"language"`
	LanguageName string             `json:"language_name"`
	Noise        float64            `json:"noise"`
	Count        int                `json:"count"`
	Mean         map[string]float64 `json:"mean"`
}

func newGroup(language int, noise float64) Group {
	return Group{
		Language:     language,
		LanguageName: domain.LanguageName(language),
		Noise:        noise,
		Mean:         make(map[string]float64),
	}
}

type groupKey struct {
	language int
	noise    float64
}

// Accumulator sums trial results per (language, noise). The zero value is
// ready to use. It is not safe for concurrent use.
type Accumulator struct {
	sums map[groupKey]*Group
}

// Add folds r into the running sums.
func (a *Accumulator) Add(r trial.Result) {
	if a.sums == nil {
		a.sums = make(map[groupKey]*Group)
	}
	k := groupKey{r.Params.Language, r.Params.Noise}
	g, ok := a.sums[k]
	if !ok {
		ng := newGroup(k.language, k.noise)
		g = &ng
		a.sums[k] = g
	}
	g.Count++
	for p, w := range r.Grammar {
		g.Mean[p] += w
	}
}

// Groups returns the mean grammar weights per (language, noise), ordered by
// language then noise.
func (a *Accumulator) Groups() []Group {
	groups := make([]Group, 0, len(a.sums))
	for _, sum := range a.sums {
		g := *sum
		g.Mean = make(map[string]float64, len(sum.Mean))
		for p, total := range sum.Mean {
			g.Mean[p] = total / float64(g.Count)
		}
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(a.Language, b.Language); c != 0 {
			return c
		}
		return cmp.Compare(a.Noise, b.Noise)
	})
	return groups
}

// Summarize consumes seq and returns its groups. It stops at the first error.
func Summarize(seq iter.Seq2[trial.Result, error]) ([]Group, error) {
	var acc Accumulator
	for r, err := range seq {
		if err != nil {
			return nil, err
		}
		acc.Add(r)
	}
	return acc.Groups(), nil
}

// Values adapts a slice of results to the sequence Summarize consumes.
func Values(rs []trial.Result) iter.Seq2[trial.Result, error] {
	return func(yield func(trial.Result, error) bool) {
		for _, r := range rs {
			if !yield(r, nil) {
				return
			}
		}
	}
}
