// Package sweep runs a complete simulation: it expands the experiment into
// trials, executes them on a worker pool and delivers every result to a sink.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/echild-lab/echild/internal/domain"
	"github.com/echild-lab/echild/internal/experiment"
	"github.com/echild-lab/echild/internal/learner"
	"github.com/echild-lab/echild/internal/logging"
	"github.com/echild-lab/echild/internal/progress"
	"github.com/echild-lab/echild/internal/results"
	"github.com/echild-lab/echild/internal/scheduler"
	"github.com/echild-lab/echild/internal/trial"
)

// Config describes one sweep.
type Config struct {
	Params     experiment.Parameters
	Corpus     domain.Corpus
	CorpusPath string

	// Sink receives the run and every result. Nil keeps results in the
	// returned summary only.
	Sink results.Sink

	// Logger receives progress and per-trial output. Nil discards it.
	Logger *slog.Logger

	// TrialLog receives one entry per finished trial. Nil disables it.
	TrialLog *logging.TrialLogger

	// NewLearner overrides the default NDChild learner.
	NewLearner learner.Factory

	// ProgressEvery overrides the progress logging interval.
	ProgressEvery int
}

// Outcome reports what a sweep produced.
type Outcome struct {
	Run       results.RunInfo `json:"run"`
	Completed int             `json:"completed"`
	Elapsed   time.Duration   `json:"elapsed"`
	Groups    []results.Group `json:"groups"`
}

// Run executes the sweep. Parameter errors are reported before any trial
// starts. On a fatal trial error the outcome still describes the results
// delivered so far.
func Run(ctx context.Context, cfg Config) (Outcome, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	params := cfg.Params
	if err := params.Validate(); err != nil {
		return Outcome{}, err
	}
	if cfg.Corpus == nil {
		return Outcome{}, errors.New("no corpus configured")
	}

	started := time.Now()
	if err := cfg.Corpus.Initialize(params.LearningRate, params.ConservativeRate); err != nil {
		return Outcome{}, fmt.Errorf("failed to initialize corpus: %w", err)
	}
	logger.Debug("corpus initialized", "elapsed", time.Since(started).Round(time.Millisecond))

	runner := trial.NewRunner(cfg.Corpus, logger)
	if cfg.NewLearner != nil {
		runner.NewLearner = cfg.NewLearner
	}

	out := Outcome{Run: results.NewRunInfo(params, cfg.CorpusPath)}
	if cfg.Sink != nil {
		if err := cfg.Sink.WriteRun(ctx, out.Run); err != nil {
			return out, fmt.Errorf("failed to record run: %w", err)
		}
	}

	logger.Info("starting simulation",
		"run", out.Run.ID,
		"trials", out.Run.NumTrials,
		"workers", params.NumWorkers,
		"sentences", params.NumSentences)

	pool := scheduler.New(params.NumWorkers, runner.Run)
	stream := pool.Run(ctx, experiment.Trials(params))
	defer stream.Close()

	rep := progress.NewReporter("running simulations", out.Run.NumTrials, logger)
	rep.Every = cfg.ProgressEvery

	var acc results.Accumulator
	for r, err := range progress.Observe(stream.All(), rep) {
		if err != nil {
			out.Elapsed = time.Since(started)
			out.Groups = acc.Groups()
			return out, fmt.Errorf("simulation failed after %d of %d trials: %w", out.Completed, out.Run.NumTrials, err)
		}
		if cfg.Sink != nil {
			if err := cfg.Sink.Write(ctx, r); err != nil {
				out.Elapsed = time.Since(started)
				out.Groups = acc.Groups()
				return out, fmt.Errorf("failed to write result: %w", err)
			}
		}
		acc.Add(r)
		out.Completed++

		cfg.TrialLog.Log(map[string]any{
			"run":         out.Run.ID,
			"language":    r.Params.Language,
			"noise":       r.Params.Noise,
			"duration_ms": r.Duration.Milliseconds(),
			"noise_draws": r.NoiseDraws,
			"grammar":     r.Grammar,
		})
		logger.Log(ctx, logging.LevelTrace, "trial finished", "params", r.Params.String(), "grammar", r.Grammar)
	}

	out.Elapsed = time.Since(started)
	out.Groups = acc.Groups()
	logger.Info("simulation complete", "run", out.Run.ID, "completed", out.Completed, "elapsed", out.Elapsed.Round(time.Millisecond))
	return out, nil
}
