package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"time"

	"github.com/echild-lab/echild/internal/config"
	"github.com/echild-lab/echild/internal/domain"
	"github.com/echild-lab/echild/internal/learner"
	"github.com/echild-lab/echild/internal/logging"
	"github.com/echild-lab/echild/internal/results"
	"github.com/echild-lab/echild/internal/sweep"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation sweep",
		Long: `Run echildren for every language and noise level and store their final grammars.

Settings come from the config file and ECHILD_* environment variables;
flags given on the command line override both.`,
		Example: `  echild run --corpus COLAG_2011_flat_formatted.txt -e 10 -s 50000
  echild run -n 0,0.1 --languages English,Japanese --format jsonl --compress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			params, err := cfg.Parameters()
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg.Logging.Level)
			jsonOut, _ := cmd.Flags().GetBool("json")

			sink, err := results.Open(cfg.Output.Format, cfg.Output.Path, cfg.Output.Compress)
			if err != nil {
				return err
			}
			trialLog := logging.NewTrialLogger(cfg.Output.Path, cfg.Logging.Level)
			defer trialLog.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			outcome, runErr := sweep.Run(ctx, sweep.Config{
				Params:     params,
				Corpus:     domain.NewFlatFile(cfg.Corpus.Path),
				CorpusPath: cfg.Corpus.Path,
				Sink:       sink,
				Logger:     logger,
				TrialLog:   trialLog,
			})
			if err := sink.Close(); err != nil {
				runErr = errors.Join(runErr, fmt.Errorf("failed to close results: %w", err))
			}
			if runErr != nil {
				return runErr
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"run":       outcome.Run,
					"completed": outcome.Completed,
					"elapsed":   outcome.Elapsed.String(),
					"output":    cfg.Output.Path,
					"format":    cfg.Output.Format,
					"groups":    outcome.Groups,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s: %d echildren in %s\n", outcome.Run.ID, outcome.Completed, outcome.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "Results written to %s (%s)\n\n", cfg.Output.Path, cfg.Output.Format)
			printGroups(out, outcome.Groups)
			return nil
		},
	}

	defaults := config.Default()
	cmd.Flags().Float64P("rate", "r", defaults.Experiment.Rate, "Learning rate")
	cmd.Flags().Float64P("cons-rate", "c", defaults.Experiment.ConservativeRate, "Conservative learning rate")
	cmd.Flags().IntP("num-echildren", "e", defaults.Experiment.NumEChildren, "Number of echildren per language/noise-level")
	cmd.Flags().IntP("num-sents", "s", defaults.Experiment.NumSentences, "Number of sentences consumed per echild")
	cmd.Flags().Float64SliceP("noise-levels", "n", defaults.Experiment.NoiseLevels, "Noise levels to sweep")
	cmd.Flags().IntP("num-procs", "p", runtime.NumCPU(), "Number of concurrently running echildren")
	cmd.Flags().BoolP("verbose", "v", false, "Write debug output and per-echild traces")
	cmd.Flags().StringSlice("languages", defaults.Experiment.Languages, "Languages (names or grammar ids)")
	cmd.Flags().String("corpus", defaults.Corpus.Path, "CoLAG flat-file corpus")
	cmd.Flags().String("output", defaults.Output.Path, "Output directory")
	cmd.Flags().String("format", defaults.Output.Format, "Output format: sqlite, jsonl or csv")
	cmd.Flags().Bool("compress", false, "Gzip jsonl and csv output")

	return cmd
}

// applyRunFlags copies every flag set on the command line into cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.SweepConfig) {
	flags := cmd.Flags()
	if flags.Changed("rate") {
		cfg.Experiment.Rate, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("cons-rate") {
		cfg.Experiment.ConservativeRate, _ = flags.GetFloat64("cons-rate")
	}
	if flags.Changed("num-echildren") {
		cfg.Experiment.NumEChildren, _ = flags.GetInt("num-echildren")
	}
	if flags.Changed("num-sents") {
		cfg.Experiment.NumSentences, _ = flags.GetInt("num-sents")
	}
	if flags.Changed("noise-levels") {
		cfg.Experiment.NoiseLevels, _ = flags.GetFloat64Slice("noise-levels")
	}
	if flags.Changed("num-procs") {
		cfg.Experiment.Workers, _ = flags.GetInt("num-procs")
	}
	if flags.Changed("languages") {
		cfg.Experiment.Languages, _ = flags.GetStringSlice("languages")
	}
	if flags.Changed("corpus") {
		cfg.Corpus.Path, _ = flags.GetString("corpus")
	}
	if flags.Changed("output") {
		cfg.Output.Path, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("compress") {
		cfg.Output.Compress, _ = flags.GetBool("compress")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose && logging.ParseLevel(cfg.Logging.Level) > logging.ParseLevel("debug") {
		cfg.Logging.Level = "debug"
	}
}

// printGroups writes one row per (language, noise) with the mean weight of
// every grammar parameter.
func printGroups(w io.Writer, groups []results.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	params := groupParameters(groups)
	fmt.Fprintf(w, "%-10s %6s %5s", "LANGUAGE", "NOISE", "N")
	for _, p := range params {
		fmt.Fprintf(w, " %6s", p)
	}
	fmt.Fprintln(w)

	for _, g := range groups {
		fmt.Fprintf(w, "%-10s %6.2f %5d", g.LanguageName, g.Noise, g.Count)
		for _, p := range params {
			if v, ok := g.Mean[p]; ok {
				fmt.Fprintf(w, " %6.3f", v)
			} else {
				fmt.Fprintf(w, " %6s", "-")
			}
		}
		fmt.Fprintln(w)
	}
}

// groupParameters lists the parameters present in groups: the learner's
// own parameters in their canonical order, then any others sorted by name.
func groupParameters(groups []results.Group) []string {
	seen := make(map[string]bool)
	for _, g := range groups {
		for p := range g.Mean {
			seen[p] = true
		}
	}

	var params []string
	for _, p := range learner.Parameters {
		if seen[p] {
			params = append(params, p)
			delete(seen, p)
		}
	}
	var rest []string
	for p := range seen {
		rest = append(rest, p)
	}
	slices.Sort(rest)
	return append(params, rest...)
}
