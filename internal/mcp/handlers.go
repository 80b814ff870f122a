package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/echild-lab/echild/internal/config"
	"github.com/echild-lab/echild/internal/domain"
	"github.com/echild-lab/echild/internal/experiment"
	"github.com/echild-lab/echild/internal/pathutil"
	"github.com/echild-lab/echild/internal/ratelimit"
	"github.com/echild-lab/echild/internal/results"
	"github.com/echild-lab/echild/internal/sanitize"
	"github.com/echild-lab/echild/internal/sentence"
	"github.com/echild-lab/echild/internal/sweep"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool sizes used when a sweep request leaves them unset. They are far below
// the CLI defaults so an interactive call returns in seconds.
const (
	defaultSweepSentences = 1000
	defaultSweepEChildren = 10
	maxClassifySentences  = 1000
	toolStatusSuccess     = "success"
	toolStatusError       = "error"
)

// registerTools registers all echild MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "echild_classify",
		Description: "Locate the O1, O2, P and O3 markers of sentences and report whether their oblique arguments are in non-canonical order",
	}, s.handleClassify)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "echild_sweep",
		Description: "Run a small echild parameter sweep and return mean grammar weights per language and noise level",
	}, s.handleSweep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "echild_summary",
		Description: "Summarize the runs stored in an echild result database",
	}, s.handleSummary)
}

// auditTool logs one tool invocation.
func (s *Server) auditTool(tool string, start time.Time, err error, attrs ...any) {
	status := toolStatusSuccess
	if err != nil {
		status = toolStatusError
		attrs = append(attrs, "error", err)
	}
	attrs = append([]any{"tool", tool, "status", status, "duration_ms", time.Since(start).Milliseconds()}, attrs...)
	s.logger.Info("mcp tool call", attrs...)
}

func (s *Server) handleClassify(ctx context.Context, req *sdk.CallToolRequest, args ClassifyInput) (_ *sdk.CallToolResult, _ ClassifyOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("echild_classify", start, retErr, "sentences", len(args.Sentences))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "echild_classify"); err != nil {
		return nil, ClassifyOutput{}, err
	}
	if len(args.Sentences) == 0 {
		return nil, ClassifyOutput{}, errors.New("at least one sentence is required")
	}
	if len(args.Sentences) > maxClassifySentences {
		return nil, ClassifyOutput{}, fmt.Errorf("too many sentences: %d (max %d)", len(args.Sentences), maxClassifySentences)
	}

	out := ClassifyOutput{Sentences: make([]SentenceClassification, 0, len(args.Sentences))}
	for _, text := range args.Sentences {
		out.Sentences = append(out.Sentences, Classify(sanitize.Sentence(text)))
	}
	return nil, out, nil
}

// Classify reports the marker positions and the oblique-order flag of text.
func Classify(text string) SentenceClassification {
	sent := sentence.New("", "", text)
	tokens := sent.Tokens()
	pos := sentence.MarkerPositions(tokens)
	return SentenceClassification{
		Text:                sent.Text(),
		Tokens:              tokens,
		O1:                  pos.O1,
		O2:                  pos.O2,
		P:                   pos.P,
		O3:                  pos.O3,
		NonCanonicalOblique: sent.NonCanonicalOblique(),
	}
}

func (s *Server) handleSweep(ctx context.Context, req *sdk.CallToolRequest, args SweepInput) (_ *sdk.CallToolResult, _ SweepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("echild_sweep", start, retErr,
			"languages", args.Languages, "num_sentences", args.NumSentences, "num_echildren", args.NumEChildren)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "echild_sweep"); err != nil {
		return nil, SweepOutput{}, err
	}

	params, err := s.sweepParameters(args)
	if err != nil {
		return nil, SweepOutput{}, err
	}
	if draws := int64(params.NumTrials()) * int64(params.NumSentences); draws > s.maxDraws {
		return nil, SweepOutput{}, fmt.Errorf("sweep too large: %d sentence draws (max %d); run it with the echild CLI instead", draws, s.maxDraws)
	}

	cfg := sweep.Config{Params: params, Logger: s.logger}
	if len(args.Corpus) > 0 {
		entries := make([]domain.Entry, 0, len(args.Corpus))
		for i, e := range args.Corpus {
			text := sanitize.Sentence(e.Sentence)
			if text == "" {
				return nil, SweepOutput{}, fmt.Errorf("corpus entry %d: empty sentence", i)
			}
			entries = append(entries, domain.Entry{Grammar: e.Grammar, Inflection: sanitize.Inflection(e.Inflection), Sentence: text})
		}
		cfg.Corpus = domain.NewMemory(entries)
		cfg.CorpusPath = "inline"
	} else {
		if s.corpus == nil {
			return nil, SweepOutput{}, errors.New("no corpus configured; pass an inline corpus or start the server with --corpus")
		}
		// The file-backed corpus is shared between calls.
		s.sweepMu.Lock()
		defer s.sweepMu.Unlock()
		cfg.Corpus = s.corpus
		cfg.CorpusPath = s.corpusPath
	}

	out := SweepOutput{}
	if args.Save {
		if s.resultsDB == "" {
			return nil, SweepOutput{}, errors.New("no result database configured; start the server with --output")
		}
		if err := os.MkdirAll(filepath.Dir(s.resultsDB), 0755); err != nil {
			return nil, SweepOutput{}, fmt.Errorf("failed to create output directory: %w", err)
		}
		sink, err := results.NewSQLiteSink(s.resultsDB)
		if err != nil {
			return nil, SweepOutput{}, err
		}
		defer func() {
			if err := sink.Close(); err != nil && retErr == nil {
				retErr = fmt.Errorf("failed to close result database: %w", err)
			}
		}()
		cfg.Sink = sink
		out.Saved = s.resultsDB
	}

	outcome, err := sweep.Run(ctx, cfg)
	if err != nil {
		return nil, SweepOutput{}, err
	}

	out.RunID = outcome.Run.ID
	out.Trials = outcome.Completed
	out.DurationMs = outcome.Elapsed.Milliseconds()
	out.Groups = outcome.Groups
	return nil, out, nil
}

// sweepParameters fills in the defaults of a sweep request and validates it.
func (s *Server) sweepParameters(args SweepInput) (experiment.Parameters, error) {
	cfg := config.Default()
	cfg.Experiment.NumSentences = defaultSweepSentences
	cfg.Experiment.NumEChildren = defaultSweepEChildren
	cfg.Experiment.Workers = s.workers

	if len(args.Languages) > 0 {
		cfg.Experiment.Languages = args.Languages
	}
	if len(args.NoiseLevels) > 0 {
		cfg.Experiment.NoiseLevels = args.NoiseLevels
	}
	if args.Rate != nil {
		cfg.Experiment.Rate = *args.Rate
	}
	if args.ConservativeRate != nil {
		cfg.Experiment.ConservativeRate = *args.ConservativeRate
	}
	if args.NumSentences > 0 {
		cfg.Experiment.NumSentences = args.NumSentences
	}
	if args.NumEChildren > 0 {
		cfg.Experiment.NumEChildren = args.NumEChildren
	}

	if err := cfg.Validate(); err != nil {
		return experiment.Parameters{}, err
	}
	return cfg.Parameters()
}

func (s *Server) handleSummary(ctx context.Context, req *sdk.CallToolRequest, args SummaryInput) (_ *sdk.CallToolResult, _ SummaryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("echild_summary", start, retErr, "run_id", args.RunID)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "echild_summary"); err != nil {
		return nil, SummaryOutput{}, err
	}

	db := args.Database
	if db == "" {
		db = s.resultsDB
	}
	if db == "" {
		return nil, SummaryOutput{}, errors.New("no result database given")
	}
	if args.Database != "" {
		if s.resultsDB == "" {
			return nil, SummaryOutput{}, errors.New("no result directory configured; start the server with --output")
		}
		if err := pathutil.ValidatePath(db, []string{filepath.Dir(s.resultsDB)}); err != nil {
			return nil, SummaryOutput{}, err
		}
	}
	if _, err := os.Stat(db); err != nil {
		return nil, SummaryOutput{}, fmt.Errorf("result database %s not found", pathutil.RedactPath(db))
	}

	runs, err := results.Runs(ctx, db)
	if err != nil {
		return nil, SummaryOutput{}, err
	}
	groups, err := results.ReadSummary(ctx, db, args.RunID)
	if err != nil {
		return nil, SummaryOutput{}, err
	}

	out := SummaryOutput{Runs: make([]RunItem, 0, len(runs)), Groups: groups}
	for _, run := range runs {
		out.Runs = append(out.Runs, RunItem{
			ID:           run.ID,
			StartedAt:    run.StartedAt.Format(time.RFC3339),
			CorpusPath:   run.CorpusPath,
			NumTrials:    run.NumTrials,
			Languages:    run.Params.Languages,
			NoiseLevels:  run.Params.NoiseLevels,
			NumSentences: run.Params.NumSentences,
			NumEChildren: run.Params.NumEChildren,
		})
	}
	if out.Groups == nil {
		out.Groups = []results.Group{}
	}
	return nil, out, nil
}
