package sweep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/echild-lab/echild/internal/domain"
	"github.com/echild-lab/echild/internal/experiment"
	"github.com/echild-lab/echild/internal/logging"
	"github.com/echild-lab/echild/internal/results"
	"github.com/echild-lab/echild/internal/trial"
)

func testCorpus() *domain.Store {
	return domain.NewMemory([]domain.Entry{
		{Grammar: 1, Inflection: "DEC", Sentence: "S Aux Verb O1"},
		{Grammar: 1, Inflection: "Q", Sentence: "Aux S Verb O1"},
		{Grammar: 2, Inflection: "DEC", Sentence: "S O1 Verb Aux"},
		{Grammar: 2, Inflection: "IMP", Sentence: "Verb O1"},
	})
}

func testParams() experiment.Parameters {
	return experiment.Parameters{
		Languages:        []int{1, 2},
		NoiseLevels:      []float64{0, 0.5},
		LearningRate:     0.9,
		ConservativeRate: 0.0005,
		NumSentences:     50,
		NumEChildren:     3,
		NumWorkers:       2,
	}
}

// memorySink records everything it is given.
type memorySink struct {
	mu      sync.Mutex
	run     results.RunInfo
	results []trial.Result
	failAt  int
	closed  bool
}

func (s *memorySink) WriteRun(_ context.Context, run results.RunInfo) error {
	s.run = run
	return nil
}

func (s *memorySink) Write(_ context.Context, r trial.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.results)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.results = append(s.results, r)
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

func TestRun(t *testing.T) {
	sink := &memorySink{}
	var logBuf bytes.Buffer

	out, err := Run(context.Background(), Config{
		Params:     testParams(),
		Corpus:     testCorpus(),
		CorpusPath: "memory",
		Sink:       sink,
		Logger:     logging.NewLogger("info", &logBuf),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.Completed != 12 || len(sink.results) != 12 {
		t.Errorf("completed %d, sink got %d, want 12", out.Completed, len(sink.results))
	}
	if sink.run.ID != out.Run.ID || sink.run.NumTrials != 12 || sink.run.CorpusPath != "memory" {
		t.Errorf("unexpected run info %+v", sink.run)
	}

	// Each (language, noise) pair appears once per echild.
	counts := make(map[experiment.TrialParameters]int)
	for _, r := range sink.results {
		counts[r.Params]++
		if r.InLanguageDraws+r.NoiseDraws != 50 {
			t.Errorf("trial %s drew %d sentences, want 50", r.Params, r.InLanguageDraws+r.NoiseDraws)
		}
	}
	if len(counts) != 4 {
		t.Errorf("expected 4 distinct trial parameter sets, got %d", len(counts))
	}
	for p, n := range counts {
		if n != 3 {
			t.Errorf("%s ran %d times, want 3", p, n)
		}
	}

	if len(out.Groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(out.Groups))
	}
	for _, g := range out.Groups {
		if g.Count != 3 {
			t.Errorf("group (%d, %g) has %d trials, want 3", g.Language, g.Noise, g.Count)
		}
	}

	if !strings.Contains(logBuf.String(), "simulation complete") {
		t.Errorf("missing completion log in:\n%s", logBuf.String())
	}
	if sink.closed {
		t.Error("Run must leave closing the sink to the caller")
	}
}

func TestRun_InvalidParameters(t *testing.T) {
	params := testParams()
	params.NoiseLevels = []float64{1.5}

	_, err := Run(context.Background(), Config{Params: params, Corpus: testCorpus()})
	if !errors.Is(err, experiment.ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestRun_NoCorpus(t *testing.T) {
	if _, err := Run(context.Background(), Config{Params: testParams()}); err == nil {
		t.Error("expected error without corpus")
	}
}

func TestRun_CorpusLoadFailure(t *testing.T) {
	corpus := domain.NewFlatFile(filepath.Join(t.TempDir(), "missing.txt"))
	_, err := Run(context.Background(), Config{Params: testParams(), Corpus: corpus})
	if err == nil || !strings.Contains(err.Error(), "initialize corpus") {
		t.Errorf("expected corpus initialization error, got %v", err)
	}
}

func TestRun_UnknownGrammar(t *testing.T) {
	params := testParams()
	params.Languages = []int{1, 99}
	sink := &memorySink{}

	out, err := Run(context.Background(), Config{Params: params, Corpus: testCorpus(), Sink: sink})
	if !errors.Is(err, domain.ErrUnknownGrammar) {
		t.Fatalf("expected ErrUnknownGrammar, got %v", err)
	}
	var trialErr *trial.Error
	if !errors.As(err, &trialErr) || trialErr.Params.Language != 99 {
		t.Errorf("expected trial error for language 99, got %v", err)
	}
	if out.Completed != len(sink.results) {
		t.Errorf("outcome reports %d results, sink received %d", out.Completed, len(sink.results))
	}
	if out.Completed >= params.NumTrials() {
		t.Errorf("run should have stopped early, completed %d", out.Completed)
	}
}

func TestRun_SinkFailure(t *testing.T) {
	sink := &memorySink{failAt: 2}
	out, err := Run(context.Background(), Config{Params: testParams(), Corpus: testCorpus(), Sink: sink})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected sink error, got %v", err)
	}
	if out.Completed != 1 {
		t.Errorf("Completed = %d, want 1", out.Completed)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{Params: testParams(), Corpus: testCorpus()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_TrialLog(t *testing.T) {
	dir := t.TempDir()
	tl := logging.NewTrialLogger(dir, "debug")

	params := testParams()
	params.NumEChildren = 1
	if _, err := Run(context.Background(), Config{Params: params, Corpus: testCorpus(), TrialLog: tl}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	tl.Close()

	data, err := os.ReadFile(filepath.Join(dir, logging.TrialLogFile))
	if err != nil {
		t.Fatalf("failed to read trial log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 trial log lines, got %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid trial log entry: %v", err)
	}
	for _, key := range []string{"run", "language", "noise", "grammar", "time"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("trial log entry missing %q: %v", key, entry)
		}
	}
}

func TestRun_SQLiteSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := results.Open(results.FormatSQLite, dir, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	out, err := Run(context.Background(), Config{Params: testParams(), Corpus: testCorpus(), Sink: sink})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	groups, err := results.ReadSummary(context.Background(), filepath.Join(dir, results.DBFile), out.Run.ID)
	if err != nil {
		t.Fatalf("ReadSummary failed: %v", err)
	}
	if len(groups) != len(out.Groups) {
		t.Fatalf("stored summary has %d groups, in-memory %d", len(groups), len(out.Groups))
	}
	for i := range groups {
		if groups[i].Count != out.Groups[i].Count {
			t.Errorf("group %d count %d, want %d", i, groups[i].Count, out.Groups[i].Count)
		}
	}
}
