// Package results persists trial results and summarizes them.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/echild-lab/echild/internal/experiment"
	"github.com/echild-lab/echild/internal/trial"
	"github.com/google/uuid"
)

// Output formats.
const (
	FormatSQLite = "sqlite"
	FormatJSONL  = "jsonl"
	FormatCSV    = "csv"
)

// File names inside the output directory.
const (
	DBFile    = "results.db"
	JSONLFile = "results.jsonl"
	CSVFile   = "results.csv"
	RunFile   = "run.json"
)

// Sink receives the results of one run.
type Sink interface {
	// WriteRun records the run description. It is called once, before any Write.
	WriteRun(ctx context.Context, run RunInfo) error

	// Write appends one trial result.
	Write(ctx context.Context, r trial.Result) error

	// Close flushes and releases the sink.
	Close() error
}

// RunInfo describes a sweep.
type RunInfo struct {
	ID         string                `json:"id"`
	StartedAt  time.Time             `json:"started_at"`
	CorpusPath string                `json:"corpus_path,omitempty"`
	Params     experiment.Parameters `json:"params"`
	NumTrials  int                   `json:"num_trials"`
}

// NewRunInfo returns a RunInfo with a fresh identifier.
func NewRunInfo(params experiment.Parameters, corpusPath string) RunInfo {
	return RunInfo{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		CorpusPath: corpusPath,
		Params:     params,
		NumTrials:  params.NumTrials(),
	}
}

// Open creates a sink of the given format writing into dir.
// compress applies to the jsonl and csv formats.
func Open(format, dir string, compress bool) (Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	switch format {
	case FormatSQLite, "":
		return NewSQLiteSink(filepath.Join(dir, DBFile))
	case FormatJSONL:
		return NewJSONLSink(dir, compress)
	case FormatCSV:
		return NewCSVSink(dir, compress)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// writeRunFile writes run as indented JSON to dir/run.json.
func writeRunFile(dir string, run RunInfo) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, RunFile), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	return nil
}

// ReadRunFile reads dir/run.json.
func ReadRunFile(dir string) (RunInfo, error) {
	var run RunInfo
	data, err := os.ReadFile(filepath.Join(dir, RunFile))
	if err != nil {
		return run, fmt.Errorf("failed to read run file: %w", err)
	}
	if err := json.Unmarshal(data, &run); err != nil {
		return run, fmt.Errorf("failed to parse run file: %w", err)
	}
	return run, nil
}
