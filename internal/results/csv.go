package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/echild-lab/echild/internal/trial"
)

// csvFixedColumns precede one column per grammar parameter.
var csvFixedColumns = []string{
	"timestamp", "duration_seconds",
	"language", "noise", "rate", "conservative_rate", "num_sentences",
	"target_language", "in_language_draws", "noise_draws",
}

// CSVSink writes one row per trial result to results.csv (results.csv.gz
// when compressed) and the run description to run.json. The grammar columns
// are taken from the first result, sorted by name.
type CSVSink struct {
	mu      sync.Mutex
	dir     string
	out     *fileWriter
	w       *csv.Writer
	path    string
	grammar []string
}

// NewCSVSink creates the result file in dir.
func NewCSVSink(dir string, compress bool) (*CSVSink, error) {
	path := filepath.Join(dir, CSVFile)
	if compress {
		path += gzipExt
	}
	out, err := createFile(path, compress)
	if err != nil {
		return nil, err
	}
	return &CSVSink{dir: dir, out: out, w: csv.NewWriter(out.bw), path: path}, nil
}

// Path returns the result file path.
func (s *CSVSink) Path() string { return s.path }

// WriteRun implements Sink.
func (s *CSVSink) WriteRun(_ context.Context, run RunInfo) error {
	return writeRunFile(s.dir, run)
}

// Write implements Sink.
func (s *CSVSink) Write(_ context.Context, r trial.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grammar == nil {
		s.grammar = sortedKeys(r.Grammar)
		header := append(append([]string{}, csvFixedColumns...), s.grammar...)
		if err := s.w.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := make([]string, 0, len(csvFixedColumns)+len(s.grammar))
	row = append(row,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		formatFloat(r.Duration.Seconds()),
		strconv.Itoa(r.Params.Language),
		formatFloat(r.Params.Noise),
		formatFloat(r.Params.Rate),
		formatFloat(r.Params.ConservativeRate),
		strconv.Itoa(r.Params.NumSentences),
		strconv.Itoa(r.TargetLanguage),
		strconv.Itoa(r.InLanguageDraws),
		strconv.Itoa(r.NoiseDraws),
	)
	for _, p := range s.grammar {
		w, ok := r.Grammar[p]
		if !ok {
			row = append(row, "")
			continue
		}
		row = append(row, formatFloat(w))
	}

	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.out.Close()
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return s.out.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
