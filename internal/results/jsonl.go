package results

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/echild-lab/echild/internal/trial"
	"github.com/klauspost/compress/gzip"
)

// gzipExt is appended to file names of compressed output.
const gzipExt = ".gz"

// fileWriter is a buffered, optionally gzip-compressed output file.
type fileWriter struct {
	f  *os.File
	gz *gzip.Writer
	bw *bufio.Writer
}

func createFile(path string, compress bool) (*fileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	fw := &fileWriter{f: f}
	var w io.Writer = f
	if compress {
		fw.gz = gzip.NewWriter(f)
		w = fw.gz
	}
	fw.bw = bufio.NewWriter(w)
	return fw, nil
}

func (fw *fileWriter) Close() error {
	err := fw.bw.Flush()
	if fw.gz != nil {
		err = errors.Join(err, fw.gz.Close())
	}
	return errors.Join(err, fw.f.Close())
}

// JSONLSink writes one JSON object per trial result to results.jsonl
// (results.jsonl.gz when compressed) and the run description to run.json.
type JSONLSink struct {
	mu   sync.Mutex
	dir  string
	out  *fileWriter
	enc  *json.Encoder
	path string
}

// NewJSONLSink creates the result file in dir.
func NewJSONLSink(dir string, compress bool) (*JSONLSink, error) {
	path := filepath.Join(dir, JSONLFile)
	if compress {
		path += gzipExt
	}
	out, err := createFile(path, compress)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{dir: dir, out: out, enc: json.NewEncoder(out.bw), path: path}, nil
}

// Path returns the result file path.
func (s *JSONLSink) Path() string { return s.path }

// WriteRun implements Sink.
func (s *JSONLSink) WriteRun(_ context.Context, run RunInfo) error {
	return writeRunFile(s.dir, run)
}

// Write implements Sink.
func (s *JSONLSink) Write(_ context.Context, r trial.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}

// ReadJSONL streams the results stored in a JSONL file. Files ending in
// ".gz" are decompressed. Blank lines are skipped.
func ReadJSONL(path string) iter.Seq2[trial.Result, error] {
	return func(yield func(trial.Result, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(trial.Result{}, fmt.Errorf("failed to open results: %w", err))
			return
		}
		defer f.Close()

		var r io.Reader = f
		if strings.HasSuffix(path, gzipExt) {
			gz, err := gzip.NewReader(f)
			if err != nil {
				yield(trial.Result{}, fmt.Errorf("failed to open gzip stream: %w", err))
				return
			}
			defer gz.Close()
			r = gz
		}

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			var res trial.Result
			if err := json.Unmarshal([]byte(text), &res); err != nil {
				yield(trial.Result{}, fmt.Errorf("%s:%d: %w", path, line, err))
				return
			}
			if !yield(res, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(trial.Result{}, fmt.Errorf("failed to read results: %w", err))
		}
	}
}
