package domain

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// NewFlatFile returns a Store that reads its corpus from a tab-separated
// file when initialized. Each line holds a grammar id, an illocution tag and
// the annotated sentence; further columns are ignored. Blank lines and lines
// starting with '#' are skipped.
func NewFlatFile(path string) *Store {
	return &Store{load: func() ([]Entry, error) { return ReadFlatFile(path) }}
}

// ReadFlatFile parses a corpus flat file.
func ReadFlatFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		e, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("corpus file %s contains no sentences", path)
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("expected at least 3 tab-separated fields, got %d", len(fields))
	}
	grammar, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Entry{}, fmt.Errorf("invalid grammar id %q", fields[0])
	}
	text := strings.TrimSpace(fields[2])
	if text == "" {
		return Entry{}, fmt.Errorf("empty sentence for grammar %d", grammar)
	}
	return Entry{
		Grammar:    grammar,
		Inflection: strings.TrimSpace(fields[1]),
		Sentence:   text,
	}, nil
}
