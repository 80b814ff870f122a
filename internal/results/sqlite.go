package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/echild-lab/echild/internal/trial"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNoRun is returned by SQLiteSink.Write before WriteRun.
var ErrNoRun = errors.New("no run recorded")

// SQLiteSink stores runs and trial results in a SQLite database.
type SQLiteSink struct {
	mu    sync.Mutex
	db    *sql.DB
	runID string
}

// openDB opens the database at path with the settings every reader and
// writer uses.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// NewSQLiteSink opens (or creates) the result database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := openDB(context.Background(), path)
	if err != nil {
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

// WriteRun implements Sink.
func (s *SQLiteSink) WriteRun(ctx context.Context, run RunInfo) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to encode run parameters: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, corpus_path, params, num_trials) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.CorpusPath, string(params), run.NumTrials)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	s.runID = run.ID
	return nil
}

// Write implements Sink. Each result is stored in its own transaction.
func (s *SQLiteSink) Write(ctx context.Context, r trial.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runID == "" {
		return ErrNoRun
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO trials (
			run_id, language, noise, rate, conservative_rate, num_sentences,
			target_language, timestamp, duration_ns, in_language_draws, noise_draws
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, r.Params.Language, r.Params.Noise, r.Params.Rate, r.Params.ConservativeRate, r.Params.NumSentences,
		r.TargetLanguage, r.Timestamp.UTC().Format(time.RFC3339Nano), int64(r.Duration), r.InLanguageDraws, r.NoiseDraws)
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}
	trialID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get trial id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trial_grammar (trial_id, parameter, weight) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare grammar insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range sortedKeys(r.Grammar) {
		if _, err := stmt.ExecContext(ctx, trialID, p, r.Grammar[p]); err != nil {
			return fmt.Errorf("failed to insert grammar weight %s: %w", p, err)
		}
	}

	return tx.Commit()
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Runs lists the runs stored in the database at path, oldest first.
func Runs(ctx context.Context, path string) ([]RunInfo, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT id, started_at, corpus_path, params, num_trials FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			run       RunInfo
			startedAt string
			corpus    sql.NullString
			params    string
		)
		if err := rows.Scan(&run.ID, &startedAt, &corpus, &params, &run.NumTrials); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		run.CorpusPath = corpus.String
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return nil, fmt.Errorf("failed to decode parameters of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ReadSummary aggregates the trials stored in the database at path.
// An empty runID summarizes every run.
func ReadSummary(ctx context.Context, path, runID string) ([]Group, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT t.language, t.noise, g.parameter, COUNT(*), AVG(g.weight)
		FROM trials t
		JOIN trial_grammar g ON g.trial_id = t.id
		WHERE (? = '' OR t.run_id = ?)
		GROUP BY t.language, t.noise, g.parameter
		ORDER BY t.language, t.noise, g.parameter`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var (
			lang   int
			noise  float64
			param  string
			count  int
			weight float64
		)
		if err := rows.Scan(&lang, &noise, &param, &count, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		if n := len(groups); n == 0 || groups[n-1].Language != lang || groups[n-1].Noise != noise {
			groups = append(groups, newGroup(lang, noise))
		}
		g := &groups[len(groups)-1]
		g.Count = max(g.Count, count)
		g.Mean[param] = weight
	}
	return groups, rows.Err()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
