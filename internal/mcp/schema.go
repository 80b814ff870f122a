package mcp

import "github.com/echild-lab/echild/internal/results"

// ClassifyInput defines the input for the echild_classify tool.
type ClassifyInput struct {
	Sentences []string `json:"sentences" jsonschema:"Sentences to classify, tokens separated by whitespace"`
}

// ClassifyOutput defines the output for the echild_classify tool.
type ClassifyOutput struct {
	Sentences []SentenceClassification `json:"sentences" jsonschema:"One classification per input sentence"`
}

// SentenceClassification describes the structural markers of one sentence.
type SentenceClassification struct {
	Text                string   `json:"text"`
	Tokens              []string `json:"tokens"`
	O1                  int      `json:"o1" jsonschema:"Index of the first token containing O1, or -1"`
	O2                  int      `json:"o2" jsonschema:"Index of the first token containing O2, or -1"`
	P                   int      `json:"p" jsonschema:"Index of the first token containing P, or -1"`
	O3                  int      `json:"o3" jsonschema:"Index of the first token containing O3, or -1"`
	NonCanonicalOblique bool     `json:"non_canonical_oblique" jsonschema:"Whether the oblique arguments appear in non-canonical order"`
}

// CorpusEntry is one inline corpus sentence.
type CorpusEntry struct {
	Grammar    int    `json:"grammar" jsonschema:"Grammar id the sentence belongs to"`
	Inflection string `json:"inflection" jsonschema:"Illocutionary force: DEC, Q or IMP"`
	Sentence   string `json:"sentence" jsonschema:"Sentence text"`
}

// SweepInput defines the input for the echild_sweep tool.
type SweepInput struct {
	Languages        []string      `json:"languages,omitempty" jsonschema:"Language names or grammar ids (default: English, French, German, Japanese)"`
	NoiseLevels      []float64     `json:"noise_levels,omitempty" jsonschema:"Noise levels between 0 and 1 (default: 0, 0.05, 0.10, 0.25, 0.50)"`
	Rate             *float64      `json:"rate,omitempty" jsonschema:"Learning rate (default: 0.9)"`
	ConservativeRate *float64      `json:"conservative_rate,omitempty" jsonschema:"Conservative learning rate (default: 0.0005)"`
	NumSentences     int           `json:"num_sentences,omitempty" jsonschema:"Sentences consumed by each echild (default: 1000)"`
	NumEChildren     int           `json:"num_echildren,omitempty" jsonschema:"Echildren per language and noise level (default: 10)"`
	Corpus           []CorpusEntry `json:"corpus,omitempty" jsonschema:"Inline corpus; the server's corpus file is used when empty"`
	Save             bool          `json:"save,omitempty" jsonschema:"Store the results in the server's result database"`
}

// SweepOutput defines the output for the echild_sweep tool.
type SweepOutput struct {
	RunID      string          `json:"run_id" jsonschema:"Identifier of the run"`
	Trials     int             `json:"trials" jsonschema:"Number of completed trials"`
	DurationMs int64           `json:"duration_ms" jsonschema:"Wall-clock duration of the sweep"`
	Saved      string          `json:"saved,omitempty" jsonschema:"Result database the run was stored in"`
	Groups     []results.Group `json:"groups" jsonschema:"Mean grammar weights per language and noise level"`
}

// SummaryInput defines the input for the echild_summary tool.
type SummaryInput struct {
	Database string `json:"database,omitempty" jsonschema:"Result database path inside the server's output directory (default: its results.db)"`
	RunID    string `json:"run_id,omitempty" jsonschema:"Restrict the summary to one run"`
}

// SummaryOutput defines the output for the echild_summary tool.
type SummaryOutput struct {
	Runs   []RunItem       `json:"runs" jsonschema:"Runs stored in the database"`
	Groups []results.Group `json:"groups" jsonschema:"Mean grammar weights per language and noise level"`
}

// RunItem provides a list view of a stored run.
type RunItem struct {
	ID           string    `json:"id"`
	StartedAt    string    `json:"started_at"`
	CorpusPath   string    `json:"corpus_path,omitempty"`
	NumTrials    int       `json:"num_trials"`
	Languages    []int     `json:"languages"`
	NoiseLevels  []float64 `json:"noise_levels"`
	NumSentences int       `json:"num_sentences"`
	NumEChildren int       `json:"num_echildren"`
}
