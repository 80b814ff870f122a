// Package config provides unified configuration loading for echild sweeps.
// It supports loading from YAML files and environment variables; command-line
// flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/echild-lab/echild/internal/domain"
	"github.com/echild-lab/echild/internal/experiment"
	"github.com/echild-lab/echild/internal/results"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by OutputConfig.Format.
const (
	FormatSQLite = results.FormatSQLite
	FormatJSONL  = results.FormatJSONL
	FormatCSV    = results.FormatCSV
)

// ErrConfiguration is matched by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports malformed input detected before any trial runs.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func invalidf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// SweepConfig contains all settings of a simulation sweep.
type SweepConfig struct {
	// Experiment holds the sweep dimensions and learner rates.
	Experiment ExperimentConfig `json:"experiment" yaml:"experiment"`

	// Corpus locates the sentence domain.
	Corpus CorpusConfig `json:"corpus" yaml:"corpus"`

	// Output controls where results are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and trial logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ExperimentConfig configures the trial population.
type ExperimentConfig struct {
	// Rate is the learning rate for unambiguous evidence.
	Rate float64 `json:"rate" yaml:"rate"`

	// ConservativeRate is the learning rate for weak evidence.
	ConservativeRate float64 `json:"conservative_rate" yaml:"conservative_rate"`

	// NumSentences is the number of sentences each echild consumes.
	NumSentences int `json:"num_sentences" yaml:"num_sentences"`

	// NumEChildren is the number of echildren per language/noise-level.
	NumEChildren int `json:"num_echildren" yaml:"num_echildren"`

	// NoiseLevels are the probabilities of drawing an out-of-language sentence.
	NoiseLevels []float64 `json:"noise_levels" yaml:"noise_levels"`

	// Languages are language names or numeric grammar ids.
	Languages []string `json:"languages" yaml:"languages"`

	// Workers is the number of concurrently running trials.
	Workers int `json:"workers" yaml:"workers"`
}

// CorpusConfig configures the sentence domain.
type CorpusConfig struct {
	// Path is the tab-separated corpus flat file.
	Path string `json:"path" yaml:"path"`
}

// OutputConfig configures result persistence.
type OutputConfig struct {
	// Path is the output directory.
	Path string `json:"path" yaml:"path"`

	// Format is "sqlite" (default), "jsonl" or "csv".
	Format string `json:"format" yaml:"format"`

	// Compress gzips JSONL and CSV output.
	Compress bool `json:"compress" yaml:"compress"`
}

// LoggingConfig configures echild's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables per-echild tracing to <output>/trials.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a SweepConfig with the standard sweep.
func Default() *SweepConfig {
	return &SweepConfig{
		Experiment: ExperimentConfig{
			Rate:             experiment.DefaultRate,
			ConservativeRate: experiment.DefaultConservativeRate,
			NumSentences:     experiment.DefaultNumSentences,
			NumEChildren:     experiment.DefaultNumEChildren,
			NoiseLevels:      experiment.DefaultNoiseLevels(),
			Languages:        []string{"English", "French", "German", "Japanese"},
			Workers:          runtime.NumCPU(),
		},
		Corpus: CorpusConfig{
			Path: "COLAG_2011_flat_formatted.txt",
		},
		Output: OutputConfig{
			Path:   "simulation_output",
			Format: FormatSQLite,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.echild/config.yaml -> environment variables
func Load() (*SweepConfig, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".echild", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads an explicit config file and applies environment overrides.
// An empty path behaves like Load.
func LoadPath(path string) (*SweepConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*SweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Corpus.Path = expandEnvVars(config.Corpus.Path)
	config.Output.Path = expandEnvVars(config.Output.Path)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *SweepConfig) Validate() error {
	e := c.Experiment
	if e.Rate < 0 || e.Rate > 1 {
		return invalidf("rate", "must be between 0 and 1, got %g", e.Rate)
	}
	if e.ConservativeRate < 0 || e.ConservativeRate > 1 {
		return invalidf("conservative_rate", "must be between 0 and 1, got %g", e.ConservativeRate)
	}
	if e.NumSentences < 0 {
		return invalidf("num_sentences", "must be non-negative, got %d", e.NumSentences)
	}
	if e.NumEChildren < 1 {
		return invalidf("num_echildren", "must be positive, got %d", e.NumEChildren)
	}
	if len(e.NoiseLevels) == 0 {
		return invalidf("noise_levels", "at least one noise level is required")
	}
	for _, n := range e.NoiseLevels {
		if !(n >= 0 && n <= 1) {
			return invalidf("noise_levels", "noise level must be between 0 and 1, got %g", n)
		}
	}
	if len(e.Languages) == 0 {
		return invalidf("languages", "at least one language is required")
	}
	if _, err := domain.ParseLanguages(e.Languages); err != nil {
		return invalidf("languages", "%v", err)
	}
	if e.Workers < 1 {
		return invalidf("workers", "must be positive, got %d", e.Workers)
	}

	if c.Corpus.Path == "" {
		return invalidf("corpus.path", "must not be empty")
	}

	validFormats := map[string]bool{FormatSQLite: true, FormatJSONL: true, FormatCSV: true}
	if !validFormats[c.Output.Format] {
		return invalidf("output.format", "%q (valid: sqlite, jsonl, csv)", c.Output.Format)
	}
	if c.Output.Path == "" {
		return invalidf("output.path", "must not be empty")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return invalidf("logging.level", "%s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Parameters converts the validated configuration into sweep parameters.
func (c *SweepConfig) Parameters() (experiment.Parameters, error) {
	langs, err := domain.ParseLanguages(c.Experiment.Languages)
	if err != nil {
		return experiment.Parameters{}, invalidf("languages", "%v", err)
	}
	return experiment.Parameters{
		Languages:        langs,
		NoiseLevels:      append([]float64(nil), c.Experiment.NoiseLevels...),
		LearningRate:     c.Experiment.Rate,
		ConservativeRate: c.Experiment.ConservativeRate,
		NumSentences:     c.Experiment.NumSentences,
		NumEChildren:     c.Experiment.NumEChildren,
		NumWorkers:       c.Experiment.Workers,
	}, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *SweepConfig) {
	if v := os.Getenv("ECHILD_CORPUS"); v != "" {
		config.Corpus.Path = v
	}

	if v := os.Getenv("ECHILD_OUTPUT"); v != "" {
		config.Output.Path = v
	}

	if v := os.Getenv("ECHILD_FORMAT"); v != "" {
		config.Output.Format = v
	}

	if v := os.Getenv("ECHILD_COMPRESS"); v != "" {
		config.Output.Compress = v == "true" || v == "1"
	}

	if v := os.Getenv("ECHILD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Experiment.Workers = n
		}
	}

	if v := os.Getenv("ECHILD_NUM_SENTENCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Experiment.NumSentences = n
		}
	}

	if v := os.Getenv("ECHILD_NUM_ECHILDREN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Experiment.NumEChildren = n
		}
	}

	if v := os.Getenv("ECHILD_LANGUAGES"); v != "" {
		config.Experiment.Languages = splitList(v)
	}

	if v := os.Getenv("ECHILD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
