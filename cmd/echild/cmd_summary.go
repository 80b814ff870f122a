package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/echild-lab/echild/internal/results"
	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <path>",
		Short: "Summarize stored simulation results",
		Long: `Print the mean final grammar for every (language, noise) group.

The path may be a result directory, a results.db database or a
results.jsonl(.gz) file.`,
		Example: `  echild summary simulation_output
  echild summary simulation_output/results.db --run 3f0c...
  echild summary simulation_output/results.jsonl.gz --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			runID, _ := cmd.Flags().GetString("run")

			path, err := resolveResultPath(args[0])
			if err != nil {
				return err
			}

			var groups []results.Group
			switch {
			case strings.HasSuffix(path, ".db"):
				groups, err = results.ReadSummary(cmd.Context(), path, runID)
			case strings.HasSuffix(path, ".jsonl"), strings.HasSuffix(path, ".jsonl.gz"):
				if runID != "" {
					return fmt.Errorf("--run is only supported for sqlite results")
				}
				groups, err = results.Summarize(results.ReadJSONL(path))
			default:
				return fmt.Errorf("unsupported result file %s (want .db, .jsonl or .jsonl.gz)", path)
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"path":   path,
					"groups": groups,
				})
			}
			printGroups(cmd.OutOrStdout(), groups)
			return nil
		},
	}

	cmd.Flags().String("run", "", "Only summarize this run (sqlite results)")
	return cmd
}

// resolveResultPath maps a result directory to the result file inside it.
func resolveResultPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to open results: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range []string{results.DBFile, results.JSONLFile, results.JSONLFile + ".gz"} {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no summarizable results in %s", path)
}
