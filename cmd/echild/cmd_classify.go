package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/echild-lab/echild/internal/mcp"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [sentence...]",
		Short: "Classify sentences by oblique-marker order",
		Long: `Report the positions of the O1, O2, P and O3 markers in each sentence and
whether their order is non-canonical.

Sentences are read one per line from stdin when no arguments are given.`,
		Example: `  echild classify "O1 O2 P O3"
  cut -f4 COLAG_2011_flat_formatted.txt | echild classify --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			texts := args
			if len(texts) == 0 {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
				for scanner.Scan() {
					if line := strings.TrimSpace(scanner.Text()); line != "" {
						texts = append(texts, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("failed to read sentences: %w", err)
				}
			}
			if len(texts) == 0 {
				return fmt.Errorf("no sentences given")
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for _, text := range texts {
				c := mcp.Classify(text)
				if jsonOut {
					if err := enc.Encode(c); err != nil {
						return err
					}
					continue
				}
				label := "canonical"
				if c.NonCanonicalOblique {
					label = "non-canonical"
				}
				fmt.Fprintf(out, "%-13s O1=%d O2=%d P=%d O3=%d  %s\n", label, c.O1, c.O2, c.P, c.O3, c.Text)
			}
			return nil
		},
	}
	return cmd
}
