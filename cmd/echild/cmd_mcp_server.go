package main

import (
	"github.com/echild-lab/echild/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the echild MCP server over stdio",
		Long: `Serve the echild_classify, echild_sweep and echild_summary tools over
the Model Context Protocol on stdin/stdout.

Logs go to stderr so they never interleave with protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("corpus") {
				cfg.Corpus.Path, _ = flags.GetString("corpus")
			}
			if flags.Changed("output") {
				cfg.Output.Path, _ = flags.GetString("output")
			}
			if flags.Changed("workers") {
				cfg.Experiment.Workers, _ = flags.GetInt("workers")
			}
			maxDraws, _ := flags.GetInt64("max-draws")

			logger := newLogger(cmd, cfg.Logging.Level)
			server := mcp.NewServer(&mcp.Config{
				Name:       "echild",
				Version:    version,
				CorpusPath: cfg.Corpus.Path,
				OutputDir:  cfg.Output.Path,
				Workers:    cfg.Experiment.Workers,
				MaxDraws:   maxDraws,
				Logger:     logger,
			})
			logger.Info("mcp server starting", "corpus", cfg.Corpus.Path, "output", cfg.Output.Path)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().String("corpus", "", "CoLAG flat-file corpus (default from config)")
	cmd.Flags().String("output", "", "Directory for saved sweep results (default from config)")
	cmd.Flags().Int("workers", 0, "Concurrent echildren per sweep (default from config)")
	cmd.Flags().Int64("max-draws", mcp.DefaultMaxDraws, "Maximum sentences drawn by a single sweep")
	return cmd
}
