package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/corpmatch/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the registry file into the database in chunks",
	Long:  "Streams the source CSV (local path or URL) into the registry table, appending after any rows already loaded.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applySourceFlags(cmd)
		return withPipeline(cmd, "load", func(ctx context.Context, p *pipeline.Pipeline) error {
			res, err := p.Load(ctx)
			if err != nil {
				return err
			}
			printLoad(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "registry CSV path or URL (overrides source.path)")
	cmd.Flags().Int("chunk-size", 0, "rows per chunk (overrides source.chunk_size)")
	cmd.Flags().String("table", "", "registry table name (overrides store.table)")
}

func applySourceFlags(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("source"); cmd.Flags().Changed("source") {
		cfg.Source.Path = v
	}
	if v, _ := cmd.Flags().GetInt("chunk-size"); cmd.Flags().Changed("chunk-size") {
		cfg.Source.ChunkSize = v
	}
	applyTableFlag(cmd)
}

func applyTableFlag(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("table"); cmd.Flags().Changed("table") {
		cfg.Store.Table = v
	}
}

func init() {
	addSourceFlags(loadCmd)
	rootCmd.AddCommand(loadCmd)
}
