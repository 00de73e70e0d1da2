package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/corpmatch/internal/pipeline"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Add, fill and index the normalized entity name column",
	Long:  "Adds CleanedEntityName to the registry table, fills it from the entity name column and creates CleanedEntityIdx. An interrupted build is resumed; a finished one fails with column already exists.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyTableFlag(cmd)
		if v, _ := cmd.Flags().GetInt("batch-size"); cmd.Flags().Changed("batch-size") {
			cfg.Index.BatchSize = v
		}
		return withPipeline(cmd, "index", func(ctx context.Context, p *pipeline.Pipeline) error {
			res, err := p.Index(ctx)
			if err != nil {
				return err
			}
			printIndex(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

func init() {
	indexCmd.Flags().String("table", "", "registry table name (overrides store.table)")
	indexCmd.Flags().Int("batch-size", 0, "rows normalized per batch (overrides index.batch_size)")
	rootCmd.AddCommand(indexCmd)
}
