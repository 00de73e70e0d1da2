package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/corpmatch/internal/pipeline"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Look up roster names in the registry and write the joined output",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyTableFlag(cmd)
		applyMatchFlags(cmd)
		return withPipeline(cmd, "match", func(ctx context.Context, p *pipeline.Pipeline) error {
			res, err := p.Match(ctx)
			if err != nil {
				return err
			}
			printMatch(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

func addMatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("roster", "", "roster .xlsx or .csv path or URL (overrides roster.path)")
	cmd.Flags().String("output", "", "output .csv or .xlsx path (overrides output.path)")
	cmd.Flags().String("tie-break", "", "first or shortest (overrides match.tie_break)")
}

func applyMatchFlags(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("roster"); cmd.Flags().Changed("roster") {
		cfg.Roster.Path = v
	}
	if v, _ := cmd.Flags().GetString("output"); cmd.Flags().Changed("output") {
		cfg.Output.Path = v
	}
	if v, _ := cmd.Flags().GetString("tie-break"); cmd.Flags().Changed("tie-break") {
		cfg.Match.TieBreak = v
	}
}

func init() {
	matchCmd.Flags().String("table", "", "registry table name (overrides store.table)")
	addMatchFlags(matchCmd)
	rootCmd.AddCommand(matchCmd)
}
