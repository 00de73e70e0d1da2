package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/corpmatch/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load, index and match in one go",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applySourceFlags(cmd)
		applyMatchFlags(cmd)
		return withPipeline(cmd, "run", func(ctx context.Context, p *pipeline.Pipeline) error {
			report, err := p.Run(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n\n", report.RunID)
			printLoad(out, report.Load)
			fmt.Fprintln(out)
			printIndex(out, report.Index)
			fmt.Fprintln(out)
			printMatch(out, report.Match)

			for _, ph := range report.Phases {
				zap.L().Debug("phase timing", zap.String("phase", ph.Name), zap.Int64("duration_ms", ph.Duration))
			}
			return nil
		})
	},
}

func init() {
	addSourceFlags(runCmd)
	addMatchFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
