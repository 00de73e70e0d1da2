package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/corpmatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "corpmatch",
	Short: "Match vendor rosters against the state corporation registry",
	Long: "Loads a bulk corporation registry file into a database in chunks, materializes and indexes a " +
		"normalized entity name column, then looks up every roster name by prefix and writes the joined rows.\n\n" +
		"Settings come from ./config.yaml and CORPMATCH_* environment variables; flags override both.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			c.Log.Level = v
		}
		if v, _ := cmd.Flags().GetString("log-format"); v != "" {
			c.Log.Format = v
		}
		cfg = c

		return eris.Wrap(config.InitLogger(cfg.Log), "init logger")
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides log.level)")
	rootCmd.PersistentFlags().String("log-format", "", "json or console (overrides log.format)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("corpmatch failed", zap.Error(err))
		os.Exit(1)
	}
}
