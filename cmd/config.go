package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  "Prints the configuration after defaults, config.yaml and CORPMATCH_* environment variables are applied.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return eris.Wrap(err, "encode config")
		}
		return eris.Wrap(enc.Close(), "encode config")
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
