package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/procrag/internal/extraction"
)

func newRulesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect extraction rules",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the built-in rule table as TOML",
		Long: `Print the built-in Japanese/English rule table. Edit the output and point
extraction.rules_file at it to change the keywords and patterns.

Example:
  procrag rules dump > ~/.config/procrag/rules.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return extraction.DefaultRules().Encode(cmd.OutOrStdout())
		},
	})
	return cmd
}
