package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	envFile    string
	output     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "procrag",
		Short: "Procedure retrieval over equipment manuals",
		Long: `procrag splits manuals (PDF, DOCX, Markdown, text) into units, extracts
step numbers, warnings, figure references and checklist items from each,
and answers procedure questions with metadata-filtered similarity search.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutput(opts.output)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: ~/.config/procrag/config.yaml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	flags.StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newExtractCmd(opts),
		newIngestCmd(opts),
		newQueryCmd(opts),
		newRemoveCmd(opts),
		newListCmd(opts),
		newLabelCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newRulesCmd(opts),
		newMCPCmd(opts),
	)

	return cmd
}
