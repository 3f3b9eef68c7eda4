package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/procrag/internal/document"
	"github.com/fyrsmithlabs/procrag/internal/loader"
)

// extractResult is the output of procrag extract. Empty counts units in
// which nothing was extracted.
type extractResult struct {
	SourceID      string                        `json:"source_id" yaml:"source_id"`
	Count         int                           `json:"count" yaml:"count"`
	Categories    map[string]int                `json:"categories" yaml:"categories"`
	Empty         int                           `json:"empty" yaml:"empty"`
	SnippetRadius int                           `json:"snippet_radius" yaml:"snippet_radius"`
	Documents     []document.StructuredDocument `json:"documents" yaml:"documents"`
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var sourceID string

	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Print the structured documents extracted from a file",
		Long: `Split a file into units and print each with its section category, step
numbers, warnings, figure references and checklist items, followed by
the number of units with nothing extracted and the snippet radius in use.
Nothing is indexed.

Examples:
  procrag extract manual.pdf
  procrag extract notes.md --source-id pump-notes -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				path := args[0]
				id := sourceID
				if id == "" {
					id = loader.SourceID(path)
				}

				units, err := loader.LoadFile(a.ctx, path, id, a.maxFileSize())
				if err != nil {
					return err
				}
				docs, err := a.builder.BuildAll(units)
				if err != nil {
					return err
				}

				res := extractResult{
					SourceID:      id,
					Count:         len(docs),
					Categories:    map[string]int{},
					SnippetRadius: a.builder.Extractor().SnippetRadius(),
					Documents:     docs,
				}
				for _, d := range docs {
					res.Categories[string(d.Category)]++
					if d.Extraction.IsEmpty() {
						res.Empty++
					}
				}
				return a.print(res)
			})
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "source ID for the units (default: file base name)")
	return cmd
}
