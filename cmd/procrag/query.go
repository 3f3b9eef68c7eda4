package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/procrag/internal/answer"
	"github.com/fyrsmithlabs/procrag/internal/logging"
	"github.com/fyrsmithlabs/procrag/internal/retrieval"
)

// queryUnit identifies one retrieved unit.
type queryUnit struct {
	ID       string `json:"id" yaml:"id"`
	SourceID string `json:"source_id" yaml:"source_id"`
	Index    int    `json:"index" yaml:"index"`
	Category string `json:"category" yaml:"category"`
	Text     string `json:"text" yaml:"text"`
}

// queryResult is the output of procrag query.
type queryResult struct {
	Query  string           `json:"query" yaml:"query"`
	Filter retrieval.Filter `json:"filter" yaml:"filter"`
	TopK   int              `json:"top_k" yaml:"top_k"`
	Count  int              `json:"count" yaml:"count"`
	Units  []queryUnit      `json:"units" yaml:"units"`
	Answer answer.Answer    `json:"answer" yaml:"answer"`
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		steps      string
		categories []string
		topK       int
	)

	cmd := &cobra.Command{
		Use:   "query TEXT...",
		Short: "Answer a procedure question from the indexed manuals",
		Long: `Retrieve the units most similar to TEXT that pass the step range and
category filters, then merge them into ordered steps with deduplicated
warnings, figure references and checklist items.

Examples:
  procrag query "ポンプの停止手順" --steps 2-4
  procrag query "valve inspection" --category warning --category procedure --top-k 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("query text is required")
			}
			filter, err := retrieval.ParseFilter(steps, categories)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(a *app) error {
				k := topK
				if !cmd.Flags().Changed("top-k") {
					k = a.cfg.Retrieval.TopK
				}
				gw, err := a.gateway()
				if err != nil {
					return err
				}
				ctx := logging.WithQueryID(a.ctx, uuid.NewString())
				docs, err := gw.Query(ctx, text, filter, k)
				if err != nil {
					a.logger.Warn(ctx, "query failed", zap.Error(err))
					return err
				}

				res := queryResult{
					Query:  text,
					Filter: filter,
					TopK:   k,
					Count:  len(docs),
					Units:  make([]queryUnit, 0, len(docs)),
					Answer: answer.Aggregate(docs),
				}
				for _, d := range docs {
					res.Units = append(res.Units, queryUnit{
						ID:       d.ID(),
						SourceID: d.Unit.SourceID,
						Index:    d.Unit.Index,
						Category: string(d.Category),
						Text:     d.Text(),
					})
				}
				a.logger.Debug(ctx, "query answered",
					zap.Int("units", res.Count),
					zap.Ints("step_numbers", res.Answer.StepNumbers()),
				)
				return a.print(res)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&steps, "steps", "", "inclusive step range such as 2-4, or a single step")
	flags.StringSliceVar(&categories, "category", nil, "section category to keep (overview, procedure, warning, reference); repeatable")
	flags.IntVarP(&topK, "top-k", "k", 0, "number of units to return (default: retrieval.top_k)")
	return cmd
}
