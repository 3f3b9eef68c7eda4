package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/procrag/internal/catalog"
)

// listResult is the output of procrag list.
type listResult struct {
	Documents []catalog.Entry `json:"documents" yaml:"documents"`
	Count     int             `json:"count" yaml:"count"`
}

// labelKeysResult is the output of procrag list --keys.
type labelKeysResult struct {
	Keys []string `json:"keys" yaml:"keys"`
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		label string
		keys  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Long: `List catalog entries sorted by source ID. --label keeps documents that
carry a label key, or a key with a given value. --keys prints the label
keys in use across the catalog instead.

Examples:
  procrag list
  procrag list --keys
  procrag list --label line=A -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				cat, err := a.openCatalog()
				if err != nil {
					return err
				}
				if keys {
					k, err := cat.LabelKeys()
					if err != nil {
						return err
					}
					return a.print(labelKeysResult{Keys: k})
				}
				entries, err := cat.List()
				if err != nil {
					return err
				}
				res := listResult{Documents: filterByLabel(entries, label)}
				res.Count = len(res.Documents)
				return a.print(res)
			})
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "only documents with this label, as key or key=value")
	cmd.Flags().BoolVar(&keys, "keys", false, "print the label keys in use instead of documents")
	cmd.MarkFlagsMutuallyExclusive("label", "keys")
	return cmd
}

// filterByLabel keeps entries matching "key" or "key=value". An empty
// selector keeps everything. The result is never nil.
func filterByLabel(entries []catalog.Entry, selector string) []catalog.Entry {
	key, value, byValue := strings.Cut(selector, "=")
	out := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		if key != "" {
			v, ok := e.Labels[key]
			if !ok || (byValue && v != value) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// labelResult is the output of procrag label: one diff per selected
// document and the number of documents whose labels change.
type labelResult struct {
	Documents []catalog.LabelDiff `json:"documents" yaml:"documents"`
	Count     int                 `json:"count" yaml:"count"`
	Changed   int                 `json:"changed" yaml:"changed"`
	DryRun    bool                `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

func newLabelCmd(opts *rootOptions) *cobra.Command {
	var (
		unset    []string
		dryRun   bool
		all      bool
		selector string
	)

	cmd := &cobra.Command{
		Use:   "label [SOURCE_ID...] [KEY=VALUE...]",
		Short: "Set or remove labels on ingested documents",
		Long: `Merge KEY=VALUE labels into catalog entries and delete the keys named by
--unset. Arguments without "=" are source IDs. --all edits every document and
--select edits those matching a label key or key=value. All selected
documents change in one transaction: an unknown source ID changes nothing.
--dry-run prints the combined change without writing it.

Examples:
  procrag label pump.pdf line=A owner=maintenance
  procrag label pump.pdf valve.pdf rev=2
  procrag label --select line=A --unset owner --dry-run
  procrag label --all site=osaka`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, pairs := splitLabelArgs(args)
			set, err := parseLabels(pairs)
			if err != nil {
				return err
			}
			if len(set) == 0 && len(unset) == 0 {
				return errors.New("nothing to change: give KEY=VALUE pairs or --unset")
			}
			bySelector := all || selector != ""
			switch {
			case bySelector && len(ids) > 0:
				return errors.New("give source IDs or --all/--select, not both")
			case !bySelector && len(ids) == 0:
				return errors.New("no documents selected: give source IDs, --all or --select")
			}

			return withApp(cmd, opts, func(a *app) error {
				cat, err := a.openCatalog()
				if err != nil {
					return err
				}
				if bySelector {
					entries, err := cat.List()
					if err != nil {
						return err
					}
					for _, e := range filterByLabel(entries, selector) {
						ids = append(ids, e.SourceID)
					}
				}

				apply := cat.SetLabelsMany
				if dryRun {
					apply = cat.PreviewLabelsMany
				}
				diffs, err := apply(ids, set, unset)
				if err != nil {
					return err
				}

				res := labelResult{Documents: diffs, Count: len(diffs), DryRun: dryRun}
				if res.Documents == nil {
					res.Documents = []catalog.LabelDiff{}
				}
				for _, d := range diffs {
					if len(d.Changes) > 0 {
						res.Changed++
					}
				}
				return a.print(res)
			})
		},
	}

	cmd.Flags().StringSliceVar(&unset, "unset", nil, "label key to remove; repeatable")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the change without writing it")
	cmd.Flags().BoolVar(&all, "all", false, "edit every document in the catalog")
	cmd.Flags().StringVar(&selector, "select", "", "edit documents with this label, as key or key=value")
	cmd.MarkFlagsMutuallyExclusive("all", "select")
	return cmd
}

// splitLabelArgs separates source IDs from KEY=VALUE pairs.
func splitLabelArgs(args []string) (ids, pairs []string) {
	for _, arg := range args {
		if strings.Contains(arg, "=") {
			pairs = append(pairs, arg)
		} else {
			ids = append(ids, arg)
		}
	}
	return ids, pairs
}

// parseLabels parses KEY=VALUE arguments. A repeated key keeps the last value.
func parseLabels(args []string) (map[string]string, error) {
	set := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid label %q: expected KEY=VALUE", arg)
		}
		set[k] = v
	}
	return set, nil
}
