package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/therascope/therascope/pkg/scoring"
	"github.com/therascope/therascope/pkg/taxonomy"
)

func newClassifyCmd() *cobra.Command {
	var (
		variant string
		counts  string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single outcome-count tuple",
		Example: `  therascope classify --variant aba --counts error=1,help=1,independent=3
  therascope classify --variant occupational --counts not_performed=2,with_help=2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tax, err := cfg.Taxonomy(taxonomy.Variant(variant))
			if err != nil {
				return err
			}
			c, err := parseCounts(counts, tax)
			if err != nil {
				return err
			}
			status, err := scoring.Classify(c, tax)
			if err != nil {
				return err
			}

			d := taxonomy.Describe(status, tax)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", status, d.Label)
			if tax.Strategy == taxonomy.StrategyThreshold {
				fmt.Fprintf(cmd.OutOrStdout(), "independence: %d%% of %d\n",
					scoring.Percent(c.Get(tax.Independent), c.Total()), c.Total())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "aba", "Clinical variant")
	cmd.Flags().StringVar(&counts, "counts", "", "Comma-separated outcome=count pairs; missing outcomes count 0")

	return cmd
}

// parseCounts parses "key=n,key=n" into a full tuple for tax.
func parseCounts(s string, tax *taxonomy.Taxonomy) (scoring.Counts, error) {
	c := scoring.NewCounts(tax)
	if strings.TrimSpace(s) == "" {
		return c, nil
	}
	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("invalid count %q: want outcome=n", part)
		}
		o := taxonomy.Outcome(strings.TrimSpace(key))
		if err := tax.CheckOutcome(o); err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count for %s: %q", o, val)
		}
		c[o] = n
	}
	return c, nil
}
