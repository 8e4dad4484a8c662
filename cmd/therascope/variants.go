package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/therascope/therascope/pkg/taxonomy"
)

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List clinical variants with their outcomes and status order",
		RunE: func(cmd *cobra.Command, args []string) error {
			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

			out := cmd.OutOrStdout()
			for _, v := range taxonomy.Variants() {
				tax, err := cfg.Taxonomy(v)
				if err != nil {
					return err
				}

				fmt.Fprintln(out, headerStyle.Render(string(tax.Variant)))
				fmt.Fprintf(out, "  strategy: %s\n", tax.Strategy)
				if p := tax.Threshold; p != nil {
					fmt.Fprintf(out, "  %s\n", dimStyle.Render(fmt.Sprintf(
						"min %d trials, positive > %d%%, moderate > %d%%", p.MinTrials, p.PositiveAbove, p.ModerateAbove)))
				}

				outcomes := make([]string, len(tax.Outcomes))
				for i, o := range tax.Outcomes {
					outcomes[i] = fmt.Sprintf("%s (%s)", o.Key, o.Label)
				}
				fmt.Fprintf(out, "  outcomes: %s\n", strings.Join(outcomes, ", "))
				fmt.Fprintf(out, "  severity: %s\n", strings.Join(severityOrder(tax), " → "))

				for _, d := range tax.Dimensions {
					fmt.Fprintf(out, "  score %s: %d–%d\n", d.Key, d.Min, d.Max)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// severityOrder lists statuses worst first, unranked ones last.
func severityOrder(tax *taxonomy.Taxonomy) []string {
	defs := append([]taxonomy.StatusDef(nil), tax.Statuses...)
	sort.SliceStable(defs, func(i, j int) bool {
		a, b := defs[i].Severity, defs[j].Severity
		if a == taxonomy.Unranked {
			return false
		}
		if b == taxonomy.Unranked {
			return true
		}
		return a < b
	})

	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = string(d.Key)
	}
	return out
}
