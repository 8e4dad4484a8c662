package surface

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/therascope/therascope/pkg/scoring"
	"github.com/therascope/therascope/pkg/taxonomy"
)

// TerminalRenderer renders a Report as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func toneColor(tone taxonomy.Tone) string {
	if noColor() {
		return ""
	}
	switch tone {
	case taxonomy.ToneSuccess:
		return colorGreen
	case taxonomy.ToneWarning:
		return colorYellow
	case taxonomy.ToneDanger:
		return colorRed
	default:
		return ""
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, report *scoring.Report) error {
	sum := report.Summary
	tone := statusTone(report, sum.Status)

	// Header
	title := fmt.Sprintf("Sessão %s (%s)", report.SessionID, report.Variant)
	if report.SessionID == "" {
		title = fmt.Sprintf("Sessão (%s)", report.Variant)
	}
	fmt.Fprintf(w, "%s\n\n", bold(title))

	fmt.Fprintf(w, "Status: %s — %d%% independente em %d tentativas\n",
		colored(sum.StatusLabel, toneColor(tone)), sum.IndependencePercent, sum.Total)
	fmt.Fprintf(w, "Estímulos trabalhados: %d de %d planejados\n", sum.WorkedCount, sum.PlannedCount)
	fmt.Fprintf(w, "Totais: %s\n\n", formatCounts(sum.Counts))

	if len(report.Stimuli) == 0 {
		fmt.Fprintln(w, "Nenhuma tentativa registrada.")
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "Estímulos (%s):\n", report.Sort)
		for _, s := range report.Stimuli {
			marker := colored("●", toneColor(s.Tone))
			fmt.Fprintf(w, "  %s %s — %s", marker, bold(s.Label), s.StatusLabel)
			fmt.Fprintf(w, " %s", dim(fmt.Sprintf("(%d%%, %s)", s.IndependencePercent, formatCounts(s.Counts))))
			if !s.Planned {
				fmt.Fprintf(w, " %s", dim("[fora do plano]"))
			}
			fmt.Fprintln(w)
			if s.DurationMinutes != nil {
				fmt.Fprintf(w, "      %s\n", dim(fmt.Sprintf("duração: %g min", *s.DurationMinutes)))
			}
		}
		fmt.Fprintln(w)
	}

	if len(sum.NotWorked) > 0 {
		fmt.Fprintln(w, "Não trabalhados:")
		for _, id := range sum.NotWorked {
			fmt.Fprintf(w, "  • %s\n", id)
		}
		fmt.Fprintln(w)
	}

	if len(sum.Means) > 0 {
		fmt.Fprintln(w, "Médias:")
		for _, key := range sortedKeys(sum.Means) {
			fmt.Fprintf(w, "  %s: %s\n", key, formatMean(sum.Means[key]))
		}
		fmt.Fprintln(w)
	}

	return nil
}

func statusTone(report *scoring.Report, s taxonomy.Status) taxonomy.Tone {
	tax, err := taxonomy.Lookup(report.Variant)
	if err != nil {
		return taxonomy.ToneNeutral
	}
	return taxonomy.Describe(s, tax).Tone
}

// formatCounts renders a tuple as "key=n" pairs in key order.
func formatCounts(c scoring.Counts) string {
	keys := make([]string, 0, len(c))
	for o := range c {
		keys = append(keys, string(o))
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, c[taxonomy.Outcome(k)])
	}
	return strings.Join(parts, " ")
}

func formatMean(m *float64) string {
	if m == nil {
		return "sem dados"
	}
	return fmt.Sprintf("%.1f", *m)
}

func sortedKeys(m map[string]*float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
