package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/therascope/therascope/pkg/scoring"
)

// MarkdownRenderer produces a Markdown session note, suitable for attaching
// to a patient record.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, report *scoring.Report) error {
	_, err := io.WriteString(w, BuildMarkdown(report))
	return err
}

// BuildMarkdown returns the Markdown note for a report.
func BuildMarkdown(report *scoring.Report) string {
	var sb strings.Builder
	sum := report.Summary

	sb.WriteString(fmt.Sprintf("## Sessão %s — %s\n\n", report.SessionID, sum.StatusLabel))

	sb.WriteString("| Indicador | Valor |\n|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Tentativas | %d |\n", sum.Total))
	sb.WriteString(fmt.Sprintf("| Independência | %d%% |\n", sum.IndependencePercent))
	sb.WriteString(fmt.Sprintf("| Estímulos trabalhados | %d / %d |\n", sum.WorkedCount, sum.PlannedCount))
	if sum.DurationMinutes > 0 {
		sb.WriteString(fmt.Sprintf("| Duração | %g min |\n", sum.DurationMinutes))
	}
	for _, key := range sortedKeys(sum.Means) {
		sb.WriteString(fmt.Sprintf("| Média %s | %s |\n", key, formatMean(sum.Means[key])))
	}
	sb.WriteString("\n")

	sb.WriteString("### Estímulos\n\n")
	if len(report.Stimuli) == 0 {
		sb.WriteString("_Nenhuma tentativa registrada._\n")
		return sb.String()
	}
	for _, s := range report.Stimuli {
		sb.WriteString(fmt.Sprintf("- **%s** — %s (%d%%; %s)\n",
			s.Label, s.StatusLabel, s.IndependencePercent, formatCounts(s.Counts)))
	}

	if len(sum.NotWorked) > 0 {
		sb.WriteString("\n### Não trabalhados\n\n")
		for _, id := range sum.NotWorked {
			sb.WriteString(fmt.Sprintf("- %s\n", id))
		}
	}
	return sb.String()
}
