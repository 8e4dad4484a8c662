package scoring

import (
	"fmt"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/therascope/therascope/pkg/taxonomy"
)

// Engine evaluates sessions under one taxonomy. It holds no mutable state and
// may be shared between goroutines.
type Engine struct {
	tax        *taxonomy.Taxonomy
	classifier Classifier
	locale     language.Tag
	logger     *slog.Logger
}

// NewEngine creates an engine for tax. The taxonomy is validated once here.
func NewEngine(tax *taxonomy.Taxonomy, opts ...Option) (*Engine, error) {
	if tax == nil {
		return nil, fmt.Errorf("taxonomy is nil")
	}
	if err := tax.Validate(); err != nil {
		return nil, fmt.Errorf("invalid taxonomy: %w", err)
	}
	cl, err := NewClassifier(tax)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		tax:        tax,
		classifier: cl,
		locale:     DefaultLocale,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Taxonomy returns the taxonomy the engine evaluates under.
func (e *Engine) Taxonomy() *taxonomy.Taxonomy { return e.tax }

// Classify classifies a single tuple.
func (e *Engine) Classify(c Counts) (taxonomy.Status, error) {
	if err := checkCounts(c, e.tax); err != nil {
		return "", err
	}
	return e.classifier.Classify(c), nil
}

// Evaluate aggregates, classifies, ranks and summarizes a session.
func (e *Engine) Evaluate(in Input) (*Report, error) {
	mode := in.Sort
	if mode == "" {
		mode = SortSeverity
	}

	perStimulus, err := AggregateByStimulus(in.Trials, e.tax)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(in.Planned))
	planned := make([]string, 0, len(in.Planned))
	for _, s := range in.Planned {
		planned = append(planned, s.ID)
		if s.Label != "" {
			labels[s.ID] = s.Label
		}
	}

	summary, err := Summarize(perStimulus, planned, in.Trials, e.tax)
	if err != nil {
		return nil, err
	}

	plannedSet := make(map[string]bool, len(planned))
	for _, id := range planned {
		plannedSet[id] = true
	}

	// Stable base order: planned stimuli in program order, then unplanned ids.
	var ids []string
	for _, id := range planned {
		if _, ok := perStimulus[id]; ok && !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	ids = append(ids, summary.UnplannedWorked...)

	results := make([]StimulusResult, 0, len(ids))
	for _, id := range ids {
		c := perStimulus[id]
		status := e.classifier.Classify(c)
		d := taxonomy.Describe(status, e.tax)
		label := labels[id]
		if label == "" {
			label = id
		}
		res := StimulusResult{
			ID:                  id,
			Label:               label,
			Planned:             plannedSet[id],
			Counts:              c,
			Total:               c.Total(),
			IndependencePercent: Percent(c.Get(e.tax.Independent), c.Total()),
			Status:              status,
			StatusLabel:         d.Label,
			Severity:            d.Severity,
			Tone:                d.Tone,
		}
		if v, ok := summary.Durations[id]; ok {
			res.DurationMinutes = &v
		}
		results = append(results, res)
	}

	report := &Report{
		SessionID: in.SessionID,
		Variant:   e.tax.Variant,
		Strategy:  e.tax.Strategy,
		Summary:   *summary,
		Stimuli:   results,
	}
	sorted, err := e.Resort(report, mode)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("session evaluated",
		"session", in.SessionID,
		"variant", e.tax.Variant,
		"trials", len(in.Trials),
		"worked", summary.WorkedCount,
		"planned", summary.PlannedCount,
		"status", summary.Status,
	)
	return sorted, nil
}

// Resort returns a copy of r with stimuli in the order of mode. Counts and
// statuses are reused as-is; r is not modified.
func (e *Engine) Resort(r *Report, mode SortMode) (*Report, error) {
	items := make([]RankItem, len(r.Stimuli))
	for i, s := range r.Stimuli {
		items[i] = RankItem{Label: s.Label, Status: s.Status, Counts: s.Counts}
	}
	order, err := Rank(items, mode, e.tax, e.locale)
	if err != nil {
		return nil, err
	}

	out := *r
	out.Sort = mode
	out.Stimuli = make([]StimulusResult, len(order))
	for i, idx := range order {
		out.Stimuli[i] = r.Stimuli[idx]
	}
	return &out, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
