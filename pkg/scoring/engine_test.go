package scoring_test

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"github.com/therascope/therascope/pkg/scoring"
	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

func endToEndInput() scoring.Input {
	s1 := trials("S1",
		taxonomy.OutcomeIndependent, taxonomy.OutcomeHelp, taxonomy.OutcomeIndependent,
		taxonomy.OutcomeHelp, taxonomy.OutcomeIndependent,
	)
	s2 := trials("S2", taxonomy.OutcomeIndependent)
	return scoring.Input{
		SessionID: "sess-1",
		Trials:    append(s1, s2...),
		Planned: []trial.Stimulus{
			{ID: "S1", Label: "Nomear cores"},
			{ID: "S2", Label: "Apontar figuras"},
			{ID: "S3", Label: "Imitar sons"},
		},
	}
}

func newEngine(t *testing.T, tax *taxonomy.Taxonomy, opts ...scoring.Option) *scoring.Engine {
	t.Helper()
	e, err := scoring.NewEngine(tax, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func evaluate(t *testing.T, e *scoring.Engine, in scoring.Input) *scoring.Report {
	t.Helper()
	report, err := e.Evaluate(in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return report
}

func checkOrder(t *testing.T, report *scoring.Report, want ...string) {
	t.Helper()
	if got := report.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestEngineEndToEnd(t *testing.T) {
	e := newEngine(t, taxonomy.ABA())
	report := evaluate(t, e, endToEndInput())

	s1, ok := report.Stimulus("S1")
	if !ok {
		t.Fatal("expected a result for S1")
	}
	if s1.Total != 5 || s1.IndependencePercent != 60 {
		t.Errorf("S1 total/percent = %d/%d, want 5/60", s1.Total, s1.IndependencePercent)
	}
	if s1.Status != taxonomy.StatusAttention {
		t.Errorf("S1 status = %s, want attention", s1.Status)
	}
	if s1.Label != "Nomear cores" || !s1.Planned {
		t.Errorf("S1 label/planned = %q/%v", s1.Label, s1.Planned)
	}

	s2, ok := report.Stimulus("S2")
	if !ok {
		t.Fatal("expected a result for S2")
	}
	if s2.Total != 1 || s2.Status != taxonomy.StatusInsufficient {
		t.Errorf("S2 total/status = %d/%s, want 1/insufficient", s2.Total, s2.Status)
	}

	if _, ok := report.Stimulus("S3"); ok {
		t.Error("planned but not worked stimuli have no result")
	}

	sum := report.Summary
	if !sum.Counts.Equal(aba(0, 2, 4)) {
		t.Errorf("summary counts = %v", sum.Counts)
	}
	if sum.Total != 6 || sum.IndependencePercent != 67 {
		t.Errorf("summary total/percent = %d/%d, want 6/67", sum.Total, sum.IndependencePercent)
	}
	if sum.Status != taxonomy.StatusModerate {
		t.Errorf("summary status = %s, want moderate", sum.Status)
	}
	if sum.WorkedCount != 2 || sum.PlannedCount != 3 {
		t.Errorf("worked/planned = %d/%d, want 2/3", sum.WorkedCount, sum.PlannedCount)
	}
	if !reflect.DeepEqual(sum.NotWorked, []string{"S3"}) {
		t.Errorf("not worked = %v", sum.NotWorked)
	}

	if report.Sort != scoring.SortSeverity {
		t.Errorf("sort = %s, want severity", report.Sort)
	}
	checkOrder(t, report, "S1", "S2")
	if report.Variant != taxonomy.VariantABA || report.SessionID != "sess-1" {
		t.Errorf("variant/session = %s/%s", report.Variant, report.SessionID)
	}
}

func TestEngineResort(t *testing.T) {
	e := newEngine(t, taxonomy.ABA())
	report := evaluate(t, e, endToEndInput())

	alpha, err := e.Resort(report, scoring.SortAlphabetical)
	if err != nil {
		t.Fatalf("Resort: %v", err)
	}
	checkOrder(t, alpha, "S2", "S1") // Apontar before Nomear
	if alpha.Sort != scoring.SortAlphabetical {
		t.Errorf("sort = %s, want alphabetical", alpha.Sort)
	}

	// source report is untouched
	checkOrder(t, report, "S1", "S2")
	if report.Sort != scoring.SortSeverity {
		t.Errorf("source sort changed to %s", report.Sort)
	}

	back, err := e.Resort(alpha, scoring.SortSeverity)
	if err != nil {
		t.Fatalf("Resort: %v", err)
	}
	checkOrder(t, back, report.Order()...)
	if !back.Summary.Counts.Equal(report.Summary.Counts) {
		t.Errorf("resorting changed counts: %v vs %v", back.Summary.Counts, report.Summary.Counts)
	}

	if _, err := e.Resort(report, "shuffle"); err == nil {
		t.Error("expected error for unknown sort mode")
	}
}

func TestEngineEmptySession(t *testing.T) {
	e := newEngine(t, taxonomy.ABA())
	report := evaluate(t, e, scoring.Input{})

	if len(report.Stimuli) != 0 {
		t.Errorf("expected no stimuli, got %d", len(report.Stimuli))
	}
	if report.Summary.WorkedCount != 0 {
		t.Errorf("worked = %d, want 0", report.Summary.WorkedCount)
	}
	if report.Summary.Status != taxonomy.StatusInsufficient {
		t.Errorf("status = %s, want insufficient", report.Summary.Status)
	}
}

func TestEngineMismatchFailsLoudly(t *testing.T) {
	e := newEngine(t, taxonomy.ABA())

	_, err := e.Evaluate(scoring.Input{Trials: trials("S1", taxonomy.OutcomePerformed)})
	if !errors.Is(err, taxonomy.ErrConfigurationMismatch) {
		t.Errorf("Evaluate: expected ErrConfigurationMismatch, got %v", err)
	}
	if _, err := e.Classify(perf(1, 0, 0)); !errors.Is(err, taxonomy.ErrConfigurationMismatch) {
		t.Errorf("Classify: expected ErrConfigurationMismatch, got %v", err)
	}
}

func TestEngineMusicSession(t *testing.T) {
	e := newEngine(t, taxonomy.Music())
	records := trials("ritmo", taxonomy.OutcomePerformed, taxonomy.OutcomePerformed, taxonomy.OutcomeWithHelp)
	records[0].Scores = trial.Scores{"participacao": 4, "suporte": 2}
	records[1].Scores = trial.Scores{"participacao": 2}
	records[2].DurationMinutes = minutes(15)
	records = append(records, trials("canto", repeat(taxonomy.OutcomeNotPerformed, 2)...)...)

	report := evaluate(t, e, scoring.Input{
		Trials:  records,
		Planned: []trial.Stimulus{{ID: "ritmo", Label: "Ritmo"}, {ID: "canto", Label: "Canto"}},
	})

	// not performed sorts first
	checkOrder(t, report, "canto", "ritmo")

	ritmo, _ := report.Stimulus("ritmo")
	if ritmo.Status != taxonomy.StatusPerformed || ritmo.IndependencePercent != 67 {
		t.Errorf("ritmo status/percent = %s/%d, want performed/67", ritmo.Status, ritmo.IndependencePercent)
	}
	if ritmo.DurationMinutes == nil || *ritmo.DurationMinutes != 15 {
		t.Errorf("ritmo duration = %v, want 15", ritmo.DurationMinutes)
	}

	canto, _ := report.Stimulus("canto")
	if canto.Status != taxonomy.StatusNotPerformed || canto.Tone != taxonomy.ToneDanger {
		t.Errorf("canto status/tone = %s/%s", canto.Status, canto.Tone)
	}

	for dim, want := range map[string]float64{"participacao": 3, "suporte": 2} {
		m := report.Summary.Means[dim]
		if m == nil {
			t.Errorf("expected a %s mean", dim)
			continue
		}
		if math.Abs(*m-want) > 1e-9 {
			t.Errorf("%s mean = %f, want %f", dim, *m, want)
		}
	}
	// 2 performed, 1 with help, 2 not performed: performed wins the tie
	if report.Summary.Status != taxonomy.StatusPerformed {
		t.Errorf("summary status = %s, want performed", report.Summary.Status)
	}
}

func TestEngineUnplannedAndUnknown(t *testing.T) {
	e := newEngine(t, taxonomy.ABA())
	records := append(trials("S1", taxonomy.OutcomeHelp), trials("", taxonomy.OutcomeError)...)
	records = append(records, trials("S7", taxonomy.OutcomeIndependent)...)

	report := evaluate(t, e, scoring.Input{
		Trials:  records,
		Planned: []trial.Stimulus{{ID: "S1"}},
		Sort:    scoring.SortAlphabetical,
	})

	if report.Summary.WorkedCount != 3 {
		t.Errorf("worked = %d, want 3", report.Summary.WorkedCount)
	}
	if want := []string{"S7", trial.UnknownStimulus}; !reflect.DeepEqual(report.Summary.UnplannedWorked, want) {
		t.Errorf("unplanned worked = %v, want %v", report.Summary.UnplannedWorked, want)
	}
	checkOrder(t, report, "S1", "S7", "unknown")

	s7, _ := report.Stimulus("S7")
	if s7.Label != "S7" {
		t.Errorf("label should fall back to id, got %q", s7.Label)
	}
	if s7.Planned {
		t.Error("S7 is not planned")
	}
}

func TestNewEngineRejectsInvalidTaxonomy(t *testing.T) {
	if _, err := scoring.NewEngine(nil); err == nil {
		t.Error("expected error for nil taxonomy")
	}

	broken := taxonomy.ABA()
	broken.Outcomes = broken.Outcomes[:1]
	if _, err := scoring.NewEngine(broken); err == nil {
		t.Error("expected error for taxonomy with missing outcomes")
	}
}

func TestEngineOptions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := newEngine(t, taxonomy.ABA(), scoring.WithLogger(logger), scoring.WithLocale(language.English), scoring.WithLogger(nil))
	evaluate(t, e, endToEndInput())

	out := buf.String()
	if !strings.Contains(out, "session evaluated") || !strings.Contains(out, "sess-1") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestParseLocale(t *testing.T) {
	tag, err := scoring.ParseLocale("")
	if err != nil {
		t.Fatalf("ParseLocale(\"\"): %v", err)
	}
	if tag.String() != scoring.DefaultLocale.String() {
		t.Errorf("ParseLocale(\"\") = %s, want %s", tag, scoring.DefaultLocale)
	}

	tag, err = scoring.ParseLocale("en-US")
	if err != nil {
		t.Fatalf("ParseLocale(en-US): %v", err)
	}
	if tag.String() != "en-US" {
		t.Errorf("ParseLocale(en-US) = %s", tag)
	}

	if _, err := scoring.ParseLocale("not a locale!"); err == nil {
		t.Error("expected error for invalid locale")
	}
}
