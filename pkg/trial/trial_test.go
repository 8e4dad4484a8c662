package trial_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

func rec(id string, attempt int, o taxonomy.Outcome) trial.Record {
	return trial.Record{ID: id, AttemptNumber: attempt, StimulusID: "S1", Outcome: o, RecordedAt: t0}
}

func TestBucket(t *testing.T) {
	assert.Equal(t, "S1", trial.Record{StimulusID: "S1"}.Bucket())
	assert.Equal(t, trial.UnknownStimulus, trial.Record{}.Bucket())
	assert.Equal(t, trial.UnknownStimulus, trial.Record{StimulusID: "   "}.Bucket())
}

func TestRemoveLastOfKind(t *testing.T) {
	in := []trial.Record{
		rec("A", 1, taxonomy.OutcomeError),
		rec("B", 2, taxonomy.OutcomeHelp),
		rec("C", 3, taxonomy.OutcomeError),
	}

	out, ok := trial.RemoveLastOfKind(in, taxonomy.OutcomeError)
	require.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].ID)
	assert.Equal(t, "B", out[1].ID)

	assert.Len(t, in, 3, "input must not be mutated")
	assert.Equal(t, "C", in[2].ID)
}

func TestRemoveLastOfKindNoMatch(t *testing.T) {
	in := []trial.Record{rec("A", 1, taxonomy.OutcomeHelp)}

	out, ok := trial.RemoveLastOfKind(in, taxonomy.OutcomeIndependent)
	assert.False(t, ok)
	assert.Equal(t, in, out)

	out, ok = trial.RemoveLastOfKind(nil, taxonomy.OutcomeError)
	assert.False(t, ok)
	assert.Empty(t, out)
}

func TestValidate(t *testing.T) {
	music := taxonomy.Music()
	neg := -1.0

	tests := []struct {
		name     string
		r        trial.Record
		mismatch bool
		wantErr  string
	}{
		{name: "valid", r: trial.Record{AttemptNumber: 1, Outcome: taxonomy.OutcomePerformed, Scores: trial.Scores{"participacao": 0}}},
		{name: "zero attempt", r: trial.Record{Outcome: taxonomy.OutcomePerformed}, wantErr: "attempt number"},
		{name: "foreign outcome", r: trial.Record{AttemptNumber: 1, Outcome: taxonomy.OutcomeHelp}, mismatch: true},
		{name: "negative duration", r: trial.Record{AttemptNumber: 1, Outcome: taxonomy.OutcomePerformed, DurationMinutes: &neg}, wantErr: "duration"},
		{name: "unknown score", r: trial.Record{AttemptNumber: 1, Outcome: taxonomy.OutcomePerformed, Scores: trial.Scores{"humor": 3}}, wantErr: "humor"},
		{name: "score out of range", r: trial.Record{AttemptNumber: 1, Outcome: taxonomy.OutcomePerformed, Scores: trial.Scores{"suporte": 0}}, wantErr: "outside"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := trial.Validate(tt.r, music)
			switch {
			case tt.mismatch:
				assert.ErrorIs(t, err, taxonomy.ErrConfigurationMismatch)
			case tt.wantErr != "":
				require.Error(t, err)
				assert.ErrorIs(t, err, trial.ErrInvalidRecord)
				assert.Contains(t, err.Error(), tt.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAllDuplicateAttempt(t *testing.T) {
	aba := taxonomy.ABA()
	records := []trial.Record{
		rec("A", 1, taxonomy.OutcomeError),
		rec("B", 1, taxonomy.OutcomeHelp),
	}
	err := trial.ValidateAll(records, aba)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate attempt")

	records[1].StimulusID = "S2"
	assert.NoError(t, trial.ValidateAll(records, aba))
}

func TestBlockAddRemove(t *testing.T) {
	b := trial.NewBlock("S1", taxonomy.ABA(), 0)

	for _, o := range []taxonomy.Outcome{taxonomy.OutcomeError, taxonomy.OutcomeHelp, taxonomy.OutcomeError} {
		_, err := b.Add(o, t0, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 2, b.Count(taxonomy.OutcomeError))

	require.True(t, b.RemoveLastOfKind(taxonomy.OutcomeError))
	trials := b.Trials()
	require.Len(t, trials, 2)
	assert.Equal(t, 1, trials[0].AttemptNumber)
	assert.Equal(t, 2, trials[1].AttemptNumber)

	assert.False(t, b.RemoveLastOfKind(taxonomy.OutcomeIndependent))
	assert.Equal(t, 2, b.Len())
}

func TestBlockAttemptNumbersStayUnique(t *testing.T) {
	b := trial.NewBlock("S1", taxonomy.ABA(), 0)
	_, _ = b.Add(taxonomy.OutcomeError, t0, nil)
	_, _ = b.Add(taxonomy.OutcomeHelp, t0, nil)
	_, _ = b.Add(taxonomy.OutcomeIndependent, t0, nil)

	// Removing from the middle must not let the next trial reuse attempt 3.
	require.True(t, b.RemoveLastOfKind(taxonomy.OutcomeHelp))
	r, err := b.Add(taxonomy.OutcomeHelp, t0, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, r.AttemptNumber)
	assert.NotEmpty(t, r.ID)
}

func TestBlockRejectsForeignOutcome(t *testing.T) {
	b := trial.NewBlock("S1", taxonomy.ABA(), 0)
	_, err := b.Add(taxonomy.OutcomePerformed, t0, nil)
	assert.ErrorIs(t, err, taxonomy.ErrConfigurationMismatch)
	assert.Equal(t, 0, b.Len())
}

func TestLedgerCommit(t *testing.T) {
	aba := taxonomy.ABA()
	l := trial.NewLedger("", aba)
	assert.NotEmpty(t, l.SessionID)

	b := l.OpenBlock("S1")
	_, _ = b.Add(taxonomy.OutcomeIndependent, t0, nil)
	_, _ = b.Add(taxonomy.OutcomeHelp, t0.Add(time.Minute), nil)
	require.NoError(t, b.SetDuration(12))

	committed, err := l.Commit(b)
	require.NoError(t, err)
	require.Len(t, committed, 2)
	assert.Nil(t, committed[0].DurationMinutes)
	require.NotNil(t, committed[1].DurationMinutes)
	assert.Equal(t, 12.0, *committed[1].DurationMinutes)

	assert.Equal(t, 3, l.NextAttempt("S1"))
	assert.Equal(t, 1, l.NextAttempt("S2"))

	next := l.OpenBlock("S1")
	r, err := next.Add(taxonomy.OutcomeError, t0, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, r.AttemptNumber)

	records := l.Records()
	records[0].Outcome = taxonomy.OutcomeError
	assert.Equal(t, taxonomy.OutcomeIndependent, l.Records()[0].Outcome, "ledger must hand out copies")
}

func TestLedgerRejectsForeignBlock(t *testing.T) {
	l := trial.NewLedger("s", taxonomy.ABA())
	b := trial.NewBlock("S1", taxonomy.Music(), 0)
	_, err := l.Commit(b)
	assert.ErrorIs(t, err, taxonomy.ErrConfigurationMismatch)
}

func TestLedgerRejectsStaleBlock(t *testing.T) {
	l := trial.NewLedger("s", taxonomy.ABA())
	stale := l.OpenBlock("S1")
	fresh := l.OpenBlock("S1")
	_, _ = fresh.Add(taxonomy.OutcomeHelp, t0, nil)
	_, _ = stale.Add(taxonomy.OutcomeHelp, t0, nil)

	_, err := l.Commit(fresh)
	require.NoError(t, err)
	_, err = l.Commit(stale)
	assert.ErrorIs(t, err, trial.ErrInvalidRecord)
}

func TestBlockSetDurationNegative(t *testing.T) {
	b := trial.NewBlock("S1", taxonomy.ABA(), 0)
	assert.Error(t, b.SetDuration(-3))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	d := 7.5
	f := &trial.File{
		SessionID: "sess-1",
		Variant:   taxonomy.VariantMusic,
		Planned:   []trial.Stimulus{{ID: "S1", Label: "Ritmo"}},
		Trials: []trial.Record{
			{AttemptNumber: 1, StimulusID: "S1", Outcome: taxonomy.OutcomePerformed, RecordedAt: t0, DurationMinutes: &d, Scores: trial.Scores{"participacao": 4}},
		},
	}
	require.NoError(t, trial.Save(path, f))

	got, err := trial.Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.SessionID, got.SessionID)
	assert.Equal(t, f.Variant, got.Variant)
	require.Len(t, got.Trials, 1)
	assert.True(t, got.Trials[0].RecordedAt.Equal(t0))
	assert.Equal(t, 4, got.Trials[0].Scores["participacao"])
}

func TestLoadMissing(t *testing.T) {
	_, err := trial.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := trial.Decode(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestRestoreLedgerContinuesNumbering(t *testing.T) {
	aba := taxonomy.ABA()
	committed := []trial.Record{rec("a", 1, taxonomy.OutcomeError), rec("b", 2, taxonomy.OutcomeHelp)}
	l := trial.RestoreLedger("s", aba, committed)

	assert.Equal(t, 3, l.NextAttempt("S1"))
	assert.Equal(t, 1, l.NextAttempt("S2"))

	b := l.OpenBlock("S1")
	r, err := b.Add(taxonomy.OutcomeIndependent, t0, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, r.AttemptNumber)

	committed[0].Outcome = taxonomy.OutcomeIndependent
	assert.Equal(t, taxonomy.OutcomeError, l.Records()[0].Outcome, "ledger must not alias its input")
}
