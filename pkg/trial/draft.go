package trial

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/therascope/therascope/pkg/taxonomy"
)

// RemoveLastOfKind returns a copy of records without the most recently added
// record whose outcome is o. The boolean reports whether a record was removed;
// when none matches the copy equals the input.
func RemoveLastOfKind(records []Record, o taxonomy.Outcome) ([]Record, bool) {
	idx := -1
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Outcome == o {
			idx = i
			break
		}
	}
	out := make([]Record, 0, len(records))
	if idx < 0 {
		return append(out, records...), false
	}
	out = append(out, records[:idx]...)
	out = append(out, records[idx+1:]...)
	return out, true
}

// Block is the draft trial list of one activity block. It is owned by a
// single caller and applied as an ordered sequence of Add/Remove calls.
type Block struct {
	stimulusID string
	tax        *taxonomy.Taxonomy
	floor      int // highest attempt number already committed for the stimulus
	trials     []Record
	duration   *float64
}

// NewBlock opens a draft block. committedMax is the highest attempt number
// already committed for the stimulus in this session.
func NewBlock(stimulusID string, tax *taxonomy.Taxonomy, committedMax int) *Block {
	return &Block{stimulusID: stimulusID, tax: tax, floor: committedMax}
}

// StimulusID returns the stimulus the block records.
func (b *Block) StimulusID() string { return b.stimulusID }

// Add appends a trial with the next attempt number.
func (b *Block) Add(o taxonomy.Outcome, at time.Time, scores Scores) (Record, error) {
	r := Record{
		ID:            uuid.NewString(),
		AttemptNumber: b.nextAttempt(),
		StimulusID:    b.stimulusID,
		Outcome:       o,
		RecordedAt:    at,
		Scores:        scores,
	}
	if err := Validate(r, b.tax); err != nil {
		return Record{}, err
	}
	b.trials = append(b.trials, r)
	return r, nil
}

// RemoveLastOfKind drops the most recent trial with outcome o. It is a no-op
// returning false when the block has no such trial.
func (b *Block) RemoveLastOfKind(o taxonomy.Outcome) bool {
	next, ok := RemoveLastOfKind(b.trials, o)
	b.trials = next
	return ok
}

// SetDuration records the block duration. It is attached to the last trial
// on commit.
func (b *Block) SetDuration(minutes float64) error {
	if minutes < 0 {
		return fmt.Errorf("%w: duration must be non-negative, got %g", ErrInvalidRecord, minutes)
	}
	b.duration = &minutes
	return nil
}

// Len returns the number of draft trials.
func (b *Block) Len() int { return len(b.trials) }

// Trials returns a copy of the draft trials in registration order.
func (b *Block) Trials() []Record {
	return append([]Record(nil), b.trials...)
}

// Count returns how many draft trials have outcome o.
func (b *Block) Count(o taxonomy.Outcome) int {
	n := 0
	for _, r := range b.trials {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

func (b *Block) nextAttempt() int {
	max := b.floor
	for _, r := range b.trials {
		if r.AttemptNumber > max {
			max = r.AttemptNumber
		}
	}
	return max + 1
}

// Ledger is the committed trial list of one session. Committed records are
// never modified.
type Ledger struct {
	SessionID string
	tax       *taxonomy.Taxonomy
	records   []Record
}

// NewLedger creates an empty ledger. An empty sessionID is replaced by a new uuid.
func NewLedger(sessionID string, tax *taxonomy.Taxonomy) *Ledger {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Ledger{SessionID: sessionID, tax: tax}
}

// RestoreLedger rebuilds a ledger from records committed earlier, e.g. loaded
// from storage. The records are copied.
func RestoreLedger(sessionID string, tax *taxonomy.Taxonomy, committed []Record) *Ledger {
	l := NewLedger(sessionID, tax)
	l.records = append([]Record(nil), committed...)
	return l
}

// Taxonomy returns the taxonomy the session was opened with.
func (l *Ledger) Taxonomy() *taxonomy.Taxonomy { return l.tax }

// OpenBlock starts a draft block for a stimulus, numbering attempts after
// those already committed.
func (l *Ledger) OpenBlock(stimulusID string) *Block {
	return NewBlock(stimulusID, l.tax, l.NextAttempt(stimulusID)-1)
}

// NextAttempt returns the attempt number the next committed trial of the
// stimulus would take.
func (l *Ledger) NextAttempt(stimulusID string) int {
	bucket := Record{StimulusID: stimulusID}.Bucket()
	max := 0
	for _, r := range l.records {
		if r.Bucket() == bucket && r.AttemptNumber > max {
			max = r.AttemptNumber
		}
	}
	return max + 1
}

// Commit appends the block's trials to the ledger and returns them. The block
// duration, if set, is carried by the last trial. Blocks belonging to another
// taxonomy are rejected.
func (l *Ledger) Commit(b *Block) ([]Record, error) {
	if b.tax == nil || l.tax == nil || b.tax.Variant != l.tax.Variant {
		return nil, fmt.Errorf("committing block for %s: %w", b.stimulusID, taxonomy.ErrConfigurationMismatch)
	}
	trials := b.Trials()
	if len(trials) > 0 && b.duration != nil {
		d := *b.duration
		trials[len(trials)-1].DurationMinutes = &d
	}
	floor := l.NextAttempt(b.stimulusID)
	for _, r := range trials {
		if r.AttemptNumber < floor {
			return nil, fmt.Errorf("%w: attempt %d of %s is already committed", ErrInvalidRecord, r.AttemptNumber, r.Bucket())
		}
	}
	l.records = append(l.records, trials...)
	return trials, nil
}

// Records returns a copy of every committed trial in commit order.
func (l *Ledger) Records() []Record {
	return append([]Record(nil), l.records...)
}
