// Package trial defines the trial record, the atomic observation fed to the
// scoring engine, along with the draft/committed buffers used while a
// session is being registered.
package trial

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/therascope/therascope/pkg/taxonomy"
)

// UnknownStimulus is the bucket for records with an empty stimulus id.
const UnknownStimulus = "unknown"

// ErrInvalidRecord is wrapped by Validate for malformed records.
var ErrInvalidRecord = errors.New("invalid trial record")

// Record is one observation of a stimulus attempt. Records are immutable once
// created; corrections are made by removing or adding records.
type Record struct {
	ID              string           `json:"id,omitempty"`
	AttemptNumber   int              `json:"attempt_number"`
	StimulusID      string           `json:"stimulus_id"`
	Outcome         taxonomy.Outcome `json:"outcome"`
	RecordedAt      time.Time        `json:"recorded_at"`
	DurationMinutes *float64         `json:"duration_minutes,omitempty"`
	Scores          Scores           `json:"scores,omitempty"`
}

// Scores holds auxiliary ordinal ratings keyed by dimension. A missing key
// means the trial carries no value for that dimension.
type Scores map[string]int

// Bucket returns the aggregation key of the record.
func (r Record) Bucket() string {
	id := strings.TrimSpace(r.StimulusID)
	if id == "" {
		return UnknownStimulus
	}
	return id
}

// Score returns the value for a dimension and whether it is present.
func (r Record) Score(dim string) (int, bool) {
	if r.Scores == nil {
		return 0, false
	}
	v, ok := r.Scores[dim]
	return v, ok
}

// Stimulus is a planned stimulus or activity of a program.
type Stimulus struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// File is the on-disk layout of a recorded session.
type File struct {
	SessionID string           `json:"session_id,omitempty"`
	Variant   taxonomy.Variant `json:"variant"`
	Planned   []Stimulus       `json:"planned"`
	Trials    []Record         `json:"trials"`
}

// Validate checks a record against the taxonomy of its session. Outcome
// mismatches wrap taxonomy.ErrConfigurationMismatch; every other problem
// wraps ErrInvalidRecord.
func Validate(r Record, tax *taxonomy.Taxonomy) error {
	if r.AttemptNumber < 1 {
		return fmt.Errorf("%w: attempt number must be positive, got %d", ErrInvalidRecord, r.AttemptNumber)
	}
	if err := tax.CheckOutcome(r.Outcome); err != nil {
		return fmt.Errorf("attempt %d of %s: %w", r.AttemptNumber, r.Bucket(), err)
	}
	if r.DurationMinutes != nil && *r.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration must be non-negative, got %g", ErrInvalidRecord, *r.DurationMinutes)
	}
	for key, v := range r.Scores {
		dim, ok := tax.Dimension(key)
		if !ok {
			return fmt.Errorf("%w: %s taxonomy has no %q score", ErrInvalidRecord, tax.Variant, key)
		}
		if v < dim.Min || v > dim.Max {
			return fmt.Errorf("%w: %s score %d outside [%d, %d]", ErrInvalidRecord, key, v, dim.Min, dim.Max)
		}
	}
	return nil
}

// ValidateAll validates every record and checks attempt numbers are unique
// within a stimulus.
func ValidateAll(records []Record, tax *taxonomy.Taxonomy) error {
	type key struct {
		stimulus string
		attempt  int
	}
	seen := make(map[key]bool, len(records))
	for i, r := range records {
		if err := Validate(r, tax); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		k := key{r.Bucket(), r.AttemptNumber}
		if seen[k] {
			return fmt.Errorf("record %d: %w: duplicate attempt %d for %s", i, ErrInvalidRecord, r.AttemptNumber, k.stimulus)
		}
		seen[k] = true
	}
	return nil
}
