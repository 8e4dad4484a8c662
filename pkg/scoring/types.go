// Package scoring implements the session performance engine: it aggregates
// trial records into outcome counts, classifies them under a taxonomy,
// orders stimuli for presentation and rolls everything up into a session
// summary. Every function here is a pure computation over its arguments.
package scoring

import (
	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

// Counts maps each outcome of a taxonomy to the number of trials with that
// outcome. Values built by this package always carry every outcome key.
type Counts map[taxonomy.Outcome]int

// SortMode selects the presentation order of stimuli.
type SortMode string

const (
	SortSeverity     SortMode = "severity"
	SortAlphabetical SortMode = "alphabetical"
)

// Input is everything the engine needs to evaluate one session.
type Input struct {
	SessionID string           `json:"session_id,omitempty"`
	Trials    []trial.Record   `json:"trials"`
	Planned   []trial.Stimulus `json:"planned"`
	Sort      SortMode         `json:"sort,omitempty"`
}

// StimulusResult is the evaluation of one worked stimulus.
type StimulusResult struct {
	ID                  string          `json:"id"`
	Label               string          `json:"label"`
	Planned             bool            `json:"planned"`
	Counts              Counts          `json:"counts"`
	Total               int             `json:"total"`
	IndependencePercent int             `json:"independence_percent"`
	Status              taxonomy.Status `json:"status"`
	StatusLabel         string          `json:"status_label"`
	Severity            int             `json:"severity"`
	Tone                taxonomy.Tone   `json:"tone"`
	DurationMinutes     *float64        `json:"duration_minutes,omitempty"`
}

// Summary is the session-level roll-up.
type Summary struct {
	Counts              Counts              `json:"counts"`
	Total               int                 `json:"total"`
	IndependencePercent int                 `json:"independence_percent"`
	Status              taxonomy.Status     `json:"status"`
	StatusLabel         string              `json:"status_label"`
	PlannedCount        int                 `json:"planned_count"`
	WorkedCount         int                 `json:"worked_count"`
	NotWorked           []string            `json:"not_worked,omitempty"`       // planned, no trials
	UnplannedWorked     []string            `json:"unplanned_worked,omitempty"` // trials, not planned
	Means               map[string]*float64 `json:"means,omitempty"`            // nil entry: no trial carried a value
	Durations           map[string]float64  `json:"durations,omitempty"`        // per stimulus, last write wins
	DurationMinutes     float64             `json:"duration_minutes"`
}

// Report is the complete output of evaluating a session.
// Immutable once computed.
type Report struct {
	SessionID string            `json:"session_id,omitempty"`
	Variant   taxonomy.Variant  `json:"variant"`
	Strategy  taxonomy.Strategy `json:"strategy"`
	Sort      SortMode          `json:"sort"`
	Stimuli   []StimulusResult  `json:"stimuli"` // in Sort order
	Summary   Summary           `json:"summary"`
}

// Order returns the stimulus ids in presentation order.
func (r *Report) Order() []string {
	ids := make([]string, len(r.Stimuli))
	for i, s := range r.Stimuli {
		ids[i] = s.ID
	}
	return ids
}

// Stimulus returns the result for a stimulus id.
func (r *Report) Stimulus(id string) (StimulusResult, bool) {
	for _, s := range r.Stimuli {
		if s.ID == id {
			return s, true
		}
	}
	return StimulusResult{}, false
}
