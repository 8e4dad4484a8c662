// Package taxonomy defines the outcome vocabularies used to record therapy
// trials and the classification policy attached to each clinical variant.
// A Taxonomy is immutable configuration; resolve it once per session.
package taxonomy

import (
	"errors"
	"fmt"
)

// ErrConfigurationMismatch is returned when an outcome does not belong to the
// taxonomy it is being evaluated against.
var ErrConfigurationMismatch = errors.New("configuration mismatch")

// ErrUnknownVariant is returned by Lookup for a variant with no taxonomy.
var ErrUnknownVariant = errors.New("unknown variant")

// Variant identifies a clinical discipline.
type Variant string

const (
	VariantABA           Variant = "aba"
	VariantOccupational  Variant = "occupational"
	VariantPhysiotherapy Variant = "physiotherapy"
	VariantMusic         Variant = "music"
)

// Strategy selects the classification rule of a taxonomy.
type Strategy string

const (
	StrategyThreshold   Strategy = "threshold-independence"
	StrategyPredominant Strategy = "predominant-outcome"
)

// Outcome is the stable key of one outcome kind.
type Outcome string

const (
	OutcomeError       Outcome = "error"
	OutcomeHelp        Outcome = "help"
	OutcomeIndependent Outcome = "independent"

	OutcomeNotPerformed Outcome = "not_performed"
	OutcomeWithHelp     Outcome = "with_help"
	OutcomePerformed    Outcome = "performed"
)

// Status is the qualitative classification of a count tuple.
type Status string

const (
	StatusInsufficient Status = "insufficient"
	StatusPositive     Status = "positive"
	StatusModerate     Status = "moderate"
	StatusAttention    Status = "attention"

	StatusNotPerformed Status = "not_performed"
	StatusWithHelp     Status = "with_help"
	StatusPerformed    Status = "performed"
)

// Tone is a presentation hint for a status, replacing per-screen color tables.
type Tone string

const (
	ToneDanger  Tone = "danger"
	ToneWarning Tone = "warning"
	ToneSuccess Tone = "success"
	ToneNeutral Tone = "neutral"
)

// Unranked marks a status that has no place on the severity scale.
// Such statuses sort after every ranked one.
const Unranked = -1

// OutcomeDef describes one outcome kind.
type OutcomeDef struct {
	Key      Outcome `json:"key" yaml:"key"`
	Label    string  `json:"label" yaml:"label"`
	Severity int     `json:"severity" yaml:"severity"` // 0 is worst
}

// StatusDef describes one status. Severity 0 is the worst; Unranked sorts last.
type StatusDef struct {
	Key      Status `json:"key" yaml:"key"`
	Label    string `json:"label" yaml:"label"`
	Severity int    `json:"severity" yaml:"severity"`
	Tone     Tone   `json:"tone" yaml:"tone"`
}

// ThresholdParams are the cut points of the threshold-independence strategy.
// Comparisons are strict: a rate equal to PositiveAbove is not positive.
type ThresholdParams struct {
	MinTrials     int `json:"min_trials" yaml:"min_trials"`
	PositiveAbove int `json:"positive_above" yaml:"positive_above"`
	ModerateAbove int `json:"moderate_above" yaml:"moderate_above"`
}

// PredominantParams configure the predominant-outcome strategy.
type PredominantParams struct {
	// TieBreak lists outcomes best first; the first one reaching the maximum wins.
	TieBreak []Outcome `json:"tie_break" yaml:"tie_break"`
	// Bindings maps each outcome to the status it produces when predominant.
	Bindings map[Outcome]Status `json:"bindings" yaml:"bindings"`
	// Empty is the status for an all-zero tuple.
	Empty Status `json:"empty" yaml:"empty"`
}

// Dimension is an auxiliary ordinal scale recorded on some trials.
type Dimension struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	Min   int    `json:"min" yaml:"min"`
	Max   int    `json:"max" yaml:"max"`
}

// Taxonomy is the full outcome vocabulary and classification policy of a variant.
type Taxonomy struct {
	Variant     Variant            `json:"variant"`
	Strategy    Strategy           `json:"strategy"`
	Outcomes    []OutcomeDef       `json:"outcomes"`
	Statuses    []StatusDef        `json:"statuses"`
	Independent Outcome            `json:"independent"` // counted by the independence percentage
	Threshold   *ThresholdParams   `json:"threshold,omitempty"`
	Predominant *PredominantParams `json:"predominant,omitempty"`
	Dimensions  []Dimension        `json:"dimensions,omitempty"`
}

// Has reports whether o is one of the taxonomy's outcomes.
func (t *Taxonomy) Has(o Outcome) bool {
	for _, def := range t.Outcomes {
		if def.Key == o {
			return true
		}
	}
	return false
}

// Keys returns the outcome keys in declaration order.
func (t *Taxonomy) Keys() []Outcome {
	keys := make([]Outcome, len(t.Outcomes))
	for i, def := range t.Outcomes {
		keys[i] = def.Key
	}
	return keys
}

// Outcome returns the definition of o.
func (t *Taxonomy) Outcome(o Outcome) (OutcomeDef, bool) {
	for _, def := range t.Outcomes {
		if def.Key == o {
			return def, true
		}
	}
	return OutcomeDef{}, false
}

// Dimension returns the auxiliary dimension with the given key.
func (t *Taxonomy) Dimension(key string) (Dimension, bool) {
	for _, d := range t.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return Dimension{}, false
}

// CheckOutcome returns ErrConfigurationMismatch wrapped with context when o
// does not belong to the taxonomy.
func (t *Taxonomy) CheckOutcome(o Outcome) error {
	if !t.Has(o) {
		return fmt.Errorf("outcome %q is not part of the %s taxonomy: %w", o, t.Variant, ErrConfigurationMismatch)
	}
	return nil
}

// Validate checks that the taxonomy is internally consistent.
func (t *Taxonomy) Validate() error {
	if len(t.Outcomes) != 3 {
		return fmt.Errorf("taxonomy %s: expected 3 outcomes, got %d", t.Variant, len(t.Outcomes))
	}
	seen := make(map[Outcome]bool, len(t.Outcomes))
	for _, def := range t.Outcomes {
		if def.Key == "" {
			return fmt.Errorf("taxonomy %s: empty outcome key", t.Variant)
		}
		if seen[def.Key] {
			return fmt.Errorf("taxonomy %s: duplicate outcome %q", t.Variant, def.Key)
		}
		seen[def.Key] = true
	}
	if !t.Has(t.Independent) {
		return fmt.Errorf("taxonomy %s: independent outcome %q is not declared", t.Variant, t.Independent)
	}

	switch t.Strategy {
	case StrategyThreshold:
		p := t.Threshold
		if p == nil {
			return fmt.Errorf("taxonomy %s: threshold parameters are required", t.Variant)
		}
		if p.MinTrials < 1 {
			return fmt.Errorf("taxonomy %s: min_trials must be at least 1, got %d", t.Variant, p.MinTrials)
		}
		if p.ModerateAbove < 0 || p.PositiveAbove > 100 || p.ModerateAbove >= p.PositiveAbove {
			return fmt.Errorf("taxonomy %s: cut points must satisfy 0 <= moderate_above < positive_above <= 100, got %d/%d",
				t.Variant, p.ModerateAbove, p.PositiveAbove)
		}
		for _, s := range []Status{StatusInsufficient, StatusPositive, StatusModerate, StatusAttention} {
			if _, ok := t.status(s); !ok {
				return fmt.Errorf("taxonomy %s: missing status %q", t.Variant, s)
			}
		}
	case StrategyPredominant:
		p := t.Predominant
		if p == nil {
			return fmt.Errorf("taxonomy %s: predominant parameters are required", t.Variant)
		}
		if len(p.TieBreak) != len(t.Outcomes) {
			return fmt.Errorf("taxonomy %s: tie-break must list every outcome", t.Variant)
		}
		for _, o := range p.TieBreak {
			if err := t.CheckOutcome(o); err != nil {
				return err
			}
			s, ok := p.Bindings[o]
			if !ok {
				return fmt.Errorf("taxonomy %s: outcome %q has no bound status", t.Variant, o)
			}
			if _, ok := t.status(s); !ok {
				return fmt.Errorf("taxonomy %s: bound status %q is not declared", t.Variant, s)
			}
		}
		if _, ok := t.status(p.Empty); !ok {
			return fmt.Errorf("taxonomy %s: empty status %q is not declared", t.Variant, p.Empty)
		}
	default:
		return fmt.Errorf("taxonomy %s: unknown strategy %q", t.Variant, t.Strategy)
	}

	for _, d := range t.Dimensions {
		if d.Min > d.Max {
			return fmt.Errorf("taxonomy %s: dimension %s has min %d > max %d", t.Variant, d.Key, d.Min, d.Max)
		}
	}
	return nil
}

// WithThreshold returns a copy of the taxonomy with the given cut points.
// It is meaningful only for threshold-independence taxonomies.
func (t *Taxonomy) WithThreshold(p ThresholdParams) *Taxonomy {
	c := t.clone()
	c.Threshold = &p
	return c
}

func (t *Taxonomy) clone() *Taxonomy {
	c := *t
	c.Outcomes = append([]OutcomeDef(nil), t.Outcomes...)
	c.Statuses = append([]StatusDef(nil), t.Statuses...)
	c.Dimensions = append([]Dimension(nil), t.Dimensions...)
	if t.Threshold != nil {
		p := *t.Threshold
		c.Threshold = &p
	}
	if t.Predominant != nil {
		p := PredominantParams{
			TieBreak: append([]Outcome(nil), t.Predominant.TieBreak...),
			Bindings: make(map[Outcome]Status, len(t.Predominant.Bindings)),
			Empty:    t.Predominant.Empty,
		}
		for k, v := range t.Predominant.Bindings {
			p.Bindings[k] = v
		}
		c.Predominant = &p
	}
	return &c
}

func (t *Taxonomy) status(s Status) (StatusDef, bool) {
	for _, def := range t.Statuses {
		if def.Key == s {
			return def, true
		}
	}
	return StatusDef{}, false
}
