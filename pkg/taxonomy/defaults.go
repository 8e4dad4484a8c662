package taxonomy

import (
	"fmt"
	"strings"
)

// DefaultThreshold returns the ABA cut points.
func DefaultThreshold() ThresholdParams {
	return ThresholdParams{
		MinTrials:     5,
		PositiveAbove: 80,
		ModerateAbove: 60,
	}
}

// ABA returns the threshold-independence taxonomy used by ABA programs.
func ABA() *Taxonomy {
	p := DefaultThreshold()
	return &Taxonomy{
		Variant:  VariantABA,
		Strategy: StrategyThreshold,
		Outcomes: []OutcomeDef{
			{Key: OutcomeError, Label: "Erro", Severity: 0},
			{Key: OutcomeHelp, Label: "Ajuda", Severity: 1},
			{Key: OutcomeIndependent, Label: "Independente", Severity: 2},
		},
		Statuses: []StatusDef{
			{Key: StatusAttention, Label: "Atenção", Severity: 0, Tone: ToneDanger},
			{Key: StatusModerate, Label: "Moderado", Severity: 1, Tone: ToneWarning},
			{Key: StatusPositive, Label: "Positivo", Severity: 2, Tone: ToneSuccess},
			{Key: StatusInsufficient, Label: "Dados insuficientes", Severity: Unranked, Tone: ToneNeutral},
		},
		Independent: OutcomeIndependent,
		Threshold:   &p,
	}
}

// performance builds the three-outcome taxonomy shared by the
// occupational, physiotherapy and music therapy variants.
func performance(v Variant, dims ...Dimension) *Taxonomy {
	return &Taxonomy{
		Variant:  v,
		Strategy: StrategyPredominant,
		Outcomes: []OutcomeDef{
			{Key: OutcomeNotPerformed, Label: "Não desempenhou", Severity: 0},
			{Key: OutcomeWithHelp, Label: "Desempenhou com ajuda", Severity: 1},
			{Key: OutcomePerformed, Label: "Desempenhou", Severity: 2},
		},
		Statuses: []StatusDef{
			{Key: StatusNotPerformed, Label: "Não desempenhou", Severity: 0, Tone: ToneDanger},
			{Key: StatusWithHelp, Label: "Desempenhou com ajuda", Severity: 1, Tone: ToneWarning},
			{Key: StatusPerformed, Label: "Desempenhou", Severity: 2, Tone: ToneSuccess},
		},
		Independent: OutcomePerformed,
		Predominant: &PredominantParams{
			TieBreak: []Outcome{OutcomePerformed, OutcomeWithHelp, OutcomeNotPerformed},
			Bindings: map[Outcome]Status{
				OutcomeNotPerformed: StatusNotPerformed,
				OutcomeWithHelp:     StatusWithHelp,
				OutcomePerformed:    StatusPerformed,
			},
			Empty: StatusNotPerformed,
		},
		Dimensions: dims,
	}
}

// Occupational returns the occupational therapy taxonomy.
func Occupational() *Taxonomy { return performance(VariantOccupational) }

// Physiotherapy returns the physiotherapy taxonomy.
func Physiotherapy() *Taxonomy { return performance(VariantPhysiotherapy) }

// Music returns the music therapy taxonomy with its participation and
// support scales.
func Music() *Taxonomy {
	return performance(VariantMusic,
		Dimension{Key: "participacao", Label: "Participação", Min: 0, Max: 5},
		Dimension{Key: "suporte", Label: "Suporte", Min: 1, Max: 5},
	)
}

// Variants returns every known variant in a stable order.
func Variants() []Variant {
	return []Variant{VariantABA, VariantOccupational, VariantPhysiotherapy, VariantMusic}
}

// Lookup returns a fresh copy of the built-in taxonomy for v.
// Variant names are matched case-insensitively; a few clinic aliases are accepted.
func Lookup(v Variant) (*Taxonomy, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(string(v)))) {
	case VariantABA:
		return ABA(), nil
	case VariantOccupational, "to", "terapia-ocupacional":
		return Occupational(), nil
	case VariantPhysiotherapy, "fisio", "fisioterapia":
		return Physiotherapy(), nil
	case VariantMusic, "musicoterapia":
		return Music(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
}

// Description is the display metadata of a status.
type Description struct {
	Label    string `json:"label"`
	Severity int    `json:"severity"`
	Ranked   bool   `json:"ranked"`
	Tone     Tone   `json:"tone"`
}

// Describe returns the display metadata of s under t. Statuses the taxonomy
// does not declare are described as unranked with their raw key as label.
func Describe(s Status, t *Taxonomy) Description {
	def, ok := t.status(s)
	if !ok {
		return Description{Label: string(s), Severity: Unranked, Tone: ToneNeutral}
	}
	return Description{
		Label:    def.Label,
		Severity: def.Severity,
		Ranked:   def.Severity != Unranked,
		Tone:     def.Tone,
	}
}
