package scoring

import (
	"fmt"

	"github.com/therascope/therascope/pkg/taxonomy"
)

// Classifier is the interface every classification strategy implements.
type Classifier interface {
	// Strategy returns the taxonomy strategy tag the classifier implements.
	Strategy() taxonomy.Strategy
	// Classify maps a count tuple to a status. It must be deterministic.
	Classify(c Counts) taxonomy.Status
}

// NewClassifier builds the classifier selected by the taxonomy's strategy.
func NewClassifier(tax *taxonomy.Taxonomy) (Classifier, error) {
	switch tax.Strategy {
	case taxonomy.StrategyThreshold:
		if tax.Threshold == nil {
			return nil, fmt.Errorf("taxonomy %s has no threshold parameters", tax.Variant)
		}
		return &ThresholdClassifier{
			Params:      *tax.Threshold,
			Independent: tax.Independent,
		}, nil
	case taxonomy.StrategyPredominant:
		if tax.Predominant == nil {
			return nil, fmt.Errorf("taxonomy %s has no predominant parameters", tax.Variant)
		}
		return &PredominantClassifier{
			TieBreak: tax.Predominant.TieBreak,
			Bindings: tax.Predominant.Bindings,
			Empty:    tax.Predominant.Empty,
		}, nil
	default:
		return nil, fmt.Errorf("taxonomy %s: unknown strategy %q", tax.Variant, tax.Strategy)
	}
}

// Classify checks that counts belong to tax and classifies them with the
// taxonomy's strategy.
func Classify(c Counts, tax *taxonomy.Taxonomy) (taxonomy.Status, error) {
	if err := checkCounts(c, tax); err != nil {
		return "", err
	}
	cl, err := NewClassifier(tax)
	if err != nil {
		return "", err
	}
	return cl.Classify(c), nil
}

func checkCounts(c Counts, tax *taxonomy.Taxonomy) error {
	for o := range c {
		if err := tax.CheckOutcome(o); err != nil {
			return fmt.Errorf("classifying counts: %w", err)
		}
	}
	return nil
}
