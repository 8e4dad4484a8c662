package scoring

import "github.com/therascope/therascope/pkg/taxonomy"

// PredominantClassifier classifies by the outcome with the largest count.
// Ties go to the outcome listed first in TieBreak.
type PredominantClassifier struct {
	TieBreak []taxonomy.Outcome // best first
	Bindings map[taxonomy.Outcome]taxonomy.Status
	Empty    taxonomy.Status // all-zero tuple
}

func (c *PredominantClassifier) Strategy() taxonomy.Strategy { return taxonomy.StrategyPredominant }

func (c *PredominantClassifier) Classify(counts Counts) taxonomy.Status {
	max := 0
	for _, o := range c.TieBreak {
		if n := counts.Get(o); n > max {
			max = n
		}
	}
	if max == 0 {
		return c.Empty
	}

	for _, o := range c.TieBreak {
		if counts.Get(o) == max {
			return c.Bindings[o]
		}
	}
	return c.Empty
}
