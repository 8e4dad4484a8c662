package scoring

import "github.com/therascope/therascope/pkg/taxonomy"

// ThresholdClassifier classifies by independence rate against fixed cut points.
// Fewer than MinTrials trials is always insufficient, whatever the rate.
type ThresholdClassifier struct {
	Params      taxonomy.ThresholdParams
	Independent taxonomy.Outcome // outcome counted by the rate
}

func (c *ThresholdClassifier) Strategy() taxonomy.Strategy { return taxonomy.StrategyThreshold }

func (c *ThresholdClassifier) Classify(counts Counts) taxonomy.Status {
	total := counts.Total()
	if total < c.Params.MinTrials {
		return taxonomy.StatusInsufficient
	}

	rate := Percent(counts.Get(c.Independent), total)
	switch {
	case rate > c.Params.PositiveAbove:
		return taxonomy.StatusPositive
	case rate > c.Params.ModerateAbove:
		return taxonomy.StatusModerate
	default:
		return taxonomy.StatusAttention
	}
}
