package scoring

import (
	"fmt"

	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

// NewCounts returns a zeroed tuple carrying every outcome of tax.
func NewCounts(tax *taxonomy.Taxonomy) Counts {
	c := make(Counts, len(tax.Outcomes))
	for _, o := range tax.Keys() {
		c[o] = 0
	}
	return c
}

// Get returns the count for o, zero when absent.
func (c Counts) Get(o taxonomy.Outcome) int {
	return c[o]
}

// Total returns the sum over every outcome.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Equal reports whether both tuples hold the same count for every outcome,
// treating missing keys as zero.
func (c Counts) Equal(other Counts) bool {
	for o, n := range c {
		if other[o] != n {
			return false
		}
	}
	for o, n := range other {
		if c[o] != n {
			return false
		}
	}
	return true
}

// SumCounts adds two tuples point-wise into a new tuple. It is associative and
// commutative, so callers may fold in any grouping.
func SumCounts(a, b Counts) Counts {
	out := make(Counts, len(a))
	for o, n := range a {
		out[o] += n
	}
	for o, n := range b {
		out[o] += n
	}
	return out
}

// AggregateByStimulus folds records into one tuple per stimulus. Records with
// an empty stimulus id land in the trial.UnknownStimulus bucket. The result
// does not depend on record order. An outcome outside tax fails with
// taxonomy.ErrConfigurationMismatch.
func AggregateByStimulus(records []trial.Record, tax *taxonomy.Taxonomy) (map[string]Counts, error) {
	out := make(map[string]Counts)
	for i, r := range records {
		if err := tax.CheckOutcome(r.Outcome); err != nil {
			return nil, fmt.Errorf("aggregating record %d: %w", i, err)
		}
		key := r.Bucket()
		c, ok := out[key]
		if !ok {
			c = NewCounts(tax)
			out[key] = c
		}
		c[r.Outcome]++
	}
	return out, nil
}

// Percent returns part/total as an integer percentage rounded half-up.
// It returns 0 when total is not positive.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}
