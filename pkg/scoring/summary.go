package scoring

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

// Summarize rolls per-stimulus tuples up into the session summary. The
// session status uses the same classification rule as a single stimulus.
// planned is treated as a set; duplicates are ignored.
func Summarize(perStimulus map[string]Counts, planned []string, trials []trial.Record, tax *taxonomy.Taxonomy) (*Summary, error) {
	session := NewCounts(tax)
	for _, c := range perStimulus {
		session = SumCounts(session, c)
	}

	status, err := Classify(session, tax)
	if err != nil {
		return nil, err
	}

	plannedSet := make(map[string]bool, len(planned))
	for _, id := range planned {
		plannedSet[id] = true
	}

	total := session.Total()
	s := &Summary{
		Counts:              session,
		Total:               total,
		IndependencePercent: Percent(session.Get(tax.Independent), total),
		Status:              status,
		StatusLabel:         taxonomy.Describe(status, tax).Label,
		PlannedCount:        len(plannedSet),
		WorkedCount:         len(perStimulus),
		Means:               DimensionMeans(trials, tax),
		Durations:           LatestDurations(trials),
	}

	for id := range plannedSet {
		if _, ok := perStimulus[id]; !ok {
			s.NotWorked = append(s.NotWorked, id)
		}
	}
	for id := range perStimulus {
		if !plannedSet[id] {
			s.UnplannedWorked = append(s.UnplannedWorked, id)
		}
	}
	sort.Strings(s.NotWorked)
	sort.Strings(s.UnplannedWorked)

	for _, d := range s.Durations {
		s.DurationMinutes += d
	}

	return s, nil
}

// DimensionMeans averages each auxiliary dimension of tax over the trials
// that carry a value for it. A dimension no trial carries maps to nil, which
// is distinct from an observed mean of zero.
func DimensionMeans(trials []trial.Record, tax *taxonomy.Taxonomy) map[string]*float64 {
	if len(tax.Dimensions) == 0 {
		return nil
	}

	means := make(map[string]*float64, len(tax.Dimensions))
	for _, dim := range tax.Dimensions {
		var data stats.Float64Data
		for _, r := range trials {
			if v, ok := r.Score(dim.Key); ok {
				data = append(data, float64(v))
			}
		}
		if len(data) == 0 {
			means[dim.Key] = nil
			continue
		}
		mean, err := stats.Mean(data)
		if err != nil {
			means[dim.Key] = nil
			continue
		}
		means[dim.Key] = &mean
	}
	return means
}

// LatestDurations keeps, per stimulus, the duration of the most recently
// recorded trial that carries one. Durations are not summed. Trials with equal
// timestamps resolve to the later one in input order.
func LatestDurations(trials []trial.Record) map[string]float64 {
	type latest struct {
		at    time.Time
		value float64
	}
	byStimulus := make(map[string]latest)
	for _, r := range trials {
		if r.DurationMinutes == nil {
			continue
		}
		key := r.Bucket()
		prev, ok := byStimulus[key]
		if ok && r.RecordedAt.Before(prev.at) {
			continue
		}
		byStimulus[key] = latest{at: r.RecordedAt, value: *r.DurationMinutes}
	}

	if len(byStimulus) == 0 {
		return nil
	}
	out := make(map[string]float64, len(byStimulus))
	for k, v := range byStimulus {
		out[k] = v.value
	}
	return out
}
