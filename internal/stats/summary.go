package stats

import (
	"math"
	"sort"
)

// KindSummary aggregates the outcomes of every indexed run of one kind.
// Outcome is final fitness for mutation runs, final population for growth
// runs and the number of flagged drug classes for resistance reports.
type KindSummary struct {
	Kind       RunKind `json:"kind"`
	Runs       int     `json:"runs"`
	AvgOutcome float64 `json:"avg_outcome"`
	StdOutcome float64 `json:"std_outcome"`
	MinOutcome float64 `json:"min_outcome"`
	MaxOutcome float64 `json:"max_outcome"`
	AvgSteps   float64 `json:"avg_steps"`
	LatestRun  string  `json:"latest_run"`
}

// SummarizeRuns groups index entries by kind. Entries are expected newest
// first, as ListRunIndex returns them.
func SummarizeRuns(entries []RunIndexEntry) []KindSummary {
	byKind := map[RunKind]*KindSummary{}
	outcomes := map[RunKind][]float64{}
	steps := map[RunKind]int{}
	for _, entry := range entries {
		summary, ok := byKind[entry.Kind]
		if !ok {
			summary = &KindSummary{Kind: entry.Kind, LatestRun: entry.RunID}
			byKind[entry.Kind] = summary
		}
		summary.Runs++
		outcomes[entry.Kind] = append(outcomes[entry.Kind], entry.Outcome)
		steps[entry.Kind] += entry.Steps
	}

	out := make([]KindSummary, 0, len(byKind))
	for kind, summary := range byKind {
		values := outcomes[kind]
		summary.AvgOutcome = mean(values)
		summary.StdOutcome = stddev(values)
		summary.MinOutcome = values[0]
		summary.MaxOutcome = values[0]
		for _, value := range values[1:] {
			summary.MinOutcome = math.Min(summary.MinOutcome, value)
			summary.MaxOutcome = math.Max(summary.MaxOutcome, value)
		}
		summary.AvgSteps = float64(steps[kind]) / float64(summary.Runs)
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := mean(values)
	acc := 0.0
	for _, v := range values {
		acc += (v - avg) * (v - avg)
	}
	return math.Sqrt(acc / float64(len(values)))
}
