package partition

import (
	"sort"

	"github.com/hallgrim/scriptbench/internal/results"
)

// Ranking is the dataset-global model quality order: models sorted by
// descending quality (1 − mean CER), models with zero evaluated samples last.
// It is built once per partition run from the model summaries and passed
// around as a read-only value, so the partitioner stays a pure function of
// its input.
type Ranking struct {
	order []string
	rank  map[string]int
}

// NewRanking builds the quality ranking from per-model summaries.
// declaredOrder breaks ties and orders models that lack evaluated samples,
// so the result is deterministic regardless of map iteration.
//
// Models appearing only in summaries (not declared) are considered after the
// declared ones, in lexicographic label order.
func NewRanking(summaries map[string]results.Summary, declaredOrder []string) Ranking {
	labels := make([]string, 0, len(summaries))
	seen := make(map[string]bool, len(summaries))
	for _, label := range declaredOrder {
		if _, ok := summaries[label]; ok && !seen[label] {
			labels = append(labels, label)
			seen[label] = true
		}
	}
	var extra []string
	for label := range summaries {
		if !seen[label] {
			extra = append(extra, label)
		}
	}
	sort.Strings(extra)
	labels = append(labels, extra...)

	quality := func(label string) (q float64, evaluated bool) {
		s := summaries[label]
		if s.SamplesEvaluated() == 0 {
			return 0, false
		}
		cer, ok := s.CERMean()
		if !ok {
			return 0, false
		}
		return 1 - cer, true
	}

	sort.SliceStable(labels, func(i, j int) bool {
		qi, ei := quality(labels[i])
		qj, ej := quality(labels[j])
		if ei != ej {
			return ei // evaluated models before zero-evaluated ones
		}
		return qi > qj
	})

	rank := make(map[string]int, len(labels))
	for i, label := range labels {
		rank[label] = i
	}
	return Ranking{order: labels, rank: rank}
}

// Order returns the full ranked model list, best first.
func (r Ranking) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Sort orders models in place: ranked models by quality rank, then models
// unknown to the ranking in their existing relative order.
func (r Ranking) Sort(models []string) {
	sort.SliceStable(models, func(i, j int) bool {
		ri, oki := r.rank[models[i]]
		rj, okj := r.rank[models[j]]
		if oki != okj {
			return oki // ranked models before unranked ones
		}
		if !oki {
			return false // unranked keep their relative order
		}
		return ri < rj
	})
}
