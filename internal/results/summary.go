package results

import (
	"math"
	"sort"
	"strings"
)

// errorMarkers are substrings that identify a model output which is really a
// provider error message that leaked into the text channel. Rows whose output
// matches are not counted as completed.
var errorMarkers = []string{
	"error:",
	"badrequesterror",
	"anthropicexception",
	"rate limit",
	"timeout",
	"traceback",
}

// LooksLikeErrorText reports whether a model output reads as an upstream
// error message rather than a transcription.
func LooksLikeErrorText(output string) bool {
	text := strings.ToLower(strings.TrimSpace(output))
	if text == "" {
		return false
	}
	for _, marker := range errorMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Completed reports whether the row represents a usable model response: no
// recorded error, a non-blank output, and an output that does not read as an
// error message.
func (r *Row) Completed() bool {
	if r.Failed() {
		return false
	}
	if strings.TrimSpace(r.ModelOutput) == "" {
		return false
	}
	return !LooksLikeErrorText(r.ModelOutput)
}

// Aggregator turns row metric scores into a [Summary]. Provided by the
// metrics package; injected here to keep this package free of a dependency
// on the distance implementation.
type Aggregator func(scores []MetricScores) Summary

// RecomputeModelSummaries derives per-model summaries purely from the rows of
// doc. Every label in the declared model list gets a summary even when no row
// mentions it; models that appear only in rows are included too. The result
// depends only on document content, never on map iteration order.
func RecomputeModelSummaries(doc *Document, aggregate Aggregator) map[string]Summary {
	type tally struct {
		scores       []MetricScores
		failed       int
		inputTokens  int
		outputTokens int
		cost         float64
		latency      float64
	}

	tallies := make(map[string]*tally)
	for _, m := range doc.Benchmark.Config.Models {
		if m.Label != "" {
			tallies[m.Label] = &tally{}
		}
	}

	for i := range doc.Results {
		row := &doc.Results[i]
		t := tallies[row.Model]
		if t == nil {
			t = &tally{}
			tallies[row.Model] = t
		}

		if row.Failed() {
			t.failed++
		}
		if row.Metrics != nil {
			t.scores = append(t.scores, *row.Metrics)
		}
		if meta := row.ResponseMeta; meta != nil {
			t.inputTokens += meta.InputTokens
			t.outputTokens += meta.OutputTokens
			t.cost += meta.Cost
			t.latency += meta.LatencySeconds
		}
	}

	summaries := make(map[string]Summary, len(tallies))
	for label, t := range tallies {
		s := aggregate(t.scores)
		s["samples_evaluated"] = len(t.scores)
		s["samples_failed"] = t.failed
		s["total_input_tokens"] = t.inputTokens
		s["total_output_tokens"] = t.outputTokens
		s["total_tokens"] = t.inputTokens + t.outputTokens
		s["total_cost"] = roundTo(t.cost, 6)
		s["total_latency_seconds"] = roundTo(t.latency, 3)
		summaries[label] = s
	}
	return summaries
}

// RecomputeGroupSummaries derives per-model, per-group summaries from the
// rows of doc. Model/group pairs with no scored rows are omitted.
func RecomputeGroupSummaries(doc *Document, aggregate Aggregator) map[string]map[string]Summary {
	type tally struct {
		scores       []MetricScores
		inputTokens  int
		outputTokens int
		cost         float64
		latency      float64
	}

	tallies := make(map[string]map[string]*tally)
	for i := range doc.Results {
		row := &doc.Results[i]
		if row.Model == "" || row.Group == "" {
			continue
		}
		groups := tallies[row.Model]
		if groups == nil {
			groups = make(map[string]*tally)
			tallies[row.Model] = groups
		}
		t := groups[row.Group]
		if t == nil {
			t = &tally{}
			groups[row.Group] = t
		}

		if row.Metrics != nil {
			t.scores = append(t.scores, *row.Metrics)
		}
		if meta := row.ResponseMeta; meta != nil {
			t.inputTokens += meta.InputTokens
			t.outputTokens += meta.OutputTokens
			t.cost += meta.Cost
			t.latency += meta.LatencySeconds
		}
	}

	summaries := make(map[string]map[string]Summary, len(tallies))
	for model, groups := range tallies {
		for group, t := range groups {
			if len(t.scores) == 0 {
				continue
			}
			s := aggregate(t.scores)
			s["total_input_tokens"] = t.inputTokens
			s["total_output_tokens"] = t.outputTokens
			s["total_tokens"] = t.inputTokens + t.outputTokens
			s["total_cost"] = roundTo(t.cost, 6)
			s["total_latency_seconds"] = roundTo(t.latency, 3)
			if summaries[model] == nil {
				summaries[model] = make(map[string]Summary)
			}
			summaries[model][group] = s
		}
	}
	return summaries
}

// DeclaredModelOrder returns the model labels in configuration order,
// followed by labels that occur only in rows, in first-row-encounter order.
func DeclaredModelOrder(doc *Document) []string {
	var order []string
	seen := make(map[string]bool)
	for _, m := range doc.Benchmark.Config.Models {
		if m.Label != "" && !seen[m.Label] {
			order = append(order, m.Label)
			seen[m.Label] = true
		}
	}
	for i := range doc.Results {
		if label := doc.Results[i].Model; label != "" && !seen[label] {
			order = append(order, label)
			seen[label] = true
		}
	}
	return order
}

// SortedModelLabels returns the keys of a model summary map in lexicographic
// order, for deterministic logging and output.
func SortedModelLabels(summaries map[string]Summary) []string {
	labels := make([]string, 0, len(summaries))
	for label := range summaries {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
