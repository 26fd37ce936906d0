// Package metrics computes transcription accuracy scores for one
// (ground truth, model output) pair and aggregates them across rows.
//
// Both sides are reduced to their canonical comparable form via
// [textnorm.Normalize] before any distance is measured, so diacritics,
// punctuation, and whitespace habits never count as errors. Distances come
// from the Levenshtein implementation in
// [github.com/texttheater/golang-levenshtein/levenshtein]: rune items for
// character error rate, whitespace-split tokens for word error rate.
package metrics

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/hallgrim/scriptbench/internal/results"
	"github.com/hallgrim/scriptbench/pkg/textnorm"
)

// Compute scores prediction against groundTruth.
//
// An empty normalized ground truth cannot anchor a rate; in that case every
// rate is 0 when the prediction is also empty and 1 otherwise, matching the
// convention of the upstream benchmark.
func Compute(groundTruth, prediction string) results.MetricScores {
	gt := textnorm.Normalize(groundTruth)
	pred := textnorm.Normalize(prediction)

	if gt == "" {
		rate := 0.0
		sim := 1.0
		if pred != "" {
			rate = 1.0
			sim = 0.0
		}
		return results.MetricScores{
			CER:                      rate,
			WER:                      rate,
			CERCaseInsensitive:       rate,
			WERCaseInsensitive:       rate,
			LevenshteinDistance:      len([]rune(pred)),
			NormalizedLevenshteinSim: sim,
			CharCountReference:       0,
			WordCountReference:       0,
		}
	}

	gtLower := strings.ToLower(gt)
	predLower := strings.ToLower(pred)

	charDist := runeDistance(gt, pred)
	charLen := len([]rune(gt))

	return results.MetricScores{
		CER:                      float64(charDist) / float64(charLen),
		WER:                      wordRate(gt, pred),
		CERCaseInsensitive:       float64(runeDistance(gtLower, predLower)) / float64(charLen),
		WERCaseInsensitive:       wordRate(gtLower, predLower),
		LevenshteinDistance:      charDist,
		NormalizedLevenshteinSim: normalizedSimilarity(charDist, charLen, len([]rune(pred))),
		CharCountReference:       charLen,
		WordCountReference:       len(strings.Fields(gt)),
	}
}

// unitCosts weights insertions, deletions, and substitutions equally.
var unitCosts = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: func(source, target rune) bool {
		return source == target
	},
}

// runeDistance is the character-level edit distance between a and b.
func runeDistance(a, b string) int {
	return levenshtein.DistanceForStrings([]rune(a), []rune(b), unitCosts)
}

// wordRate is the word-level edit distance between a and b divided by the
// number of words in a.
func wordRate(a, b string) float64 {
	source := strings.Fields(a)
	target := strings.Fields(b)
	if len(source) == 0 {
		if len(target) == 0 {
			return 0
		}
		return 1
	}
	// The levenshtein package only compares rune sequences, so encode each
	// distinct token as a unique rune before measuring the distance.
	sourceRunes, targetRunes := tokenRunes(source, target)
	dist := levenshtein.DistanceForStrings(sourceRunes, targetRunes, unitCosts)
	return float64(dist) / float64(len(source))
}

// normalizedSimilarity maps an edit distance to [0, 1], where 1 means equal.
// The denominator is the longer of the two inputs.
func normalizedSimilarity(dist, lenA, lenB int) float64 {
	longest := max(lenA, lenB)
	if longest == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(longest)
}

// tokenRunes maps every distinct token across a and b to a unique rune and
// returns both sequences re-encoded with that mapping, so that rune equality
// coincides with token equality.
func tokenRunes(a, b []string) ([]rune, []rune) {
	ids := make(map[string]rune, len(a)+len(b))
	encode := func(tokens []string) []rune {
		runes := make([]rune, len(tokens))
		for i, t := range tokens {
			id, ok := ids[t]
			if !ok {
				id = rune(len(ids))
				ids[t] = id
			}
			runes[i] = id
		}
		return runes
	}
	return encode(a), encode(b)
}

// Aggregate reduces a set of row scores to mean/median/min/max per metric
// field, keyed "<field>_<stat>". An empty input aggregates to an empty
// summary.
func Aggregate(scores []results.MetricScores) results.Summary {
	if len(scores) == 0 {
		return results.Summary{}
	}

	fields := []struct {
		name  string
		value func(results.MetricScores) float64
	}{
		{"cer", func(m results.MetricScores) float64 { return m.CER }},
		{"wer", func(m results.MetricScores) float64 { return m.WER }},
		{"cer_case_insensitive", func(m results.MetricScores) float64 { return m.CERCaseInsensitive }},
		{"wer_case_insensitive", func(m results.MetricScores) float64 { return m.WERCaseInsensitive }},
		{"normalized_levenshtein_similarity", func(m results.MetricScores) float64 { return m.NormalizedLevenshteinSim }},
		{"levenshtein_distance", func(m results.MetricScores) float64 { return float64(m.LevenshteinDistance) }},
	}

	summary := results.Summary{}
	for _, f := range fields {
		values := make([]float64, len(scores))
		for i, s := range scores {
			values[i] = f.value(s)
		}
		sort.Float64s(values)

		summary[f.name+"_mean"] = mean(values)
		summary[f.name+"_median"] = median(values)
		summary[f.name+"_min"] = values[0]
		summary[f.name+"_max"] = values[len(values)-1]
	}
	return summary
}

func mean(sorted []float64) float64 {
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

// median expects its input sorted ascending.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
