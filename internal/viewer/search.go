package viewer

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// SearchResult is one fuzzy match against the sample list.
type SearchResult struct {
	SampleID string  `json:"sampleId"`
	Group    string  `json:"group"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
}

// Searcher ranks samples against a free-text query using Jaro-Winkler
// similarity. It is read-only after construction and safe for concurrent use.
type Searcher struct {
	view       *IndexView
	threshold  float64
	maxResults int
}

// NewSearcher creates a searcher over the index view. Matches scoring below
// threshold are dropped; at most maxResults matches are returned.
func NewSearcher(view *IndexView, threshold float64, maxResults int) *Searcher {
	return &Searcher{view: view, threshold: threshold, maxResults: maxResults}
}

// Search returns samples whose label or group resembles query, best first.
// Ties keep the index's sample order, so results are deterministic.
func (s *Searcher) Search(query string) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var results []SearchResult
	for _, sample := range s.view.Samples() {
		score := sampleScore(query, sample.Label, sample.Group)
		if score < s.threshold {
			continue
		}
		results = append(results, SearchResult{
			SampleID: sample.SampleID,
			Group:    sample.Group,
			Label:    sample.Label,
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if s.maxResults > 0 && len(results) > s.maxResults {
		results = results[:s.maxResults]
	}
	return results
}

// sampleScore computes the best Jaro-Winkler similarity between the query
// and several renderings of the sample's identity: the label alone, the
// group alone, and the "group label" form users see in the sample list.
// Scoring is case-insensitive; longTolerance is off for standard scoring.
func sampleScore(query, label, group string) float64 {
	label = strings.ToLower(label)
	group = strings.ToLower(group)

	score := matchr.JaroWinkler(query, label, false)
	if s := matchr.JaroWinkler(query, group, false); s > score {
		score = s
	}
	if s := matchr.JaroWinkler(query, group+" "+label, false); s > score {
		score = s
	}
	return score
}
