package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/hallgrim/scriptbench/internal/partition"
	"github.com/hallgrim/scriptbench/pkg/diffseg"
	"github.com/hallgrim/scriptbench/pkg/textnorm"
)

// ComparisonStatus distinguishes the three render states of a comparison
// panel: a usable diff, a model with no result for this sample, and a model
// whose upstream call failed.
type ComparisonStatus string

const (
	StatusOK         ComparisonStatus = "ok"
	StatusNoResult   ComparisonStatus = "no_result"
	StatusModelError ComparisonStatus = "model_error"
)

// Comparison is the payload rendered into the two synchronized panels.
// ReferenceLines and HypothesisLines are line-indexed segment lists produced
// by [diffseg.SplitLines]; both are nil unless Status is [StatusOK].
type Comparison struct {
	SampleID string           `json:"sampleId"`
	Model    string           `json:"model"`
	Status   ComparisonStatus `json:"status"`

	// Error carries the upstream model error message when Status is
	// [StatusModelError].
	Error string `json:"error,omitempty"`

	ReferenceLines  [][]diffseg.Segment `json:"reference_lines,omitempty"`
	HypothesisLines [][]diffseg.Segment `json:"hypothesis_lines,omitempty"`
}

// ErrUnknownSample reports a sample identifier absent from the index.
type ErrUnknownSample struct{ SampleID string }

func (e ErrUnknownSample) Error() string {
	return fmt.Sprintf("viewer: unknown sample %q", e.SampleID)
}

// Comparer produces comparisons from the index and the fragment store. The
// diff is computed fresh on every call; callers that change selection simply
// discard stale results.
type Comparer struct {
	index *IndexView
	store *FragmentStore
	clock func() time.Time
	diffs func(seconds float64)
}

// NewComparer wires a comparer to an index view and a fragment store.
// record may be nil; when set it receives the diff duration in seconds for
// each successful comparison.
func NewComparer(index *IndexView, store *FragmentStore, record func(seconds float64)) *Comparer {
	return &Comparer{index: index, store: store, clock: time.Now, diffs: record}
}

// Compare fetches the sample's fragment (from cache when already loaded),
// then normalizes and segments the ground truth against the chosen model's
// output.
//
// A model with no recorded output for this sample yields [StatusNoResult];
// a model whose upstream call failed yields [StatusModelError] with the
// upstream message, and the diff engine is not invoked. Fragment fetch
// failures are returned as errors, not encoded in the Comparison.
func (c *Comparer) Compare(ctx context.Context, sampleID, model string) (*Comparison, error) {
	sample, ok := c.index.Sample(sampleID)
	if !ok {
		return nil, ErrUnknownSample{SampleID: sampleID}
	}

	cmp := &Comparison{SampleID: sampleID, Model: model}

	if res, ok := sample.ResultsByModel[model]; ok && res.Error != "" {
		cmp.Status = StatusModelError
		cmp.Error = res.Error
		return cmp, nil
	}

	frag, err := c.store.Get(ctx, sampleID)
	if err != nil {
		return nil, err
	}

	output, ok := frag.ModelOutputs[model]
	if !ok {
		cmp.Status = StatusNoResult
		return cmp, nil
	}

	start := c.clock()
	ref, hyp := diffseg.Compare(textnorm.Normalize(frag.GroundTruthText), textnorm.Normalize(output))
	if c.diffs != nil {
		c.diffs(c.clock().Sub(start).Seconds())
	}

	cmp.Status = StatusOK
	cmp.ReferenceLines = diffseg.SplitLines(ref)
	cmp.HypothesisLines = diffseg.SplitLines(hyp)
	return cmp, nil
}

// IndexView is a read-only lookup structure over a partition index.
type IndexView struct {
	index *partition.Index
	byID  map[string]*partition.IndexSample
}

// NewIndexView builds the by-identifier lookup for index.
func NewIndexView(index *partition.Index) *IndexView {
	byID := make(map[string]*partition.IndexSample, len(index.Samples))
	for i := range index.Samples {
		byID[index.Samples[i].SampleID] = &index.Samples[i]
	}
	return &IndexView{index: index, byID: byID}
}

// Index returns the underlying index document.
func (v *IndexView) Index() *partition.Index { return v.index }

// Sample looks a sample up by identifier.
func (v *IndexView) Sample(id string) (*partition.IndexSample, bool) {
	s, ok := v.byID[id]
	return s, ok
}

// Samples returns the index's sample list in its stored order.
func (v *IndexView) Samples() []partition.IndexSample { return v.index.Samples }
