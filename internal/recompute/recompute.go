// Package recompute re-derives every metric in a benchmark results document
// from its raw texts. Ground truths are reread from disk where the document
// references a file, renormalized, and rescored against each model output;
// the per-model and per-group summaries are then rebuilt from the rows.
//
// Rerunning it against an already-recomputed document is a no-op: the text
// normalizer is idempotent and the scorer is a pure function of the texts.
package recompute

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hallgrim/scriptbench/internal/metrics"
	"github.com/hallgrim/scriptbench/internal/results"
	"github.com/hallgrim/scriptbench/pkg/textnorm"
)

// Report summarizes one recompute pass.
type Report struct {
	// RowsScored counts rows whose metrics were recomputed.
	RowsScored int

	// RowsSkipped counts rows left unscored: failed calls, blank or
	// error-shaped outputs, and rows whose ground truth could not be read.
	RowsSkipped int

	// MissingGroundTruth lists referenced ground-truth files that could not
	// be read, deduplicated, in first-encounter order.
	MissingGroundTruth []string
}

// Run rescores doc in place. Ground-truth files referenced by rows are read
// relative to groundTruthDir (absolute references are used as-is); rows
// without a file reference fall back to the ground-truth text embedded in
// the document. Skipped rows get nil metrics so they drop out of the
// summaries rather than polluting them with stale scores.
func Run(doc *results.Document, groundTruthDir string) (*Report, error) {
	report := &Report{}
	missing := make(map[string]bool)
	texts := make(map[string]string) // resolved path -> normalized text

	for i := range doc.Results {
		row := &doc.Results[i]

		gt, ok, err := groundTruth(row, groundTruthDir, texts)
		if err != nil {
			if !missing[row.GroundTruthFile] {
				missing[row.GroundTruthFile] = true
				report.MissingGroundTruth = append(report.MissingGroundTruth, row.GroundTruthFile)
				slog.Warn("ground truth unreadable", "file", row.GroundTruthFile, "err", err)
			}
			row.Metrics = nil
			report.RowsSkipped++
			continue
		}
		if ok {
			row.GroundTruthText = gt
		}

		if !row.Completed() || row.GroundTruthText == "" {
			row.Metrics = nil
			report.RowsSkipped++
			continue
		}

		scores := metrics.Compute(row.GroundTruthText, row.ModelOutput)
		row.Metrics = &scores
		report.RowsScored++
	}

	doc.ModelSummaries = results.RecomputeModelSummaries(doc, metrics.Aggregate)
	doc.GroupSummaries = results.RecomputeGroupSummaries(doc, metrics.Aggregate)
	return report, nil
}

// groundTruth resolves the row's ground truth. It returns the normalized
// text and whether a fresh value was produced; rows with neither a readable
// file nor embedded text report an error only when a file was referenced.
func groundTruth(row *results.Row, dir string, cache map[string]string) (string, bool, error) {
	if row.GroundTruthFile == "" {
		if row.GroundTruthText == "" {
			return "", false, nil
		}
		return textnorm.Normalize(row.GroundTruthText), true, nil
	}

	path := row.GroundTruthFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if text, ok := cache[path]; ok {
		return text, true, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("read ground truth: %w", err)
	}
	text := textnorm.Normalize(string(raw))
	cache[path] = text
	return text, true, nil
}
