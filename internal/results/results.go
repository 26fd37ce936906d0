// Package results defines the benchmark results document: the JSON snapshot
// produced by an upstream benchmark run, holding one row per
// (group, label, image, model) observation plus per-model and per-group
// summary statistics.
//
// The document is loaded and written as a whole. Writes are atomic: content
// goes to a temporary file which is fsynced and renamed over the target, so a
// crashed run never leaves a partial document behind.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Document is the root of a results snapshot.
type Document struct {
	Benchmark      Benchmark                     `json:"benchmark"`
	Results        []Row                         `json:"results"`
	ModelSummaries map[string]Summary            `json:"model_summaries"`
	GroupSummaries map[string]map[string]Summary `json:"group_summaries"`
}

// Benchmark holds run-level metadata and the declared configuration.
type Benchmark struct {
	Name                 string  `json:"name"`
	Timestamp            string  `json:"timestamp"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	Config               Config  `json:"config"`
}

// Config is the declared benchmark configuration: which models ran, which
// sample groups exist, and how many samples were declared in total.
type Config struct {
	Prompts     *Prompts      `json:"prompts,omitempty"`
	Models      []ModelConfig `json:"models"`
	Groups      []GroupConfig `json:"groups"`
	SampleCount int           `json:"sample_count"`
}

// Prompts carries the system and user prompts the benchmark ran with.
type Prompts struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// ModelConfig identifies one benchmarked model. Label is the display name and
// the key used throughout summaries and rows; ID is the provider model id.
type ModelConfig struct {
	Label  string         `json:"label"`
	ID     string         `json:"id"`
	Params map[string]any `json:"params"`
}

// GroupConfig describes one declared sample group.
type GroupConfig struct {
	Name        string `json:"name"`
	SampleCount int    `json:"sample_count"`
}

// Row is one (group, label, image, model) observation. Rows are immutable
// once loaded; the recompute path builds a new document rather than mutating
// shared state.
type Row struct {
	Group           string            `json:"group"`
	Label           string            `json:"label"`
	Image           string            `json:"image"`
	GroundTruthFile string            `json:"ground_truth_file"`
	GroundTruthText string            `json:"ground_truth_text"`
	Model           string            `json:"model"`
	ModelOutput     string            `json:"model_output"`
	Error           string            `json:"error,omitempty"`
	Metrics         *MetricScores     `json:"metrics"`
	ResponseMeta    *ResponseMetadata `json:"response_metadata"`
}

// Failed reports whether the upstream model call for this row failed.
func (r *Row) Failed() bool {
	return r.Error != ""
}

// MetricScores are the upstream-computed accuracy metrics for one row.
type MetricScores struct {
	CER                      float64 `json:"cer"`
	WER                      float64 `json:"wer"`
	CERCaseInsensitive       float64 `json:"cer_case_insensitive"`
	WERCaseInsensitive       float64 `json:"wer_case_insensitive"`
	LevenshteinDistance      int     `json:"levenshtein_distance"`
	NormalizedLevenshteinSim float64 `json:"normalized_levenshtein_similarity"`
	CharCountReference       int     `json:"char_count_reference"`
	WordCountReference       int     `json:"word_count_reference"`
}

// ResponseMetadata records cost and latency bookkeeping for one model call.
type ResponseMetadata struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	Cost           float64 `json:"cost"`
	LatencySeconds float64 `json:"latency_seconds"`
}

// Summary aggregates metrics over a set of rows. Stored as a free-form map
// because upstream producers differ in which aggregate fields they emit; the
// fields this system consumes are read through the accessor methods.
type Summary map[string]any

// CERMean returns the mean character error rate and whether it is present.
func (s Summary) CERMean() (float64, bool) {
	return s.floatField("cer_mean")
}

// SamplesEvaluated returns the number of rows with metrics behind this
// summary. Zero when absent.
func (s Summary) SamplesEvaluated() int {
	v, ok := s["samples_evaluated"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func (s Summary) floatField(key string) (float64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Load reads and decodes the results document at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("results: open %q: %w", path, err)
	}
	defer f.Close()

	doc, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("results: parse %q: %w", path, err)
	}
	return doc, nil
}

// LoadFromReader decodes a results document from r and validates it.
func LoadFromReader(r io.Reader) (*Document, error) {
	doc := &Document{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks document-level invariants. It returns a joined error
// listing every failure found.
func Validate(doc *Document) error {
	var errs []error

	if doc.Benchmark.Name == "" {
		errs = append(errs, errors.New("benchmark.name is empty"))
	}
	if len(doc.Benchmark.Config.Models) == 0 {
		errs = append(errs, errors.New("benchmark.config.models is empty"))
	}

	seen := make(map[string]bool, len(doc.Benchmark.Config.Models))
	for i, m := range doc.Benchmark.Config.Models {
		if m.Label == "" {
			errs = append(errs, fmt.Errorf("benchmark.config.models[%d] has no label", i))
			continue
		}
		if seen[m.Label] {
			errs = append(errs, fmt.Errorf("duplicate model label %q", m.Label))
		}
		seen[m.Label] = true
	}

	for i, row := range doc.Results {
		if row.Group == "" || row.Image == "" || row.Model == "" {
			errs = append(errs, fmt.Errorf("results[%d] is missing group, image, or model", i))
		}
	}

	return errors.Join(errs...)
}

// Write encodes doc as pretty-printed JSON and writes it atomically to path,
// creating parent directories as needed.
func Write(doc *Document, path string) error {
	data, err := MarshalDocument(doc)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// MarshalDocument renders any artifact document in the canonical on-disk
// form: two-space indent, unescaped non-ASCII, trailing newline.
func MarshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("results: encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to path via a temporary sibling file that is
// fsynced and renamed into place. Either the old content or the new content
// is on disk at every point, never a mix.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("results: create %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("results: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("results: write %q: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("results: sync %q: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("results: close %q: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("results: rename into %q: %w", path, err)
	}
	return nil
}
