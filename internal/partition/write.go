package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hallgrim/scriptbench/internal/results"
)

// Artifact file names within the output directory. Fragments live under
// FragmentDir, one file per sample named "<sampleId>.json".
const (
	SummaryFile = "summary.json"
	IndexFile   = "compare-index.json"
	FragmentDir = "samples"
)

// FragmentPath returns the relative artifact path of a sample's fragment.
func FragmentPath(sampleID string) string {
	return filepath.Join(FragmentDir, sampleID+".json")
}

// WriteArtifacts writes summary.json, compare-index.json, and every fragment
// into dir, all-or-nothing. Artifacts are first written into a staging
// directory next to dir; only when every file is on disk is the staging
// directory swapped into place. A failed run leaves an existing dir
// untouched.
func WriteArtifacts(summary *SummaryDoc, index *Index, fragments map[string]*Fragment, dir string) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("partition: create %q: %w", parent, err)
	}

	stage, err := os.MkdirTemp(parent, filepath.Base(dir)+".stage-*")
	if err != nil {
		return fmt.Errorf("partition: create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	if err := writeDoc(filepath.Join(stage, SummaryFile), summary); err != nil {
		return err
	}
	if err := writeDoc(filepath.Join(stage, IndexFile), index); err != nil {
		return err
	}

	// Stable write order keeps runs reproducible for byte-level comparison of
	// the whole directory.
	ids := make([]string, 0, len(fragments))
	for id := range fragments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if err := os.Mkdir(filepath.Join(stage, FragmentDir), 0o755); err != nil {
		return fmt.Errorf("partition: create fragment dir: %w", err)
	}
	for _, id := range ids {
		if err := writeDoc(filepath.Join(stage, FragmentPath(id)), fragments[id]); err != nil {
			return err
		}
	}

	return swapDir(stage, dir)
}

func writeDoc(path string, v any) error {
	data, err := results.MarshalDocument(v)
	if err != nil {
		return fmt.Errorf("partition: marshal %q: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("partition: write %q: %w", path, err)
	}
	return nil
}

// swapDir moves stage into place at dir, replacing any previous artifact
// directory only after the new one is complete.
func swapDir(stage, dir string) error {
	old := dir + ".old"
	replaced := false
	if _, err := os.Stat(dir); err == nil {
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("partition: move previous artifacts aside: %w", err)
		}
		replaced = true
	}
	if err := os.Rename(stage, dir); err != nil {
		if replaced {
			// Restore the previous artifacts; the new ones never appeared.
			_ = os.Rename(old, dir)
		}
		return fmt.Errorf("partition: move artifacts into %q: %w", dir, err)
	}
	if replaced {
		if err := os.RemoveAll(old); err != nil {
			return fmt.Errorf("partition: remove previous artifacts: %w", err)
		}
	}
	return nil
}
