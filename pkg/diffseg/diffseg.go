// Package diffseg aligns a reference transcription with a model hypothesis and
// labels the result as renderable segments.
//
// The character-level edit script comes from the Myers diff in
// [github.com/sergi/go-diff/diffmatchpatch]. On top of it this package adds
// the classification that rendering actually needs: a deletion immediately
// followed by an insertion is one substitution and must surface as a single
// replace pair, not as unrelated delete and insert runs.
package diffseg

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Type classifies a segment relative to the reference text.
type Type string

const (
	// Match is text shared by reference and hypothesis.
	Match Type = "match"

	// Insert is text present only in the hypothesis.
	Insert Type = "insert"

	// Delete is text present only in the reference.
	Delete Type = "delete"

	// Replace marks a substitution: the reference carries the replaced text,
	// the hypothesis the replacement. Replace segments always come in pairs,
	// one per side, and neither side is ever empty.
	Replace Type = "replace"
)

// Segment is a maximal run of text with one classification.
type Segment struct {
	Text string `json:"text"`
	Type Type   `json:"type"`
}

// Compare aligns reference and hypothesis character-by-character and returns
// the labeled segment sequences for each side.
//
// The two sequences are positionally correlated: every replace region on the
// reference side lines up with the corresponding replace region on the
// hypothesis side, and segment boundaries coincide at match/non-match
// transitions. They are not index-aligned character-for-character.
//
// Concatenating the reference segments' text reproduces reference exactly;
// the same holds for the hypothesis side. Zero-length segments never occur.
func Compare(reference, hypothesis string) (ref, hyp []Segment) {
	if reference == "" && hypothesis == "" {
		return nil, nil
	}

	dmp := diffmatchpatch.New()
	script := dmp.DiffMain(reference, hypothesis, false)

	// pendingRemoved buffers deleted text until the next operation decides
	// whether it was a genuine omission or the left half of a substitution.
	var pendingRemoved strings.Builder

	for _, op := range script {
		switch op.Type {
		case diffmatchpatch.DiffDelete:
			pendingRemoved.WriteString(op.Text)

		case diffmatchpatch.DiffInsert:
			if pendingRemoved.Len() > 0 {
				ref = appendSegment(ref, pendingRemoved.String(), Replace)
				hyp = appendSegment(hyp, op.Text, Replace)
				pendingRemoved.Reset()
			} else {
				hyp = appendSegment(hyp, op.Text, Insert)
			}

		case diffmatchpatch.DiffEqual:
			if pendingRemoved.Len() > 0 {
				ref = appendSegment(ref, pendingRemoved.String(), Delete)
				pendingRemoved.Reset()
			}
			ref = appendSegment(ref, op.Text, Match)
			hyp = appendSegment(hyp, op.Text, Match)
		}
	}
	if pendingRemoved.Len() > 0 {
		ref = appendSegment(ref, pendingRemoved.String(), Delete)
	}

	return ref, hyp
}

// appendSegment appends text with the given type, coalescing into the previous
// segment when the type repeats. Empty text is discarded.
func appendSegment(segs []Segment, text string, typ Type) []Segment {
	if text == "" {
		return segs
	}
	if n := len(segs); n > 0 && segs[n-1].Type == typ {
		segs[n-1].Text += text
		return segs
	}
	return append(segs, Segment{Text: text, Type: typ})
}

// SplitLines breaks segments at embedded newlines into per-line segment lists.
// A segment spanning a line break becomes one segment per line, same type;
// the newline characters themselves are not carried into any segment. Lines
// that end up with no segments (a newline directly following a newline) are
// present as empty slices, so line numbering stays aligned with the source
// text.
func SplitLines(segs []Segment) [][]Segment {
	lines := [][]Segment{nil}
	for _, seg := range segs {
		parts := strings.Split(seg.Text, "\n")
		for i, part := range parts {
			if i > 0 {
				lines = append(lines, nil)
			}
			if part == "" {
				continue
			}
			cur := len(lines) - 1
			lines[cur] = appendSegment(lines[cur], part, seg.Type)
		}
	}
	return lines
}
