package diffseg_test

import (
	"strings"
	"testing"

	"github.com/hallgrim/scriptbench/pkg/diffseg"
)

func seg(text string, typ diffseg.Type) diffseg.Segment {
	return diffseg.Segment{Text: text, Type: typ}
}

func equalSegs(a, b []diffseg.Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ref     string
		hyp     string
		wantRef []diffseg.Segment
		wantHyp []diffseg.Segment
	}{
		{
			name: "both empty",
			ref:  "", hyp: "",
			wantRef: nil, wantHyp: nil,
		},
		{
			name: "identical",
			ref:  "abbatia", hyp: "abbatia",
			wantRef: []diffseg.Segment{seg("abbatia", diffseg.Match)},
			wantHyp: []diffseg.Segment{seg("abbatia", diffseg.Match)},
		},
		{
			name: "empty reference",
			ref:  "", hyp: "textus",
			wantRef: nil,
			wantHyp: []diffseg.Segment{seg("textus", diffseg.Insert)},
		},
		{
			name: "empty hypothesis",
			ref:  "textus", hyp: "",
			wantRef: []diffseg.Segment{seg("textus", diffseg.Delete)},
			wantHyp: nil,
		},
		{
			name: "substitution",
			ref:  "cat", hyp: "cot",
			wantRef: []diffseg.Segment{seg("c", diffseg.Match), seg("a", diffseg.Replace), seg("t", diffseg.Match)},
			wantHyp: []diffseg.Segment{seg("c", diffseg.Match), seg("o", diffseg.Replace), seg("t", diffseg.Match)},
		},
		{
			name: "pure insertion",
			ref:  "hello", hyp: "hello world",
			wantRef: []diffseg.Segment{seg("hello", diffseg.Match)},
			wantHyp: []diffseg.Segment{seg("hello", diffseg.Match), seg(" world", diffseg.Insert)},
		},
		{
			name: "pure deletion",
			ref:  "hello world", hyp: "hello",
			wantRef: []diffseg.Segment{seg("hello", diffseg.Match), seg(" world", diffseg.Delete)},
			wantHyp: []diffseg.Segment{seg("hello", diffseg.Match)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotRef, gotHyp := diffseg.Compare(tt.ref, tt.hyp)
			if !equalSegs(gotRef, tt.wantRef) {
				t.Errorf("Compare(%q, %q) ref = %v, want %v", tt.ref, tt.hyp, gotRef, tt.wantRef)
			}
			if !equalSegs(gotHyp, tt.wantHyp) {
				t.Errorf("Compare(%q, %q) hyp = %v, want %v", tt.ref, tt.hyp, gotHyp, tt.wantHyp)
			}
		})
	}
}

// TestCompare_Reconstruction checks that each side's segments concatenate back
// to the original input, that no segment is empty, that same-type neighbours
// are coalesced, and that replace segments never appear one-sided.
func TestCompare_Reconstruction(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"", ""},
		{"a", ""},
		{"", "a"},
		{"abc", "abc"},
		{"kitten", "sitting"},
		{"in principio erat verbum", "in prinzipio erat uerbum"},
		{"linea prima\nlinea secunda", "linea prima\nlinea tertia"},
		{"aaaa", "bbbb"},
		{"abcdef", "abef"},
		{"abef", "abcdef"},
		{"the quick brown fox", "the quick brown fox jumps"},
	}

	for _, p := range pairs {
		ref, hyp := diffseg.Compare(p[0], p[1])

		if got := concat(ref, diffseg.Insert); got != p[0] {
			t.Errorf("Compare(%q, %q): reference reconstructs to %q", p[0], p[1], got)
		}
		if got := concat(hyp, diffseg.Delete); got != p[1] {
			t.Errorf("Compare(%q, %q): hypothesis reconstructs to %q", p[0], p[1], got)
		}

		checkWellFormed(t, p[0], p[1], ref, diffseg.Insert)
		checkWellFormed(t, p[0], p[1], hyp, diffseg.Delete)

		if countType(ref, diffseg.Replace) != countType(hyp, diffseg.Replace) {
			t.Errorf("Compare(%q, %q): unbalanced replace segments (ref %d, hyp %d)",
				p[0], p[1], countType(ref, diffseg.Replace), countType(hyp, diffseg.Replace))
		}
	}
}

// concat joins the text of all segments. forbidden names the type that must
// not appear on this side at all (Insert on the reference, Delete on the
// hypothesis); such segments would also break reconstruction.
func concat(segs []diffseg.Segment, forbidden diffseg.Type) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Type == forbidden {
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

func checkWellFormed(t *testing.T, ref, hyp string, segs []diffseg.Segment, forbidden diffseg.Type) {
	t.Helper()
	for i, s := range segs {
		if s.Text == "" {
			t.Errorf("Compare(%q, %q): empty segment at index %d", ref, hyp, i)
		}
		if s.Type == forbidden {
			t.Errorf("Compare(%q, %q): segment %d has type %q on the wrong side", ref, hyp, i, s.Type)
		}
		if i > 0 && segs[i-1].Type == s.Type {
			t.Errorf("Compare(%q, %q): segments %d and %d share type %q and should be merged", ref, hyp, i-1, i, s.Type)
		}
	}
}

func countType(segs []diffseg.Segment, typ diffseg.Type) int {
	n := 0
	for _, s := range segs {
		if s.Type == typ {
			n++
		}
	}
	return n
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		segs []diffseg.Segment
		want [][]diffseg.Segment
	}{
		{
			name: "no segments",
			segs: nil,
			want: [][]diffseg.Segment{nil},
		},
		{
			name: "single line",
			segs: []diffseg.Segment{seg("abc", diffseg.Match)},
			want: [][]diffseg.Segment{{seg("abc", diffseg.Match)}},
		},
		{
			name: "segment spanning a newline keeps its type",
			segs: []diffseg.Segment{seg("ab\ncd", diffseg.Match)},
			want: [][]diffseg.Segment{
				{seg("ab", diffseg.Match)},
				{seg("cd", diffseg.Match)},
			},
		},
		{
			name: "blank line stays addressable",
			segs: []diffseg.Segment{seg("a\n\nb", diffseg.Delete)},
			want: [][]diffseg.Segment{
				{seg("a", diffseg.Delete)},
				nil,
				{seg("b", diffseg.Delete)},
			},
		},
		{
			name: "mixed types on one line",
			segs: []diffseg.Segment{
				seg("pri", diffseg.Match),
				seg("ma\nsecu", diffseg.Replace),
				seg("nda", diffseg.Match),
			},
			want: [][]diffseg.Segment{
				{seg("pri", diffseg.Match), seg("ma", diffseg.Replace)},
				{seg("secu", diffseg.Replace), seg("nda", diffseg.Match)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := diffseg.SplitLines(tt.segs)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitLines() = %d lines, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if !equalSegs(got[i], tt.want[i]) {
					t.Errorf("SplitLines() line %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
