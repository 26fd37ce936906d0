// Package textnorm produces the canonical comparable form of a transcription.
//
// Handwritten-text ground truths and model outputs disagree on much more than
// the actual reading: combining diacritics vs precomposed characters, editorial
// punctuation, and whitespace habits. [Normalize] strips all of that so that
// downstream comparison (diffing, CER/WER) measures the reading alone.
//
// The transformation is deterministic, locale-independent, and idempotent:
// Normalize(Normalize(s)) == Normalize(s) for every s.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical comparable form of text. In order:
//
//  1. Decompose to NFD, separating base characters from combining marks.
//  2. Drop all combining marks (Unicode category Mn).
//  3. Drop all punctuation (Unicode categories P*).
//  4. Collapse runs of non-newline whitespace to a single space.
//  5. Strip spaces and tabs immediately before a newline or the end of the
//     string, keeping line structure intact.
//  6. Recompose to NFC.
//
// The empty string maps to the empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	decomposed := norm.NFD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))

	// Steps 2–4 in one pass. inSpace tracks a pending collapsed space so that
	// a run of blanks emits at most one ' '. Newlines pass through untouched
	// and terminate any pending space.
	inSpace := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r), unicode.IsPunct(r):
			continue
		case r != '\n' && r != '\r' && unicode.IsSpace(r):
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte(' ')
			inSpace = false
		}
		b.WriteRune(r)
	}
	// A trailing blank run is dropped entirely (step 5 at end-of-string).

	return norm.NFC.String(trimLineTrailing(b.String()))
}

// trimLineTrailing removes spaces and tabs that directly precede a newline.
// End-of-string trailing blanks are already handled by the collapse pass.
func trimLineTrailing(s string) string {
	if !strings.ContainsAny(s, "\n\r") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' || c == '\r' {
			// Back out blanks already written for this line.
			trimmed := strings.TrimRight(b.String(), " \t")
			b.Reset()
			b.WriteString(trimmed)
			b.WriteByte(c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
