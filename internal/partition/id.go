package partition

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// idHexLen is the number of hex characters kept from the digest. 48 bits is
// far beyond collision range for the hundreds-to-thousands of samples a
// benchmark run produces; [Partition] still fails loudly if two distinct
// keys ever collide.
const idHexLen = 12

// sampleKey is the identity triple of a sample. Grouping uses this struct
// directly, so rows are never merged through string concatenation and no
// delimiter choice can conflate two distinct samples.
type sampleKey struct {
	Group string
	Label string
	Image string
}

// SampleID derives the stable, content-addressed identifier for the
// (group, label, image) triple.
//
// The digest input joins the fields with "::" for readability but also
// length-prefixes each field, so a field that happens to contain "::" cannot
// produce the same digest input as a differently-split triple. The same
// triple yields the same identifier on every run and every machine.
func SampleID(group, label, image string) string {
	h := sha256.New()
	for i, field := range []string{group, label, image} {
		if i > 0 {
			h.Write([]byte("::"))
		}
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))[:idHexLen]
}

func (k sampleKey) id() string {
	return SampleID(k.Group, k.Label, k.Image)
}
