// Package bio provides protein-side featurisation: sequence encodings and
// contact maps derived from PDB structures.
package bio

import (
	"fmt"
	"strings"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// aminoAcids is the encoding alphabet: the 20 canonical residues plus X as
// the shared bin for ambiguous codes (B, Z, U, O, J all collapse to X).
const aminoAcids = "ACDEFGHIKLMNPQRSTVWYX"

// AlphabetSize is the number of residue bins.
const AlphabetSize = len(aminoAcids)

var residueIndex = func() map[byte]int {
	m := make(map[byte]int, AlphabetSize)
	for i := 0; i < AlphabetSize; i++ {
		m[aminoAcids[i]] = i
	}
	return m
}()

// NormalizeSequence upper-cases seq, strips whitespace, and validates that
// every character is a letter.  Ambiguous residue codes are kept; encoding
// collapses them to the X bin.
func NormalizeSequence(seq string) (string, error) {
	s := strings.ToUpper(strings.Join(strings.Fields(seq), ""))
	if s == "" {
		return "", errors.New(errors.ErrCodeInvalidSequence, "protein sequence is empty")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", errors.New(errors.ErrCodeInvalidSequence,
				fmt.Sprintf("invalid character %q at position %d", s[i], i))
		}
	}
	return s, nil
}

func binOf(ch byte) int {
	if idx, ok := residueIndex[ch]; ok {
		return idx
	}
	return residueIndex['X']
}

// EncodeOptions controls the fixed-length sequence encodings.
type EncodeOptions struct {
	// MaxLength truncates or zero-pads the sequence.  Default 1000.
	MaxLength int
}

func (o EncodeOptions) maxLength() int {
	if o.MaxLength <= 0 {
		return 1000
	}
	return o.MaxLength
}

// OneHot encodes seq as a flattened MaxLength x AlphabetSize matrix.
// Positions past the sequence end stay all-zero.
func OneHot(seq string, opts EncodeOptions) ([]float32, error) {
	s, err := NormalizeSequence(seq)
	if err != nil {
		return nil, err
	}
	maxLen := opts.maxLength()
	out := make([]float32, maxLen*AlphabetSize)
	for i := 0; i < len(s) && i < maxLen; i++ {
		out[i*AlphabetSize+binOf(s[i])] = 1.0
	}
	return out, nil
}

// OneHotDim reports the OneHot output length for opts.
func OneHotDim(opts EncodeOptions) int { return opts.maxLength() * AlphabetSize }

// LabelEncode encodes seq as integer residue codes, 1-based with 0 as the
// padding value, truncated or padded to MaxLength.
func LabelEncode(seq string, opts EncodeOptions) ([]float32, error) {
	s, err := NormalizeSequence(seq)
	if err != nil {
		return nil, err
	}
	maxLen := opts.maxLength()
	out := make([]float32, maxLen)
	for i := 0; i < len(s) && i < maxLen; i++ {
		out[i] = float32(binOf(s[i]) + 1)
	}
	return out, nil
}

// KmerOptions controls k-mer composition vectors.
type KmerOptions struct {
	// K is the k-mer length.  Default 3.
	K int
	// Normalize divides counts by the number of counted k-mers.
	Normalize bool
}

func (o KmerOptions) k() int {
	if o.K <= 0 {
		return 3
	}
	return o.K
}

// canonical residues only; k-mers touching an ambiguous residue are skipped.
const kmerAlphabet = 20

// KmerDim reports the k-mer vector length for opts.
func KmerDim(opts KmerOptions) int {
	dim := 1
	for i := 0; i < opts.k(); i++ {
		dim *= kmerAlphabet
	}
	return dim
}

// Kmer computes the k-mer composition vector of seq over the canonical
// 20-residue alphabet.
func Kmer(seq string, opts KmerOptions) ([]float32, error) {
	s, err := NormalizeSequence(seq)
	if err != nil {
		return nil, err
	}
	k := opts.k()
	out := make([]float32, KmerDim(opts))
	if len(s) < k {
		return out, nil
	}

	var counted float32
	for i := 0; i+k <= len(s); i++ {
		idx := 0
		ok := true
		for j := 0; j < k; j++ {
			bin := binOf(s[i+j])
			if bin >= kmerAlphabet {
				ok = false
				break
			}
			idx = idx*kmerAlphabet + bin
		}
		if !ok {
			continue
		}
		out[idx]++
		counted++
	}
	if opts.Normalize && counted > 0 {
		for i := range out {
			out[i] /= counted
		}
	}
	return out, nil
}
