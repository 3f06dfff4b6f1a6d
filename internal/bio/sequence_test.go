package bio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

func TestNormalizeSequence(t *testing.T) {
	s, err := NormalizeSequence("mk tv\nLY")
	require.NoError(t, err)
	assert.Equal(t, "MKTVLY", s)

	_, err = NormalizeSequence("")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSequence))

	_, err = NormalizeSequence("MKT-LY")
	require.Error(t, err)
	assert.True(t, errors.IsDataFormat(err))
}

func TestOneHot(t *testing.T) {
	vec, err := OneHot("AC", EncodeOptions{MaxLength: 4})
	require.NoError(t, err)
	require.Len(t, vec, 4*AlphabetSize)

	assert.Equal(t, float32(1), vec[0])              // A at position 0
	assert.Equal(t, float32(1), vec[AlphabetSize+1]) // C at position 1
	for i := 2 * AlphabetSize; i < len(vec); i++ {
		assert.Equal(t, float32(0), vec[i])
	}
}

func TestOneHotTruncatesAndCollapsesAmbiguous(t *testing.T) {
	vec, err := OneHot("BAAAA", EncodeOptions{MaxLength: 2})
	require.NoError(t, err)
	require.Len(t, vec, 2*AlphabetSize)
	// B is not canonical: it lands in the X bin.
	assert.Equal(t, float32(1), vec[AlphabetSize-1])
}

func TestLabelEncode(t *testing.T) {
	vec, err := LabelEncode("ACY", EncodeOptions{MaxLength: 5})
	require.NoError(t, err)
	require.Len(t, vec, 5)

	assert.Equal(t, float32(1), vec[0]) // A
	assert.Equal(t, float32(2), vec[1]) // C
	assert.Equal(t, float32(0), vec[3]) // padding
	assert.Equal(t, float32(0), vec[4])
}

func TestKmerCounts(t *testing.T) {
	vec, err := Kmer("AAAA", KmerOptions{K: 2})
	require.NoError(t, err)
	require.Len(t, vec, KmerDim(KmerOptions{K: 2}))
	assert.Equal(t, float32(3), vec[0]) // "AA" three times

	var total float32
	for _, v := range vec {
		total += v
	}
	assert.Equal(t, float32(3), total)
}

func TestKmerNormalizeAndAmbiguousSkip(t *testing.T) {
	vec, err := Kmer("AAXA", KmerOptions{K: 2, Normalize: true})
	require.NoError(t, err)

	// Only "AA" counts; "AX" and "XA" touch the ambiguous bin.
	var total float32
	for _, v := range vec {
		total += v
	}
	assert.InDelta(t, 1.0, float64(total), 1e-6)
	assert.Equal(t, float32(1), vec[0])
}

func TestKmerShorterThanK(t *testing.T) {
	vec, err := Kmer("MK", KmerOptions{K: 3})
	require.NoError(t, err)
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}
}
