package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdrugkit/deepdrugkit/internal/chem"
	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

var tenSMILES = []string{
	"CCO", "CCN", "CCC", "c1ccccc1", "Cc1ccccc1",
	"CC(=O)O", "CCCl", "CCBr", "c1ccncc1", "CC(C)C",
}

func smilesDataset(t *testing.T, smiles []string) *Dataset {
	t.Helper()
	records := make([]preprocess.Record, len(smiles))
	for i, s := range smiles {
		records[i] = preprocess.Record{AttrDrug: s, AttrTarget: "MKTV", AttrLabel: float64(i % 2)}
	}
	return New("test", records, nil)
}

func collectDrugs(t *testing.T, d *Dataset) []string {
	t.Helper()
	out := make([]string, d.Len())
	for i := 0; i < d.Len(); i++ {
		rec, err := d.Get(i)
		require.NoError(t, err)
		out[i] = rec[AttrDrug].(string)
	}
	return out
}

func assertDisjointCover(t *testing.T, parts []*Dataset, total int) {
	t.Helper()
	seen := map[string]int{}
	n := 0
	for _, p := range parts {
		n += p.Len()
		for _, s := range collectDrugs(t, p) {
			seen[s]++
		}
	}
	assert.Equal(t, total, n)
	for s, count := range seen {
		assert.Equal(t, 1, count, "sample %q appears %d times", s, count)
	}
}

func TestRandomSplitSizesAndDeterminism(t *testing.T) {
	ds := smilesDataset(t, tenSMILES)

	opts := SplitOptions{Method: SplitRandom, Fractions: []float64{0.8, 0.1, 0.1}, Seed: 4}
	parts, err := ds.Split(opts)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	assert.Equal(t, 8, parts[0].Len())
	assert.Equal(t, 1, parts[1].Len())
	assert.Equal(t, 1, parts[2].Len())
	assertDisjointCover(t, parts, 10)

	again, err := ds.Split(opts)
	require.NoError(t, err)
	for i := range parts {
		assert.Equal(t, collectDrugs(t, parts[i]), collectDrugs(t, again[i]))
	}

	other, err := ds.Split(SplitOptions{Method: SplitRandom, Fractions: []float64{0.8, 0.1, 0.1}, Seed: 5})
	require.NoError(t, err)
	assert.NotEqual(t, collectDrugs(t, parts[0]), collectDrugs(t, other[0]))
}

func TestSplitFractionValidation(t *testing.T) {
	ds := smilesDataset(t, tenSMILES)

	_, err := ds.Split(SplitOptions{Method: SplitRandom, Fractions: []float64{0.8, 0.3}})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFractions))

	_, err = ds.Split(SplitOptions{Method: SplitRandom, Fractions: []float64{1.2, -0.2}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFractions))

	_, err = ds.Split(SplitOptions{Method: SplitRandom, Fractions: []float64{1.0}})
	require.Error(t, err)
}

func TestRandomSplitHoldsOutRemainder(t *testing.T) {
	ds := smilesDataset(t, tenSMILES)

	parts, err := ds.Split(SplitOptions{Method: SplitRandom, Fractions: []float64{0.7, 0.2}, Seed: 9})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, 7, parts[0].Len())
	assert.Equal(t, 2, parts[1].Len())

	seen := map[string]bool{}
	for _, p := range parts {
		for _, s := range collectDrugs(t, p) {
			assert.False(t, seen[s], "sample %q assigned twice", s)
			seen[s] = true
		}
	}
	assert.Len(t, seen, 9)
}

func TestColdSplitHoldsOutRemainder(t *testing.T) {
	records := []preprocess.Record{}
	targets := []string{"AAAA", "CCCC", "GGGG", "KKKK"}
	for i := 0; i < 20; i++ {
		records = append(records, preprocess.Record{
			AttrDrug:   tenSMILES[i%10],
			AttrTarget: targets[i%4],
			AttrLabel:  1.0,
		})
	}
	ds := New("cold", records, nil)

	parts, err := ds.Split(SplitOptions{Method: SplitCold, Fractions: []float64{0.5, 0.25}, Seed: 7})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	total := 0
	seenIn := map[string]int{}
	for pi, p := range parts {
		total += p.Len()
		for i := 0; i < p.Len(); i++ {
			rec, err := p.Get(i)
			require.NoError(t, err)
			tgt := rec[AttrTarget].(string)
			if prev, ok := seenIn[tgt]; ok {
				assert.Equal(t, prev, pi, "target %q straddles splits", tgt)
			}
			seenIn[tgt] = pi
		}
	}
	// One of the four equally sized target groups stays unassigned.
	assert.Equal(t, 15, total)
	assert.Len(t, seenIn, 3)
}

func TestSplitUnknownMethod(t *testing.T) {
	ds := smilesDataset(t, tenSMILES)
	_, err := ds.Split(SplitOptions{Method: "stratified", Fractions: []float64{0.5, 0.5}})
	require.Error(t, err)
	assert.True(t, errors.IsUnsupportedMethod(err))
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownSplitMethod))
}

func TestLargestRemainder(t *testing.T) {
	assert.Equal(t, []int{8, 1, 1}, largestRemainder(10, []float64{0.8, 0.1, 0.1}))
	assert.Equal(t, []int{4, 2, 1}, largestRemainder(7, []float64{0.6, 0.25, 0.15}))

	sizes := largestRemainder(101, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3})
	total := 0
	for _, s := range sizes {
		total += s
	}
	assert.Equal(t, 101, total)
	assert.Equal(t, []int{34, 34, 33}, sizes)
}

func TestKFoldSplit(t *testing.T) {
	ds := smilesDataset(t, tenSMILES)

	folds, err := ds.Split(SplitOptions{Method: SplitKFold, K: 3, Seed: 1})
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assertDisjointCover(t, folds, 10)

	sizes := []int{folds[0].Len(), folds[1].Len(), folds[2].Len()}
	assert.ElementsMatch(t, []int{4, 3, 3}, sizes)

	_, err = ds.Split(SplitOptions{Method: SplitKFold, K: 1})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestColdSplitKeepsEntitiesTogether(t *testing.T) {
	records := []preprocess.Record{}
	targets := []string{"AAAA", "CCCC", "GGGG", "KKKK"}
	for i := 0; i < 20; i++ {
		records = append(records, preprocess.Record{
			AttrDrug:   tenSMILES[i%10],
			AttrTarget: targets[i%4],
			AttrLabel:  1.0,
		})
	}
	ds := New("cold", records, nil)

	parts, err := ds.Split(SplitOptions{Method: SplitCold, Fractions: []float64{0.5, 0.25, 0.25}, Seed: 7})
	require.NoError(t, err)
	require.Len(t, parts, 3)

	seenIn := map[string]int{}
	total := 0
	for pi, p := range parts {
		total += p.Len()
		for i := 0; i < p.Len(); i++ {
			rec, err := p.Get(i)
			require.NoError(t, err)
			tgt := rec[AttrTarget].(string)
			if prev, ok := seenIn[tgt]; ok {
				assert.Equal(t, prev, pi, "target %q straddles splits %d and %d", tgt, prev, pi)
			}
			seenIn[tgt] = pi
		}
	}
	assert.Equal(t, 20, total)
}

func TestScaffoldSplitKeepsScaffoldsTogether(t *testing.T) {
	// Three scaffold groups: benzene derivatives, pyridine derivatives, acyclics.
	smiles := []string{
		"c1ccccc1", "Cc1ccccc1", "CCc1ccccc1", "CCCc1ccccc1",
		"c1ccncc1", "Cc1ccncc1",
		"CCO", "CCN",
	}
	ds := smilesDataset(t, smiles)

	parts, err := ds.Split(SplitOptions{Method: SplitScaffold, Fractions: []float64{0.5, 0.25, 0.25}, Seed: 3})
	require.NoError(t, err)
	assertDisjointCover(t, parts, len(smiles))

	scaffoldIn := map[string]int{}
	for pi, p := range parts {
		for _, s := range collectDrugs(t, p) {
			scaf, err := chem.MurckoScaffold(s)
			require.NoError(t, err)
			if prev, ok := scaffoldIn[scaf.Key]; ok {
				assert.Equal(t, prev, pi, "scaffold of %q straddles splits", s)
			}
			scaffoldIn[scaf.Key] = pi
		}
	}

	// The largest group (four benzenes) lands in the largest split.
	assert.Equal(t, 4, parts[0].Len())
}

func TestSplitSampleFrac(t *testing.T) {
	ds := smilesDataset(t, tenSMILES)
	parts, err := ds.Split(SplitOptions{
		Method:     SplitRandom,
		Fractions:  []float64{0.5, 0.5},
		Seed:       2,
		SampleFrac: 0.6,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, parts[0].Len()+parts[1].Len())
}

func TestSubsetComposes(t *testing.T) {
	ds := smilesDataset(t, tenSMILES)

	first, err := ds.Subset([]int{0, 2, 4, 6, 8})
	require.NoError(t, err)
	second, err := first.Subset([]int{1, 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"CCC", "CCCl"}, collectDrugs(t, second))

	_, err = ds.Subset([]int{99})
	require.Error(t, err)
}
