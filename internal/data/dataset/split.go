package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/deepdrugkit/deepdrugkit/internal/chem"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Split method names accepted by Dataset.Split.
const (
	SplitRandom   = "random_split"
	SplitKFold    = "k_fold"
	SplitCold     = "cold_split"
	SplitScaffold = "scaffold_split"
)

// SplitOptions selects and parameterises a split.
type SplitOptions struct {
	// Method is one of the Split* constants.
	Method string
	// Fractions are the per-subset proportions.  They must be positive and
	// sum to at most 1; a sum below 1 holds the remainder out of every
	// subset.  Ignored by k_fold.
	Fractions []float64
	// Seed drives every random decision; the same seed, method, and
	// fractions always produce the same partition.
	Seed int64
	// SampleFrac subsamples the dataset before splitting.  Zero or 1 keeps
	// everything.
	SampleFrac float64
	// K is the fold count for k_fold.
	K int
	// GroupAttr names the attribute that defines groups for cold_split
	// (entity identity) and scaffold_split (SMILES).  Defaults: target for
	// cold_split, drug for scaffold_split.
	GroupAttr string
}

// Split partitions the dataset into disjoint subsets.  An unknown method is
// an unsupported-method error; malformed fractions are a configuration
// error.
func (d *Dataset) Split(opts SplitOptions) ([]*Dataset, error) {
	base := d
	if opts.SampleFrac > 0 && opts.SampleFrac < 1 {
		sampled, err := d.sample(opts.SampleFrac, opts.Seed)
		if err != nil {
			return nil, err
		}
		base = sampled
	}

	switch opts.Method {
	case SplitRandom:
		return base.randomSplit(opts)
	case SplitKFold:
		return base.kFoldSplit(opts)
	case SplitCold:
		return base.groupedSplit(opts, coldGroupKey)
	case SplitScaffold:
		return base.groupedSplit(opts, scaffoldGroupKey)
	default:
		return nil, errors.UnsupportedMethod(errors.ErrCodeUnknownSplitMethod, opts.Method)
	}
}

func validateFractions(fracs []float64) error {
	if len(fracs) < 2 {
		return errors.New(errors.ErrCodeInvalidFractions,
			"a split needs at least two fractions")
	}
	sum := 0.0
	for _, f := range fracs {
		if f <= 0 {
			return errors.Newf(errors.ErrCodeInvalidFractions,
				"fractions must be positive, got %v", f)
		}
		sum += f
	}
	if sum > 1+1e-6 {
		return errors.Newf(errors.ErrCodeInvalidFractions,
			"fractions must sum to at most 1, got %v", sum)
	}
	return nil
}

func sumFractions(fracs []float64) float64 {
	sum := 0.0
	for _, f := range fracs {
		sum += f
	}
	return sum
}

// largestRemainder turns fractions into integer subset sizes summing to
// round(sum(fracs)*n).  Each subset gets floor(frac*n); leftover rows go to
// the subsets with the largest fractional remainders, earlier subsets winning
// ties.  A fraction sum below 1 leaves the remaining rows unassigned.
func largestRemainder(n int, fracs []float64) []int {
	sizes := make([]int, len(fracs))
	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(fracs))
	assigned := 0
	for i, f := range fracs {
		exact := f * float64(n)
		sizes[i] = int(math.Floor(exact))
		assigned += sizes[i]
		rems[i] = rem{idx: i, frac: exact - math.Floor(exact)}
	}
	total := int(math.Round(sumFractions(fracs) * float64(n)))
	if total > n {
		total = n
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; i < total-assigned; i++ {
		sizes[rems[i%len(rems)].idx]++
	}
	return sizes
}

func (d *Dataset) sample(frac float64, seed int64) (*Dataset, error) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(d.Len())
	keep := int(math.Round(frac * float64(d.Len())))
	positions := append([]int(nil), perm[:keep]...)
	sort.Ints(positions)
	return d.Subset(positions)
}

func (d *Dataset) randomSplit(opts SplitOptions) ([]*Dataset, error) {
	if err := validateFractions(opts.Fractions); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	perm := rng.Perm(d.Len())
	sizes := largestRemainder(d.Len(), opts.Fractions)

	out := make([]*Dataset, len(sizes))
	cursor := 0
	for i, size := range sizes {
		sub, err := d.Subset(perm[cursor : cursor+size])
		if err != nil {
			return nil, err
		}
		out[i] = sub.named(fmt.Sprintf("split%d", i))
		cursor += size
	}
	return out, nil
}

func (d *Dataset) kFoldSplit(opts SplitOptions) ([]*Dataset, error) {
	if opts.K < 2 {
		return nil, errors.Newf(errors.ErrCodeInvalidFractions,
			"k_fold needs k >= 2, got %d", opts.K)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	perm := rng.Perm(d.Len())

	fracs := make([]float64, opts.K)
	for i := range fracs {
		fracs[i] = 1.0 / float64(opts.K)
	}
	sizes := largestRemainder(d.Len(), fracs)

	out := make([]*Dataset, opts.K)
	cursor := 0
	for i, size := range sizes {
		sub, err := d.Subset(perm[cursor : cursor+size])
		if err != nil {
			return nil, err
		}
		out[i] = sub.named(fmt.Sprintf("fold%d", i))
		cursor += size
	}
	return out, nil
}

// groupKeyFunc derives the grouping key of one sample.
type groupKeyFunc func(d *Dataset, i int, attr string) (string, error)

func coldGroupKey(d *Dataset, i int, attr string) (string, error) {
	if attr == "" {
		attr = AttrTarget
	}
	return d.attributeString(i, attr)
}

func scaffoldGroupKey(d *Dataset, i int, attr string) (string, error) {
	if attr == "" {
		attr = AttrDrug
	}
	smiles, err := d.attributeString(i, attr)
	if err != nil {
		return "", err
	}
	scaf, err := chem.MurckoScaffold(smiles)
	if err != nil {
		return "", err
	}
	return scaf.Key, nil
}

// groupedSplit keeps every group inside a single subset: groups are ordered
// by size descending (seeded shuffle breaking ties) and assigned greedily to
// the subset with the most remaining capacity.
func (d *Dataset) groupedSplit(opts SplitOptions, keyOf groupKeyFunc) ([]*Dataset, error) {
	if err := validateFractions(opts.Fractions); err != nil {
		return nil, err
	}

	groups := map[string][]int{}
	var order []string
	for i := 0; i < d.Len(); i++ {
		key, err := keyOf(d, i, opts.GroupAttr)
		if err != nil {
			return nil, err
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
	sort.SliceStable(order, func(a, b int) bool {
		return len(groups[order[a]]) > len(groups[order[b]])
	})

	// A fraction sum below 1 routes the remainder into an extra bucket that
	// is dropped from the result.
	fracs := opts.Fractions
	if sum := sumFractions(fracs); sum < 1-1e-6 {
		fracs = append(append([]float64(nil), fracs...), 1-sum)
	}

	targets := largestRemainder(d.Len(), fracs)
	filled := make([]int, len(targets))
	buckets := make([][]int, len(targets))

	for _, key := range order {
		best, bestRoom := 0, math.Inf(-1)
		for s := range targets {
			room := float64(targets[s] - filled[s])
			if room > bestRoom {
				best, bestRoom = s, room
			}
		}
		buckets[best] = append(buckets[best], groups[key]...)
		filled[best] += len(groups[key])
	}

	out := make([]*Dataset, len(opts.Fractions))
	for i, positions := range buckets[:len(opts.Fractions)] {
		sort.Ints(positions)
		sub, err := d.Subset(positions)
		if err != nil {
			return nil, err
		}
		out[i] = sub.named(fmt.Sprintf("split%d", i))
	}
	return out, nil
}
