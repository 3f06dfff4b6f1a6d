package dataset

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// CollateFunc merges a slice of samples into one model-ready batch.  Models
// supply their own; tests can pass the identity.
type CollateFunc func(samples []preprocess.Record) (any, error)

// LoaderOptions parameterise batch iteration.
type LoaderOptions struct {
	// BatchSize is the number of samples per batch.  Default 32.
	BatchSize int
	// Shuffle permutes sample order per epoch, seeded by Seed + epoch.
	Shuffle bool
	Seed    int64
	// DropLast discards a trailing batch smaller than BatchSize.
	DropLast bool
	// NumWorkers bounds concurrent batch collation.  Values below 2 keep
	// collation sequential.
	NumWorkers int
}

// Loader iterates a dataset in collated batches.
type Loader struct {
	ds      *Dataset
	collate CollateFunc
	opts    LoaderOptions
	epoch   int
}

// NewLoader builds a loader over ds.
func NewLoader(ds *Dataset, collate CollateFunc, opts LoaderOptions) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	return &Loader{ds: ds, collate: collate, opts: opts}
}

// Len returns the sample count of the underlying dataset.
func (l *Loader) Len() int { return l.ds.Len() }

// NumBatches returns the batches yielded per epoch.
func (l *Loader) NumBatches() int {
	n := l.ds.Len() / l.opts.BatchSize
	if !l.opts.DropLast && l.ds.Len()%l.opts.BatchSize != 0 {
		n++
	}
	return n
}

// batchIndices computes the sample index ranges of one epoch.
func (l *Loader) batchIndices() [][]int {
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		rng := rand.New(rand.NewSource(l.opts.Seed + int64(l.epoch)))
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
	}

	var batches [][]int
	for start := 0; start < len(order); start += l.opts.BatchSize {
		end := start + l.opts.BatchSize
		if end > len(order) {
			if l.opts.DropLast {
				break
			}
			end = len(order)
		}
		batches = append(batches, order[start:end])
	}
	return batches
}

func (l *Loader) collateBatch(indices []int) (any, error) {
	samples := make([]preprocess.Record, len(indices))
	for j, idx := range indices {
		rec, err := l.ds.Get(idx)
		if err != nil {
			return nil, err
		}
		samples[j] = rec
	}
	if l.collate == nil {
		return samples, nil
	}
	return l.collate(samples)
}

// ForEach runs fn over every batch of one epoch, in order.  With NumWorkers
// above 1, batches are collated concurrently in windows while fn still sees
// them sequentially.  Each call advances the shuffle epoch.
func (l *Loader) ForEach(ctx context.Context, fn func(batchIdx int, batch any) error) error {
	if l.ds.Len() == 0 {
		return errors.New(errors.ErrCodeInvalidParam, "loader over an empty dataset")
	}
	batches := l.batchIndices()
	l.epoch++

	workers := l.opts.NumWorkers
	if workers < 2 {
		for i, indices := range batches {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch, err := l.collateBatch(indices)
			if err != nil {
				return err
			}
			if err := fn(i, batch); err != nil {
				return err
			}
		}
		return nil
	}

	for window := 0; window < len(batches); window += workers {
		end := window + workers
		if end > len(batches) {
			end = len(batches)
		}
		collated := make([]any, end-window)

		g, gctx := errgroup.WithContext(ctx)
		for i := window; i < end; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				batch, err := l.collateBatch(batches[i])
				if err != nil {
					return err
				}
				collated[i-window] = batch
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i := window; i < end; i++ {
			if err := fn(i, collated[i-window]); err != nil {
				return err
			}
		}
	}
	return nil
}
