package preprocess

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
)

// MaterializeOptions controls eager pipeline application.
type MaterializeOptions struct {
	// Workers bounds concurrent record transformations.  Default NumCPU.
	Workers int
	// Cache, when set, persists offline transform outputs across runs.
	Cache *Cache
	// SkipInvalid drops records that fail a transform, with a warn log,
	// instead of failing the whole materialisation.
	SkipInvalid bool
	// Metrics, when set, receives per-transform and cache-access events.
	Metrics monitoring.TrainingMetrics
	// Logger defaults to the process logger.
	Logger logging.Logger
}

// Materialize applies the offline part of list to every record, in parallel.
// Online objects are left untouched; they run at access time.  Without
// SkipInvalid the first failure cancels the remaining work; with it, failed
// records are dropped and the survivors keep their input order.
func Materialize(ctx context.Context, list *List, records []Record, opts MaterializeOptions) ([]Record, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewNoopTrainingMetrics()
	}

	out := make([]Record, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range records {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := applyOfflineCached(gctx, list, records[i], opts.Cache, metrics)
			if err != nil {
				if opts.SkipInvalid {
					log.Warn("skipping invalid record",
						logging.Int("row", i),
						logging.Err(err),
					)
					return nil
				}
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := out[:0]
	for _, rec := range out {
		if rec != nil {
			kept = append(kept, rec)
		}
	}

	log.Debug("materialised preprocessing pipeline",
		logging.Int("records", len(records)),
		logging.Int("kept", len(kept)),
		logging.Int("workers", workers),
		logging.Bool("cached", opts.Cache != nil),
	)
	return kept, nil
}

// applyOfflineCached is List.ApplyOffline with a per-object cache lookup and
// telemetry.
func applyOfflineCached(ctx context.Context, list *List, rec Record, cache *Cache, metrics monitoring.TrainingMetrics) (Record, error) {
	out := rec.Clone()
	for _, o := range list.Objects() {
		if o.Online {
			continue
		}

		var cacheKey string
		if cache != nil {
			if input, ok := out[o.Attribute]; ok {
				cacheKey = CacheKey(o.Key(), o.Settings, input)
				v, hit, err := cache.Get(cacheKey)
				if err != nil {
					return nil, err
				}
				metrics.RecordCacheAccess(ctx, hit, o.Key())
				if hit {
					out[o.Attribute] = v
					continue
				}
			}
		}

		start := time.Now()
		err := o.ApplyTo(out)
		metrics.RecordPreprocess(ctx, o.Key(),
			float64(time.Since(start).Nanoseconds())/1e6, err == nil)
		if err != nil {
			return nil, err
		}
		if cacheKey != "" {
			if err := cache.Put(cacheKey, out[o.Attribute]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
