// Package eval scores predictions against labels.  An Evaluator accumulates
// prediction/label pairs across batches and computes its metrics from the
// accumulated state only, so batched and single-shot evaluation agree
// exactly.
package eval

import (
	"sort"
	"sync"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Report maps metric names to computed values.
type Report map[string]float64

// Options parameterise an Evaluator.
type Options struct {
	// Threshold binarises predictions for the classification metrics.
	// Default 0.5.
	Threshold float64
}

// Evaluator accumulates predictions and computes a fixed metric set.
// Update is safe for concurrent use.
type Evaluator struct {
	metrics   []string
	threshold float64

	mu     sync.Mutex
	preds  []float64
	labels []float64
}

// New validates the metric names and returns a ready evaluator.  An unknown
// metric is an unsupported-method error.
func New(metrics []string, opts Options) (*Evaluator, error) {
	if len(metrics) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "evaluator needs at least one metric")
	}
	for _, m := range metrics {
		if _, ok := metricFuncs[m]; !ok {
			return nil, errors.UnsupportedMethod(errors.ErrCodeUnknownMetric, m)
		}
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = 0.5
	}
	return &Evaluator{
		metrics:   append([]string(nil), metrics...),
		threshold: threshold,
	}, nil
}

// Names lists the metrics the evaluator computes.
func (e *Evaluator) Names() []string {
	return append([]string(nil), e.metrics...)
}

// MetricNames lists every registered metric, sorted.
func MetricNames() []string {
	names := make([]string, 0, len(metricFuncs))
	for name := range metricFuncs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Update appends one batch of predictions and labels.
func (e *Evaluator) Update(preds, labels []float64) error {
	if len(preds) != len(labels) {
		return errors.Newf(errors.ErrCodeInvalidParam,
			"prediction/label length mismatch: %d vs %d", len(preds), len(labels))
	}
	e.mu.Lock()
	e.preds = append(e.preds, preds...)
	e.labels = append(e.labels, labels...)
	e.mu.Unlock()
	return nil
}

// Count returns the number of accumulated pairs.
func (e *Evaluator) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.preds)
}

// Reset discards all accumulated state.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	e.preds = e.preds[:0]
	e.labels = e.labels[:0]
	e.mu.Unlock()
}

// Compute finalises every configured metric from the accumulated pairs.
func (e *Evaluator) Compute() (Report, error) {
	e.mu.Lock()
	preds := append([]float64(nil), e.preds...)
	labels := append([]float64(nil), e.labels...)
	e.mu.Unlock()

	if len(preds) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParam, "no predictions accumulated")
	}

	report := make(Report, len(e.metrics))
	for _, m := range e.metrics {
		report[m] = metricFuncs[m](preds, labels, e.threshold)
	}
	return report, nil
}
