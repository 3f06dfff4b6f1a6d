// Package prometheus provides the training telemetry collector.  The
// TrainingMetrics interface has three implementations: Prometheus-backed for
// long runs, in-memory for tests, and noop for library embedding.
package prometheus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// TrainingMetrics is the unified telemetry API for training, evaluation,
// and preprocessing.  Implementations are safe for concurrent use.
type TrainingMetrics interface {
	// RecordEpoch records one completed training epoch.
	RecordEpoch(ctx context.Context, params *EpochMetricParams)

	// RecordBatch records one processed training batch.
	RecordBatch(ctx context.Context, params *BatchMetricParams)

	// RecordEvaluation records one computed evaluation metric.
	RecordEvaluation(ctx context.Context, modelName, metric string, value float64)

	// RecordPreprocess records one transform application.
	RecordPreprocess(ctx context.Context, transformKey string, durationMs float64, success bool)

	// RecordCacheAccess records a preprocessing cache hit or miss.
	RecordCacheAccess(ctx context.Context, hit bool, transformKey string)

	// GetCurrentStats returns a point-in-time snapshot.
	GetCurrentStats() *TrainingStats
}

// EpochMetricParams carries the data for one epoch event.
type EpochMetricParams struct {
	ModelName  string  `json:"model_name"`
	Epoch      int     `json:"epoch"`
	Loss       float64 `json:"loss"`
	DurationMs float64 `json:"duration_ms"`
}

// BatchMetricParams carries the data for one batch event.
type BatchMetricParams struct {
	ModelName  string  `json:"model_name"`
	BatchSize  int     `json:"batch_size"`
	Loss       float64 `json:"loss"`
	DurationMs float64 `json:"duration_ms"`
}

// TrainingStats is a point-in-time snapshot of training telemetry.
type TrainingStats struct {
	TotalEpochs    int64   `json:"total_epochs"`
	TotalBatches   int64   `json:"total_batches"`
	TotalSamples   int64   `json:"total_samples"`
	LastEpochLoss  float64 `json:"last_epoch_loss"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	PreprocessOps  int64   `json:"preprocess_ops"`
	PreprocessErrs int64   `json:"preprocess_errs"`
}

const metricsPrefix = "deepdrugkit_training_"

var durationBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 60000}

// Compile-time interface checks.
var (
	_ TrainingMetrics = (*prometheusTrainingMetrics)(nil)
	_ TrainingMetrics = (*noopTrainingMetrics)(nil)
	_ TrainingMetrics = (*InMemoryTrainingMetrics)(nil)
)

type prometheusTrainingMetrics struct {
	epochDuration      *prometheus.HistogramVec
	epochLoss          *prometheus.GaugeVec
	batchDuration      *prometheus.HistogramVec
	batchTotal         *prometheus.CounterVec
	samplesTotal       *prometheus.CounterVec
	evaluationValue    *prometheus.GaugeVec
	preprocessDuration *prometheus.HistogramVec
	preprocessTotal    *prometheus.CounterVec
	cacheAccessTotal   *prometheus.CounterVec

	totalEpochs    atomic.Int64
	totalBatches   atomic.Int64
	totalSamples   atomic.Int64
	preprocessOps  atomic.Int64
	preprocessErrs atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64

	mu            sync.Mutex
	lastEpochLoss float64
}

// NewPrometheusTrainingMetrics registers all training collectors with the
// given registerer (nil means the default).
func NewPrometheusTrainingMetrics(registerer prometheus.Registerer) (TrainingMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &prometheusTrainingMetrics{}

	m.epochDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "epoch_duration_milliseconds",
		Help:    "Histogram of training epoch duration in milliseconds.",
		Buckets: durationBuckets,
	}, []string{"model_name"})

	m.epochLoss = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricsPrefix + "epoch_loss",
		Help: "Mean loss of the most recent epoch.",
	}, []string{"model_name"})

	m.batchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "batch_duration_milliseconds",
		Help:    "Histogram of batch processing duration in milliseconds.",
		Buckets: durationBuckets,
	}, []string{"model_name"})

	m.batchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "batch_total",
		Help: "Total number of processed training batches.",
	}, []string{"model_name"})

	m.samplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "samples_total",
		Help: "Total number of samples seen during training.",
	}, []string{"model_name"})

	m.evaluationValue = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricsPrefix + "evaluation_value",
		Help: "Most recent value of each evaluation metric.",
	}, []string{"model_name", "metric"})

	m.preprocessDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "preprocess_duration_milliseconds",
		Help:    "Histogram of transform application duration in milliseconds.",
		Buckets: durationBuckets,
	}, []string{"transform"})

	m.preprocessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "preprocess_total",
		Help: "Total number of transform applications.",
	}, []string{"transform", "status"})

	m.cacheAccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "cache_access_total",
		Help: "Total number of preprocessing cache accesses.",
	}, []string{"transform", "result"})

	collectors := []prometheus.Collector{
		m.epochDuration, m.epochLoss,
		m.batchDuration, m.batchTotal, m.samplesTotal,
		m.evaluationValue,
		m.preprocessDuration, m.preprocessTotal,
		m.cacheAccessTotal,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusTrainingMetrics) RecordEpoch(_ context.Context, p *EpochMetricParams) {
	if p == nil {
		return
	}
	m.epochDuration.WithLabelValues(p.ModelName).Observe(p.DurationMs)
	m.epochLoss.WithLabelValues(p.ModelName).Set(p.Loss)
	m.totalEpochs.Add(1)
	m.mu.Lock()
	m.lastEpochLoss = p.Loss
	m.mu.Unlock()
}

func (m *prometheusTrainingMetrics) RecordBatch(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.batchDuration.WithLabelValues(p.ModelName).Observe(p.DurationMs)
	m.batchTotal.WithLabelValues(p.ModelName).Inc()
	m.samplesTotal.WithLabelValues(p.ModelName).Add(float64(p.BatchSize))
	m.totalBatches.Add(1)
	m.totalSamples.Add(int64(p.BatchSize))
}

func (m *prometheusTrainingMetrics) RecordEvaluation(_ context.Context, modelName, metric string, value float64) {
	m.evaluationValue.WithLabelValues(modelName, metric).Set(value)
}

func (m *prometheusTrainingMetrics) RecordPreprocess(_ context.Context, transformKey string, durationMs float64, success bool) {
	status := "success"
	if !success {
		status = "failure"
		m.preprocessErrs.Add(1)
	}
	m.preprocessDuration.WithLabelValues(transformKey).Observe(durationMs)
	m.preprocessTotal.WithLabelValues(transformKey, status).Inc()
	m.preprocessOps.Add(1)
}

func (m *prometheusTrainingMetrics) RecordCacheAccess(_ context.Context, hit bool, transformKey string) {
	result := "miss"
	if hit {
		result = "hit"
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
	m.cacheAccessTotal.WithLabelValues(transformKey, result).Inc()
}

func (m *prometheusTrainingMetrics) GetCurrentStats() *TrainingStats {
	m.mu.Lock()
	lastLoss := m.lastEpochLoss
	m.mu.Unlock()

	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}
	return &TrainingStats{
		TotalEpochs:    m.totalEpochs.Load(),
		TotalBatches:   m.totalBatches.Load(),
		TotalSamples:   m.totalSamples.Load(),
		LastEpochLoss:  lastLoss,
		CacheHitRate:   hitRate,
		PreprocessOps:  m.preprocessOps.Load(),
		PreprocessErrs: m.preprocessErrs.Load(),
	}
}

type noopTrainingMetrics struct{}

// NewNoopTrainingMetrics returns a metrics implementation that discards
// everything.
func NewNoopTrainingMetrics() TrainingMetrics { return &noopTrainingMetrics{} }

func (noopTrainingMetrics) RecordEpoch(context.Context, *EpochMetricParams)           {}
func (noopTrainingMetrics) RecordBatch(context.Context, *BatchMetricParams)           {}
func (noopTrainingMetrics) RecordEvaluation(context.Context, string, string, float64) {}
func (noopTrainingMetrics) RecordPreprocess(context.Context, string, float64, bool)   {}
func (noopTrainingMetrics) RecordCacheAccess(context.Context, bool, string)           {}
func (noopTrainingMetrics) GetCurrentStats() *TrainingStats                           { return &TrainingStats{} }

// InMemoryTrainingMetrics records every event for inspection in tests.
type InMemoryTrainingMetrics struct {
	mu sync.Mutex

	Epochs      []EpochMetricParams
	Batches     []BatchMetricParams
	Evaluations map[string]float64
	cacheHits   int64
	cacheMisses int64
	prepOps     int64
	prepErrs    int64
}

// NewInMemoryTrainingMetrics returns an in-memory metrics implementation.
func NewInMemoryTrainingMetrics() *InMemoryTrainingMetrics {
	return &InMemoryTrainingMetrics{Evaluations: map[string]float64{}}
}

func (m *InMemoryTrainingMetrics) RecordEpoch(_ context.Context, p *EpochMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.Epochs = append(m.Epochs, *p)
	m.mu.Unlock()
}

func (m *InMemoryTrainingMetrics) RecordBatch(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.Batches = append(m.Batches, *p)
	m.mu.Unlock()
}

func (m *InMemoryTrainingMetrics) RecordEvaluation(_ context.Context, modelName, metric string, value float64) {
	m.mu.Lock()
	m.Evaluations[modelName+"/"+metric] = value
	m.mu.Unlock()
}

func (m *InMemoryTrainingMetrics) RecordPreprocess(_ context.Context, _ string, _ float64, success bool) {
	m.mu.Lock()
	m.prepOps++
	if !success {
		m.prepErrs++
	}
	m.mu.Unlock()
}

func (m *InMemoryTrainingMetrics) RecordCacheAccess(_ context.Context, hit bool, _ string) {
	m.mu.Lock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
	m.mu.Unlock()
}

func (m *InMemoryTrainingMetrics) GetCurrentStats() *TrainingStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastLoss float64
	if len(m.Epochs) > 0 {
		lastLoss = m.Epochs[len(m.Epochs)-1].Loss
	}
	var totalSamples int64
	for _, b := range m.Batches {
		totalSamples += int64(b.BatchSize)
	}
	var hitRate float64
	if m.cacheHits+m.cacheMisses > 0 {
		hitRate = float64(m.cacheHits) / float64(m.cacheHits+m.cacheMisses)
	}
	return &TrainingStats{
		TotalEpochs:    int64(len(m.Epochs)),
		TotalBatches:   int64(len(m.Batches)),
		TotalSamples:   totalSamples,
		LastEpochLoss:  lastLoss,
		CacheHitRate:   hitRate,
		PreprocessOps:  m.prepOps,
		PreprocessErrs: m.prepErrs,
	}
}
