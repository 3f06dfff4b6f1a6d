package models

import (
	"context"
	"time"

	"github.com/deepdrugkit/deepdrugkit/internal/data/dataset"
	"github.com/deepdrugkit/deepdrugkit/internal/eval"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
	"github.com/deepdrugkit/deepdrugkit/internal/nn"
)

// instrumentedModel forwards to the wrapped model and records telemetry for
// every epoch, batch, and evaluation metric.
type instrumentedModel struct {
	Model
	metrics monitoring.TrainingMetrics
	epoch   int
}

// WithMetrics wraps m so training and evaluation report to tm.  A nil tm
// returns m unchanged.
func WithMetrics(m Model, tm monitoring.TrainingMetrics) Model {
	if tm == nil {
		return m
	}
	return &instrumentedModel{Model: m, metrics: tm}
}

func (im *instrumentedModel) TrainOneEpoch(ctx context.Context, loader *dataset.Loader, criterion nn.Loss, opt nn.Optimizer, opts TrainOptions) (float64, error) {
	inner := opts.OnBatch
	batchStart := time.Now()
	opts.OnBatch = func(batchIdx, size int, loss float64) {
		im.metrics.RecordBatch(ctx, &monitoring.BatchMetricParams{
			ModelName:  im.Name(),
			BatchSize:  size,
			Loss:       loss,
			DurationMs: float64(time.Since(batchStart).Milliseconds()),
		})
		batchStart = time.Now()
		if inner != nil {
			inner(batchIdx, size, loss)
		}
	}

	start := time.Now()
	loss, err := im.Model.TrainOneEpoch(ctx, loader, criterion, opt, opts)
	if err != nil {
		return loss, err
	}
	im.epoch++
	im.metrics.RecordEpoch(ctx, &monitoring.EpochMetricParams{
		ModelName:  im.Name(),
		Epoch:      im.epoch,
		Loss:       loss,
		DurationMs: float64(time.Since(start).Milliseconds()),
	})
	return loss, nil
}

func (im *instrumentedModel) Evaluate(ctx context.Context, loader *dataset.Loader, criterion nn.Loss, evaluator *eval.Evaluator) (eval.Report, error) {
	report, err := im.Model.Evaluate(ctx, loader, criterion, evaluator)
	if err != nil {
		return nil, err
	}
	for metric, value := range report {
		im.metrics.RecordEvaluation(ctx, im.Name(), metric, value)
	}
	return report, nil
}
