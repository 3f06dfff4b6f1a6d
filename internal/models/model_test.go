package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdrugkit/deepdrugkit/internal/data/dataset"
	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/internal/eval"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
	"github.com/deepdrugkit/deepdrugkit/internal/nn"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

func TestNewUnknownModel(t *testing.T) {
	_, err := New("transformer-xl", Config{})
	require.Error(t, err)
	assert.True(t, errors.IsUnsupportedMethod(err))
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownModel))
}

func TestNamesListsRegisteredModels(t *testing.T) {
	names := Names()
	assert.Contains(t, names, NameMLPDTI)
	assert.Contains(t, names, NameGCNDTI)
	assert.Contains(t, names, NameAffinityMLP)
	assert.IsType(t, []string{}, names)
}

// interactionRecords is a tiny separable set: ethanol-like drugs bind, the
// aromatics do not.
func interactionRecords() []preprocess.Record {
	rows := []struct {
		smiles, seq string
		label       float64
	}{
		{"CCO", "MKTAYIAKQR", 10},
		{"CCCO", "MKTAYIAKQR", 10},
		{"CCN", "GAVLIMKTAY", 9},
		{"CCCN", "GAVLIMKTAY", 9},
		{"c1ccccc1", "MKTAYIAKQR", 1.5},
		{"c1ccccc1C", "MKTAYIAKQR", 1.2},
		{"c1ccncc1", "GAVLIMKTAY", 2.1},
		{"c1ccc2ccccc2c1", "GAVLIMKTAY", 2.4},
	}
	records := make([]preprocess.Record, len(rows))
	for i, r := range rows {
		records[i] = preprocess.Record{
			dataset.AttrDrug:   r.smiles,
			dataset.AttrTarget: r.seq,
			dataset.AttrLabel:  r.label,
		}
	}
	return records
}

// preparedLoader preprocesses the interaction set with the model's default
// pipeline and wraps it in a deterministic loader.
func preparedLoader(t *testing.T, m Model, batchSize int) *dataset.Loader {
	t.Helper()

	list, err := m.DefaultPreprocess(dataset.AttrDrug, dataset.AttrTarget, dataset.AttrLabel)
	require.NoError(t, err)

	raw := interactionRecords()
	processed := make([]preprocess.Record, len(raw))
	for i, rec := range raw {
		processed[i], err = list.Apply(rec)
		require.NoError(t, err)
	}

	ds := dataset.New("toy", processed, nil)
	return dataset.NewLoader(ds, func(samples []preprocess.Record) (any, error) {
		return m.Collate(samples)
	}, dataset.LoaderOptions{BatchSize: batchSize, Shuffle: true, Seed: 11})
}

func TestMLPDTICollateShapes(t *testing.T) {
	m, err := New(NameMLPDTI, Config{Seed: 1, FingerprintBits: 64, Hidden: []int{16}})
	require.NoError(t, err)

	list, err := m.DefaultPreprocess(dataset.AttrDrug, dataset.AttrTarget, dataset.AttrLabel)
	require.NoError(t, err)

	rec, err := list.Apply(preprocess.Record{
		dataset.AttrDrug:   "CCO",
		dataset.AttrTarget: "MKTAYIAKQR",
		dataset.AttrLabel:  8.0,
	})
	require.NoError(t, err)

	batch, err := m.Collate([]preprocess.Record{rec, rec})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Size)

	rows, cols := batch.Drug.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 64, cols)
	_, tcols := batch.Target.Dims()
	assert.Equal(t, 400, tcols) // k=2 over 20 letters
	lrows, lcols := batch.Labels.Dims()
	assert.Equal(t, 2, lrows)
	assert.Equal(t, 1, lcols)
	assert.InDelta(t, 1.0, batch.Labels.At(0, 0), 1e-12) // 8.0 >= default threshold 7
}

func TestCollateMissingAttribute(t *testing.T) {
	m, err := New(NameMLPDTI, Config{FingerprintBits: 64})
	require.NoError(t, err)

	_, err = m.Collate([]preprocess.Record{{dataset.AttrDrug: []float32{1, 2}}})
	require.Error(t, err)
	assert.True(t, errors.IsDataFormat(err))
}

func TestMLPDTITrainingReducesLoss(t *testing.T) {
	m, err := New(NameMLPDTI, Config{Seed: 7, FingerprintBits: 64, Hidden: []int{16}})
	require.NoError(t, err)

	loader := preparedLoader(t, m, 4)
	criterion := &nn.BCELoss{}
	opt, err := nn.NewOptimizer(nn.OptAdam, nn.OptimizerConfig{LR: 0.01})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := m.TrainOneEpoch(ctx, loader, criterion, opt, TrainOptions{})
	require.NoError(t, err)
	var last float64
	for i := 0; i < 40; i++ {
		last, err = m.TrainOneEpoch(ctx, loader, criterion, opt, TrainOptions{})
		require.NoError(t, err)
	}
	assert.Less(t, last, first)
}

func TestAffinityMLPRegression(t *testing.T) {
	m, err := New(NameAffinityMLP, Config{Seed: 3, FingerprintBits: 64, Hidden: []int{16}})
	require.NoError(t, err)

	loader := preparedLoader(t, m, 4)
	criterion := &nn.MSELoss{}
	opt, err := nn.NewOptimizer(nn.OptAdam, nn.OptimizerConfig{LR: 0.01})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := m.TrainOneEpoch(ctx, loader, criterion, opt, TrainOptions{})
	require.NoError(t, err)
	var last float64
	for i := 0; i < 60; i++ {
		last, err = m.TrainOneEpoch(ctx, loader, criterion, opt, TrainOptions{})
		require.NoError(t, err)
	}
	assert.Less(t, last, first)

	evaluator, err := eval.New([]string{"mse", "rmse", "mae"}, eval.Options{})
	require.NoError(t, err)
	report, err := m.Evaluate(ctx, loader, criterion, evaluator)
	require.NoError(t, err)
	assert.InDelta(t, report["mse"], report["rmse"]*report["rmse"], 1e-9)
}

func TestEvaluateReportsMetrics(t *testing.T) {
	m, err := New(NameMLPDTI, Config{Seed: 5, FingerprintBits: 64, Hidden: []int{16}})
	require.NoError(t, err)

	loader := preparedLoader(t, m, 4)
	evaluator, err := eval.New([]string{"accuracy", "roc_auc"}, eval.Options{})
	require.NoError(t, err)

	report, err := m.Evaluate(context.Background(), loader, nil, evaluator)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report["accuracy"], 0.0)
	assert.LessOrEqual(t, report["accuracy"], 1.0)
	assert.Equal(t, 8, evaluator.Count())
}

func TestLabelThresholdFlowsIntoPipeline(t *testing.T) {
	m, err := New(NameMLPDTI, Config{FingerprintBits: 64, LabelThreshold: 5})
	require.NoError(t, err)

	list, err := m.DefaultPreprocess(dataset.AttrDrug, dataset.AttrTarget, dataset.AttrLabel)
	require.NoError(t, err)

	rec, err := list.Apply(preprocess.Record{
		dataset.AttrDrug:   "CCO",
		dataset.AttrTarget: "MKTAYIAKQR",
		dataset.AttrLabel:  5.5,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), rec[dataset.AttrLabel]) // 5.5 >= 5 under the custom threshold
}

func TestPreBinarisedLabelsSurviveDefaultPipeline(t *testing.T) {
	m, err := New(NameMLPDTI, Config{FingerprintBits: 64})
	require.NoError(t, err)

	list, err := m.DefaultPreprocess(dataset.AttrDrug, dataset.AttrTarget, dataset.AttrLabel)
	require.NoError(t, err)

	for _, want := range []float64{0, 1} {
		rec, err := list.Apply(preprocess.Record{
			dataset.AttrDrug:   "CCO",
			dataset.AttrTarget: "MKTAYIAKQR",
			dataset.AttrLabel:  want,
		})
		require.NoError(t, err)
		assert.Equal(t, want, rec[dataset.AttrLabel])
	}
}

func TestEvaluateResetsAccumulatedState(t *testing.T) {
	m, err := New(NameMLPDTI, Config{Seed: 5, FingerprintBits: 64, Hidden: []int{16}})
	require.NoError(t, err)

	loader := preparedLoader(t, m, 4)
	evaluator, err := eval.New([]string{"accuracy"}, eval.Options{})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := m.Evaluate(ctx, loader, nil, evaluator)
	require.NoError(t, err)
	assert.Equal(t, 8, evaluator.Count())

	// Reusing the evaluator for another pass must not mix in the first one.
	second, err := m.Evaluate(ctx, loader, nil, evaluator)
	require.NoError(t, err)
	assert.Equal(t, 8, evaluator.Count())
	assert.Equal(t, first, second)
}

func TestGradAccumulationStillUpdates(t *testing.T) {
	m, err := New(NameMLPDTI, Config{Seed: 9, FingerprintBits: 64, Hidden: []int{16}})
	require.NoError(t, err)

	net := m.(*mlpModel).net
	before := net.params()[0].Value.At(0, 0)

	loader := preparedLoader(t, m, 2)
	criterion := &nn.BCELoss{}
	opt, err := nn.NewOptimizer(nn.OptSGD, nn.OptimizerConfig{LR: 0.1})
	require.NoError(t, err)

	_, err = m.TrainOneEpoch(context.Background(), loader, criterion, opt, TrainOptions{GradAccumSteps: 3})
	require.NoError(t, err)
	assert.NotEqual(t, before, net.params()[0].Value.At(0, 0))
}

func TestTrainRejectsForeignBatches(t *testing.T) {
	m, err := New(NameMLPDTI, Config{Seed: 1, FingerprintBits: 64, Hidden: []int{16}})
	require.NoError(t, err)

	ds := dataset.New("raw", interactionRecords(), nil)
	loader := dataset.NewLoader(ds, nil, dataset.LoaderOptions{BatchSize: 4})

	opt, err := nn.NewOptimizer(nn.OptSGD, nn.OptimizerConfig{})
	require.NoError(t, err)
	_, err = m.TrainOneEpoch(context.Background(), loader, &nn.BCELoss{}, opt, TrainOptions{})
	require.Error(t, err)
}

func TestWithMetricsRecordsTraining(t *testing.T) {
	m, err := New(NameMLPDTI, Config{Seed: 2, FingerprintBits: 64, Hidden: []int{16}})
	require.NoError(t, err)

	tm := monitoring.NewInMemoryTrainingMetrics()
	wrapped := WithMetrics(m, tm)
	assert.Equal(t, NameMLPDTI, wrapped.Name())

	loader := preparedLoader(t, wrapped, 4)
	criterion := &nn.BCELoss{}
	opt, err := nn.NewOptimizer(nn.OptAdam, nn.OptimizerConfig{LR: 0.01})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = wrapped.TrainOneEpoch(ctx, loader, criterion, opt, TrainOptions{})
	require.NoError(t, err)
	_, err = wrapped.TrainOneEpoch(ctx, loader, criterion, opt, TrainOptions{})
	require.NoError(t, err)

	evaluator, err := eval.New([]string{"accuracy"}, eval.Options{})
	require.NoError(t, err)
	_, err = wrapped.Evaluate(ctx, loader, criterion, evaluator)
	require.NoError(t, err)

	stats := tm.GetCurrentStats()
	assert.Equal(t, int64(2), stats.TotalEpochs)
	assert.Equal(t, int64(4), stats.TotalBatches) // 8 samples / batch 4, two epochs
	assert.Equal(t, int64(16), stats.TotalSamples)
	assert.Equal(t, 2, tm.Epochs[1].Epoch)
	assert.Contains(t, tm.Evaluations, NameMLPDTI+"/accuracy")
}

func TestWithMetricsNilPassthrough(t *testing.T) {
	m, err := New(NameMLPDTI, Config{FingerprintBits: 64})
	require.NoError(t, err)
	assert.Same(t, m, WithMetrics(m, nil))
}
