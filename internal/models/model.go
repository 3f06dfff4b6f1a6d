// Package models holds the trainable drug-target models behind a uniform
// contract: every model names its default preprocessing pipeline, collates
// records into tensors, and trains or evaluates over a batch loader.
package models

import (
	"context"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/deepdrugkit/deepdrugkit/internal/data/dataset"
	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/internal/eval"
	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
	"github.com/deepdrugkit/deepdrugkit/internal/nn"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Registered model names.
const (
	NameMLPDTI      = "mlp-dti"
	NameGCNDTI      = "gcn-dti"
	NameAffinityMLP = "affinity-mlp"
)

// Batch is the tensor form of one collated group of samples.  Fingerprint
// models fill Drug; graph models fill Graphs instead.
type Batch struct {
	Drug   *mat.Dense
	Target *mat.Dense
	Labels *mat.Dense
	Graphs *GraphBatch
	Size   int
}

// TrainOptions tune one training epoch.
type TrainOptions struct {
	// GradAccumSteps applies the optimizer every N batches instead of every
	// batch.  Default 1.
	GradAccumSteps int
	// OnBatch, when set, observes every processed batch.
	OnBatch func(batchIdx, size int, loss float64)
	Logger  logging.Logger
}

// Model is the uniform training contract.
type Model interface {
	// Name is the registry name of the model.
	Name() string

	// DefaultPreprocess returns the pipeline that prepares raw records for
	// this model's Collate.
	DefaultPreprocess(drugAttr, targetAttr, labelAttr string) (*preprocess.List, error)

	// Collate merges preprocessed records into one Batch.
	Collate(samples []preprocess.Record) (*Batch, error)

	// TrainOneEpoch runs one pass over the loader and returns the mean
	// per-sample loss.
	TrainOneEpoch(ctx context.Context, loader *dataset.Loader, criterion nn.Loss, opt nn.Optimizer, opts TrainOptions) (float64, error)

	// Evaluate runs inference over the loader and scores it.
	Evaluate(ctx context.Context, loader *dataset.Loader, criterion nn.Loss, evaluator *eval.Evaluator) (eval.Report, error)
}

// Config parameterises model construction.  Zero values select defaults.
type Config struct {
	Seed    int64
	Hidden  []int
	Dropout float64

	// FingerprintBits sizes the drug fingerprint for fingerprint models.
	// Default 1024.
	FingerprintBits int
	// KmerK sizes the target k-mer composition vector.
	KmerK int
	// MaxAtoms caps molecule size for graph models.  Zero disables.
	MaxAtoms int
	// LabelThreshold binarises affinity labels in classification pipelines.
	// Zero keeps the transform default (pKd 7); labels already in {0, 1}
	// always pass through unchanged.
	LabelThreshold float64

	// Attribute names in collated records.  Defaults are the dataset
	// conventions.
	DrugAttr   string
	TargetAttr string
	LabelAttr  string
}

func (c Config) withDefaults() Config {
	if c.FingerprintBits <= 0 {
		c.FingerprintBits = 1024
	}
	if c.DrugAttr == "" {
		c.DrugAttr = dataset.AttrDrug
	}
	if c.TargetAttr == "" {
		c.TargetAttr = dataset.AttrTarget
	}
	if c.LabelAttr == "" {
		c.LabelAttr = dataset.AttrLabel
	}
	return c
}

// Constructor builds a model from a config.
type Constructor func(cfg Config) (Model, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a model constructor under name.
func Register(name string, ctor Constructor) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		return errors.Newf(errors.ErrCodeInvalidConfig, "model %q registered twice", name)
	}
	registry[name] = ctor
	return nil
}

func mustRegister(name string, ctor Constructor) {
	if err := Register(name, ctor); err != nil {
		panic(err)
	}
}

// New builds the named model.  An unknown name is an unsupported-method
// error.
func New(name string, cfg Config) (Model, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.UnsupportedMethod(errors.ErrCodeUnknownModel, name)
	}
	return ctor(cfg)
}

// Names lists the registered models, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// network is the differentiable core a model trains.  forward consumes a
// whole batch and yields one prediction column; backward propagates the loss
// gradient into the parameters.
type network interface {
	forward(b *Batch) *mat.Dense
	backward(grad *mat.Dense)
	params() []*nn.Param
	setTraining(on bool)
}

// base implements the training and evaluation loops shared by every model.
type base struct {
	name string
	cfg  Config
	net  network
}

func (b *base) Name() string { return b.name }

func (b *base) TrainOneEpoch(ctx context.Context, loader *dataset.Loader, criterion nn.Loss, opt nn.Optimizer, opts TrainOptions) (float64, error) {
	accum := opts.GradAccumSteps
	if accum <= 0 {
		accum = 1
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}

	b.net.setTraining(true)
	defer b.net.setTraining(false)

	params := b.net.params()
	nn.ZeroGrads(params)

	var lossSum float64
	var samples int
	pending := 0

	err := loader.ForEach(ctx, func(batchIdx int, raw any) error {
		batch, ok := raw.(*Batch)
		if !ok {
			return errors.Newf(errors.ErrCodeInvalidParam, "loader yielded %T, want *models.Batch", raw)
		}
		pred := b.net.forward(batch)
		loss := criterion.Forward(pred, batch.Labels)
		b.net.backward(criterion.Backward())

		lossSum += loss * float64(batch.Size)
		samples += batch.Size
		pending++
		if pending == accum {
			opt.Step(params)
			nn.ZeroGrads(params)
			pending = 0
		}
		if opts.OnBatch != nil {
			opts.OnBatch(batchIdx, batch.Size, loss)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if pending > 0 {
		opt.Step(params)
		nn.ZeroGrads(params)
	}

	mean := lossSum / float64(samples)
	log.Debug("epoch finished",
		logging.String("model", b.name),
		logging.Int("samples", samples),
		logging.Float64("loss", mean),
	)
	return mean, nil
}

func (b *base) Evaluate(ctx context.Context, loader *dataset.Loader, criterion nn.Loss, evaluator *eval.Evaluator) (eval.Report, error) {
	b.net.setTraining(false)
	// A fresh pass never inherits accumulated state, so one evaluator can be
	// reused across epochs.
	evaluator.Reset()

	err := loader.ForEach(ctx, func(_ int, raw any) error {
		batch, ok := raw.(*Batch)
		if !ok {
			return errors.Newf(errors.ErrCodeInvalidParam, "loader yielded %T, want *models.Batch", raw)
		}
		pred := b.net.forward(batch)
		if criterion != nil {
			criterion.Forward(pred, batch.Labels)
		}
		return evaluator.Update(columnOf(pred), columnOf(batch.Labels))
	})
	if err != nil {
		return nil, err
	}
	return evaluator.Compute()
}

// columnOf copies the single column of m into a slice.
func columnOf(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = m.At(i, 0)
	}
	return out
}

// hconcat joins two row-aligned matrices side by side.
func hconcat(a, b *mat.Dense) *mat.Dense {
	rows, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(rows, ca+cb, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < ca; c++ {
			out.Set(r, c, a.At(r, c))
		}
		for c := 0; c < cb; c++ {
			out.Set(r, ca+c, b.At(r, c))
		}
	}
	return out
}

// splitCols undoes hconcat for a gradient matrix.
func splitCols(m *mat.Dense, ca int) (*mat.Dense, *mat.Dense) {
	rows, cols := m.Dims()
	a := mat.NewDense(rows, ca, nil)
	b := mat.NewDense(rows, cols-ca, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < ca; c++ {
			a.Set(r, c, m.At(r, c))
		}
		for c := ca; c < cols; c++ {
			b.Set(r, c-ca, m.At(r, c))
		}
	}
	return a, b
}

// featureMatrix stacks the named []float32 attribute of every sample into a
// dense matrix, enforcing a uniform width.
func featureMatrix(samples []preprocess.Record, attr string) (*mat.Dense, error) {
	var out *mat.Dense
	width := 0
	for i, rec := range samples {
		v, ok := rec[attr]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeMissingAttribute, "record has no attribute %q", attr)
		}
		vec, ok := v.([]float32)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeMalformedRow,
				"attribute %q is %T, want []float32", attr, v)
		}
		if out == nil {
			width = len(vec)
			out = mat.NewDense(len(samples), width, nil)
		}
		if len(vec) != width {
			return nil, errors.Newf(errors.ErrCodeMalformedRow,
				"attribute %q width %d differs from %d", attr, len(vec), width)
		}
		for j, f := range vec {
			out.Set(i, j, float64(f))
		}
	}
	return out, nil
}

// labelColumn stacks the float64 label attribute into an n-by-1 matrix.
func labelColumn(samples []preprocess.Record, attr string) (*mat.Dense, error) {
	out := mat.NewDense(len(samples), 1, nil)
	for i, rec := range samples {
		v, ok := rec[attr]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeMissingAttribute, "record has no attribute %q", attr)
		}
		f, ok := v.(float64)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeMalformedRow,
				"attribute %q is %T, want float64", attr, v)
		}
		out.Set(i, 0, f)
	}
	return out, nil
}
