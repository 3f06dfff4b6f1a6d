package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Optimizer names accepted by NewOptimizer.
const (
	OptSGD      = "sgd"
	OptMomentum = "momentum"
	OptAdam     = "adam"
	OptAdamW    = "adamw"
	OptRMSProp  = "rmsprop"
)

// OptimizerConfig carries hyperparameters shared across methods.  Zero
// values select the usual defaults.
type OptimizerConfig struct {
	LR          float64 // default 1e-3
	Momentum    float64 // default 0.9 (momentum, rmsprop smoothing)
	Beta1       float64 // default 0.9
	Beta2       float64 // default 0.999
	Eps         float64 // default 1e-8
	WeightDecay float64 // default 0; adamw decouples it from the gradient
}

func (c OptimizerConfig) withDefaults() OptimizerConfig {
	if c.LR == 0 {
		c.LR = 1e-3
	}
	if c.Momentum == 0 {
		c.Momentum = 0.9
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	return c
}

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	// Name is the factory name the optimizer was built under.
	Name() string
	// Step applies one update and leaves gradients untouched; callers zero
	// them between accumulation windows.
	Step(params []*Param)
}

// NewOptimizer builds an optimizer by name.  Unknown names are
// unsupported-method errors.
func NewOptimizer(name string, cfg OptimizerConfig) (Optimizer, error) {
	cfg = cfg.withDefaults()
	switch name {
	case OptSGD:
		return &sgd{name: name, cfg: cfg}, nil
	case OptMomentum:
		return &momentum{name: name, cfg: cfg, velocity: map[*Param]*mat.Dense{}}, nil
	case OptAdam:
		return &adam{name: name, cfg: cfg, decoupled: false, m: map[*Param]*mat.Dense{}, v: map[*Param]*mat.Dense{}}, nil
	case OptAdamW:
		return &adam{name: name, cfg: cfg, decoupled: true, m: map[*Param]*mat.Dense{}, v: map[*Param]*mat.Dense{}}, nil
	case OptRMSProp:
		return &rmsprop{name: name, cfg: cfg, sq: map[*Param]*mat.Dense{}}, nil
	default:
		return nil, errors.UnsupportedMethod(errors.ErrCodeUnknownOptimizer, name)
	}
}

type sgd struct {
	name string
	cfg  OptimizerConfig
}

func (o *sgd) Name() string { return o.name }

func (o *sgd) Step(params []*Param) {
	for _, p := range params {
		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		for i := range value {
			g := grad[i] + o.cfg.WeightDecay*value[i]
			value[i] -= o.cfg.LR * g
		}
	}
}

type momentum struct {
	name     string
	cfg      OptimizerConfig
	velocity map[*Param]*mat.Dense
}

func (o *momentum) Name() string { return o.name }

func (o *momentum) Step(params []*Param) {
	for _, p := range params {
		vel, ok := o.velocity[p]
		if !ok {
			r, c := p.Value.Dims()
			vel = mat.NewDense(r, c, nil)
			o.velocity[p] = vel
		}
		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		v := vel.RawMatrix().Data
		for i := range value {
			g := grad[i] + o.cfg.WeightDecay*value[i]
			v[i] = o.cfg.Momentum*v[i] + g
			value[i] -= o.cfg.LR * v[i]
		}
	}
}

type adam struct {
	name      string
	cfg       OptimizerConfig
	decoupled bool
	step      int
	m, v      map[*Param]*mat.Dense
}

func (o *adam) Name() string { return o.name }

func (o *adam) Step(params []*Param) {
	o.step++
	bc1 := 1 - math.Pow(o.cfg.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.cfg.Beta2, float64(o.step))

	for _, p := range params {
		m, ok := o.m[p]
		if !ok {
			r, c := p.Value.Dims()
			m = mat.NewDense(r, c, nil)
			o.m[p] = m
			o.v[p] = mat.NewDense(r, c, nil)
		}
		v := o.v[p]

		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		md := m.RawMatrix().Data
		vd := v.RawMatrix().Data
		for i := range value {
			g := grad[i]
			if !o.decoupled {
				g += o.cfg.WeightDecay * value[i]
			}
			md[i] = o.cfg.Beta1*md[i] + (1-o.cfg.Beta1)*g
			vd[i] = o.cfg.Beta2*vd[i] + (1-o.cfg.Beta2)*g*g
			mHat := md[i] / bc1
			vHat := vd[i] / bc2
			update := o.cfg.LR * mHat / (math.Sqrt(vHat) + o.cfg.Eps)
			if o.decoupled {
				update += o.cfg.LR * o.cfg.WeightDecay * value[i]
			}
			value[i] -= update
		}
	}
}

type rmsprop struct {
	name string
	cfg  OptimizerConfig
	sq   map[*Param]*mat.Dense
}

func (o *rmsprop) Name() string { return o.name }

func (o *rmsprop) Step(params []*Param) {
	for _, p := range params {
		sq, ok := o.sq[p]
		if !ok {
			r, c := p.Value.Dims()
			sq = mat.NewDense(r, c, nil)
			o.sq[p] = sq
		}
		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		s := sq.RawMatrix().Data
		for i := range value {
			g := grad[i] + o.cfg.WeightDecay*value[i]
			s[i] = o.cfg.Momentum*s[i] + (1-o.cfg.Momentum)*g*g
			value[i] -= o.cfg.LR * g / (math.Sqrt(s[i]) + o.cfg.Eps)
		}
	}
}
