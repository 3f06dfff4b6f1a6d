// Package nn is the CPU neural-network substrate: dense layers and
// activations over gonum matrices with explicit backward passes, loss
// functions, and a name-keyed optimizer factory.  Rows are samples, columns
// are features throughout.
package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is one trainable tensor with its accumulated gradient.
type Param struct {
	Value *mat.Dense
	Grad  *mat.Dense
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Layer is a differentiable network stage.  Backward receives dL/dOutput of
// the last Forward call and returns dL/dInput, accumulating parameter
// gradients along the way.
type Layer interface {
	Forward(x *mat.Dense) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*Param
}

// trainable is implemented by layers that behave differently in training.
type trainable interface {
	SetTraining(on bool)
}

// Dense is a fully connected layer: y = xW + b.
type Dense struct {
	W, B  *Param
	input *mat.Dense
}

// NewGlorotParam builds an in-by-out parameter with Glorot-uniform values
// from a seeded source, so construction is reproducible.
func NewGlorotParam(in, out int, seed int64) *Param {
	rng := rand.New(rand.NewSource(seed))
	limit := math.Sqrt(6.0 / float64(in+out))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return &Param{Value: mat.NewDense(in, out, w), Grad: mat.NewDense(in, out, nil)}
}

// NewDense builds a dense layer with Glorot-uniform weights.
func NewDense(in, out int, seed int64) *Dense {
	return &Dense{
		W: NewGlorotParam(in, out, seed),
		B: &Param{Value: mat.NewDense(1, out, nil), Grad: mat.NewDense(1, out, nil)},
	}
}

func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	d.input = x
	rows, _ := x.Dims()
	_, out := d.W.Value.Dims()

	y := mat.NewDense(rows, out, nil)
	y.Mul(x, d.W.Value)
	for r := 0; r < rows; r++ {
		for c := 0; c < out; c++ {
			y.Set(r, c, y.At(r, c)+d.B.Value.At(0, c))
		}
	}
	return y
}

func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	rows, _ := grad.Dims()
	in, out := d.W.Value.Dims()

	var dW mat.Dense
	dW.Mul(d.input.T(), grad)
	d.W.Grad.Add(d.W.Grad, &dW)

	for c := 0; c < out; c++ {
		sum := d.B.Grad.At(0, c)
		for r := 0; r < rows; r++ {
			sum += grad.At(r, c)
		}
		d.B.Grad.Set(0, c, sum)
	}

	dx := mat.NewDense(rows, in, nil)
	dx.Mul(grad, d.W.Value.T())
	return dx
}

func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }

// ReLU is the elementwise rectifier.
type ReLU struct {
	mask []bool
}

func (l *ReLU) Forward(x *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(x)
	data := out.RawMatrix().Data
	l.mask = make([]bool, len(data))
	for i, v := range data {
		if v > 0 {
			l.mask[i] = true
		} else {
			data[i] = 0
		}
	}
	return out
}

func (l *ReLU) Backward(grad *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(grad)
	data := out.RawMatrix().Data
	for i := range data {
		if !l.mask[i] {
			data[i] = 0
		}
	}
	return out
}

func (l *ReLU) Params() []*Param { return nil }

// Sigmoid is the elementwise logistic activation.
type Sigmoid struct {
	output *mat.Dense
}

func (l *Sigmoid) Forward(x *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(x)
	data := out.RawMatrix().Data
	for i, v := range data {
		data[i] = 1.0 / (1.0 + math.Exp(-v))
	}
	l.output = out
	return out
}

func (l *Sigmoid) Backward(grad *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(grad)
	data := out.RawMatrix().Data
	sig := l.output.RawMatrix().Data
	for i := range data {
		data[i] *= sig[i] * (1 - sig[i])
	}
	return out
}

func (l *Sigmoid) Params() []*Param { return nil }

// Dropout zeroes activations with probability Rate during training and
// rescales survivors by 1/(1-Rate).  Evaluation passes through unchanged.
type Dropout struct {
	Rate     float64
	rng      *rand.Rand
	training bool
	mask     []float64
}

// NewDropout builds a dropout layer with its own seeded source.
func NewDropout(rate float64, seed int64) *Dropout {
	return &Dropout{Rate: rate, rng: rand.New(rand.NewSource(seed))}
}

func (l *Dropout) SetTraining(on bool) { l.training = on }

func (l *Dropout) Forward(x *mat.Dense) *mat.Dense {
	if !l.training || l.Rate <= 0 {
		l.mask = nil
		return x
	}
	out := mat.DenseCopyOf(x)
	data := out.RawMatrix().Data
	scale := 1.0 / (1.0 - l.Rate)
	l.mask = make([]float64, len(data))
	for i := range data {
		if l.rng.Float64() < l.Rate {
			data[i] = 0
		} else {
			l.mask[i] = scale
			data[i] *= scale
		}
	}
	return out
}

func (l *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	if l.mask == nil {
		return grad
	}
	out := mat.DenseCopyOf(grad)
	data := out.RawMatrix().Data
	for i := range data {
		data[i] *= l.mask[i]
	}
	return out
}

func (l *Dropout) Params() []*Param { return nil }

// Network chains layers sequentially.
type Network struct {
	Layers []Layer
}

// NewNetwork builds a sequential network.
func NewNetwork(layers ...Layer) *Network {
	return &Network{Layers: layers}
}

func (n *Network) Forward(x *mat.Dense) *mat.Dense {
	for _, l := range n.Layers {
		x = l.Forward(x)
	}
	return x
}

func (n *Network) Backward(grad *mat.Dense) *mat.Dense {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Backward(grad)
	}
	return grad
}

// Params collects every trainable parameter in layer order.
func (n *Network) Params() []*Param {
	var out []*Param
	for _, l := range n.Layers {
		out = append(out, l.Params()...)
	}
	return out
}

// SetTraining switches training-only behaviour (dropout) on or off.
func (n *Network) SetTraining(on bool) {
	for _, l := range n.Layers {
		if t, ok := l.(trainable); ok {
			t.SetTraining(on)
		}
	}
}

// ZeroGrads clears all parameter gradients.
func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
