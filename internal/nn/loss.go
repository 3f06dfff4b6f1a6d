package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Loss scores predictions against targets and produces dL/dPred.
type Loss interface {
	// Name is the registry name of the criterion.
	Name() string
	// Forward computes the scalar loss, averaged over all elements.
	Forward(pred, target *mat.Dense) float64
	// Backward returns the gradient of the last Forward call.
	Backward() *mat.Dense
}

const bceEps = 1e-12

// BCELoss is binary cross-entropy over probabilities (outputs of a sigmoid).
type BCELoss struct {
	pred, target *mat.Dense
}

func (l *BCELoss) Name() string { return "bce" }

func (l *BCELoss) Forward(pred, target *mat.Dense) float64 {
	l.pred, l.target = pred, target
	p := pred.RawMatrix().Data
	y := target.RawMatrix().Data
	var sum float64
	for i := range p {
		pi := math.Min(math.Max(p[i], bceEps), 1-bceEps)
		sum += -(y[i]*math.Log(pi) + (1-y[i])*math.Log(1-pi))
	}
	return sum / float64(len(p))
}

func (l *BCELoss) Backward() *mat.Dense {
	out := mat.DenseCopyOf(l.pred)
	data := out.RawMatrix().Data
	y := l.target.RawMatrix().Data
	n := float64(len(data))
	for i := range data {
		pi := math.Min(math.Max(data[i], bceEps), 1-bceEps)
		data[i] = (pi - y[i]) / (pi * (1 - pi) * n)
	}
	return out
}

// MSELoss is mean squared error.
type MSELoss struct {
	pred, target *mat.Dense
}

func (l *MSELoss) Name() string { return "mse" }

func (l *MSELoss) Forward(pred, target *mat.Dense) float64 {
	l.pred, l.target = pred, target
	p := pred.RawMatrix().Data
	y := target.RawMatrix().Data
	var sum float64
	for i := range p {
		d := p[i] - y[i]
		sum += d * d
	}
	return sum / float64(len(p))
}

func (l *MSELoss) Backward() *mat.Dense {
	out := mat.DenseCopyOf(l.pred)
	data := out.RawMatrix().Data
	y := l.target.RawMatrix().Data
	n := float64(len(data))
	for i := range data {
		data[i] = 2 * (data[i] - y[i]) / n
	}
	return out
}
