package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDenseForward(t *testing.T) {
	d := NewDense(2, 2, 1)
	d.W.Value = mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	d.B.Value = mat.NewDense(1, 2, []float64{0.5, -0.5})

	x := mat.NewDense(1, 2, []float64{1, 1})
	y := d.Forward(x)

	assert.InDelta(t, 4.5, y.At(0, 0), 1e-12)
	assert.InDelta(t, 5.5, y.At(0, 1), 1e-12)
}

func TestDenseSeededInitIsReproducible(t *testing.T) {
	a := NewDense(8, 4, 42)
	b := NewDense(8, 4, 42)
	c := NewDense(8, 4, 43)

	assert.True(t, mat.Equal(a.W.Value, b.W.Value))
	assert.False(t, mat.Equal(a.W.Value, c.W.Value))
}

func TestReLU(t *testing.T) {
	l := &ReLU{}
	x := mat.NewDense(1, 4, []float64{-2, -0.5, 0.5, 3})
	y := l.Forward(x)
	assert.Equal(t, []float64{0, 0, 0.5, 3}, y.RawMatrix().Data)

	grad := mat.NewDense(1, 4, []float64{1, 1, 1, 1})
	dx := l.Backward(grad)
	assert.Equal(t, []float64{0, 0, 1, 1}, dx.RawMatrix().Data)
}

func TestSigmoid(t *testing.T) {
	l := &Sigmoid{}
	x := mat.NewDense(1, 2, []float64{0, 100})
	y := l.Forward(x)
	assert.InDelta(t, 0.5, y.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, y.At(0, 1), 1e-9)

	dx := l.Backward(mat.NewDense(1, 2, []float64{1, 1}))
	assert.InDelta(t, 0.25, dx.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, dx.At(0, 1), 1e-9)
}

func TestDropout(t *testing.T) {
	l := NewDropout(0.5, 7)
	x := mat.NewDense(1, 1000, ones(1000))

	// Evaluation mode passes through untouched.
	y := l.Forward(x)
	assert.Equal(t, x.RawMatrix().Data, y.RawMatrix().Data)

	l.SetTraining(true)
	y = l.Forward(x)
	zeros := 0
	for _, v := range y.RawMatrix().Data {
		if v == 0 {
			zeros++
		} else {
			assert.InDelta(t, 2.0, v, 1e-12)
		}
	}
	assert.Greater(t, zeros, 350)
	assert.Less(t, zeros, 650)

	// Backward masks the same positions.
	dx := l.Backward(mat.NewDense(1, 1000, ones(1000)))
	for i, v := range y.RawMatrix().Data {
		if v == 0 {
			assert.Zero(t, dx.RawMatrix().Data[i])
		}
	}
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestNetworkGradientsMatchFiniteDifferences(t *testing.T) {
	net := NewNetwork(
		NewDense(3, 4, 1),
		&ReLU{},
		NewDense(4, 1, 2),
		&Sigmoid{},
	)
	loss := &BCELoss{}

	x := mat.NewDense(2, 3, []float64{0.2, -0.4, 0.9, -0.1, 0.5, 0.3})
	y := mat.NewDense(2, 1, []float64{1, 0})

	pred := net.Forward(x)
	loss.Forward(pred, y)
	net.Backward(loss.Backward())

	const eps = 1e-6
	for pi, p := range net.Params() {
		data := p.Value.RawMatrix().Data
		grads := p.Grad.RawMatrix().Data
		for i := range data {
			orig := data[i]
			data[i] = orig + eps
			up := loss.Forward(net.Forward(x), y)
			data[i] = orig - eps
			down := loss.Forward(net.Forward(x), y)
			data[i] = orig

			numeric := (up - down) / (2 * eps)
			assert.InDelta(t, numeric, grads[i], 1e-5,
				"param %d element %d", pi, i)
		}
	}
}

func TestZeroGrads(t *testing.T) {
	d := NewDense(2, 2, 3)
	d.W.Grad.Set(0, 0, 5)
	ZeroGrads(d.Params())
	assert.Zero(t, d.W.Grad.At(0, 0))
}

func TestLossValues(t *testing.T) {
	mse := &MSELoss{}
	pred := mat.NewDense(1, 2, []float64{1, 3})
	target := mat.NewDense(1, 2, []float64{0, 1})
	assert.InDelta(t, 2.5, mse.Forward(pred, target), 1e-12)
	grad := mse.Backward()
	assert.InDelta(t, 1.0, grad.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, grad.At(0, 1), 1e-12)

	bce := &BCELoss{}
	p := mat.NewDense(1, 2, []float64{0.9, 0.1})
	yv := mat.NewDense(1, 2, []float64{1, 0})
	require.InDelta(t, 0.105360, bce.Forward(p, yv), 1e-5)
}
