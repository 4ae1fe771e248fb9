package waifu2x

import (
	"gonum.org/v1/gonum/mat"
)

// Trace holds the activations of one forward pass needed by Backward.
type Trace struct {
	inputs [][]*mat.Dense // planes fed into each layer
	pre    [][]*mat.Dense // each layer's output before the activation
	Output *mat.Dense
}

// ForwardTrace is Forward without concurrency or cancellation that keeps
// every intermediate plane for a later call to Backward.
func (m Model) ForwardTrace(plane *mat.Dense) *Trace {
	t := &Trace{
		inputs: make([][]*mat.Dense, len(m)),
		pre:    make([][]*mat.Dense, len(m)),
	}
	planes := []*mat.Dense{pad(plane, len(m))}
	for l := range m {
		t.inputs[l] = planes
		pre := make([]*mat.Dense, m[l].NOutputPlane)
		out := make([]*mat.Dense, m[l].NOutputPlane)
		for o := range pre {
			pre[o] = m[l].preActivation(planes, o)
			r, c := pre[o].Dims()
			out[o] = mat.NewDense(r, c, nil)
			out[o].Apply(func(_, _ int, v float64) float64 { return leaky(v) }, pre[o])
		}
		t.pre[l] = pre
		planes = out
	}
	t.Output = planes[0]
	return t
}

// Backward propagates grad, the gradient of the loss with respect to
// t.Output, back through the network and returns the parameter gradients
// shaped like m.
func (m Model) Backward(t *Trace, grad *mat.Dense) Model {
	grads := m.ZeroLike()
	dA := []*mat.Dense{grad}
	for l := len(m) - 1; l >= 0; l-- {
		layer := &m[l]
		ins := t.inputs[l]
		var dX []*mat.Dense
		if l > 0 {
			dX = make([]*mat.Dense, len(ins))
			for i, in := range ins {
				r, c := in.Dims()
				dX[i] = mat.NewDense(r, c, nil)
			}
		}
		for o := 0; o < layer.NOutputPlane; o++ {
			dz := leakyGrad(t.pre[l][o], dA[o])
			grads[l].Bias[o] += mat.Sum(dz)
			for i, in := range ins {
				kernelGradAdd(grads[l].Weight[o][i], dz, in)
				if dX != nil {
					inputGradAdd(dX[i], dz, layer.Weight[o][i])
				}
			}
		}
		dA = dX
	}
	return grads
}

// ZeroLike returns a model with the same shape as m and all parameters zero.
func (m Model) ZeroLike() Model {
	z := make(Model, len(m))
	for l, layer := range m {
		z[l] = Layer{
			Weight:       make([][][][]float64, layer.NOutputPlane),
			Bias:         make([]float64, layer.NOutputPlane),
			NInputPlane:  layer.NInputPlane,
			NOutputPlane: layer.NOutputPlane,
			KW:           layer.KW,
			KH:           layer.KH,
		}
		for o := range z[l].Weight {
			z[l].Weight[o] = make([][][]float64, layer.NInputPlane)
			for i := range z[l].Weight[o] {
				z[l].Weight[o][i] = newKernel()
			}
		}
	}
	return z
}

// NumParams is the number of weights and biases in the model.
func (m Model) NumParams() int {
	n := 0
	for _, layer := range m {
		n += layer.NOutputPlane * (layer.NInputPlane*9 + 1)
	}
	return n
}

// Params flattens all weights and biases into a new slice.
func (m Model) Params() []float64 {
	p := make([]float64, 0, m.NumParams())
	for _, layer := range m {
		for o, w := range layer.Weight {
			for _, k := range w {
				for _, row := range k {
					p = append(p, row...)
				}
			}
			p = append(p, layer.Bias[o])
		}
	}
	return p
}

// SetParams is the inverse of Params.
func (m Model) SetParams(p []float64) {
	idx := 0
	for _, layer := range m {
		for o, w := range layer.Weight {
			for _, k := range w {
				for _, row := range k {
					idx += copy(row, p[idx:idx+len(row)])
				}
			}
			layer.Bias[o] = p[idx]
			idx++
		}
	}
}

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	c := m.ZeroLike()
	c.SetParams(m.Params())
	return c
}

func leakyGrad(pre, dA *mat.Dense) *mat.Dense {
	r, c := pre.Dims()
	dz := mat.NewDense(r, c, nil)
	dz.Apply(func(i, j int, v float64) float64 {
		if pre.At(i, j) < 0 {
			return v * leakySlope
		}
		return v
	}, dA)
	return dz
}

func kernelGradAdd(k [][]float64, dz, in *mat.Dense) {
	r, c := dz.Dims()
	d := dz.RawMatrix()
	s := in.RawMatrix()
	for ky := 0; ky < 3; ky++ {
		for kx := 0; kx < 3; kx++ {
			sum := 0.0
			for i := 0; i < r; i++ {
				dRow := d.Data[i*d.Stride : i*d.Stride+c]
				sRow := s.Data[(i+ky)*s.Stride+kx:]
				for j, g := range dRow {
					sum += g * sRow[j]
				}
			}
			k[ky][kx] += sum
		}
	}
}

func inputGradAdd(dx, dz *mat.Dense, k [][]float64) {
	r, c := dz.Dims()
	d := dz.RawMatrix()
	x := dx.RawMatrix()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			g := d.Data[i*d.Stride+j]
			if g == 0 {
				continue
			}
			for ky := 0; ky < 3; ky++ {
				row := x.Data[(i+ky)*x.Stride+j:]
				row[0] += g * k[ky][0]
				row[1] += g * k[ky][1]
				row[2] += g * k[ky][2]
			}
		}
	}
}
