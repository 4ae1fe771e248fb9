// Package optim holds the optimizer and loss used to train the network.
package optim

import (
	"math"
)

// State is the serialisable state of an Adam optimizer.
type State struct {
	Step  int       `json:"step"`
	LR    float64   `json:"lr"`
	Beta1 float64   `json:"beta1"`
	Beta2 float64   `json:"beta2"`
	Eps   float64   `json:"eps"`
	M     []float64 `json:"m"`
	V     []float64 `json:"v"`
}

// Adam implements the Adam update rule over a flat parameter vector.
type Adam struct {
	lr, beta1, beta2, eps float64
	step                  int
	m, v                  []float64
}

// NewAdam returns an optimizer with the usual defaults (0.9, 0.999, 1e-8).
func NewAdam(lr float64) *Adam {
	return &Adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
}

// Step updates params in place from grads. Moment buffers are sized on the
// first call.
func (a *Adam) Step(params, grads []float64) {
	if a.m == nil {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
	}
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, g := range grads {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		mHat := a.m[i] / c1
		vHat := a.v[i] / c2
		params[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}

// State returns a copy of the optimizer state.
func (a *Adam) State() State {
	return State{
		Step:  a.step,
		LR:    a.lr,
		Beta1: a.beta1,
		Beta2: a.beta2,
		Eps:   a.eps,
		M:     append([]float64(nil), a.m...),
		V:     append([]float64(nil), a.v...),
	}
}
