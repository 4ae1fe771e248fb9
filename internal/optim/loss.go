package optim

import (
	"gonum.org/v1/gonum/mat"
)

// LossFunc returns a scalar loss and its gradient with respect to pred.
type LossFunc func(pred, target *mat.Dense) (float64, *mat.Dense)

// L1Loss is the mean absolute error. Its gradient is sign(pred-target)/n,
// taking zero where they are equal.
func L1Loss(pred, target *mat.Dense) (float64, *mat.Dense) {
	r, c := pred.Dims()
	n := float64(r * c)
	grad := mat.NewDense(r, c, nil)
	sum := 0.0
	grad.Apply(func(i, j int, p float64) float64 {
		d := p - target.At(i, j)
		switch {
		case d > 0:
			sum += d
			return 1 / n
		case d < 0:
			sum -= d
			return -1 / n
		}
		return 0
	}, pred)
	return sum / n, grad
}
