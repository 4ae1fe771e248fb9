package train

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/lon9/waifu2x-tools/internal/dataset"
	"github.com/lon9/waifu2x-tools/internal/optim"
	"github.com/lon9/waifu2x-tools/waifu2x"
)

// Remover is the watermark removal network: a waifu2x model applied at 1x
// scale to the luminance plane.
type Remover struct {
	model    waifu2x.Model
	grads    []float64
	workers  int
	training bool
}

// NewRemover wraps model. Samples of a batch are differentiated on up to
// workers goroutines.
func NewRemover(model waifu2x.Model, workers int) *Remover {
	return &Remover{
		model:   model,
		grads:   make([]float64, model.NumParams()),
		workers: max(workers, 1),
	}
}

func (r *Remover) SetTraining(on bool) { r.training = on }

// Training reports the mode last set with SetTraining.
func (r *Remover) Training() bool { return r.training }

func (r *Remover) ZeroGrad() {
	for i := range r.grads {
		r.grads[i] = 0
	}
}

// ForwardBackward runs every sample through the network, scores the
// output against the clean plane with loss, and adds the gradient of the
// batch mean loss to the accumulated gradients. It returns the batch mean.
func (r *Remover) ForwardBackward(ctx context.Context, batch dataset.Batch, loss optim.LossFunc) (float64, error) {
	losses := make([]float64, len(batch))
	grads := make([][]float64, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, s := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trace := r.model.ForwardTrace(s.Watermarked)
			l, dOut := loss(trace.Output, s.Clean)
			losses[i] = l
			grads[i] = r.model.Backward(trace, dOut).Params()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := float64(len(batch))
	for _, gr := range grads {
		floats.AddScaled(r.grads, 1/n, gr)
	}
	return floats.Sum(losses) / n, nil
}

func (r *Remover) Params() []float64 { return r.model.Params() }

func (r *Remover) SetParams(p []float64) { r.model.SetParams(p) }

func (r *Remover) Grads() []float64 { return r.grads }

// State returns a copy of the current weights.
func (r *Remover) State() waifu2x.Model { return r.model.Clone() }
