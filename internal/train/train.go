// Package train runs the watermark removal training loop.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/lon9/waifu2x-tools/internal/checkpoint"
	"github.com/lon9/waifu2x-tools/internal/dataset"
	"github.com/lon9/waifu2x-tools/internal/optim"
	"github.com/lon9/waifu2x-tools/waifu2x"
)

// CheckpointEvery is the epoch interval between checkpoints.
const CheckpointEvery = 10

// ErrNoBatches is returned when the loader yields nothing to train on.
var ErrNoBatches = errors.New("data loader has no batches")

// Network is a trainable model.
type Network interface {
	SetTraining(bool)
	ZeroGrad()
	ForwardBackward(ctx context.Context, batch dataset.Batch, loss optim.LossFunc) (float64, error)
	Params() []float64
	SetParams([]float64)
	Grads() []float64
	State() waifu2x.Model
}

// Loader yields the batches of one epoch.
type Loader interface {
	Len() int
	Each(ctx context.Context, fn func(dataset.Batch) error) error
}

// Optimizer updates parameters in place from their gradients.
type Optimizer interface {
	Step(params, grads []float64)
	State() optim.State
}

// Trainer fits a Network for a fixed number of epochs.
type Trainer struct {
	Net       Network
	Loader    Loader
	Optimizer Optimizer
	Loss      optim.LossFunc
	Epochs    int

	// CheckpointDir receives a checkpoint every CheckpointEvery epochs.
	CheckpointDir string
	// Out receives the per-epoch average loss lines.
	Out io.Writer
	// Progress, if set, receives a line per epoch that is redrawn after
	// every batch with the batch count and its loss.
	Progress io.Writer
	Log      zerolog.Logger
}

// Run trains for t.Epochs epochs and returns the average loss of each.
func (t *Trainer) Run(ctx context.Context) ([]float64, error) {
	if t.Loader.Len() == 0 {
		return nil, ErrNoBatches
	}
	loss := t.Loss
	if loss == nil {
		loss = optim.L1Loss
	}

	history := make([]float64, 0, t.Epochs)
	for epoch := 1; epoch <= t.Epochs; epoch++ {
		t.Net.SetTraining(true)
		total := 0.0
		step := 0

		err := t.Loader.Each(ctx, func(batch dataset.Batch) error {
			t.Net.ZeroGrad()
			l, err := t.Net.ForwardBackward(ctx, batch, loss)
			if err != nil {
				return err
			}
			params := t.Net.Params()
			t.Optimizer.Step(params, t.Net.Grads())
			t.Net.SetParams(params)

			total += l
			step++
			t.Log.Debug().Int("epoch", epoch).Int("batch", step).Float64("loss", l).Msg("step")
			t.reportProgress(epoch, step, l)
			return nil
		})
		if t.Progress != nil && step > 0 {
			fmt.Fprintln(t.Progress)
		}
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		avg := total / float64(t.Loader.Len())
		history = append(history, avg)
		fmt.Fprintf(t.Out, "Epoch %d Average Loss: %.4f\n", epoch, avg)

		if epoch%CheckpointEvery == 0 {
			path, err := checkpoint.Save(t.CheckpointDir, &checkpoint.Record{
				Epoch:          epoch,
				ModelState:     t.Net.State(),
				OptimizerState: t.Optimizer.State(),
				Loss:           avg,
			})
			if err != nil {
				return history, err
			}
			t.Log.Info().Int("epoch", epoch).Str("path", path).Msg("checkpoint saved")
		}
	}
	return history, nil
}

func (t *Trainer) reportProgress(epoch, step int, loss float64) {
	if t.Progress != nil {
		fmt.Fprintf(t.Progress, "\rEpoch %d: %d/%d loss=%.4f", epoch, step, t.Loader.Len(), loss)
	}
}
