package waifu2x

/*
This software is waifu2x image reconstructor written in Go.
Model file downloaded from https://marcan.st/transf/scale2.0x_model.json
MIT License https://github.com/nagadomi/waifu2x/blob/master/LICENSE
Reference: https://github.com/nagadomi/waifu2x, https://marcan.st/transf/waifu2x.py
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidModel is returned when a model's layers do not chain into a
// single-plane to single-plane network of 3x3 convolutions.
var ErrInvalidModel = errors.New("invalid model")

// leakySlope is the negative slope of the activation after every layer.
const leakySlope = 0.1

// Layer is one convolution layer in the waifu2x JSON model format.
// Weight is indexed [output plane][input plane][row][column].
type Layer struct {
	Weight       [][][][]float64 `json:"weight"`
	NOutputPlane int             `json:"nOutputPlane"`
	KW           int             `json:"kW"`
	KH           int             `json:"kH"`
	Bias         []float64       `json:"bias"`
	NInputPlane  int             `json:"nInputPlane"`
}

// Model is a stack of layers applied in order.
type Model []Layer

// LoadModel loads a model from a json file.
func LoadModel(path string) (Model, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(f, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save writes the model as json, creating the parent directory if needed.
func (m Model) Save(path string) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// NewModel builds a randomly initialised model. planes lists the number of
// planes between layers, so [1, 16, 1] is two layers.
func NewModel(planes []int, rng *rand.Rand) (Model, error) {
	if len(planes) < 2 {
		return nil, fmt.Errorf("%w: need at least two plane counts, got %d", ErrInvalidModel, len(planes))
	}
	for l, n := range planes {
		if n <= 0 {
			return nil, fmt.Errorf("%w: plane count %d is %d", ErrInvalidModel, l, n)
		}
	}
	m := make(Model, len(planes)-1)
	for l := range m {
		in, out := planes[l], planes[l+1]
		std := math.Sqrt(2 / float64(in*9))
		layer := Layer{
			Weight:       make([][][][]float64, out),
			Bias:         make([]float64, out),
			NInputPlane:  in,
			NOutputPlane: out,
			KW:           3,
			KH:           3,
		}
		for o := range layer.Weight {
			layer.Weight[o] = make([][][]float64, in)
			for i := range layer.Weight[o] {
				k := newKernel()
				for y := range k {
					for x := range k[y] {
						k[y][x] = rng.NormFloat64() * std
					}
				}
				layer.Weight[o][i] = k
			}
		}
		m[l] = layer
	}
	return m, m.Validate()
}

// Validate checks that every layer is a 3x3 convolution and that plane
// counts chain from one input plane to one output plane.
func (m Model) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidModel)
	}
	if m[0].NInputPlane != 1 || m[len(m)-1].NOutputPlane != 1 {
		return fmt.Errorf("%w: must map 1 plane to 1 plane", ErrInvalidModel)
	}
	for l, layer := range m {
		if layer.NInputPlane <= 0 || layer.NOutputPlane <= 0 {
			return fmt.Errorf("%w: layer %d maps %d planes to %d", ErrInvalidModel, l, layer.NInputPlane, layer.NOutputPlane)
		}
		if l > 0 && layer.NInputPlane != m[l-1].NOutputPlane {
			return fmt.Errorf("%w: layer %d takes %d planes, previous layer gives %d",
				ErrInvalidModel, l, layer.NInputPlane, m[l-1].NOutputPlane)
		}
		if layer.KW != 3 || layer.KH != 3 {
			return fmt.Errorf("%w: layer %d kernel is %dx%d", ErrInvalidModel, l, layer.KW, layer.KH)
		}
		if len(layer.Bias) != layer.NOutputPlane || len(layer.Weight) != layer.NOutputPlane {
			return fmt.Errorf("%w: layer %d has %d biases and %d weight groups for %d planes",
				ErrInvalidModel, l, len(layer.Bias), len(layer.Weight), layer.NOutputPlane)
		}
		for o, w := range layer.Weight {
			if len(w) != layer.NInputPlane {
				return fmt.Errorf("%w: layer %d plane %d has %d kernels", ErrInvalidModel, l, o, len(w))
			}
			for _, k := range w {
				if len(k) != 3 || len(k[0]) != 3 || len(k[1]) != 3 || len(k[2]) != 3 {
					return fmt.Errorf("%w: layer %d plane %d has a malformed kernel", ErrInvalidModel, l, o)
				}
			}
		}
	}
	return nil
}

// Forward runs the network on a single plane of values in [0, 1]. The
// result has the same shape as the input. Output planes of a layer are
// computed concurrently by up to workers goroutines; progress, if not nil,
// is called after each layer with the number of planes done and in total.
func (m Model) Forward(ctx context.Context, plane *mat.Dense, workers int, progress func(done, total int)) (*mat.Dense, error) {
	total := 0
	for _, layer := range m {
		total += layer.NOutputPlane
	}

	planes := []*mat.Dense{pad(plane, len(m))}
	done := 0
	for _, layer := range m {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := make([]*mat.Dense, layer.NOutputPlane)
		g, gctx := errgroup.WithContext(ctx)
		if workers > 0 {
			g.SetLimit(workers)
		}
		for o := range out {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				z := layer.preActivation(planes, o)
				z.Apply(func(_, _ int, v float64) float64 { return leaky(v) }, z)
				out[o] = z
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		done += layer.NOutputPlane
		if progress != nil {
			progress(done, total)
		}
		planes = out
	}
	return planes[0], nil
}

// preActivation convolves every input plane with the kernels of output
// plane o and adds the bias.
func (layer *Layer) preActivation(inputs []*mat.Dense, o int) *mat.Dense {
	r, c := inputs[0].Dims()
	z := mat.NewDense(r-2, c-2, nil)
	for i, in := range inputs {
		correlateAdd(z, in, layer.Weight[o][i])
	}
	b := layer.Bias[o]
	z.Apply(func(_, _ int, v float64) float64 { return v + b }, z)
	return z
}

// pad adds n cells on every side, replicating the edge values.
func pad(im *mat.Dense, n int) *mat.Dense {
	r, c := im.Dims()
	res := mat.NewDense(r+2*n, c+2*n, nil)
	for i := 0; i < r+2*n; i++ {
		si := min(max(i-n, 0), r-1)
		for j := 0; j < c+2*n; j++ {
			res.Set(i, j, im.At(si, min(max(j-n, 0), c-1)))
		}
	}
	return res
}

// correlateAdd adds the valid 3x3 correlation of src with k to dst.
// dst must be two cells smaller than src in each dimension.
func correlateAdd(dst, src *mat.Dense, k [][]float64) {
	r, c := dst.Dims()
	s := src.RawMatrix()
	d := dst.RawMatrix()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum := 0.0
			for ky := 0; ky < 3; ky++ {
				row := s.Data[(i+ky)*s.Stride+j:]
				sum += row[0]*k[ky][0] + row[1]*k[ky][1] + row[2]*k[ky][2]
			}
			d.Data[i*d.Stride+j] += sum
		}
	}
}

func newKernel() [][]float64 {
	return [][]float64{make([]float64, 3), make([]float64, 3), make([]float64, 3)}
}

func leaky(v float64) float64 {
	if v < 0 {
		return v * leakySlope
	}
	return v
}
