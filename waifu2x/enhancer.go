package waifu2x

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
)

// Scale is the upscaling factor applied before reconstruction.
const Scale = 2

// Enhancer upscales images and reconstructs their luminance with a model.
type Enhancer struct {
	model   Model
	workers int
	log     zerolog.Logger

	// Progress receives a percentage line per layer; nil disables it.
	Progress io.Writer
}

// NewEnhancer loads the model at modelPath.
func NewEnhancer(modelPath string, workers int, log zerolog.Logger) (*Enhancer, error) {
	m, err := LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	return NewEnhancerWithModel(m, workers, log), nil
}

// NewEnhancerWithModel wraps an already loaded model.
func NewEnhancerWithModel(m Model, workers int, log zerolog.Logger) *Enhancer {
	return &Enhancer{
		model:    m,
		workers:  workers,
		log:      log,
		Progress: os.Stderr,
	}
}

// DefaultOutputPath is where EnhanceImage writes when no output is given:
// next to the input, with an "_enhanced" suffix.
func DefaultOutputPath(input string) string {
	dir, base := filepath.Split(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, encodableName(stem+"_enhanced"+filepath.Ext(base)))
}

// EnhanceImage enhances one image and returns the path it was saved to.
// An empty output selects DefaultOutputPath.
func (e *Enhancer) EnhanceImage(ctx context.Context, path, output string) (string, error) {
	if output == "" {
		output = DefaultOutputPath(path)
	}

	src, err := DecodeImage(path)
	if err != nil {
		return "", err
	}
	b := src.Bounds()
	up := resize.Resize(uint(b.Dx()*Scale), uint(b.Dy()*Scale), src, resize.NearestNeighbor)

	plane, ycc := LumaPlane(up)
	res, err := e.model.Forward(ctx, plane, e.workers, e.reportProgress)
	if e.Progress != nil {
		fmt.Fprintln(e.Progress)
	}
	if err != nil {
		return "", err
	}

	if err := SaveImage(output, ComposeLuma(ycc, res, up.Bounds())); err != nil {
		return "", err
	}
	e.log.Debug().Str("input", path).Str("output", output).Msg("image enhanced")
	return output, nil
}

// EnhanceDirectory enhances every image directly inside dir into outputDir,
// keeping file names. A file whose format cannot be written is saved as
// .png; if that name belongs to another input it is skipped with a warning.
// It stops at the first failure.
func (e *Enhancer) EnhanceDirectory(ctx context.Context, dir, outputDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var inputs []string
	claimed := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		inputs = append(inputs, entry.Name())
		if encodableName(entry.Name()) == entry.Name() {
			claimed[entry.Name()] = true
		}
	}

	count := 0
	for _, name := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		outName := encodableName(name)
		if outName != name {
			if claimed[outName] {
				e.log.Warn().Str("file", name).Str("output", outName).Msg("output name taken by another image, skipping")
				continue
			}
			claimed[outName] = true
		}
		in := filepath.Join(dir, name)
		out := filepath.Join(outputDir, outName)
		e.log.Info().Str("file", name).Msg("enhancing")
		if _, err := e.EnhanceImage(ctx, in, out); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		count++
	}
	e.log.Info().Int("images", count).Str("output", outputDir).Msg("directory enhanced")
	return nil
}

func (e *Enhancer) reportProgress(done, total int) {
	if e.Progress != nil {
		fmt.Fprintf(e.Progress, "\r%.1f%%...", 100*float64(done)/float64(total))
	}
}
