// Package dataset reads paired watermarked/clean images for training.
//
// A dataset root holds two directories, watermarked/ and clean/. Every
// image present in both under the same name is one sample.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/lon9/waifu2x-tools/waifu2x"
)

const (
	WatermarkedDir = "watermarked"
	CleanDir       = "clean"
)

// ErrEmpty is returned when a dataset root holds no usable pairs.
var ErrEmpty = errors.New("dataset has no image pairs")

// Pair names the two files of one sample.
type Pair struct {
	Name        string
	Watermarked string
	Clean       string
}

// Sample is one training example as luminance planes in [0, 1].
type Sample struct {
	Name        string
	Watermarked *mat.Dense
	Clean       *mat.Dense
}

// Batch is a group of samples processed in one optimizer step.
type Batch []Sample

// Dataset lists the pairs under a root directory.
type Dataset struct {
	root      string
	pairs     []Pair
	patchSize int
}

// Open scans root for pairs. Samples are cropped to patchSize squares;
// zero keeps whole images.
func Open(root string, patchSize int) (*Dataset, error) {
	wmDir := filepath.Join(root, WatermarkedDir)
	cleanDir := filepath.Join(root, CleanDir)

	wm, err := imageNames(wmDir)
	if err != nil {
		return nil, err
	}
	clean, err := imageNames(cleanDir)
	if err != nil {
		return nil, err
	}

	var pairs []Pair
	for name := range wm {
		if clean[name] {
			pairs = append(pairs, Pair{
				Name:        name,
				Watermarked: filepath.Join(wmDir, name),
				Clean:       filepath.Join(cleanDir, name),
			})
		}
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrEmpty)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })

	return &Dataset{root: root, pairs: pairs, patchSize: patchSize}, nil
}

func imageNames(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() && waifu2x.IsImage(e.Name()) {
			names[e.Name()] = true
		}
	}
	return names, nil
}

// Len is the number of pairs.
func (d *Dataset) Len() int {
	return len(d.pairs)
}

// Pairs returns the pairs in name order.
func (d *Dataset) Pairs() []Pair {
	return d.pairs
}

// Load decodes pair i and crops the same random window from both images.
// rng must not be shared between goroutines.
func (d *Dataset) Load(i int, rng *rand.Rand) (Sample, error) {
	p := d.pairs[i]
	wm, err := loadPlane(p.Watermarked)
	if err != nil {
		return Sample{}, err
	}
	clean, err := loadPlane(p.Clean)
	if err != nil {
		return Sample{}, err
	}

	wr, wc := wm.Dims()
	cr, cc := clean.Dims()
	if wr != cr || wc != cc {
		return Sample{}, fmt.Errorf("%s: watermarked image is %dx%d but clean image is %dx%d", p.Name, wc, wr, cc, cr)
	}

	if d.patchSize > 0 {
		h, w := min(d.patchSize, wr), min(d.patchSize, wc)
		y0, x0 := rng.Intn(wr-h+1), rng.Intn(wc-w+1)
		wm = crop(wm, y0, x0, h, w)
		clean = crop(clean, y0, x0, h, w)
	}
	return Sample{Name: p.Name, Watermarked: wm, Clean: clean}, nil
}

func loadPlane(path string) (*mat.Dense, error) {
	img, err := waifu2x.DecodeImage(path)
	if err != nil {
		return nil, err
	}
	plane, _ := waifu2x.LumaPlane(img)
	return plane, nil
}

// crop copies a window so the result has a contiguous backing slice.
func crop(m *mat.Dense, y0, x0, h, w int) *mat.Dense {
	return mat.DenseCopyOf(m.Slice(y0, y0+h, x0, x0+w))
}
