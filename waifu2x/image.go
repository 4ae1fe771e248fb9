package waifu2x

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DecodeImage reads an image from a file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// LumaPlane converts img to YCbCr and returns its Y values scaled to
// [0, 1] together with the full YCbCr pixels in row-major order.
func LumaPlane(img image.Image) (*mat.Dense, []color.YCbCr) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	ycc := make([]color.YCbCr, width*height)
	y := make([]float64, width*height)
	idx := 0
	for py := b.Min.Y; py < b.Max.Y; py++ {
		for px := b.Min.X; px < b.Max.X; px++ {
			r, g, bl, _ := img.At(px, py).RGBA()
			Y, Cb, Cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			ycc[idx] = color.YCbCr{Y: Y, Cb: Cb, Cr: Cr}
			y[idx] = float64(Y) / 255.0
			idx++
		}
	}
	return mat.NewDense(height, width, y), ycc
}

// ComposeLuma replaces the Y channel of ycc with plane, clipped to [0, 1],
// and renders the result as RGBA with the given bounds.
func ComposeLuma(ycc []color.YCbCr, plane *mat.Dense, bounds image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(bounds)
	_, width := plane.Dims()
	idx := 0
	for py := bounds.Min.Y; py < bounds.Max.Y; py++ {
		for px := bounds.Min.X; px < bounds.Max.X; px++ {
			c := ycc[idx]
			v := min(max(plane.At(idx/width, idx%width), 0), 1)
			c.Y = uint8(v*255.0 + 0.5)
			dst.Set(px, py, c)
			idx++
		}
	}
	return dst
}

// SaveImage encodes img by the extension of name.
func SaveImage(name string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		return fmt.Errorf("unsupported output format %q", ext)
	}
	dstFile, err := os.Create(name)
	if err != nil {
		return err
	}
	defer dstFile.Close()
	switch ext {
	case ".png":
		err = png.Encode(dstFile, img)
	default:
		err = jpeg.Encode(dstFile, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	}
	if err != nil {
		return err
	}
	return dstFile.Close()
}

// IsImage reports whether name has an extension the decoders understand.
func IsImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

// encodableName keeps name if SaveImage can write its format and swaps the
// extension for .png otherwise.
func encodableName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
}
