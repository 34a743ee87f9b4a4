// Package tensor resizes still images and lays them out as normalized
// channel-major float32 input for the classifier.
package tensor

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// DefaultSize is the model's fixed input resolution.
const DefaultSize = 224

// Channels is the number of color channels in the input tensor.
const Channels = 3

// Resampler picks the library used for the resize step. Both are bilinear.
type Resampler int

const (
	ResampleImaging Resampler = iota
	ResampleNfnt
)

func ParseResampler(s string) (Resampler, error) {
	switch strings.ToLower(s) {
	case "", "imaging":
		return ResampleImaging, nil
	case "nfnt":
		return ResampleNfnt, nil
	}
	return 0, fmt.Errorf("unknown resampler %q", s)
}

func (r Resampler) String() string {
	if r == ResampleNfnt {
		return "nfnt"
	}
	return "imaging"
}

// Builder turns images into InputTensors of length 3*Size*Size.
type Builder struct {
	Size      int
	Resampler Resampler
}

// NewBuilder returns a Builder for size x size input. size <= 0 means DefaultSize.
func NewBuilder(size int, r Resampler) Builder {
	if size <= 0 {
		size = DefaultSize
	}
	return Builder{Size: size, Resampler: r}
}

// Len is the number of float32 values Build produces.
func (b Builder) Len() int {
	return Channels * b.size() * b.size()
}

func (b Builder) size() int {
	if b.Size <= 0 {
		return DefaultSize
	}
	return b.Size
}

// Build resizes img and returns its normalized channel-major tensor:
// every red value in row-major order, then every green, then every blue.
func (b Builder) Build(img image.Image) []float32 {
	out := make([]float32, b.Len())
	b.fill(img, out)
	return out
}

// BuildInto writes the tensor for img into dst, usually a buffer the
// worker reuses across frames.
func (b Builder) BuildInto(img image.Image, dst []float32) error {
	if len(dst) != b.Len() {
		return fmt.Errorf("tensor buffer has %d values, want %d", len(dst), b.Len())
	}
	b.fill(img, dst)
	return nil
}

func (b Builder) fill(img image.Image, dst []float32) {
	size := b.size()
	channelSize := size * size

	if img == nil || img.Bounds().Empty() {
		clear(dst)
		return
	}

	if b.Resampler == ResampleNfnt {
		resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
		bounds := resized.Bounds()
		for y := 0; y < size; y++ {
			offset := y * size
			for x := 0; x < size; x++ {
				i := offset + x
				r, g, bl, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				dst[i] = float32(r>>8) / 255.0
				dst[channelSize+i] = float32(g>>8) / 255.0
				dst[channelSize*2+i] = float32(bl>>8) / 255.0
			}
		}
		return
	}

	// imaging.Resize always returns a tightly packed NRGBA at the origin.
	resized := imaging.Resize(img, size, size, imaging.Linear)
	pix := resized.Pix
	for y := 0; y < size; y++ {
		row := pix[y*resized.Stride:]
		offset := y * size
		for x := 0; x < size; x++ {
			i := offset + x
			dst[i] = float32(row[4*x]) / 255.0
			dst[channelSize+i] = float32(row[4*x+1]) / 255.0
			dst[channelSize*2+i] = float32(row[4*x+2]) / 255.0
		}
	}
}
