package frame

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Mode selects how YCbCr samples become RGB.
type Mode int

const (
	// ModeDirect converts colorspace in memory.
	ModeDirect Mode = iota
	// ModeJPEGRoundTrip encodes a quality-100 JPEG and decodes it back,
	// reproducing what the phone's built-in codec did.
	ModeJPEGRoundTrip
)

// Layout selects how the chroma planes are read.
type Layout int

const (
	// LayoutNV21 reads the Y+V+U concatenation as an NV21 stream.
	LayoutNV21 Layout = iota
	// LayoutPlanar samples each plane through its own row and pixel stride.
	LayoutPlanar
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "direct":
		return ModeDirect, nil
	case "jpeg", "jpeg-roundtrip":
		return ModeJPEGRoundTrip, nil
	}
	return 0, fmt.Errorf("unknown decode mode %q", s)
}

func (m Mode) String() string {
	if m == ModeJPEGRoundTrip {
		return "jpeg"
	}
	return "direct"
}

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "", "nv21":
		return LayoutNV21, nil
	case "planar":
		return LayoutPlanar, nil
	}
	return 0, fmt.Errorf("unknown frame layout %q", s)
}

func (l Layout) String() string {
	if l == LayoutPlanar {
		return "planar"
	}
	return "nv21"
}

// Decoder converts RawFrames to interleaved RGB images. The zero value
// decodes NV21 directly.
type Decoder struct {
	Mode   Mode
	Layout Layout
}

// Decode returns a Width x Height image for f. Any malformed input is
// reported as ErrDecodeFailure.
func (d Decoder) Decode(f *RawFrame) (*image.NRGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var ycc *image.YCbCr
	var err error
	switch d.Layout {
	case LayoutPlanar:
		ycc, err = planarToYCbCr(f)
	default:
		ycc, err = nv21ToYCbCr(AssembleNV21(f), f.Width, f.Height)
	}
	if err != nil {
		return nil, err
	}

	if d.Mode == ModeJPEGRoundTrip {
		return jpegRoundTrip(ycc)
	}
	return imaging.Clone(ycc), nil
}

// nv21ToYCbCr splits an NV21 buffer into a 4:2:0 YCbCr image.
func nv21ToYCbCr(buf []byte, w, h int) (*image.YCbCr, error) {
	cw, ch := (w+1)/2, (h+1)/2
	ySize := w * h
	need := ySize + 2*cw*ch
	if len(buf) < need {
		return nil, fmt.Errorf("%w: nv21 buffer has %d bytes, need %d", ErrDecodeFailure, len(buf), need)
	}

	ycc := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	copy(ycc.Y, buf[:ySize])
	vu := buf[ySize:]
	for cy := 0; cy < ch; cy++ {
		row := vu[cy*2*cw:]
		for cx := 0; cx < cw; cx++ {
			i := cy*ycc.CStride + cx
			ycc.Cr[i] = row[2*cx]
			ycc.Cb[i] = row[2*cx+1]
		}
	}
	return ycc, nil
}

// planarToYCbCr samples every plane through its declared strides.
func planarToYCbCr(f *RawFrame) (*image.YCbCr, error) {
	w, h := f.Width, f.Height
	cw, ch := (w+1)/2, (h+1)/2

	yp, err := sampler(f.Planes[0], w, h, "luma")
	if err != nil {
		return nil, err
	}
	up, err := sampler(f.Planes[1], cw, ch, "u")
	if err != nil {
		return nil, err
	}
	vp, err := sampler(f.Planes[2], cw, ch, "v")
	if err != nil {
		return nil, err
	}

	ycc := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ycc.Y[y*ycc.YStride+x] = yp.at(x, y)
		}
	}
	for cy := 0; cy < ch; cy++ {
		for cx := 0; cx < cw; cx++ {
			i := cy*ycc.CStride + cx
			ycc.Cb[i] = up.at(cx, cy)
			ycc.Cr[i] = vp.at(cx, cy)
		}
	}
	return ycc, nil
}

type planeSampler struct {
	data        []byte
	rowStride   int
	pixelStride int
}

func (s planeSampler) at(x, y int) byte {
	return s.data[y*s.rowStride+x*s.pixelStride]
}

func sampler(p Plane, w, h int, name string) (planeSampler, error) {
	ps := p.PixelStride
	if ps <= 0 {
		ps = 1
	}
	rs := p.RowStride
	if rs <= 0 {
		rs = w * ps
	}
	last := (h-1)*rs + (w-1)*ps
	if last >= len(p.Data) {
		return planeSampler{}, fmt.Errorf("%w: %s plane has %d bytes, need %d",
			ErrDecodeFailure, name, len(p.Data), last+1)
	}
	return planeSampler{data: p.Data, rowStride: rs, pixelStride: ps}, nil
}

func jpegRoundTrip(ycc *image.YCbCr) (*image.NRGBA, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, ycc, imaging.JPEG, imaging.JPEGQuality(100)); err != nil {
		return nil, fmt.Errorf("%w: jpeg encode: %v", ErrDecodeFailure, err)
	}
	img, err := imaging.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("%w: jpeg decode: %v", ErrDecodeFailure, err)
	}
	return imaging.Clone(img), nil
}
