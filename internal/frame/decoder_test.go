package frame

import (
	"bytes"
	"errors"
	"testing"
)

// nv21Frame builds a frame the way a phone camera hands it out: a packed
// luma plane and two overlapping chroma buffers over one interleaved V/U run.
func nv21Frame(w, h int, yv, u, v byte) *RawFrame {
	cw, ch := (w+1)/2, (h+1)/2
	vu := make([]byte, 2*cw*ch)
	for i := 0; i < len(vu); i += 2 {
		vu[i] = v
		vu[i+1] = u
	}
	return &RawFrame{
		Width:  w,
		Height: h,
		Planes: [3]Plane{
			{Data: bytes.Repeat([]byte{yv}, w*h)},
			{Data: vu[1:], PixelStride: 2},
			{Data: vu, PixelStride: 2},
		},
	}
}

func planarFrame(w, h int, yv, u, v byte) *RawFrame {
	cw, ch := (w+1)/2, (h+1)/2
	return &RawFrame{
		Width:  w,
		Height: h,
		Planes: [3]Plane{
			{Data: bytes.Repeat([]byte{yv}, w*h)},
			{Data: bytes.Repeat([]byte{u}, cw*ch)},
			{Data: bytes.Repeat([]byte{v}, cw*ch)},
		},
	}
}

func TestDecodeKeepsDimensions(t *testing.T) {
	sizes := [][2]int{{1, 1}, {2, 2}, {3, 5}, {17, 9}, {640, 480}}
	decoders := []Decoder{
		{Mode: ModeDirect, Layout: LayoutNV21},
		{Mode: ModeDirect, Layout: LayoutPlanar},
		{Mode: ModeJPEGRoundTrip, Layout: LayoutNV21},
	}

	for _, d := range decoders {
		for _, s := range sizes {
			w, h := s[0], s[1]
			f := nv21Frame(w, h, 128, 128, 128)
			if d.Layout == LayoutPlanar {
				f = planarFrame(w, h, 128, 128, 128)
			}
			img, err := d.Decode(f)
			if err != nil {
				t.Fatalf("%s/%s %dx%d: unexpected error: %v", d.Mode, d.Layout, w, h, err)
			}
			if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
				t.Errorf("%s/%s: got %v, want %dx%d", d.Mode, d.Layout, img.Bounds(), w, h)
			}
		}
	}
}

func TestDecodeColors(t *testing.T) {
	tests := []struct {
		name    string
		y, u, v byte
		check   func(r, g, b uint8) bool
	}{
		{"gray", 128, 128, 128, func(r, g, b uint8) bool { return r == 128 && g == 128 && b == 128 }},
		{"red", 76, 85, 255, func(r, g, b uint8) bool { return r > 200 && g < 50 && b < 50 }},
		{"blue", 29, 255, 107, func(r, g, b uint8) bool { return b > 200 && r < 50 && g < 50 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, f := range []*RawFrame{nv21Frame(4, 4, tt.y, tt.u, tt.v), planarFrame(4, 4, tt.y, tt.u, tt.v)} {
				layout := LayoutNV21
				if f.Planes[1].PixelStride == 0 {
					layout = LayoutPlanar
				}
				img, err := Decoder{Layout: layout}.Decode(f)
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				px := img.Pix[0:3]
				if !tt.check(px[0], px[1], px[2]) {
					t.Errorf("%s: unexpected pixel %v", layout, px)
				}
			}
		})
	}
}

func TestDecodeJPEGRoundTripIsClose(t *testing.T) {
	img, err := Decoder{Mode: ModeJPEGRoundTrip}.Decode(nv21Frame(16, 16, 128, 128, 128))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := int(img.Pix[i+c]) - 128
			if d < -3 || d > 3 {
				t.Fatalf("pixel %d channel %d = %d, want ~128", i/4, c, img.Pix[i+c])
			}
		}
		if img.Pix[i+3] != 255 {
			t.Fatalf("pixel %d not opaque", i/4)
		}
	}
}

func TestDecodeFailures(t *testing.T) {
	short := nv21Frame(8, 8, 1, 1, 1)
	short.Planes[2].Data = short.Planes[2].Data[:2]
	short.Planes[1].Data = short.Planes[1].Data[:1]

	emptyPlane := nv21Frame(4, 4, 1, 1, 1)
	emptyPlane.Planes[1].Data = nil

	tests := []struct {
		name   string
		frame  *RawFrame
		layout Layout
	}{
		{"nil frame", nil, LayoutNV21},
		{"zero width", &RawFrame{Width: 0, Height: 4}, LayoutNV21},
		{"empty plane", emptyPlane, LayoutNV21},
		{"short luma", &RawFrame{Width: 4, Height: 4, Planes: [3]Plane{{Data: []byte{1}}, {Data: []byte{1}}, {Data: []byte{1}}}}, LayoutNV21},
		{"short chroma nv21", short, LayoutNV21},
		{"short chroma planar", short, LayoutPlanar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decoder{Layout: tt.layout}.Decode(tt.frame)
			if !errors.Is(err, ErrDecodeFailure) {
				t.Errorf("expected ErrDecodeFailure, got %v", err)
			}
		})
	}
}

func TestAssembleNV21Order(t *testing.T) {
	f := &RawFrame{Planes: [3]Plane{
		{Data: []byte{1, 2}},
		{Data: []byte{3}},
		{Data: []byte{4, 5}},
	}}
	got := AssembleNV21(f)
	want := []byte{1, 2, 4, 5, 3}
	if !bytes.Equal(got, want) {
		t.Errorf("AssembleNV21 = %v, want %v", got, want)
	}
}

func TestCloseReleasesOnce(t *testing.T) {
	calls := 0
	f := &RawFrame{Release: func() { calls++ }}
	f.Close()
	f.Close()
	if calls != 1 {
		t.Errorf("Release called %d times, want 1", calls)
	}
}

func TestParseModeAndLayout(t *testing.T) {
	if m, err := ParseMode("jpeg"); err != nil || m != ModeJPEGRoundTrip {
		t.Errorf("ParseMode(jpeg) = %v, %v", m, err)
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if l, err := ParseLayout("planar"); err != nil || l != LayoutPlanar {
		t.Errorf("ParseLayout(planar) = %v, %v", l, err)
	}
	if _, err := ParseLayout("yuyv"); err == nil {
		t.Error("expected error for unknown layout")
	}
}
