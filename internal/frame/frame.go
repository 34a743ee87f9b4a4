// Package frame turns planar YUV camera frames into RGB still images.
package frame

import (
	"errors"
	"fmt"
	"time"
)

// ErrDecodeFailure marks a frame that could not be turned into an image.
// The frame is skipped; the caller keeps going with the next one.
var ErrDecodeFailure = errors.New("frame decode failure")

// Plane is one component plane of a RawFrame.
// RowStride and PixelStride may be zero, in which case the plane is assumed
// tightly packed.
type Plane struct {
	Data        []byte `json:"data"`
	RowStride   int    `json:"row_stride,omitempty"`
	PixelStride int    `json:"pixel_stride,omitempty"`
}

// RawFrame is a camera frame in planar luma/chroma layout.
// Planes are ordered Y, U, V.
//
// A RawFrame is owned by the camera source. Whoever finishes with it (the
// worker after processing, or the mailbox when it drops it) calls Close so
// the source can reclaim the buffers.
type RawFrame struct {
	ID        string
	Width     int
	Height    int
	Planes    [3]Plane
	Timestamp time.Time

	// Release is called once by Close. Optional.
	Release func()
	closed  bool
}

// Close hands the frame back to its source. Safe to call more than once;
// only the first call runs Release.
func (f *RawFrame) Close() {
	if f == nil || f.closed {
		return
	}
	f.closed = true
	if f.Release != nil {
		f.Release()
	}
}

// Validate checks the preconditions of decoding: positive geometry, three
// non-empty planes, and a luma plane large enough for the geometry.
func (f *RawFrame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrDecodeFailure)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecodeFailure, f.Width, f.Height)
	}
	for i, p := range f.Planes {
		if len(p.Data) == 0 {
			return fmt.Errorf("%w: plane %d is empty", ErrDecodeFailure, i)
		}
	}
	if len(f.Planes[0].Data) < f.Width*f.Height {
		return fmt.Errorf("%w: luma plane has %d bytes, need %d",
			ErrDecodeFailure, len(f.Planes[0].Data), f.Width*f.Height)
	}
	return nil
}

// AssembleNV21 concatenates the Y plane, then the V plane, then the U plane.
// With a camera that hands out overlapping semi-planar chroma buffers this
// yields an NV21 stream: luma followed by interleaved V/U pairs.
func AssembleNV21(f *RawFrame) []byte {
	y, u, v := f.Planes[0].Data, f.Planes[1].Data, f.Planes[2].Data
	out := make([]byte, len(y)+len(v)+len(u))
	n := copy(out, y)
	n += copy(out[n:], v)
	copy(out[n:], u)
	return out
}
