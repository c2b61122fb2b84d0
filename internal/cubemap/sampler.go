// Package cubemap projects equirectangular panoramas onto the six faces of a cube.
//
// Convert is a pure function of its arguments: it allocates only call-scoped
// memory and never touches the source buffer, so independent conversions may
// run on any number of goroutines without locking.
package cubemap

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidDimensions is returned when a source or face size is not positive.
var ErrInvalidDimensions = errors.New("cubemap: invalid dimensions")

// Option configures Convert.
type Option func(*options)

type options struct {
	faceSize    int
	faceSizeSet bool
}

// WithFaceSize sets the side of every output face in pixels.
// Without it, faces are DefaultFaceSize(source height).
func WithFaceSize(n int) Option {
	return func(o *options) {
		o.faceSize = n
		o.faceSizeSet = true
	}
}

// DefaultFaceSize is the face side used when none is requested.
func DefaultFaceSize(height int) int {
	return height / 2
}

// Convert samples the six cube faces of an equirectangular source.
// Faces are returned in Order (top, bottom, right, left, front, back), each
// size×size with the source's channel count. No face is produced unless all
// of them are.
func Convert(src *Raster, opts ...Option) (Faces, error) {
	if err := src.validate(); err != nil {
		return Faces{}, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	size := o.faceSize
	if !o.faceSizeSet {
		size = DefaultFaceSize(src.Height)
	}
	if size < 1 {
		return Faces{}, fmt.Errorf("%w: face size %d for %dx%d source",
			ErrInvalidDimensions, size, src.Width, src.Height)
	}

	var out Faces
	for i, f := range Order {
		out[i] = sampleFace(src, f, size)
	}
	return out, nil
}

// ConvertFace samples a single face.
func ConvertFace(src *Raster, f Face, size int) (*Raster, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: face size %d", ErrInvalidDimensions, size)
	}
	if f < PosX || f > NegZ {
		return nil, fmt.Errorf("cubemap: unknown face %d", int(f))
	}
	return sampleFace(src, f, size), nil
}

func sampleFace(src *Raster, f Face, size int) *Raster {
	dst := NewRaster(size, size, src.Channels)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			u, v := SourceCoord(Direction(f, row, col, size), src.Width, src.Height)
			i := dst.Offset(col, row)
			Sample(src, u, v, dst.Pix[i:i+dst.Channels])
		}
	}
	return dst
}

// SourceCoord maps a unit ray to a fractional pixel position in a width×height
// equirectangular image. Longitude 0 (the +Z ray) lands on the horizontal centre,
// longitude grows towards +X; the top row is the +Y pole. The result is clamped
// to [0, width-1]×[0, height-1]; longitude ±π saturates rather than wraps.
func SourceCoord(dir r3.Vec, width, height int) (u, v float64) {
	lon := math.Atan2(dir.X, dir.Z)
	lat := math.Atan2(dir.Y, math.Hypot(dir.X, dir.Z))

	u = (lon/(2*math.Pi) + 0.5) * float64(width)
	v = (0.5 - lat/math.Pi) * float64(height)

	return clamp(u, 0, float64(width-1)), clamp(v, 0, float64(height-1))
}

// Sample bilinearly interpolates src at (u, v) into dst, one byte per channel.
// u and v must already lie inside the image. Channel values are truncated.
func Sample(src *Raster, u, v float64, dst []uint8) {
	fu, fv := math.Floor(u), math.Floor(v)
	u0, v0 := int(fu), int(fv)
	u1 := min(int(math.Ceil(u)), src.Width-1)
	v1 := min(int(math.Ceil(v)), src.Height-1)
	wu := u - fu
	wv := v - fv

	p00 := src.Offset(u0, v0)
	p01 := src.Offset(u1, v0)
	p10 := src.Offset(u0, v1)
	p11 := src.Offset(u1, v1)
	pix := src.Pix

	// Lerp form of (1-wu)(1-wv)·P00 + wu(1-wv)·P01 + (1-wu)wv·P10 + wu·wv·P11:
	// a constant neighbourhood reproduces its value exactly.
	for c := range dst {
		a, b := float64(pix[p00+c]), float64(pix[p01+c])
		top := a + (b-a)*wu
		a, b = float64(pix[p10+c]), float64(pix[p11+c])
		bottom := a + (b-a)*wu
		dst[c] = trunc8(top + (bottom-top)*wv)
	}
}

func trunc8(x float64) uint8 {
	if x <= 0 {
		return 0
	}
	if x >= 255 {
		return 255
	}
	return uint8(x)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
