package cubemap

import "gonum.org/v1/gonum/spatial/r3"

// Face identifies one side of the cube.
//
// World axes: +X right, +Y up, +Z front. Each face is an upright view from the
// cube centre: side faces keep +Y at the top row, the top face has the front
// face below it and the bottom face has the front face above it.
type Face int

const (
	PosX Face = iota // right
	NegX             // left
	PosY             // top
	NegY             // bottom
	PosZ             // front
	NegZ             // back
)

// Order is the fixed order of faces returned by Convert.
var Order = [6]Face{PosY, NegY, PosX, NegX, PosZ, NegZ}

// Faces holds the six converted faces in Order.
type Faces [6]*Raster

// Get returns the face f regardless of its position in Order.
func (fs Faces) Get(f Face) *Raster {
	for i, o := range Order {
		if o == f {
			return fs[i]
		}
	}
	return nil
}

func (f Face) String() string {
	switch f {
	case PosX:
		return "right"
	case NegX:
		return "left"
	case PosY:
		return "top"
	case NegY:
		return "bottom"
	case PosZ:
		return "front"
	case NegZ:
		return "back"
	default:
		return "unknown"
	}
}

// Axis returns the signed axis token of the face, e.g. "+X".
func (f Face) Axis() string {
	if f < PosX || f > NegZ {
		return "unknown"
	}
	return [...]string{"+X", "-X", "+Y", "-Y", "+Z", "-Z"}[f]
}

// basis maps face-local (s, t) in [-1, 1] to an unnormalised ray.
// s runs left to right along a row, t runs top to bottom along a column.
// Rays on a shared edge are bit-identical for both faces.
var basis = [6]func(s, t float64) r3.Vec{
	PosX: func(s, t float64) r3.Vec { return r3.Vec{X: 1, Y: -t, Z: -s} },
	NegX: func(s, t float64) r3.Vec { return r3.Vec{X: -1, Y: -t, Z: s} },
	PosY: func(s, t float64) r3.Vec { return r3.Vec{X: s, Y: 1, Z: t} },
	NegY: func(s, t float64) r3.Vec { return r3.Vec{X: s, Y: -1, Z: -t} },
	PosZ: func(s, t float64) r3.Vec { return r3.Vec{X: s, Y: -t, Z: 1} },
	NegZ: func(s, t float64) r3.Vec { return r3.Vec{X: -s, Y: -t, Z: -1} },
}

// gridCoord maps a pixel index in [0, n) onto [-1, 1] with both ends included.
// gridCoord(n-1-i, n) == -gridCoord(i, n) exactly. A single-pixel face samples its centre.
func gridCoord(i, n int) float64 {
	if n == 1 {
		return 0
	}
	return float64(2*i-(n-1)) / float64(n-1)
}

// Direction returns the unit sampling ray for pixel (row, col) of a face of the given size.
func Direction(f Face, row, col, size int) r3.Vec {
	d := r3.Unit(basis[f](gridCoord(col, size), gridCoord(row, size)))
	// atan2 tells -0 from +0. Fold it so the faces meeting on the back seam agree.
	if d.X == 0 {
		d.X = 0
	}
	if d.Y == 0 {
		d.Y = 0
	}
	if d.Z == 0 {
		d.Z = 0
	}
	return d
}
