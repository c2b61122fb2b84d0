// Package layout rearranges converted faces for a particular consumer:
// per-face orientation fixes, single-image atlases and previews.
package layout

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"equi2cube/internal/cubemap"
)

// Orientation is a display convention applied after sampling.
type Orientation int

const (
	// Native keeps the sampler's upright-from-inside faces.
	Native Orientation = iota
	// Rotated turns the top face 90° clockwise and the bottom face 90°
	// counter-clockwise, the layout some engines expect for their poles.
	Rotated
	// Mirrored flips every face horizontally, for viewers that look at the cube from outside.
	Mirrored
)

// ParseOrientation accepts "native", "rotated" or "mirrored".
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "", "native":
		return Native, nil
	case "rotated":
		return Rotated, nil
	case "mirrored":
		return Mirrored, nil
	}
	return Native, fmt.Errorf("layout: unknown orientation %q", s)
}

// Orient applies o to faces given in cubemap.Order. Untouched faces are returned as is.
func Orient(faces [6]image.Image, o Orientation) [6]image.Image {
	out := faces
	switch o {
	case Rotated:
		for i, f := range cubemap.Order {
			switch f {
			case cubemap.PosY:
				out[i] = imaging.Rotate270(faces[i])
			case cubemap.NegY:
				out[i] = imaging.Rotate90(faces[i])
			}
		}
	case Mirrored:
		for i := range faces {
			out[i] = imaging.FlipH(faces[i])
		}
	}
	return out
}

// AtlasKind selects how faces are packed into one image.
type AtlasKind int

const (
	// Cross is the 4×3 horizontal cross: top above front, bottom below,
	// left, front, right, back along the middle row.
	Cross AtlasKind = iota
	// Strip is a 6×1 row in cubemap.Order.
	Strip
)

// ParseAtlas accepts "cross" or "strip".
func ParseAtlas(s string) (AtlasKind, error) {
	switch s {
	case "cross":
		return Cross, nil
	case "strip":
		return Strip, nil
	}
	return Cross, fmt.Errorf("layout: unknown atlas %q", s)
}

func (k AtlasKind) String() string {
	if k == Strip {
		return "strip"
	}
	return "cross"
}

// crossCells gives each face's (column, row) cell in the cross.
var crossCells = map[cubemap.Face]image.Point{
	cubemap.PosY: {1, 0},
	cubemap.NegX: {0, 1},
	cubemap.PosZ: {1, 1},
	cubemap.PosX: {2, 1},
	cubemap.NegZ: {3, 1},
	cubemap.NegY: {1, 2},
}

// Atlas packs square faces given in cubemap.Order into one image.
// Cross cells that hold no face stay transparent.
func Atlas(faces [6]image.Image, kind AtlasKind) *image.NRGBA {
	size := faces[0].Bounds().Dx()

	var dst *image.NRGBA
	cell := func(i int) image.Point { return image.Pt(i, 0) }
	switch kind {
	case Strip:
		dst = image.NewNRGBA(image.Rect(0, 0, 6*size, size))
	default:
		dst = image.NewNRGBA(image.Rect(0, 0, 4*size, 3*size))
		cell = func(i int) image.Point { return crossCells[cubemap.Order[i]] }
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	for i, f := range faces {
		c := cell(i)
		at := image.Pt(c.X*size, c.Y*size)
		draw.Copy(dst, at, f, f.Bounds(), draw.Src, nil)
	}
	return dst
}

// Thumbnail scales img so its longer side is at most maxSide.
// Images that already fit, and maxSide <= 0, return img unchanged.
func Thumbnail(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img
	}
	if b.Dx() >= b.Dy() {
		return resize.Resize(uint(maxSide), 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, uint(maxSide), img, resize.Lanczos3)
}
