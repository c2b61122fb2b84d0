package cubemap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Raster is a dense row-major pixel buffer with 8 bits per channel.
// The channel count is arbitrary; the sampler never interprets channels.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8 // len = Width*Height*Channels
}

// NewRaster allocates a zeroed raster.
func NewRaster(w, h, channels int) *Raster {
	return &Raster{
		Width:    w,
		Height:   h,
		Channels: channels,
		Pix:      make([]uint8, w*h*channels),
	}
}

// Offset returns the index of the first channel of pixel (x, y).
func (r *Raster) Offset(x, y int) int {
	return (y*r.Width + x) * r.Channels
}

// At returns the channel values of pixel (x, y). The slice aliases Pix.
func (r *Raster) At(x, y int) []uint8 {
	i := r.Offset(x, y)
	return r.Pix[i : i+r.Channels]
}

// validate reports whether the buffer agrees with its declared dimensions.
func (r *Raster) validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil raster", ErrInvalidDimensions)
	}
	if r.Width < 1 || r.Height < 1 {
		return fmt.Errorf("%w: source %dx%d", ErrInvalidDimensions, r.Width, r.Height)
	}
	if r.Channels < 1 {
		return fmt.Errorf("%w: %d channels", ErrInvalidDimensions, r.Channels)
	}
	if len(r.Pix) != r.Width*r.Height*r.Channels {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d",
			ErrInvalidDimensions, len(r.Pix), r.Width*r.Height*r.Channels)
	}
	return nil
}

// FromImage copies a decoded image into a raster.
// Gray and Gray16 images become single-channel rasters (Gray16 keeps the high byte);
// every other model becomes 4-channel non-premultiplied RGBA.
func FromImage(src image.Image) *Raster {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch s := src.(type) {
	case *image.Gray:
		r := NewRaster(w, h, 1)
		for y := 0; y < h; y++ {
			copy(r.Pix[y*w:(y+1)*w], s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return r
	case *image.Gray16:
		r := NewRaster(w, h, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Pix[y*w+x] = s.Pix[s.PixOffset(b.Min.X+x, b.Min.Y+y)]
			}
		}
		return r
	}

	r := NewRaster(w, h, 4)
	n, ok := src.(*image.NRGBA)
	if !ok {
		n = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(n, n.Bounds(), src, b.Min, draw.Src)
		b = n.Bounds()
	}
	for y := 0; y < h; y++ {
		row := n.Pix[n.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(r.Pix[y*w*4:(y+1)*w*4], row[:w*4])
	}
	return r
}

// Image wraps the raster as an image.Image for encoding.
// 1 channel maps to Gray, 2 to gray+alpha, 3 to opaque NRGBA, 4 to NRGBA.
// Rasters with more than 4 channels keep their first four.
func (r *Raster) Image() image.Image {
	rect := image.Rect(0, 0, r.Width, r.Height)
	switch r.Channels {
	case 1:
		g := image.NewGray(rect)
		copy(g.Pix, r.Pix)
		return g
	case 4:
		n := image.NewNRGBA(rect)
		copy(n.Pix, r.Pix)
		return n
	}

	n := image.NewNRGBA(rect)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			p := r.At(x, y)
			var c color.NRGBA
			switch r.Channels {
			case 2:
				c = color.NRGBA{p[0], p[0], p[0], p[1]}
			case 3:
				c = color.NRGBA{p[0], p[1], p[2], 255}
			default:
				c = color.NRGBA{p[0], p[1], p[2], p[3]}
			}
			n.SetNRGBA(x, y, c)
		}
	}
	return n
}
