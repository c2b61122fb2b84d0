package cubemap

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/spatial/r3"
)

func solid(w, h int, px ...uint8) *Raster {
	r := NewRaster(w, h, len(px))
	for i := 0; i < w*h; i++ {
		copy(r.Pix[i*len(px):], px)
	}
	return r
}

func noise(w, h, channels int, lo, hi uint8, seed int64) *Raster {
	rng := rand.New(rand.NewSource(seed))
	r := NewRaster(w, h, channels)
	for i := range r.Pix {
		r.Pix[i] = lo + uint8(rng.Intn(int(hi-lo)+1))
	}
	return r
}

func TestConvertSolidGray(t *testing.T) {
	src := solid(4, 2, 128, 128, 128, 255)

	faces, err := Convert(src, WithFaceSize(2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(faces), test.ShouldEqual, 6)

	for _, f := range faces {
		test.That(t, f, test.ShouldNotBeNil)
		test.That(t, f.Width, test.ShouldEqual, 2)
		test.That(t, f.Height, test.ShouldEqual, 2)
		test.That(t, f.Channels, test.ShouldEqual, 4)
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				test.That(t, f.At(x, y), test.ShouldResemble, []uint8{128, 128, 128, 255})
			}
		}
	}
}

func TestConvertDefaultFaceSize(t *testing.T) {
	src := noise(20, 10, 2, 0, 255, 1)

	faces, err := Convert(src)
	test.That(t, err, test.ShouldBeNil)
	for _, f := range faces {
		test.That(t, f.Width, test.ShouldEqual, 5)
		test.That(t, f.Height, test.ShouldEqual, 5)
		test.That(t, f.Channels, test.ShouldEqual, 2)
		test.That(t, f.Pix, test.ShouldHaveLength, 5*5*2)
	}
}

func TestConvertFrontCentre(t *testing.T) {
	const w, h = 16, 8
	src := NewRaster(w, h, 3)
	copy(src.At(w/2, h/2), []uint8{255, 0, 0})

	t.Run("odd face size", func(t *testing.T) {
		faces, err := Convert(src, WithFaceSize(5))
		test.That(t, err, test.ShouldBeNil)
		front := faces.Get(PosZ)
		test.That(t, front.At(2, 2), test.ShouldResemble, []uint8{255, 0, 0})
	})

	t.Run("even face size", func(t *testing.T) {
		faces, err := Convert(src)
		test.That(t, err, test.ShouldBeNil)
		front := faces.Get(PosZ)
		test.That(t, front.Width, test.ShouldEqual, 4)

		var red uint8
		for y := 1; y <= 2; y++ {
			for x := 1; x <= 2; x++ {
				p := front.At(x, y)
				red = max(red, p[0])
				test.That(t, p[1], test.ShouldEqual, uint8(0))
				test.That(t, p[2], test.ShouldEqual, uint8(0))
			}
		}
		test.That(t, red, test.ShouldBeGreaterThan, uint8(0))
	})
}

func TestConvertInvalidDimensions(t *testing.T) {
	cases := []struct {
		name string
		src  *Raster
		opts []Option
	}{
		{"nil source", nil, nil},
		{"zero width", &Raster{Width: 0, Height: 2, Channels: 3}, nil},
		{"zero height", &Raster{Width: 4, Height: 0, Channels: 3}, nil},
		{"zero channels", &Raster{Width: 4, Height: 2}, nil},
		{"short buffer", &Raster{Width: 4, Height: 2, Channels: 3, Pix: make([]uint8, 5)}, nil},
		{"zero face size", solid(4, 2, 1, 2, 3), []Option{WithFaceSize(0)}},
		{"negative face size", solid(4, 2, 1, 2, 3), []Option{WithFaceSize(-4)}},
		{"derived face size of zero", solid(4, 1, 1, 2, 3), nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			faces, err := Convert(tc.src, tc.opts...)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrInvalidDimensions), test.ShouldBeTrue)
			for _, f := range faces {
				test.That(t, f, test.ShouldBeNil)
			}
		})
	}
}

func TestConvertSinglePixelSource(t *testing.T) {
	src := solid(1, 1, 9, 8, 7)

	faces, err := Convert(src, WithFaceSize(1))
	test.That(t, err, test.ShouldBeNil)
	for _, f := range faces {
		test.That(t, f.Width, test.ShouldEqual, 1)
		test.That(t, f.Pix, test.ShouldResemble, []uint8{9, 8, 7})
	}
}

func TestConvertDeterministic(t *testing.T) {
	src := noise(64, 32, 4, 0, 255, 7)

	a, err := Convert(src, WithFaceSize(9))
	test.That(t, err, test.ShouldBeNil)
	b, err := Convert(src, WithFaceSize(9))
	test.That(t, err, test.ShouldBeNil)
	for i := range a {
		test.That(t, bytes.Equal(a[i].Pix, b[i].Pix), test.ShouldBeTrue)
	}
}

func TestConvertLeavesSourceUntouched(t *testing.T) {
	src := noise(32, 16, 3, 0, 255, 3)
	before := append([]uint8(nil), src.Pix...)

	_, err := Convert(src, WithFaceSize(6))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src.Pix, test.ShouldResemble, before)
}

func TestConvertStaysWithinSourceRange(t *testing.T) {
	src := noise(48, 24, 3, 50, 200, 11)

	faces, err := Convert(src, WithFaceSize(17))
	test.That(t, err, test.ShouldBeNil)
	for _, f := range faces {
		for _, c := range f.Pix {
			test.That(t, c, test.ShouldBeBetweenOrEqual, uint8(50), uint8(200))
		}
	}
}

func TestConvertSharedEdgesMatch(t *testing.T) {
	const n = 7
	src := noise(40, 20, 3, 0, 255, 5)

	faces, err := Convert(src, WithFaceSize(n))
	test.That(t, err, test.ShouldBeNil)

	type sample struct {
		face Face
		px   []uint8
	}
	groups := map[r3.Vec][]sample{}
	for i, f := range Order {
		for row := 0; row < n; row++ {
			for col := 0; col < n; col++ {
				if row != 0 && row != n-1 && col != 0 && col != n-1 {
					continue
				}
				d := Direction(f, row, col, n)
				groups[d] = append(groups[d], sample{f, faces[i].At(col, row)})
			}
		}
	}

	// 8 corners plus the interior of 12 edges, each seen from at least two faces.
	test.That(t, len(groups), test.ShouldEqual, 8+12*(n-2))
	for d, g := range groups {
		test.That(t, len(g), test.ShouldBeGreaterThanOrEqualTo, 2)
		for _, s := range g[1:] {
			if !bytes.Equal(s.px, g[0].px) {
				t.Errorf("ray %v: %v on %v, %v on %v", d, g[0].px, g[0].face, s.px, s.face)
			}
		}
	}
}

func TestConvertConcurrent(t *testing.T) {
	src := noise(32, 16, 4, 0, 255, 13)
	want, err := Convert(src, WithFaceSize(8))
	test.That(t, err, test.ShouldBeNil)

	var wg sync.WaitGroup
	got := make([]Faces, 8)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i], _ = Convert(src, WithFaceSize(8))
		}()
	}
	wg.Wait()

	for _, g := range got {
		for i := range want {
			test.That(t, g[i].Pix, test.ShouldResemble, want[i].Pix)
		}
	}
}

func TestConvertFace(t *testing.T) {
	src := noise(24, 12, 3, 0, 255, 17)
	faces, err := Convert(src, WithFaceSize(5))
	test.That(t, err, test.ShouldBeNil)

	for i, f := range Order {
		one, err := ConvertFace(src, f, 5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, one.Pix, test.ShouldResemble, faces[i].Pix)
	}

	_, err = ConvertFace(src, PosZ, 0)
	test.That(t, errors.Is(err, ErrInvalidDimensions), test.ShouldBeTrue)
	_, err = ConvertFace(src, Face(9), 4)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSourceCoord(t *testing.T) {
	const w, h = 16, 8

	t.Run("front is the centre", func(t *testing.T) {
		u, v := SourceCoord(r3.Vec{Z: 1}, w, h)
		test.That(t, u, test.ShouldEqual, 8.0)
		test.That(t, v, test.ShouldEqual, 4.0)
	})

	t.Run("right is a quarter turn east", func(t *testing.T) {
		u, v := SourceCoord(r3.Vec{X: 1}, w, h)
		test.That(t, u, test.ShouldAlmostEqual, 12.0)
		test.That(t, v, test.ShouldEqual, 4.0)
	})

	t.Run("longitude +pi saturates", func(t *testing.T) {
		u, _ := SourceCoord(r3.Vec{Z: -1}, w, h)
		test.That(t, u, test.ShouldEqual, float64(w-1))
	})

	t.Run("longitude -pi saturates", func(t *testing.T) {
		u, _ := SourceCoord(r3.Vec{X: math.Copysign(0, -1), Z: -1}, w, h)
		test.That(t, u, test.ShouldEqual, 0.0)
	})

	t.Run("poles", func(t *testing.T) {
		_, v := SourceCoord(r3.Vec{Y: 1}, w, h)
		test.That(t, v, test.ShouldEqual, 0.0)
		_, v = SourceCoord(r3.Vec{Y: -1}, w, h)
		test.That(t, v, test.ShouldEqual, float64(h-1))
	})

	t.Run("face corners stay in bounds", func(t *testing.T) {
		for _, size := range []int{1, 2, 3, 64} {
			for _, f := range Order {
				for _, rc := range [][2]int{{0, 0}, {0, size - 1}, {size - 1, 0}, {size - 1, size - 1}} {
					u, v := SourceCoord(Direction(f, rc[0], rc[1], size), w, h)
					test.That(t, u, test.ShouldBeBetweenOrEqual, 0.0, float64(w-1))
					test.That(t, v, test.ShouldBeBetweenOrEqual, 0.0, float64(h-1))
				}
			}
		}
	})
}

func TestSample(t *testing.T) {
	src := NewRaster(2, 2, 1)
	copy(src.Pix, []uint8{0, 100, 200, 255})
	dst := make([]uint8, 1)

	Sample(src, 0, 0, dst)
	test.That(t, dst[0], test.ShouldEqual, uint8(0))

	Sample(src, 1, 1, dst)
	test.That(t, dst[0], test.ShouldEqual, uint8(255))

	// 0.25*(0+100+200+255) = 138.75, truncated.
	Sample(src, 0.5, 0.5, dst)
	test.That(t, dst[0], test.ShouldEqual, uint8(138))

	// Along the top row only.
	Sample(src, 0.25, 0, dst)
	test.That(t, dst[0], test.ShouldEqual, uint8(25))
}
