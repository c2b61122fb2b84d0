// Package imageio decodes source panoramas and encodes cube faces.
package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/lmittmann/ppm"
	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when no decoder or encoder handles an extension.
var ErrUnsupportedFormat = errors.New("imageio: unsupported format")

type decoder struct {
	format string
	decode func(io.Reader) (image.Image, error)
}

// decoders is keyed by extension. TGA has no magic number, so sniffing with
// image.Decode would hand every file to the TGA reader.
var decoders = map[string]decoder{
	".jpg":  {"jpeg", jpeg.Decode},
	".jpeg": {"jpeg", jpeg.Decode},
	".png":  {"png", png.Decode},
	".gif":  {"gif", gif.Decode},
	".bmp":  {"bmp", bmp.Decode},
	".tif":  {"tiff", tiff.Decode},
	".tiff": {"tiff", tiff.Decode},
	".webp": {"webp", webp.Decode},
	".tga":  {"tga", tga.Decode},
	".qoi":  {"qoi", qoi.Decode},
	".ppm":  {"ppm", ppm.Decode},
}

// EncodeOptions tunes lossy encoders.
type EncodeOptions struct {
	JPEGQuality int
}

type encodeFunc func(f *os.File, img image.Image, opts EncodeOptions) error

var encoders = map[string]encodeFunc{
	".jpg":  encodeJPEG,
	".jpeg": encodeJPEG,
	".png": func(f *os.File, img image.Image, _ EncodeOptions) error {
		return png.Encode(f, img)
	},
	".webp": func(f *os.File, img image.Image, _ EncodeOptions) error {
		return nativewebp.Encode(f, img, nil)
	},
	".bmp": func(f *os.File, img image.Image, _ EncodeOptions) error {
		return bmp.Encode(f, img)
	},
	".tif": encodeTIFF,
	".tiff": encodeTIFF,
	".qoi": func(f *os.File, img image.Image, _ EncodeOptions) error {
		return qoi.Encode(f, img)
	},
	".ppm": func(f *os.File, img image.Image, _ EncodeOptions) error {
		return ppm.Encode(f, img)
	},
}

func encodeJPEG(f *os.File, img image.Image, opts EncodeOptions) error {
	q := opts.JPEGQuality
	if q <= 0 {
		q = jpeg.DefaultQuality
	}
	return jpeg.Encode(f, img, &jpeg.Options{Quality: q})
}

func encodeTIFF(f *os.File, img image.Image, _ EncodeOptions) error {
	return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
}

// Decodable reports whether files with extension ext can be loaded.
func Decodable(ext string) bool {
	_, ok := decoders[strings.ToLower(ext)]
	return ok
}

// Encodable reports whether files with extension ext can be written.
func Encodable(ext string) bool {
	_, ok := encoders[strings.ToLower(ext)]
	return ok
}

// InputExts returns every decodable extension, sorted.
func InputExts() []string {
	exts := make([]string, 0, len(decoders))
	for e := range decoders {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

// Load decodes the image at path with the decoder for its extension and
// returns it with its format name.
func Load(path string) (image.Image, string, error) {
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("imageio: open %s: %w", path, err)
	}
	defer f.Close()

	img, err := dec.decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", fmt.Errorf("imageio: decode %s: %w", path, err)
	}
	return img, dec.format, nil
}

// Save encodes img to path, choosing the encoder from the extension.
// Parent directories are created. A failed encode removes the partial file.
func Save(path string, img image.Image, opts EncodeOptions) (err error) {
	enc, ok := encoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("imageio: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imageio: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("imageio: close %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if err := enc(f, img, opts); err != nil {
		return fmt.Errorf("imageio: encode %s: %w", path, err)
	}
	return nil
}

// OutputExt picks the extension for faces cut from a source with extension srcExt.
// A forced extension wins; otherwise the source extension is kept when it can
// be encoded, and PNG is used when it cannot.
func OutputExt(srcExt, forced string) string {
	if forced != "" {
		return strings.ToLower(forced)
	}
	if Encodable(srcExt) {
		return strings.ToLower(srcExt)
	}
	return ".png"
}
