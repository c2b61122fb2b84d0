package imageio

import (
	"fmt"
	"path/filepath"
	"strings"

	"equi2cube/internal/cubemap"
)

// Naming selects the suffix tokens appended to face file names.
type Naming int

const (
	// NamingShort uses px nx py ny pz nz.
	NamingShort Naming = iota
	// NamingLong uses posx negx posy negy posz negz.
	NamingLong
)

var suffixes = map[Naming][6]string{
	NamingShort: {
		cubemap.PosX: "px", cubemap.NegX: "nx",
		cubemap.PosY: "py", cubemap.NegY: "ny",
		cubemap.PosZ: "pz", cubemap.NegZ: "nz",
	},
	NamingLong: {
		cubemap.PosX: "posx", cubemap.NegX: "negx",
		cubemap.PosY: "posy", cubemap.NegY: "negy",
		cubemap.PosZ: "posz", cubemap.NegZ: "negz",
	},
}

// ParseNaming accepts "short" or "long".
func ParseNaming(s string) (Naming, error) {
	switch strings.ToLower(s) {
	case "", "short":
		return NamingShort, nil
	case "long":
		return NamingLong, nil
	}
	return NamingShort, fmt.Errorf("imageio: unknown naming %q", s)
}

func (n Naming) String() string {
	if n == NamingLong {
		return "long"
	}
	return "short"
}

// Suffix returns the token for face f.
func (n Naming) Suffix(f cubemap.Face) string {
	return suffixes[n][f]
}

// FaceFileName returns <stem>_<suffix><ext>.
func FaceFileName(stem string, f cubemap.Face, ext string, n Naming) string {
	return stem + "_" + n.Suffix(f) + ext
}

// Stem returns the file name of path without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
