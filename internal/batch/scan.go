package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoInput is returned by Scan when nothing convertible was found.
var ErrNoInput = errors.New("batch: no input images")

// Scan returns the files to convert. input is either a single image or a
// directory whose direct children are filtered by extension (case
// insensitive). Directory results are sorted by name.
func Scan(input string, exts []string) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if !info.IsDir() {
		if !allowed[strings.ToLower(filepath.Ext(input))] {
			return nil, fmt.Errorf("batch: %s: unsupported input format", input)
		}
		return []string{input}, nil
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if allowed[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(input, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInput, input)
	}
	sort.Strings(files)
	return files, nil
}

// PrepareOutput creates dir. With clear set, everything already inside
// it is removed first. The filesystem root and "" are refused, and so is
// clearing a directory that equals or contains any of the keep paths.
func PrepareOutput(dir string, clear bool, keep ...string) error {
	if dir == "" {
		return errors.New("batch: empty output directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return fmt.Errorf("batch: refusing to use %s as output directory", abs)
	}

	if clear {
		for _, k := range keep {
			if k != "" && within(abs, k) {
				return fmt.Errorf("batch: refusing to clear %s: it holds %s", abs, k)
			}
		}
		entries, err := os.ReadDir(abs)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("batch: %w", err)
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(abs, e.Name())); err != nil {
				return fmt.Errorf("batch: clear output: %w", err)
			}
		}
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}

// within reports whether path is dir or lies below it. Symlinks are
// resolved where they exist.
func within(dir, path string) bool {
	p, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	dir, p = resolve(dir), resolve(p)
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func resolve(path string) string {
	if r, err := filepath.EvalSymlinks(path); err == nil {
		return r
	}
	return path
}
