package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"equi2cube/internal/cubemap"
	"equi2cube/internal/imageio"
)

// Manifest is the JSON document describing one run.
type Manifest struct {
	RunID   string          `json:"run_id"`
	Created time.Time       `json:"created"`
	Elapsed string          `json:"elapsed"`
	Entries []ManifestEntry `json:"entries"`
}

// ManifestEntry represents one source file in the output manifest.
type ManifestEntry struct {
	Source   string            `json:"source"`
	Status   Status            `json:"status"`
	FaceSize int               `json:"face_size,omitempty"`
	Faces    map[string]string `json:"faces,omitempty"`
	Atlas    string            `json:"atlas,omitempty"`
	Preview  string            `json:"preview,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// NewManifest builds the manifest of s. Face keys are the suffixes of
// naming and paths are relative to outputDir where possible.
func NewManifest(s Summary, outputDir string, naming imageio.Naming) Manifest {
	m := Manifest{
		RunID:   s.RunID,
		Created: s.Started.UTC(),
		Elapsed: s.Elapsed.Round(time.Millisecond).String(),
		Entries: make([]ManifestEntry, len(s.Results)),
	}
	for i, r := range s.Results {
		e := ManifestEntry{
			Source:   r.Source,
			Status:   r.Status,
			FaceSize: r.FaceSize,
			Atlas:    rel(outputDir, r.Atlas),
			Preview:  rel(outputDir, r.Preview),
		}
		if r.Err != nil {
			e.Error = r.Err.Error()
		}
		if r.Status == StatusOK {
			e.Faces = make(map[string]string, len(r.Faces))
			for j, f := range cubemap.Order {
				e.Faces[naming.Suffix(f)] = rel(outputDir, r.Faces[j])
			}
		}
		m.Entries[i] = e
	}
	return m
}

// WriteManifest writes the manifest of s to path.
func WriteManifest(path string, s Summary, naming imageio.Naming) error {
	m := NewManifest(s, filepath.Dir(path), naming)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func rel(base, path string) string {
	if path == "" {
		return ""
	}
	r, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}
