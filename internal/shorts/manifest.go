package shorts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"voiceclip/internal/fileutil"
	"voiceclip/internal/textutil"
)

// ClipEntry records the outcome for one clip.
type ClipEntry struct {
	Number    int     `json:"number"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Absorbed  bool    `json:"absorbed,omitempty"`
	Output    string  `json:"output,omitempty"`
	Subtitles string  `json:"subtitles,omitempty"`
	Words     int     `json:"words"`
	Groups    int     `json:"groups"`
	Error     string  `json:"error,omitempty"`
}

// Duration returns the clip length in seconds.
func (c ClipEntry) Duration() float64 {
	return c.End - c.Start
}

// Manifest describes every clip produced from one source.
type Manifest struct {
	Source    string        `json:"source"`
	CreatedAt time.Time     `json:"created_at"`
	Policy    string        `json:"policy"`
	Clips     []ClipEntry   `json:"clips"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Succeeded counts rendered clips.
func (m Manifest) Succeeded() int {
	n := 0
	for _, c := range m.Clips {
		if c.Error == "" {
			n++
		}
	}
	return n
}

// Failed counts clips that were skipped after an error.
func (m Manifest) Failed() int {
	return len(m.Clips) - m.Succeeded()
}

// RenderedDuration sums the length of rendered clips.
func (m Manifest) RenderedDuration() float64 {
	var total float64
	for _, c := range m.Clips {
		if c.Error == "" {
			total += c.Duration()
		}
	}
	return total
}

// Outputs lists every file written for the run.
func (m Manifest) Outputs() []string {
	var out []string
	for _, c := range m.Clips {
		if c.Output != "" {
			out = append(out, c.Output)
		}
		if c.Subtitles != "" {
			out = append(out, c.Subtitles)
		}
	}
	return out
}

// ManifestPath returns the manifest location for a source inside outputDir.
func ManifestPath(outputDir, source string) string {
	return filepath.Join(outputDir, "short_"+textutil.SanitizeFileName(fileutil.BaseName(source))+"_manifest.json")
}

// Save writes the manifest as indented JSON.
func (m Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
