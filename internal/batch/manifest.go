package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ManifestEntry represents one rendered robot in the output manifest.
type ManifestEntry struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Image  string `json:"image"` // relative to the manifest
	Assets int    `json:"assets"`
}

// WriteManifest writes the successful results to path as JSON. Image paths
// are made relative to the manifest's directory when possible.
func WriteManifest(path string, results []Result) error {
	dir := filepath.Dir(path)
	entries := make([]ManifestEntry, 0, len(results))
	for _, r := range results {
		if !r.Success {
			continue
		}
		img := r.Output
		if rel, err := filepath.Rel(dir, r.Output); err == nil {
			img = filepath.ToSlash(rel)
		}
		entries = append(entries, ManifestEntry{
			Name:   r.Name,
			Source: r.Input,
			Image:  img,
			Assets: r.Assets,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
