// Package catalog loads the static link catalogs consumed by the
// link-selection stages. Catalogs are produced offline by cmd/cataloggen.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alexvand/supportcrew/pkg/models"
)

// Load reads a catalog JSON file (an array of {url, description} entries).
// Called once at process start; the returned slice is treated as read-only.
func Load(path string) ([]models.Link, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var links []models.Link
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	for i, l := range links {
		if l.URL == "" {
			return nil, fmt.Errorf("catalog %s: entry %d has no url", path, i)
		}
	}

	return links, nil
}
