package trigger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"
)

// Stats summarizes the training dataset.
type Stats struct {
	TotalRows   int       `json:"total_apps"`
	Categories  int       `json:"categories"`
	LastUpdated time.Time `json:"last_updated"`
}

// DatasetStats counts rows and distinct values of the Category column.
func DatasetStats(path string) (Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stats{}, fmt.Errorf("stat dataset: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return Stats{LastUpdated: info.ModTime().UTC()}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("read header: %w", err)
	}
	col := -1
	for i, name := range header {
		if name == "Category" {
			col = i
			break
		}
	}

	stats := Stats{LastUpdated: info.ModTime().UTC()}
	seen := make(map[string]struct{})
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Stats{}, fmt.Errorf("read dataset %s: %w", path, err)
		}
		stats.TotalRows++
		if col >= 0 && col < len(rec) {
			seen[rec[col]] = struct{}{}
		}
	}
	stats.Categories = len(seen)
	return stats, nil
}
