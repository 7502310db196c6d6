package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"acdm-platform/internal/domain"
)

// Output file names written by WriteFiles.
const (
	ReportFile    = "REPORT.md"
	RoundsCSVFile = "rounds.csv"
	FillsCSVFile  = "fills.csv"
)

// WriteFiles writes the markdown report, the rounds CSV and the fills CSV into dir.
func WriteFiles(dir string, r *Report, fills []*domain.Fill) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name string
		body string
	}{
		{ReportFile, RenderMarkdown(r)},
		{RoundsCSVFile, RenderRoundsCSV(r.Rounds)},
		{FillsCSVFile, RenderFillsCSV(fills)},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.body), 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
