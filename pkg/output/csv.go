package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/gracehpc/gracehpc/pkg/engine"
)

// CSV dataset selectors.
const (
	SaveNone         = "no_save"
	SaveFull         = "full"
	SaveDaily        = "daily"
	SaveTotal        = "total"
	SaveFullSummary  = "full_summary"
	SaveDailySummary = "daily_summary"
	SaveTotalSummary = "total_summary"
	SaveAll          = "all"
)

// SaveOptions returns the valid CSV selector names.
func SaveOptions() []string {
	return []string{
		SaveNone, SaveFull, SaveDaily, SaveTotal,
		SaveFullSummary, SaveDailySummary, SaveTotalSummary, SaveAll,
	}
}

// ParseSaveOption validates a CSV selector given at the boundary.
func ParseSaveOption(s string) (string, error) {
	if s == "" {
		return SaveNone, nil
	}

	if slices.Contains(SaveOptions(), s) {
		return s, nil
	}

	return "", fmt.Errorf(
		"%w: CSV selector %q must be one of %v", engine.ErrValidation, s, SaveOptions(),
	)
}

// SaveCSV writes the selected datasets as CSV files into dir. File names are
// fixed: full_job_data.csv, daily_data.csv, total_data.csv and their
// _summary variants.
func SaveCSV(logger *slog.Logger, datasets *engine.Datasets, selection, dir string) error {
	if selection == SaveNone {
		return nil
	}

	files := []struct {
		selectors []string
		name      string
		build     func(w io.Writer)
	}{
		{[]string{SaveFull, SaveAll}, "full_job_data.csv",
			func(w io.Writer) { JobsTable(w, datasets, false).RenderCSV() }},
		{[]string{SaveDaily, SaveAll}, "daily_data.csv",
			func(w io.Writer) { DailyTable(w, datasets, false).RenderCSV() }},
		{[]string{SaveTotal, SaveAll}, "total_data.csv",
			func(w io.Writer) { TotalTable(w, datasets, false).RenderCSV() }},
		{[]string{SaveFullSummary, SaveAll}, "full_job_data_summary.csv",
			func(w io.Writer) { JobsTable(w, datasets, true).RenderCSV() }},
		{[]string{SaveDailySummary, SaveAll}, "daily_data_summary.csv",
			func(w io.Writer) { DailyTable(w, datasets, true).RenderCSV() }},
		{[]string{SaveTotalSummary, SaveAll}, "total_data_summary.csv",
			func(w io.Writer) { TotalTable(w, datasets, true).RenderCSV() }},
	}

	for _, file := range files {
		if !slices.Contains(file.selectors, selection) {
			continue
		}

		path := filepath.Join(dir, file.name)

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create CSV file %s: %w", path, err)
		}

		file.build(f)

		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write CSV file %s: %w", path, err)
		}

		logger.Info("Dataset saved", "path", path)
	}

	return nil
}
