package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rockladyeagles/polarmodel/internal/engine"
	"github.com/rockladyeagles/polarmodel/internal/sweep"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes t with a leading step column, one row per record.
func WriteCSV(w io.Writer, t engine.Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{"step"}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for i, r := range t.Rows {
		row[0] = strconv.Itoa(i)
		for j, v := range r {
			row[j+1] = formatFloat(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteResultsCSV writes one row per sweep run.
func WriteResultsCSV(w io.Writer, results []sweep.Result) error {
	cw := csv.NewWriter(w)
	header := []string{"index", "value", "replicate", "seed", "lambda", "final_dispersion", "convergence_step", "graph_attempts", "steps", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		rec := []string{
			strconv.Itoa(r.Index),
			formatFloat(r.Value),
			strconv.Itoa(r.Replicate),
			strconv.FormatInt(r.Seed, 10),
			formatFloat(r.Lambda),
			formatFloat(r.FinalDispersion),
			strconv.Itoa(r.ConvergenceStep),
			strconv.Itoa(r.GraphAttempts),
			strconv.Itoa(r.Steps),
			errText,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes t to the file at path.
func SaveCSV(path string, t engine.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, t)
}

// SaveResultsCSV writes sweep results to the file at path.
func SaveResultsCSV(path string, results []sweep.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteResultsCSV(f, results)
}
