// Package report renders run and sweep results as PNG charts and CSV tables.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rockladyeagles/polarmodel/internal/engine"
	"github.com/rockladyeagles/polarmodel/internal/sweep"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("report: no data")

const (
	DefaultDispersionFile = "meanOpinionVar.png"
	DefaultSweepFile      = "itersToConverge.png"
)

var (
	plotWidth  = 6.4 * vg.Inch
	plotHeight = 4.8 * vg.Inch

	green = color.RGBA{G: 128, A: 255}
	blue  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	red   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// DispersionPlot draws the dispersion column of t against iteration and
// saves it to path. The format follows the file extension.
func DispersionPlot(t engine.Table, path string) error {
	series := t.Column(engine.DispersionName)
	if len(series) == 0 {
		return fmt.Errorf("dispersion plot: %w", ErrNoData)
	}

	pts := make(plotter.XYs, len(series))
	for i, v := range series {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}

	p := plot.New()
	p.Title.Text = "Mean opinion variance over time"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "mean opinion variance"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("dispersion plot: %w", err)
	}
	line.LineStyle.Color = green
	line.LineStyle.Width = vg.Points(2)
	p.Add(line)

	p.Y.Min = 0
	p.Y.Max = 1.1 * slices.Max(series)

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("dispersion plot: save %s: %w", path, err)
	}
	slog.Info("plot written", "path", path, "points", len(series))
	return nil
}

// SweepPlot scatters lambda against convergence step for every successful
// run and overlays the per-value means.
func SweepPlot(results []sweep.Result, sums []sweep.Summary, path string) error {
	pts := make(plotter.XYs, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			continue
		}
		pts = append(pts, plotter.XY{X: r.Lambda, Y: float64(r.ConvergenceStep)})
	}
	if len(pts) == 0 {
		return fmt.Errorf("sweep plot: %w", ErrNoData)
	}

	p := plot.New()
	p.Title.Text = "Iterations to converge"
	p.X.Label.Text = "lambda (mean degree)"
	p.Y.Label.Text = "iterations to converge"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("sweep plot: %w", err)
	}
	scatter.GlyphStyle.Color = blue
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)
	p.Legend.Add("runs", scatter)

	means := make(plotter.XYs, 0, len(sums))
	for _, s := range sums {
		if s.Runs == s.Failed {
			continue
		}
		means = append(means, plotter.XY{X: s.MeanLambda, Y: s.MeanConvergence})
	}
	slices.SortFunc(means, func(a, b plotter.XY) int {
		switch {
		case a.X < b.X:
			return -1
		case a.X > b.X:
			return 1
		}
		return 0
	})
	if len(means) > 0 {
		line, err := plotter.NewLine(means)
		if err != nil {
			return fmt.Errorf("sweep plot: %w", err)
		}
		line.LineStyle.Color = red
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("mean", line)
	}

	p.Y.Min = 0
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("sweep plot: save %s: %w", path, err)
	}
	slog.Info("plot written", "path", path, "points", len(pts))
	return nil
}
