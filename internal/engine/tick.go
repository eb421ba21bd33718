// Engine drives a Simulation under a context, with periodic progress reports.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultReportEvery is how many steps pass between progress reports.
const DefaultReportEvery = 100

// Engine drives a simulation forward.
type Engine struct {
	Sim         *Simulation
	ReportEvery int // Steps between progress reports; 0 disables them

	// Called after every step with the step counter.
	OnStep func(step int)

	Elapsed time.Duration // Wall time of the last Run
}

// NewEngine creates an engine with default settings.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:         sim,
		ReportEvery: DefaultReportEvery,
	}
}

// Run performs MaxSteps calls to Step, checking ctx between steps. On
// cancellation the simulation is stopped and ctx.Err() returned; records
// collected so far are kept.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()
	slog.Info("simulation engine started", "max_steps", e.Sim.Params.MaxSteps, "seed", e.Sim.Seed())

	for i := 0; i < e.Sim.Params.MaxSteps; i++ {
		if err := ctx.Err(); err != nil {
			e.Sim.Stop()
			e.Elapsed = time.Since(start)
			slog.Warn("simulation engine interrupted", "step", e.Sim.Steps(), "error", err)
			return err
		}
		if !e.Sim.Running() {
			break
		}

		e.Sim.Step()
		step := e.Sim.Steps()

		if e.OnStep != nil {
			e.OnStep(step)
		}
		if e.ReportEvery > 0 && step%e.ReportEvery == 0 {
			e.report(step)
		}
	}

	e.Elapsed = time.Since(start)
	slog.Info("simulation engine stopped", "step", e.Sim.Steps(), "elapsed", e.Elapsed)
	return nil
}

func (e *Engine) report(step int) {
	disp := 0.0
	if rec, ok := e.Sim.Collector().Last(); ok {
		disp = rec[DispersionName]
	}
	st := e.Sim.Stats()
	slog.Info("progress report",
		"step", step,
		"dispersion", fmt.Sprintf("%.5f", disp),
		"persuaded", st.Persuaded,
		"rejected", st.Rejected,
		"isolated", st.Isolated,
	)
}
