package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rockladyeagles/polarmodel/internal/engine"
	"github.com/rockladyeagles/polarmodel/internal/metrics"
	"github.com/rockladyeagles/polarmodel/internal/persistence"
	"github.com/rockladyeagles/polarmodel/internal/report"
)

func newSingleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "single",
		Short: "Run one simulation and plot opinion dispersion over time",
		Long: `Run one simulation with the configured parameters, then write the
dispersion plot (and optionally a CSV of every reading). The run is stored
in the result database unless --no-db is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			applySingleFlags(cmd, a)
			return runSingle(cmd, a)
		},
	}

	cmd.Flags().IntP("steps", "T", 0, "Max number of iterations")
	cmd.Flags().IntP("agents", "N", 0, "Number of citizens")
	cmd.Flags().IntP("issues", "I", 0, "Number of issues")
	cmd.Flags().Float64("cthresh", 0, "Comparison threshold")
	cmd.Flags().Float64P("edge-prob", "p", 0, "Erdos-Renyi edge probability")
	cmd.Flags().String("plot", "", "Dispersion plot file (default meanOpinionVar.png)")
	cmd.Flags().String("csv", "", "Also write readings as CSV to this file")
	return cmd
}

func applySingleFlags(cmd *cobra.Command, a *app) {
	p := &a.cfg.Simulation
	flags := cmd.Flags()
	if flags.Changed("steps") {
		p.MaxSteps, _ = flags.GetInt("steps")
	}
	if flags.Changed("agents") {
		p.Agents, _ = flags.GetInt("agents")
	}
	if flags.Changed("issues") {
		p.Issues, _ = flags.GetInt("issues")
	}
	if flags.Changed("cthresh") {
		p.Cthresh, _ = flags.GetFloat64("cthresh")
	}
	if flags.Changed("edge-prob") {
		p.EdgeProb, _ = flags.GetFloat64("edge-prob")
	}
	if flags.Changed("plot") {
		a.cfg.Output.Plot, _ = flags.GetString("plot")
	}
	if flags.Changed("csv") {
		a.cfg.Output.CSV, _ = flags.GetString("csv")
	}
}

func runSingle(cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	defer a.flushMetrics()

	cfg.ResolveSeed()
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := a.openDB()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	sim, err := engine.NewSimulation(cfg.Simulation, engine.WithObserver(a.metrics))
	if err != nil {
		a.metrics.RecordRun(metrics.ModeSingle, metrics.StatusFailed, 0)
		return fmt.Errorf("create simulation: %w", err)
	}
	a.metrics.RecordGraph(sim.Graph.Attempts())
	slog.Info("network generated",
		"agents", sim.Graph.Nodes(),
		"edges", sim.Graph.Edges(),
		"mean_degree", sim.Graph.MeanDegree(),
		"attempts", sim.Graph.Attempts(),
	)

	eng := engine.NewEngine(sim)
	if err := eng.Run(cmd.Context()); err != nil {
		status := metrics.StatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = metrics.StatusCancelled
		}
		a.metrics.RecordRun(metrics.ModeSingle, status, eng.Elapsed)
		return err
	}
	a.metrics.RecordRun(metrics.ModeSingle, metrics.StatusOK, eng.Elapsed)

	table := sim.Collector().Table()
	if err := report.DispersionPlot(table, cfg.Output.Plot); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if cfg.Output.CSV != "" {
		if err := report.SaveCSV(cfg.Output.CSV, table); err != nil {
			return fmt.Errorf("csv: %w", err)
		}
	}

	run := persistence.NewRun(sim, eng.Elapsed)
	if db != nil {
		if err := db.SaveRun(run, table); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		slog.Info("run stored", "id", run.ID)
	}

	printRun(cmd, run, cfg.Output.Plot, db != nil)
	return nil
}

func printRun(cmd *cobra.Command, run persistence.Run, plot string, stored bool) {
	out := cmd.OutOrStdout()
	p := run.Params
	fmt.Fprintf(out, "Seed:        %d\n", p.Seed)
	fmt.Fprintf(out, "Citizens:    %d on %d issues, threshold %g\n", p.Agents, p.Issues, p.Cthresh)
	fmt.Fprintf(out, "Network:     %s edges, mean degree %.2f (%d attempts)\n",
		humanize.Comma(int64(run.Edges)), run.MeanDegree, run.GraphAttempts)
	fmt.Fprintf(out, "Steps:       %s in %s\n", humanize.Comma(int64(run.Steps)), run.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Persuaded:   %s of %s activations\n",
		humanize.Comma(int64(run.Stats.Persuaded)), humanize.Comma(int64(run.Stats.Activations())))
	fmt.Fprintf(out, "Dispersion:  %.5f\n", run.FinalDispersion)
	fmt.Fprintf(out, "Plot:        %s\n", plot)
	if stored {
		fmt.Fprintf(out, "Run ID:      %s\n", run.ID)
	}
}
