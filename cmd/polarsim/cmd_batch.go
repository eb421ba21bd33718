package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rockladyeagles/polarmodel/internal/metrics"
	"github.com/rockladyeagles/polarmodel/internal/persistence"
	"github.com/rockladyeagles/polarmodel/internal/report"
	"github.com/rockladyeagles/polarmodel/internal/sweep"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Sweep one parameter and plot iterations to convergence",
		Long: `Run several seeded replicates for each value of one parameter, measure
how many steps the dispersion takes to settle, and plot the result against
the realized mean degree of the network.

Example:
  polarsim batch --variable agents --from 10 --to 100 --step 5 --replicates 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			applyBatchFlags(cmd, a)
			return runBatch(cmd, a)
		},
	}

	cmd.Flags().String("variable", "", "Parameter to vary: agents, issues, cthresh, edge_prob")
	cmd.Flags().Float64("from", 0, "First value")
	cmd.Flags().Float64("to", 0, "Upper bound (exclusive)")
	cmd.Flags().Float64("step", 0, "Increment between values")
	cmd.Flags().Int("replicates", 0, "Runs per value")
	cmd.Flags().Int("workers", 0, "Concurrent runs (0 = one per CPU)")
	cmd.Flags().Float64("tolerance", 0, "Convergence tolerance on dispersion")
	cmd.Flags().IntP("steps", "T", 0, "Max iterations per run")
	cmd.Flags().String("plot", "", "Sweep plot file (default itersToConverge.png)")
	cmd.Flags().String("csv", "", "Also write per-run results as CSV to this file")
	return cmd
}

func applyBatchFlags(cmd *cobra.Command, a *app) {
	sc := &a.cfg.Sweep
	flags := cmd.Flags()
	if flags.Changed("variable") {
		v, _ := flags.GetString("variable")
		sc.Variable = sweep.Variable(v)
	}
	if flags.Changed("from") {
		sc.From, _ = flags.GetFloat64("from")
	}
	if flags.Changed("to") {
		sc.To, _ = flags.GetFloat64("to")
	}
	if flags.Changed("step") {
		sc.Step, _ = flags.GetFloat64("step")
	}
	if flags.Changed("replicates") {
		sc.Replicates, _ = flags.GetInt("replicates")
	}
	if flags.Changed("workers") {
		sc.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("tolerance") {
		sc.Tolerance, _ = flags.GetFloat64("tolerance")
	}
	if flags.Changed("steps") {
		sc.MaxSteps, _ = flags.GetInt("steps")
	}
	if flags.Changed("plot") {
		a.cfg.Output.SweepPlot, _ = flags.GetString("plot")
	}
	if flags.Changed("csv") {
		a.cfg.Output.CSV, _ = flags.GetString("csv")
	}
}

func runBatch(cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	defer a.flushMetrics()

	cfg.ResolveSeed()
	if err := cfg.Validate(); err != nil {
		return err
	}
	plan := cfg.SweepPlan()

	db, err := a.openDB()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	runner := sweep.NewRunner(plan)
	runner.Observer = a.metrics
	done := 0
	runner.OnResult = func(r sweep.Result) {
		done++
		status := metrics.StatusOK
		if r.Failed() {
			status = metrics.StatusFailed
		} else {
			a.metrics.RecordGraph(r.GraphAttempts)
		}
		a.metrics.RecordRun(metrics.ModeSweep, status, r.Duration)
		slog.Debug("sweep progress",
			"done", done,
			"of", plan.Runs(),
			string(plan.Variable), r.Value,
			"seed", r.Seed,
			"convergence_step", r.ConvergenceStep,
		)
	}

	start := time.Now()
	results, err := runner.Run(cmd.Context())
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.metrics.RecordRun(metrics.ModeSweep, metrics.StatusCancelled, elapsed)
		}
		return fmt.Errorf("sweep: %w", err)
	}

	sums := sweep.Summarize(results)
	if err := report.SweepPlot(results, sums, cfg.Output.SweepPlot); err != nil {
		if !errors.Is(err, report.ErrNoData) {
			return fmt.Errorf("plot: %w", err)
		}
		slog.Warn("no successful runs to plot")
	}
	if cfg.Output.CSV != "" {
		if err := report.SaveResultsCSV(cfg.Output.CSV, results); err != nil {
			return fmt.Errorf("csv: %w", err)
		}
	}

	sw := persistence.NewSweep(plan, results, elapsed)
	if db != nil {
		if err := db.SaveSweep(sw, results); err != nil {
			return fmt.Errorf("save sweep: %w", err)
		}
		slog.Info("sweep stored", "id", sw.ID)
	}

	printSweep(cmd, plan, sw, sums, cfg.Output.SweepPlot, db != nil)
	return nil
}

func printSweep(cmd *cobra.Command, plan sweep.Plan, sw persistence.Sweep, sums []sweep.Summary, plot string, stored bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Swept %s over %d values, %s runs (%d failed) in %s\n",
		plan.Variable, len(sums), humanize.Comma(int64(sw.Runs)), sw.Failed, sw.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\truns\tfailed\tlambda\tconverge\tstd\tdispersion\n", plan.Variable)
	for _, s := range sums {
		fmt.Fprintf(tw, "%g\t%d\t%d\t%.2f\t%.1f\t%.1f\t%.5f\n",
			s.Value, s.Runs, s.Failed, s.MeanLambda, s.MeanConvergence, s.StdConvergence, s.MeanDispersion)
	}
	tw.Flush()

	fmt.Fprintf(out, "Plot: %s\n", plot)
	if stored {
		fmt.Fprintf(out, "Sweep ID: %s\n", sw.ID)
	}
}
