package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/rockladyeagles/polarmodel/internal/engine"
	"github.com/rockladyeagles/polarmodel/internal/network"
)

// Result is the outcome of one simulation in a sweep.
type Result struct {
	Index           int           `json:"index"`
	Value           float64       `json:"value"`
	Replicate       int           `json:"replicate"`
	Seed            int64         `json:"seed"`
	Lambda          float64       `json:"lambda"` // realized mean degree
	FinalDispersion float64       `json:"final_dispersion"`
	ConvergenceStep int           `json:"convergence_step"`
	GraphAttempts   int           `json:"graph_attempts"`
	Steps           int           `json:"steps"`
	Duration        time.Duration `json:"duration"`
	Err             error         `json:"-"`
}

// Failed reports whether the run could not be carried out.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Runner executes a Plan.
type Runner struct {
	Plan Plan

	// Observer is shared by every run and must be safe for concurrent use.
	Observer engine.Observer

	// OnResult is called once per finished run. Calls are serialized.
	OnResult func(Result)

	mu sync.Mutex
}

// NewRunner creates a runner for plan.
func NewRunner(plan Plan) *Runner {
	return &Runner{Plan: plan}
}

// Run executes every (value, replicate) pair on a bounded worker pool and
// returns results in grid order. Run i uses seed Base.Seed+i. A run whose
// graph cannot be generated is recorded with Err set; cancellation aborts
// the whole sweep.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	plan := r.Plan
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	values := plan.Values()
	results := make([]Result, len(values)*plan.Replicates)

	workers := plan.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	slog.Info("sweep started",
		"variable", plan.Variable,
		"values", len(values),
		"replicates", plan.Replicates,
		"runs", len(results),
		"workers", workers,
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for vi, v := range values {
		for rep := 0; rep < plan.Replicates; rep++ {
			if gctx.Err() != nil {
				break
			}
			idx := vi*plan.Replicates + rep
			params := plan.Apply(v)
			params.Seed = plan.Base.Seed + int64(idx)

			g.Go(func() error {
				res, err := r.runOne(gctx, params, plan.Tolerance)
				if err != nil {
					return err
				}
				res.Index = idx
				res.Value = v
				res.Replicate = rep
				results[idx] = res

				if r.OnResult != nil {
					r.mu.Lock()
					r.OnResult(res)
					r.mu.Unlock()
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		slog.Warn("sweep aborted", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	slog.Info("sweep completed", "runs", len(results), "failed", failed, "elapsed", time.Since(start))
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, params engine.Params, tol float64) (Result, error) {
	start := time.Now()
	res := Result{Seed: params.Seed}

	sim, err := engine.NewSimulation(params, engine.WithObserver(r.Observer))
	if err != nil {
		if errors.Is(err, network.ErrGraphGeneration) {
			slog.Warn("sweep run skipped", "seed", params.Seed, "error", err)
			res.Err = err
			res.Duration = time.Since(start)
			return res, nil
		}
		return res, fmt.Errorf("sweep run seed=%d: %w", params.Seed, err)
	}

	eng := engine.NewEngine(sim)
	eng.ReportEvery = 0
	if err := eng.Run(ctx); err != nil {
		return res, err
	}

	series := sim.Collector().Series(engine.DispersionName)
	res.Lambda = sim.Graph.MeanDegree()
	res.GraphAttempts = sim.Graph.Attempts()
	res.Steps = sim.Steps()
	res.ConvergenceStep = ConvergenceStep(series, tol)
	if n := len(series); n > 0 {
		res.FinalDispersion = series[n-1]
	}
	res.Duration = time.Since(start)

	slog.Debug("sweep run finished", "seed", params.Seed, "lambda", res.Lambda, "converged_at", res.ConvergenceStep)
	return res, nil
}

// ConvergenceStep returns the smallest index t such that every value from t
// on lies within tol of the last value. An empty series converges at 0.
func ConvergenceStep(series []float64, tol float64) int {
	if len(series) == 0 {
		return 0
	}
	final := series[len(series)-1]
	t := len(series) - 1
	for i := len(series) - 1; i >= 0; i-- {
		if math.Abs(series[i]-final) > tol {
			break
		}
		t = i
	}
	return t
}

// Summary aggregates the replicates of one grid value.
type Summary struct {
	Value           float64 `json:"value"`
	Runs            int     `json:"runs"`
	Failed          int     `json:"failed"`
	MeanLambda      float64 `json:"mean_lambda"`
	MeanConvergence float64 `json:"mean_convergence"`
	StdConvergence  float64 `json:"std_convergence"`
	MeanDispersion  float64 `json:"mean_dispersion"`
}

// Summarize groups results by grid value, in first-seen order. Failed runs
// are counted but excluded from the means.
func Summarize(results []Result) []Summary {
	var order []float64
	groups := make(map[float64][]Result)
	for _, res := range results {
		if _, ok := groups[res.Value]; !ok {
			order = append(order, res.Value)
		}
		groups[res.Value] = append(groups[res.Value], res)
	}

	out := make([]Summary, 0, len(order))
	for _, v := range order {
		s := Summary{Value: v}
		var lambda, conv, disp []float64
		for _, res := range groups[v] {
			s.Runs++
			if res.Failed() {
				s.Failed++
				continue
			}
			lambda = append(lambda, res.Lambda)
			conv = append(conv, float64(res.ConvergenceStep))
			disp = append(disp, res.FinalDispersion)
		}
		if len(conv) > 0 {
			s.MeanLambda = stat.Mean(lambda, nil)
			s.MeanDispersion = stat.Mean(disp, nil)
			s.MeanConvergence = stat.Mean(conv, nil)
		}
		if len(conv) > 1 {
			s.StdConvergence = stat.StdDev(conv, nil)
		}
		out = append(out, s)
	}
	return out
}
