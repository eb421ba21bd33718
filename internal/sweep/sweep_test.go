package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockladyeagles/polarmodel/internal/engine"
	"github.com/rockladyeagles/polarmodel/internal/network"
)

func smallPlan() Plan {
	base := engine.DefaultParams()
	base.MaxSteps = 20
	base.Issues = 3
	base.Cthresh = 0.2
	base.EdgeProb = 0.6
	base.Seed = 99
	return Plan{
		Base:       base,
		Variable:   VarAgents,
		From:       5,
		To:         12,
		Step:       3,
		Replicates: 2,
		Workers:    1,
		Tolerance:  1e-3,
	}
}

func stripTimings(results []Result) []Result {
	out := append([]Result(nil), results...)
	for i := range out {
		out[i].Duration = 0
	}
	return out
}

func TestDefaultPlanValues(t *testing.T) {
	p := DefaultPlan()
	require.NoError(t, p.Validate())

	vals := p.Values()
	require.Len(t, vals, 18)
	assert.Equal(t, 10.0, vals[0])
	assert.Equal(t, 95.0, vals[len(vals)-1])
	assert.Equal(t, 180, p.Runs())
	assert.Equal(t, 1000, p.Base.MaxSteps)
	assert.Equal(t, 0.2, p.Base.EdgeProb)
}

func TestPlanValuesExcludeUpperBound(t *testing.T) {
	p := Plan{From: 0, To: 1, Step: 0.25}
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, p.Values())

	p = Plan{From: 2, To: 2, Step: 1}
	assert.Empty(t, p.Values())
}

func TestPlanApply(t *testing.T) {
	p := smallPlan()
	assert.Equal(t, 8, p.Apply(8).Agents)

	p.Variable = VarIssues
	assert.Equal(t, 4, p.Apply(3.6).Issues)

	p.Variable = VarCthresh
	assert.Equal(t, 0.4, p.Apply(0.4).Cthresh)

	p.Variable = VarEdgeProb
	got := p.Apply(0.9)
	assert.Equal(t, 0.9, got.EdgeProb)
	assert.Equal(t, p.Base.Agents, got.Agents)
}

func TestPlanValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Plan)
	}{
		{"unknown variable", func(p *Plan) { p.Variable = "mood" }},
		{"zero step", func(p *Plan) { p.Step = 0 }},
		{"empty grid", func(p *Plan) { p.To = p.From }},
		{"no replicates", func(p *Plan) { p.Replicates = 0 }},
		{"negative tolerance", func(p *Plan) { p.Tolerance = -1 }},
		{"grid leaves valid range", func(p *Plan) { p.From = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := smallPlan()
			tt.mod(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPlan)
		})
	}
}

func TestGridOutsideRangeWrapsConfigError(t *testing.T) {
	p := smallPlan()
	p.Variable = VarCthresh
	p.From, p.To, p.Step = 0.5, 1.6, 0.5

	err := p.Validate()
	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.ErrorIs(t, err, engine.ErrInvalidConfig)
}

func TestConvergenceStep(t *testing.T) {
	assert.Equal(t, 0, ConvergenceStep(nil, 0.1))
	assert.Equal(t, 0, ConvergenceStep([]float64{0.3, 0.3, 0.3}, 0))
	assert.Equal(t, 2, ConvergenceStep([]float64{0.9, 0.5, 0.1, 0.1}, 0))
	assert.Equal(t, 2, ConvergenceStep([]float64{0.9, 0.2, 0.12, 0.1}, 0.05))
	// A later excursion resets convergence.
	assert.Equal(t, 3, ConvergenceStep([]float64{0.1, 0.1, 0.5, 0.1}, 0.01))
	assert.Equal(t, 0, ConvergenceStep([]float64{0.4}, 0))
}

func TestRunProducesOrderedResults(t *testing.T) {
	p := smallPlan()
	results, err := NewRunner(p).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, p.Runs())

	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, p.Base.Seed+int64(i), res.Seed)
		assert.Equal(t, p.Values()[i/p.Replicates], res.Value)
		assert.Equal(t, i%p.Replicates, res.Replicate)
		assert.False(t, res.Failed())
		assert.Equal(t, p.Base.MaxSteps, res.Steps)
		assert.GreaterOrEqual(t, res.GraphAttempts, 1)
		assert.Greater(t, res.Lambda, 0.0)
		assert.GreaterOrEqual(t, res.ConvergenceStep, 0)
		assert.Less(t, res.ConvergenceStep, p.Base.MaxSteps)
		assert.GreaterOrEqual(t, res.FinalDispersion, 0.0)
	}
}

func TestRunDeterministicAcrossWorkerCounts(t *testing.T) {
	p := smallPlan()
	serial, err := NewRunner(p).Run(context.Background())
	require.NoError(t, err)

	p.Workers = 4
	parallel, err := NewRunner(p).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, stripTimings(serial), stripTimings(parallel))
}

func TestRunMatchesStandaloneSimulation(t *testing.T) {
	p := smallPlan()
	results, err := NewRunner(p).Run(context.Background())
	require.NoError(t, err)

	params := p.Apply(p.Values()[1])
	params.Seed = p.Base.Seed + int64(p.Replicates)
	sim, err := engine.NewSimulation(params)
	require.NoError(t, err)
	sim.Run()

	series := sim.Collector().Series(engine.DispersionName)
	got := results[p.Replicates]
	assert.Equal(t, series[len(series)-1], got.FinalDispersion)
	assert.Equal(t, sim.Graph.MeanDegree(), got.Lambda)
}

func TestRunRecordsGraphFailures(t *testing.T) {
	p := smallPlan()
	p.Variable = VarEdgeProb
	p.From, p.To, p.Step = 0, 1.5, 1
	p.Base.Agents = 6
	p.Base.MaxGraphAttempts = 2

	results, err := NewRunner(p).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	for _, res := range results[:2] {
		assert.True(t, res.Failed())
		assert.True(t, errors.Is(res.Err, network.ErrGraphGeneration))
	}

	sums := Summarize(results)
	require.Len(t, sums, 2)
	assert.Equal(t, 2, sums[0].Failed)
	assert.Equal(t, 0.0, sums[0].MeanConvergence)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewRunner(smallPlan()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestRunInvalidPlan(t *testing.T) {
	p := smallPlan()
	p.Replicates = 0
	_, err := NewRunner(p).Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestRunNotifiesEveryResult(t *testing.T) {
	p := smallPlan()
	p.Workers = 3

	r := NewRunner(p)
	seen := make(map[int]bool)
	r.OnResult = func(res Result) { seen[res.Index] = true }

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, seen, p.Runs())
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Value: 10, Lambda: 2, ConvergenceStep: 100, FinalDispersion: 0.1},
		{Value: 10, Lambda: 4, ConvergenceStep: 300, FinalDispersion: 0.3},
		{Value: 15, Lambda: 3, ConvergenceStep: 50, FinalDispersion: 0.2},
		{Value: 15, Err: errors.New("boom")},
	}

	sums := Summarize(results)
	require.Len(t, sums, 2)

	assert.Equal(t, 10.0, sums[0].Value)
	assert.Equal(t, 2, sums[0].Runs)
	assert.InDelta(t, 3.0, sums[0].MeanLambda, 1e-12)
	assert.InDelta(t, 200.0, sums[0].MeanConvergence, 1e-12)
	assert.InDelta(t, 0.2, sums[0].MeanDispersion, 1e-12)
	assert.Greater(t, sums[0].StdConvergence, 0.0)

	assert.Equal(t, 15.0, sums[1].Value)
	assert.Equal(t, 2, sums[1].Runs)
	assert.Equal(t, 1, sums[1].Failed)
	assert.Equal(t, 50.0, sums[1].MeanConvergence)
	assert.Equal(t, 0.0, sums[1].StdConvergence)

	assert.Empty(t, Summarize(nil))
}
