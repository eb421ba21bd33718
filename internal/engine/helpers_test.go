package engine

import (
	"github.com/rockladyeagles/polarmodel/internal/agents"
)

// scriptedRand replays fixed permutations, ints and floats.
// Float64 falls back to 0.5 once the script runs out.
type scriptedRand struct {
	perms  [][]int
	ints   []int
	floats []float64
}

func (r *scriptedRand) Perm(n int) []int {
	p := r.perms[0]
	r.perms = r.perms[1:]
	return p
}

func (r *scriptedRand) IntN(n int) int {
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

// countingObserver counts activations between collections.
type countingObserver struct {
	outcomes    map[agents.Outcome]int
	perStep     []int
	dispersions []float64
	current     int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{outcomes: make(map[agents.Outcome]int)}
}

func (o *countingObserver) Interaction(out agents.Outcome) {
	o.outcomes[out]++
	o.current++
}

func (o *countingObserver) StepCollected(step int, dispersion float64) {
	if step > 1 {
		o.perStep = append(o.perStep, o.current)
	}
	o.current = 0
	o.dispersions = append(o.dispersions, dispersion)
}

// flush closes the last step's count.
func (o *countingObserver) flush() {
	o.perStep = append(o.perStep, o.current)
	o.current = 0
}

func snapshot(pop []*agents.Agent) [][]float64 {
	out := make([][]float64, len(pop))
	for i, a := range pop {
		out[i] = append([]float64(nil), a.Opinions...)
	}
	return out
}

func testParams() Params {
	p := DefaultParams()
	p.MaxSteps = 30
	p.Agents = 12
	p.Issues = 4
	p.Cthresh = 0.3
	p.EdgeProb = 0.5
	p.Seed = 2024
	return p
}
