// Simulation ties together the social graph, agents, scheduler and collector,
// and runs them one step at a time.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/rockladyeagles/polarmodel/internal/agents"
	"github.com/rockladyeagles/polarmodel/internal/entropy"
	"github.com/rockladyeagles/polarmodel/internal/network"
)

// Rand is the random stream a simulation draws from after graph generation.
type Rand interface {
	agents.Rand
	Permuter
}

// Observer receives per-activation and per-step notifications.
type Observer interface {
	Interaction(out agents.Outcome)
	StepCollected(step int, dispersion float64)
}

// Option customizes a Simulation at construction.
type Option func(*options)

type options struct {
	graph    *network.Graph
	rng      Rand
	observer Observer
}

// WithGraph uses g instead of generating a random graph. g must have one
// node per agent; it is not required to be connected.
func WithGraph(g *network.Graph) Option {
	return func(o *options) { o.graph = g }
}

// WithRand draws agent opinions, schedules and interactions from r instead of
// the seeded source. Graph generation still uses the seed.
func WithRand(r Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithObserver registers an observer. Nil is allowed.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// SimStats tallies activation outcomes over the whole run.
type SimStats struct {
	Persuaded int `json:"persuaded"`
	Rejected  int `json:"rejected"`
	Isolated  int `json:"isolated"`
}

// Activations returns the total number of activations so far.
func (st SimStats) Activations() int {
	return st.Persuaded + st.Rejected + st.Isolated
}

func (st *SimStats) record(out agents.Outcome) {
	switch out {
	case agents.Persuaded:
		st.Persuaded++
	case agents.Rejected:
		st.Rejected++
	case agents.Isolated:
		st.Isolated++
	}
}

// Simulation holds the complete model state.
type Simulation struct {
	Params     Params
	Graph      *network.Graph
	Agents     []*agents.Agent
	AgentIndex map[agents.AgentID]*agents.Agent // graph node ID → agent
	Scheduler  *Scheduler

	collector *Collector
	source    *entropy.Source
	rng       Rand
	observer  Observer

	steps   int
	running bool
	stats   SimStats
}

// NewSimulation validates p, seeds the random source, builds a connected
// social graph and spawns the population. Draw order: graph, then opinions.
func NewSimulation(p Params, opts ...Option) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	src := entropy.New(p.Seed)
	var rng Rand = src
	if o.rng != nil {
		rng = o.rng
	}

	g := o.graph
	if g == nil {
		var err error
		g, err = network.Generate(network.GenConfig{
			Nodes:       p.Agents,
			EdgeProb:    p.EdgeProb,
			MaxAttempts: p.MaxGraphAttempts,
		}, src.Stream())
		if err != nil {
			return nil, fmt.Errorf("new simulation: %w", err)
		}
	} else if g.Nodes() != p.Agents {
		return nil, &ConfigError{Field: "graph", Value: g.Nodes(), Rule: fmt.Sprintf("nodes=%d", p.Agents)}
	}

	pop := agents.NewSpawner(rng, p.Issues).SpawnPopulation(p.Agents)
	index := make(map[agents.AgentID]*agents.Agent, len(pop))
	sched := NewScheduler()
	for _, a := range pop {
		index[a.ID] = a
		sched.Add(a)
	}

	sim := &Simulation{
		Params:     p,
		Graph:      g,
		Agents:     pop,
		AgentIndex: index,
		Scheduler:  sched,
		collector:  NewCollector(DefaultReadings(p.Agents, p.Issues)),
		source:     src,
		rng:        rng,
		observer:   o.observer,
		running:    true,
	}

	slog.Info("simulation initialized",
		"T", p.MaxSteps,
		"N", p.Agents,
		"I", p.Issues,
		"cthresh", p.Cthresh,
		"p", p.EdgeProb,
		"seed", p.Seed,
		"edges", g.Edges(),
		"graph_attempts", g.Attempts(),
	)
	return sim, nil
}

// Step advances the simulation by one iteration: collect metrics for the
// current state, then activate every agent once. Once the step ceiling is
// reached the next call marks the run finished; after that Step is a no-op.
func (s *Simulation) Step() {
	if !s.running {
		return
	}
	if s.steps >= s.Params.MaxSteps {
		slog.Info("simulation completed", "iterations", s.steps)
		s.running = false
		return
	}

	s.steps++
	slog.Debug("iteration", "step", s.steps)

	rec := s.collector.Collect(s.Agents)
	if s.observer != nil {
		s.observer.StepCollected(s.steps, rec[DispersionName])
	}

	s.Scheduler.Step(s.rng, s.activate)
}

func (s *Simulation) activate(a *agents.Agent) {
	out := agents.Interact(a, s.Graph.Neighbors(int(a.ID)), s.Agent, s.rng, s.Params.Cthresh)
	s.stats.record(out)
	if s.observer != nil {
		s.observer.Interaction(out)
	}
}

// Run calls Step exactly MaxSteps times.
func (s *Simulation) Run() {
	for i := 0; i < s.Params.MaxSteps; i++ {
		s.Step()
	}
}

// Stop clears the running flag; later Step calls do nothing.
func (s *Simulation) Stop() {
	s.running = false
}

// Running reports whether Step still does work.
func (s *Simulation) Running() bool {
	return s.running
}

// Steps returns the number of iterations executed.
func (s *Simulation) Steps() int {
	return s.steps
}

// Agent returns the agent on graph node id, or nil.
func (s *Simulation) Agent(id agents.AgentID) *agents.Agent {
	return s.AgentIndex[id]
}

// Collector returns the run's time series.
func (s *Simulation) Collector() *Collector {
	return s.collector
}

// Stats returns activation tallies.
func (s *Simulation) Stats() SimStats {
	return s.stats
}

// Seed returns the seed the run's source was created with.
func (s *Simulation) Seed() int64 {
	return s.source.Seed()
}
