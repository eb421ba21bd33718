package engine

import "github.com/rockladyeagles/polarmodel/internal/agents"

// Permuter draws random permutations.
type Permuter interface {
	Perm(n int) []int
}

// Scheduler activates every registered agent exactly once per step, in an
// order drawn fresh each step.
type Scheduler struct {
	agents []*agents.Agent
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add registers an agent for activation.
func (s *Scheduler) Add(a *agents.Agent) {
	s.agents = append(s.agents, a)
}

// Len returns the number of registered agents.
func (s *Scheduler) Len() int {
	return len(s.agents)
}

// Step draws one permutation and calls activate for each agent in that order.
func (s *Scheduler) Step(rng Permuter, activate func(a *agents.Agent)) {
	for _, i := range rng.Perm(len(s.agents)) {
		activate(s.agents[i])
	}
}
