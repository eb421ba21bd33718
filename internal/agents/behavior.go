// Agent behavior: the bounded-confidence compare/persuade rule.
// Each activation an agent picks one neighbor and two distinct issues. If the
// two agents are close enough on the comparison issue, the active agent moves
// halfway toward the neighbor on the persuade issue.
package agents

import (
	"log/slog"
	"math"
)

// Lookup resolves a neighbor ID to its agent.
type Lookup func(id AgentID) *Agent

// IssuePair draws two distinct issue indices uniformly without replacement
// from [0, n). Requires n >= 2.
func IssuePair(rng Rand, n int) (compare, persuade int) {
	compare = rng.IntN(n)
	persuade = rng.IntN(n - 1)
	if persuade >= compare {
		persuade++
	}
	return compare, persuade
}

// Interact runs one activation of a against a random neighbor.
// Draw order: neighbor, then compare issue, then persuade issue.
// Only a's persuade-issue opinion can change; the neighbor is read, never written.
func Interact(a *Agent, neighbors []int, lookup Lookup, rng Rand, cthresh float64) Outcome {
	if len(neighbors) == 0 {
		slog.Debug("agent has no neighbors", "agent", a.ID)
		return Isolated
	}

	nei := lookup(AgentID(neighbors[rng.IntN(len(neighbors))]))
	compare, persuade := IssuePair(rng, len(a.Opinions))

	if math.Abs(a.Opinions[compare]-nei.Opinions[compare]) > cthresh {
		slog.Debug("agent rejects neighbor", "agent", a.ID, "neighbor", nei.ID, "issue", compare)
		return Rejected
	}

	slog.Debug("agent listens to neighbor", "agent", a.ID, "neighbor", nei.ID, "issue", persuade)
	a.Opinions[persuade] = (a.Opinions[persuade] + nei.Opinions[persuade]) / 2
	return Persuaded
}
