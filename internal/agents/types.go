// Package agents provides the citizen data model and the bounded-confidence
// interaction rule agents apply to one another.
package agents

import "fmt"

// AgentID is a unique identifier for an agent. It equals the agent's node ID
// in the social graph.
type AgentID int

// Agent is a citizen holding one opinion per issue, each in [0,1].
type Agent struct {
	ID       AgentID   `json:"id"`
	Opinions []float64 `json:"opinions"`
}

// NumIssues returns the length of the opinion vector.
func (a *Agent) NumIssues() int {
	return len(a.Opinions)
}

// Opinion returns the agent's opinion on issue i.
func (a *Agent) Opinion(i int) float64 {
	return a.Opinions[i]
}

// Clone returns a deep copy.
func (a *Agent) Clone() *Agent {
	return &Agent{ID: a.ID, Opinions: append([]float64(nil), a.Opinions...)}
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent %d", a.ID)
}

// Outcome classifies what one activation did.
type Outcome uint8

const (
	Isolated  Outcome = iota // No neighbors; nothing happened
	Rejected                 // Too far apart on the comparison issue
	Persuaded                // Pulled halfway toward the neighbor on the persuade issue
)

// NumOutcomes is the number of Outcome values.
const NumOutcomes = 3

func (o Outcome) String() string {
	switch o {
	case Isolated:
		return "isolated"
	case Rejected:
		return "rejected"
	case Persuaded:
		return "persuaded"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}
