// Agent spawning: creates the initial population with uniform random opinions.
package agents

// Rand is the subset of the run's random stream agents draw from.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    Rand
	issues int
	nextID AgentID
}

// NewSpawner creates a spawner whose agents hold opinions on the given number
// of issues. Opinions are drawn from rng.
func NewSpawner(rng Rand, issues int) *Spawner {
	return &Spawner{
		rng:    rng,
		issues: issues,
	}
}

// SpawnPopulation creates count agents with consecutive IDs, drawing each
// agent's opinions in issue order before moving on to the next agent.
func (s *Spawner) SpawnPopulation(count int) []*Agent {
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		agents = append(agents, s.spawnOne())
	}
	return agents
}

func (s *Spawner) spawnOne() *Agent {
	id := s.nextID
	s.nextID++

	opinions := make([]float64, s.issues)
	for i := range opinions {
		opinions[i] = s.rng.Float64()
	}
	return &Agent{ID: id, Opinions: opinions}
}
