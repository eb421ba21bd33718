// Graph generation: Gilbert G(n,p) draws, repeated until connected.
package network

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/graphs/gen"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// DefaultMaxAttempts bounds the connectivity retry loop.
const DefaultMaxAttempts = 1000

var (
	// ErrGraphGeneration is returned when no connected graph was drawn within the attempt cap.
	ErrGraphGeneration = errors.New("network: graph generation failed")

	// ErrInvalidGraph is returned for parameters no graph can be built from.
	ErrInvalidGraph = errors.New("network: invalid graph parameters")
)

// GenerationError reports an exhausted retry loop.
type GenerationError struct {
	Nodes    int
	EdgeProb float64
	Attempts int
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("network: no connected graph with n=%d p=%g after %d attempts",
		e.Nodes, e.EdgeProb, e.Attempts)
}

// Unwrap lets errors.Is match ErrGraphGeneration.
func (e *GenerationError) Unwrap() error {
	return ErrGraphGeneration
}

// GenConfig holds graph generation parameters.
type GenConfig struct {
	Nodes       int     // N, at least 1
	EdgeProb    float64 // independent edge probability in [0,1]
	MaxAttempts int     // retry cap; <= 0 means DefaultMaxAttempts
}

// Generate draws G(n,p) graphs from src until one is connected.
// Every attempt redraws all edges. src is consumed in place, so the number
// of draws taken depends on how many attempts were needed.
func Generate(cfg GenConfig, src rand.Source) (*Graph, error) {
	if cfg.Nodes < 1 {
		return nil, fmt.Errorf("generate: n=%d: %w", cfg.Nodes, ErrInvalidGraph)
	}
	if cfg.EdgeProb < 0 || cfg.EdgeProb > 1 {
		return nil, fmt.Errorf("generate: p=%g not in [0,1]: %w", cfg.EdgeProb, ErrInvalidGraph)
	}
	if src == nil {
		// gen.Gnp would silently fall back to the global generator.
		return nil, fmt.Errorf("generate: nil random source: %w", ErrInvalidGraph)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ug := simple.NewUndirectedGraph()
		if err := gen.Gnp(ug, cfg.Nodes, cfg.EdgeProb, src); err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if len(topo.ConnectedComponents(ug)) == 1 {
			g := newGraph(ug, cfg.Nodes, attempt)
			slog.Debug("social graph generated",
				"nodes", cfg.Nodes,
				"p", cfg.EdgeProb,
				"edges", g.Edges(),
				"attempts", attempt,
			)
			return g, nil
		}
	}

	return nil, &GenerationError{Nodes: cfg.Nodes, EdgeProb: cfg.EdgeProb, Attempts: maxAttempts}
}
