package network

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockladyeagles/polarmodel/internal/entropy"
)

// reachableFrom walks the adjacency lists directly, independent of gonum's topo.
func reachableFrom(g *Graph, start int) int {
	seen := make([]bool, g.Nodes())
	queue := []int{start}
	seen[start] = true
	count := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		count++
		for _, v := range g.Neighbors(u) {
			if !seen[v] {
				seen[v] = true
				queue = append(queue, v)
			}
		}
	}
	return count
}

func TestGenerateConnected(t *testing.T) {
	src := entropy.New(123)
	g, err := Generate(GenConfig{Nodes: 40, EdgeProb: 0.2}, src.Stream())
	require.NoError(t, err)

	assert.Equal(t, 40, g.Nodes())
	assert.True(t, g.Connected())
	assert.Equal(t, 40, reachableFrom(g, 0))
	assert.GreaterOrEqual(t, g.Attempts(), 1)
	assert.GreaterOrEqual(t, g.Edges(), 39)
}

func TestGenerateCompleteGraph(t *testing.T) {
	g, err := Generate(GenConfig{Nodes: 6, EdgeProb: 1}, entropy.New(1).Stream())
	require.NoError(t, err)

	assert.Equal(t, 15, g.Edges())
	assert.Equal(t, 1, g.Attempts())
	for i := 0; i < 6; i++ {
		assert.Equal(t, 5, g.Degree(i))
	}
	assert.InDelta(t, 5.0, g.MeanDegree(), 1e-12)
}

func TestGenerateSingleNode(t *testing.T) {
	g, err := Generate(GenConfig{Nodes: 1, EdgeProb: 0.5}, entropy.New(1).Stream())
	require.NoError(t, err)

	assert.Equal(t, 1, g.Nodes())
	assert.Equal(t, 0, g.Edges())
	assert.Empty(t, g.Neighbors(0))
	assert.True(t, g.Connected())
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	_, err := Generate(GenConfig{Nodes: 10, EdgeProb: 0, MaxAttempts: 5}, entropy.New(1).Stream())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphGeneration))

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 5, genErr.Attempts)
	assert.Equal(t, 10, genErr.Nodes)
}

func TestGenerateInvalidParams(t *testing.T) {
	stream := entropy.New(1).Stream()

	cases := []GenConfig{
		{Nodes: 0, EdgeProb: 0.5},
		{Nodes: 5, EdgeProb: -0.1},
		{Nodes: 5, EdgeProb: 1.5},
	}
	for _, c := range cases {
		_, err := Generate(c, stream)
		assert.ErrorIs(t, err, ErrInvalidGraph, "%+v", c)
	}

	_, err := Generate(GenConfig{Nodes: 5, EdgeProb: 0.5}, nil)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestGenerateReproducible(t *testing.T) {
	a, err := Generate(GenConfig{Nodes: 30, EdgeProb: 0.15}, entropy.New(55).Stream())
	require.NoError(t, err)
	b, err := Generate(GenConfig{Nodes: 30, EdgeProb: 0.15}, entropy.New(55).Stream())
	require.NoError(t, err)

	assert.Equal(t, a.Attempts(), b.Attempts())
	assert.Equal(t, a.EdgeList(), b.EdgeList())
}

func TestNeighborsSorted(t *testing.T) {
	g, err := Generate(GenConfig{Nodes: 25, EdgeProb: 0.4}, entropy.New(9).Stream())
	require.NoError(t, err)

	for i := 0; i < g.Nodes(); i++ {
		ns := g.Neighbors(i)
		for j := 1; j < len(ns); j++ {
			assert.Less(t, ns[j-1], ns[j])
		}
		for _, v := range ns {
			assert.True(t, g.HasEdge(i, v))
			assert.Contains(t, g.Neighbors(v), i)
		}
	}
	assert.Nil(t, g.Neighbors(-1))
	assert.Nil(t, g.Neighbors(25))
}

func TestFromEdges(t *testing.T) {
	g, err := FromEdges(4, [][2]int{{0, 1}, {1, 2}, {2, 1}})
	require.NoError(t, err)

	assert.Equal(t, 2, g.Edges())
	assert.Equal(t, []int{0, 2}, g.Neighbors(1))
	assert.Empty(t, g.Neighbors(3))
	assert.Equal(t, 2, g.Components())
	assert.False(t, g.Connected())
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, g.EdgeList())
	assert.Equal(t, 0, g.Attempts())
}

func TestFromEdgesRejectsBadInput(t *testing.T) {
	_, err := FromEdges(0, nil)
	assert.ErrorIs(t, err, ErrInvalidGraph)

	_, err = FromEdges(3, [][2]int{{0, 3}})
	assert.ErrorIs(t, err, ErrInvalidGraph)

	_, err = FromEdges(3, [][2]int{{1, 1}})
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

// TestGeneratedGraphsAreConnected checks the connectivity invariant over
// random sizes, densities and seeds.
func TestGeneratedGraphsAreConnected(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("every generated graph has one component", prop.ForAll(
		func(n int, p float64, seed int64) bool {
			g, err := Generate(GenConfig{Nodes: n, EdgeProb: p}, entropy.New(seed).Stream())
			if err != nil {
				return false
			}
			return g.Connected() && reachableFrom(g, 0) == n
		},
		gen.IntRange(1, 40),
		gen.Float64Range(0.35, 1),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
