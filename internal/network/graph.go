// Package network provides the social graph agents interact over: an
// undirected simple graph on nodes 0..N-1, fixed once built.
package network

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph is an immutable undirected graph over node IDs 0..N-1.
// It holds structure only; which agent sits on which node is the
// simulation's concern.
type Graph struct {
	g        *simple.UndirectedGraph
	n        int
	attempts int
	adj      [][]int // sorted neighbor IDs per node
	edges    int
}

func newGraph(ug *simple.UndirectedGraph, n, attempts int) *Graph {
	adj := make([][]int, n)
	degreeSum := 0
	for i := 0; i < n; i++ {
		nodes := graph.NodesOf(ug.From(int64(i)))
		ids := make([]int, 0, len(nodes))
		for _, nd := range nodes {
			ids = append(ids, int(nd.ID()))
		}
		// gonum adjacency is map-backed; sort so neighbor draws are reproducible.
		slices.Sort(ids)
		adj[i] = ids
		degreeSum += len(ids)
	}
	return &Graph{
		g:        ug,
		n:        n,
		attempts: attempts,
		adj:      adj,
		edges:    degreeSum / 2,
	}
}

// FromEdges builds a graph on n nodes with the given undirected edges.
// Duplicate edges collapse into one. Connectivity is not required.
func FromEdges(n int, edges [][2]int) (*Graph, error) {
	if n < 1 {
		return nil, fmt.Errorf("from edges: n=%d: %w", n, ErrInvalidGraph)
	}
	ug := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		ug.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		u, v := e[0], e[1]
		if u < 0 || u >= n || v < 0 || v >= n {
			return nil, fmt.Errorf("from edges: edge %d-%d out of range [0,%d): %w", u, v, n, ErrInvalidGraph)
		}
		if u == v {
			return nil, fmt.Errorf("from edges: self loop on %d: %w", u, ErrInvalidGraph)
		}
		ug.SetEdge(ug.NewEdge(simple.Node(u), simple.Node(v)))
	}
	return newGraph(ug, n, 0), nil
}

// Nodes returns the number of nodes.
func (g *Graph) Nodes() int {
	return g.n
}

// Edges returns the number of undirected edges.
func (g *Graph) Edges() int {
	return g.edges
}

// Attempts returns how many random draws generation needed (0 for FromEdges).
func (g *Graph) Attempts() int {
	return g.attempts
}

// Neighbors returns the sorted neighbor IDs of id. The slice must not be modified.
// Unknown IDs have no neighbors.
func (g *Graph) Neighbors(id int) []int {
	if id < 0 || id >= g.n {
		return nil
	}
	return g.adj[id]
}

// Degree returns the number of neighbors of id.
func (g *Graph) Degree(id int) int {
	return len(g.Neighbors(id))
}

// HasEdge reports whether u and v are adjacent.
func (g *Graph) HasEdge(u, v int) bool {
	return g.g.HasEdgeBetween(int64(u), int64(v))
}

// MeanDegree returns 2|E|/N.
func (g *Graph) MeanDegree() float64 {
	if g.n == 0 {
		return 0
	}
	return 2 * float64(g.edges) / float64(g.n)
}

// Components returns the number of connected components.
func (g *Graph) Components() int {
	return len(topo.ConnectedComponents(g.g))
}

// Connected reports whether every node is reachable from every other.
func (g *Graph) Connected() bool {
	return g.Components() == 1
}

// EdgeList returns every edge once as (low, high), sorted.
func (g *Graph) EdgeList() [][2]int {
	out := make([][2]int, 0, g.edges)
	for u, ns := range g.adj {
		for _, v := range ns {
			if v > u {
				out = append(out, [2]int{u, v})
			}
		}
	}
	return out
}
