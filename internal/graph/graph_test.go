package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGraph(t *testing.T) {
	g := New()

	assert.NotNil(t, g)
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestAddEdgeUndirected(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")

	assert.Contains(t, g.Neighbors("a"), "b")
	assert.Contains(t, g.Neighbors("b"), "a")
	assert.Equal(t, 1, g.EdgeCount())
}

func TestAddEdgeDuplicateAndSelf(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.AddEdge("a", "a")

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 2, g.NodeCount())
}

func TestNeighborsUnknownID(t *testing.T) {
	g := New()

	assert.Empty(t, g.Neighbors("missing"))
}

func TestWithinDepthIncludesRoot(t *testing.T) {
	g := New()
	g.AddNode("lonely")

	result := g.WithinDepth("lonely", 3)

	assert.Len(t, result, 1)
	assert.Contains(t, result, "lonely")
}

func TestWithinDepthChain(t *testing.T) {
	// s - p - m chain: depth 1 stops at p, depth 2 reaches m
	g := New()
	g.AddEdge("s", "p")
	g.AddEdge("p", "m")

	depth1 := g.WithinDepth("s", 1)
	assert.Len(t, depth1, 2)
	assert.Contains(t, depth1, "s")
	assert.Contains(t, depth1, "p")

	depth2 := g.WithinDepth("s", 2)
	assert.Len(t, depth2, 3)
	assert.Contains(t, depth2, "m")
}

func TestWithinDepthDefaultsToOneHop(t *testing.T) {
	g := New()
	g.AddEdge("s", "p")
	g.AddEdge("p", "m")

	result := g.WithinDepth("s", 0)

	assert.Len(t, result, 2)
	assert.NotContains(t, result, "m")
}

func TestWithinDepthCycle(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	result := g.WithinDepth("a", 10)

	assert.Len(t, result, 3)
}
