package community

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLPA_DisconnectedTriangles(t *testing.T) {
	g := NewGraph(DefaultMinConfidence)
	for _, e := range [][2]string{{"1", "2"}, {"2", "3"}, {"3", "1"}, {"4", "5"}, {"5", "6"}, {"6", "4"}} {
		g.AddEdge(e[0], e[1], true, 0.9)
	}
	assert.Empty(t, g.ReviewSplits())
}

func TestLPA_BridgeNode(t *testing.T) {
	// Two triangles joined by the single edge 3-4.
	g := NewGraph(DefaultMinConfidence)
	for _, e := range [][2]string{{"1", "2"}, {"2", "3"}, {"3", "1"}, {"4", "5"}, {"5", "6"}, {"6", "4"}} {
		g.AddEdge(e[0], e[1], true, 1.0)
	}
	g.AddEdge("3", "4", true, 1.0)

	splits := g.ReviewSplits()
	require.Len(t, splits, 1)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, splits[0].Component)
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}}, splits[0].Groups)
	require.Len(t, splits[0].WeakEdges, 1)
	assert.Equal(t, "3", splits[0].WeakEdges[0].SourceID)
	assert.Equal(t, "4", splits[0].WeakEdges[0].TargetID)
}

func TestLPA_LargeClique(t *testing.T) {
	g := NewGraph(DefaultMinConfidence)
	ids := []string{"1", "2", "3", "4", "5"}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			g.AddEdge(ids[i], ids[j], true, 0.9)
		}
	}
	assert.Empty(t, g.ReviewSplits())
}

func TestLPA_IgnoresNoMatchEdges(t *testing.T) {
	g := NewGraph(DefaultMinConfidence)
	g.AddEdge("1", "2", true, 0.9)
	g.AddEdge("2", "3", true, 0.9)
	g.AddEdge("1", "3", true, 0.9)
	g.AddEdge("3", "4", false, 1.0)
	assert.Empty(t, g.ReviewSplits())
}
