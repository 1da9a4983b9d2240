package community

import (
	"context"
	"fmt"

	"github.com/agenthands/examina/internal/core/model"
)

// EdgeStore persists the decision graph as an edge list.
type EdgeStore interface {
	SaveEdges(ctx context.Context, edges []model.DecisionEdge) error
	LoadEdges(ctx context.Context) ([]model.DecisionEdge, error)
}

// Persist writes every edge to store.
func (g *Graph) Persist(ctx context.Context, store EdgeStore) error {
	if err := store.SaveEdges(ctx, g.Edges()); err != nil {
		return fmt.Errorf("failed to save decision edges: %w", err)
	}
	return nil
}

// Restore loads the stored edges on top of the current graph.
func (g *Graph) Restore(ctx context.Context, store EdgeStore) error {
	edges, err := store.LoadEdges(ctx)
	if err != nil {
		return fmt.Errorf("failed to load decision edges: %w", err)
	}
	g.LoadEdges(edges)
	return nil
}
