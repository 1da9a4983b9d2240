package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphDriver is the slice of a Bolt connection the edge store needs.
// MemgraphDriver implements it; tests use a hand mock.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	// BuildIndices creates the :KnowledgeItem(id) and :Cluster(id) indexes.
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
