//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core"
	"github.com/agenthands/examina/internal/core/community"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/driver"
)

func connect(t *testing.T) (*driver.MemgraphDriver, string) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	uri := os.Getenv("MEMGRAPH_URI")
	if uri == "" {
		t.Skip("Skipping integration test: MEMGRAPH_URI not set")
	}

	ctx := context.Background()
	d, err := driver.NewMemgraphDriver(ctx, uri, os.Getenv("MEMGRAPH_USER"), os.Getenv("MEMGRAPH_PASSWORD"), nil)
	require.NoError(t, err)
	require.NoError(t, d.BuildIndices(ctx))

	prefix := "it-" + uuid.NewString() + "-"
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = d.ExecuteQuery(ctx, `MATCH (n:KnowledgeItem) WHERE n.id STARTS WITH $prefix DETACH DELETE n`, map[string]interface{}{"prefix": prefix})
		_, _ = d.ExecuteQuery(ctx, `MATCH (c:Cluster) WHERE NOT (c)-[:HAS_MEMBER]->() DETACH DELETE c`, nil)
		d.Close(ctx)
	})
	return d, prefix
}

func ownEdges(edges []model.DecisionEdge, prefix string) []model.DecisionEdge {
	var out []model.DecisionEdge
	for _, e := range edges {
		if len(e.SourceID) > len(prefix) && e.SourceID[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out
}

func TestEdgeStoreRoundTrip(t *testing.T) {
	d, prefix := connect(t)
	ctx := context.Background()
	store := driver.NewEdgeStore(d)

	g := community.NewGraph(community.DefaultMinConfidence)
	g.AddEdge(prefix+"a", prefix+"b", true, 0.9)
	g.AddEdge(prefix+"b", prefix+"c", true, 0.95)
	g.AddEdge(prefix+"c", prefix+"d", false, 1.0)
	require.NoError(t, g.Persist(ctx, store))

	// Overwrite one decision; the edge count must not grow.
	g.AddEdge(prefix+"c", prefix+"d", true, 0.8)
	require.NoError(t, g.Persist(ctx, store))

	edges, err := store.LoadEdges(ctx)
	require.NoError(t, err)
	mine := ownEdges(edges, prefix)
	require.Len(t, mine, 3)

	restored := community.NewGraph(community.DefaultMinConfidence)
	restored.LoadEdges(mine)
	inf, ok := restored.Infer(prefix+"a", prefix+"c")
	require.True(t, ok)
	assert.InDelta(t, 0.855, inf.Confidence, 1e-9)

	e, ok := restored.Edge(prefix+"c", prefix+"d")
	require.True(t, ok)
	assert.True(t, e.IsMatch)
	assert.WithinDuration(t, time.Now(), e.CreatedAt, time.Minute)
}

func TestEngineWithMemgraph(t *testing.T) {
	d, prefix := connect(t)
	ctx := context.Background()

	cfg := config.Default()
	cfg.ApplyEnv()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "examina.db")

	e, err := core.Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer e.Close(ctx)

	items := []model.KnowledgeItem{
		{ID: prefix + "1", Name: "Moore Machine", Category: "automata"},
		{ID: prefix + "2", Name: "Macchina di Moore", Category: "automata"},
		{ID: prefix + "3", Name: "Mealy Machine", Category: "automata"},
	}
	report, err := e.Dedupe(ctx, items)
	require.NoError(t, err)
	require.Len(t, report.Clusters, 1)

	clusters, err := driver.NewEdgeStore(d).LoadClusters(ctx)
	require.NoError(t, err)
	var found bool
	for _, c := range clusters {
		if c.ID == report.Clusters[0].ID {
			found = true
			assert.Equal(t, []string{prefix + "1", prefix + "2"}, c.Members)
		}
	}
	assert.True(t, found)

	reopened, err := core.Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer reopened.Close(ctx)
	assert.Equal(t, []string{prefix + "1", prefix + "2"}, reopened.Component(prefix+"1"))
}
