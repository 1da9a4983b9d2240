package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/examina/internal/core/model"
)

// EdgeStore keeps the decision graph and named clusters in Memgraph.
type EdgeStore struct {
	Driver GraphDriver
}

func NewEdgeStore(driver GraphDriver) *EdgeStore {
	return &EdgeStore{Driver: driver}
}

func (s *EdgeStore) SaveItems(ctx context.Context, items []model.KnowledgeItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, len(items))
	for i, it := range items {
		rows[i] = map[string]interface{}{
			"id":          it.Key(),
			"name":        it.Name,
			"description": it.Description,
			"category":    it.Category,
		}
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveItemsQuery, map[string]interface{}{"items": rows}); err != nil {
		return fmt.Errorf("failed to save items: %w", err)
	}
	return nil
}

// SaveEdges writes each edge once, directed from the smaller id.
func (s *EdgeStore) SaveEdges(ctx context.Context, edges []model.DecisionEdge) error {
	rows := make([]map[string]interface{}, 0, len(edges))
	for _, e := range edges {
		src, dst := e.SourceID, e.TargetID
		if src == dst {
			continue
		}
		if src > dst {
			src, dst = dst, src
		}
		rows = append(rows, map[string]interface{}{
			"source_id":  src,
			"target_id":  dst,
			"is_match":   e.IsMatch,
			"confidence": e.Confidence,
			"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveDecisionEdgesQuery, map[string]interface{}{"edges": rows}); err != nil {
		return fmt.Errorf("failed to save decision edges: %w", err)
	}
	return nil
}

func (s *EdgeStore) LoadEdges(ctx context.Context) ([]model.DecisionEdge, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GetDecisionEdgesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load decision edges: %w", err)
	}

	edges := make([]model.DecisionEdge, 0, len(res.Records))
	for _, rec := range res.Records {
		src, _ := rec.Get("source_id")
		dst, _ := rec.Get("target_id")
		isMatch, _ := rec.Get("is_match")
		confidence, _ := rec.Get("confidence")
		createdAt, _ := rec.Get("created_at")

		e := model.DecisionEdge{
			SourceID:   asString(src),
			TargetID:   asString(dst),
			CreatedAt:  asTime(createdAt),
			Confidence: asFloat(confidence),
		}
		e.IsMatch, _ = isMatch.(bool)
		if e.SourceID == "" || e.TargetID == "" {
			continue
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// SaveCluster replaces the membership of one cluster.
func (s *EdgeStore) SaveCluster(ctx context.Context, c model.Cluster) error {
	params := map[string]interface{}{
		"id":             c.ID,
		"canonical_name": c.CanonicalName,
		"members":        c.Members,
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveClusterQuery, params); err != nil {
		return fmt.Errorf("failed to save cluster %s: %w", c.ID, err)
	}
	return nil
}

func (s *EdgeStore) LoadClusters(ctx context.Context) ([]model.Cluster, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GetClustersQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load clusters: %w", err)
	}

	clusters := make([]model.Cluster, 0, len(res.Records))
	for _, rec := range res.Records {
		id, _ := rec.Get("id")
		name, _ := rec.Get("canonical_name")
		members, _ := rec.Get("members")

		c := model.Cluster{ID: asString(id), CanonicalName: asString(name)}
		if list, ok := members.([]interface{}); ok {
			for _, m := range list {
				c.Members = append(c.Members, asString(m))
			}
		}
		clusters = append(clusters, c)
	}
	return clusters, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return 0
}

func asTime(v interface{}) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t
		}
	}
	return time.Time{}
}
