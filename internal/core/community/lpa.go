package community

import (
	"sort"

	"github.com/agenthands/examina/internal/core/model"
)

// Split is a component that label propagation would break apart. The weak
// edges are the match edges running between its groups.
type Split struct {
	Component []string             `json:"component"`
	Groups    [][]string           `json:"groups"`
	WeakEdges []model.DecisionEdge `json:"weak_edges"`
}

// LabelPropagation runs confidence-weighted LPA inside match components.
type LabelPropagation struct {
	MaxIterations int
}

func NewLabelPropagation() *LabelPropagation {
	return &LabelPropagation{
		MaxIterations: 20,
	}
}

// ReviewSplits reports the components LPA would divide, using the default
// iteration budget.
func (g *Graph) ReviewSplits() []Split {
	return NewLabelPropagation().Review(g)
}

// Review checks every component of three or more items.
func (lp *LabelPropagation) Review(g *Graph) []Split {
	var splits []Split
	for _, component := range g.Components() {
		if len(component) < 3 {
			continue
		}
		groups := lp.propagate(g, component)
		if len(groups) < 2 {
			continue
		}
		splits = append(splits, Split{
			Component: component,
			Groups:    groups,
			WeakEdges: crossEdges(g, groups),
		})
	}
	return splits
}

func (lp *LabelPropagation) propagate(g *Graph, members []string) [][]string {
	// Each node starts with its own label.
	labels := make(map[string]string, len(members))
	for _, id := range members {
		labels[id] = id
	}

	for iter := 0; iter < lp.MaxIterations; iter++ {
		changeCount := 0
		for _, u := range members {
			weights := make(map[string]float64)
			maxWeight := 0.0
			for v, d := range g.adj[u] {
				if !d.isMatch {
					continue
				}
				label := labels[v]
				weights[label] += d.confidence
				if weights[label] > maxWeight {
					maxWeight = weights[label]
				}
			}
			if len(weights) == 0 {
				continue
			}

			var candidates []string
			for label, w := range weights {
				if w >= maxWeight-1e-9 {
					candidates = append(candidates, label)
				}
			}
			// Ties go to the lexicographically largest label.
			sort.Strings(candidates)
			bestLabel := candidates[len(candidates)-1]

			if labels[u] != bestLabel {
				labels[u] = bestLabel
				changeCount++
			}
		}
		if changeCount == 0 {
			break
		}
	}

	byLabel := make(map[string][]string)
	for _, id := range members {
		byLabel[labels[id]] = append(byLabel[labels[id]], id)
	}
	groups := make([][]string, 0, len(byLabel))
	for _, group := range byLabel {
		sort.Strings(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

func crossEdges(g *Graph, groups [][]string) []model.DecisionEdge {
	groupOf := make(map[string]int)
	for i, group := range groups {
		for _, id := range group {
			groupOf[id] = i
		}
	}
	var out []model.DecisionEdge
	for _, group := range groups {
		for _, a := range group {
			for b, d := range g.adj[a] {
				if !d.isMatch || a >= b {
					continue
				}
				if gb, ok := groupOf[b]; ok && gb != groupOf[a] {
					out = append(out, model.DecisionEdge{SourceID: a, TargetID: b, IsMatch: true, Confidence: d.confidence, CreatedAt: d.createdAt})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}
