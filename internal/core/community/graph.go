package community

import (
	"container/heap"
	"math"
	"sort"
	"time"

	"github.com/agenthands/examina/internal/core/model"
)

// DefaultMinConfidence is the chain floor used when none is configured.
const DefaultMinConfidence = 0.75

type decision struct {
	isMatch    bool
	confidence float64
	createdAt  time.Time
}

// Graph is the undirected decision graph over item ids. It holds at most one
// edge per unordered pair; a later AddEdge overwrites an earlier one.
//
// Graph is not safe for concurrent use.
type Graph struct {
	minConfidence float64
	adj           map[string]map[string]decision
	now           func() time.Time
}

// NewGraph builds an empty graph. Match edges below minConfidence never extend
// an inferred chain, though they are still returned when queried directly.
func NewGraph(minConfidence float64) *Graph {
	if math.IsNaN(minConfidence) || minConfidence < 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Graph{
		minConfidence: minConfidence,
		adj:           make(map[string]map[string]decision),
		now:           time.Now,
	}
}

func (g *Graph) MinConfidence() float64 { return g.minConfidence }

// AddNode registers an item so that it shows up in Components even without edges.
func (g *Graph) AddNode(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[string]decision)
	}
}

// AddEdge inserts or overwrites the edge between a and b. Self-loops are
// ignored and confidence is clamped to [0, 1].
func (g *Graph) AddEdge(a, b string, isMatch bool, confidence float64) {
	if a == b {
		return
	}
	if math.IsNaN(confidence) {
		confidence = 0
	}
	confidence = math.Min(math.Max(confidence, 0), 1)

	g.AddNode(a)
	g.AddNode(b)
	d := decision{isMatch: isMatch, confidence: confidence, createdAt: g.now()}
	g.adj[a][b] = d
	g.adj[b][a] = d
}

// Edge returns the direct decision between a and b.
func (g *Graph) Edge(a, b string) (model.DecisionEdge, bool) {
	d, ok := g.adj[a][b]
	if !ok {
		return model.DecisionEdge{}, false
	}
	return model.DecisionEdge{SourceID: a, TargetID: b, IsMatch: d.isMatch, Confidence: d.confidence, CreatedAt: d.createdAt}, true
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.adj[id]
	return ok
}

func (g *Graph) NodeCount() int { return len(g.adj) }

func (g *Graph) EdgeCount() int {
	n := 0
	for _, nbrs := range g.adj {
		n += len(nbrs)
	}
	return n / 2
}

// Infer uses the graph's own floor as the result threshold.
func (g *Graph) Infer(a, b string) (model.Inference, bool) {
	return g.InferWithMin(a, b, g.minConfidence)
}

// InferWithMin returns the direct edge between a and b verbatim. Otherwise it
// searches for the match chain with the highest product of confidences,
// using only match edges at or above the graph floor, and reports it when
// the product reaches minConfidence.
func (g *Graph) InferWithMin(a, b string, minConfidence float64) (model.Inference, bool) {
	if !g.HasNode(a) || !g.HasNode(b) {
		return model.Inference{}, false
	}
	if a == b {
		return model.Inference{IsMatch: true, Confidence: 1}, true
	}
	if d, ok := g.adj[a][b]; ok {
		return model.Inference{IsMatch: d.isMatch, Confidence: d.confidence, Hops: 1}, true
	}

	conf, hops, ok := g.bestChain(a, b, minConfidence)
	if !ok {
		return model.Inference{}, false
	}
	return model.Inference{IsMatch: true, Confidence: conf, Hops: hops}, true
}

// bestChain is Dijkstra over -log(confidence). Products only shrink along a
// path, so anything already below minConfidence is pruned.
func (g *Graph) bestChain(src, dst string, minConfidence float64) (float64, int, bool) {
	best := map[string]float64{src: 1}
	pq := &chainQueue{{id: src, conf: 1}}
	done := make(map[string]bool)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(chainItem)
		if done[cur.id] {
			continue
		}
		done[cur.id] = true
		if cur.id == dst {
			return cur.conf, cur.hops, cur.conf >= minConfidence
		}
		for next, d := range g.adj[cur.id] {
			if !d.isMatch || d.confidence < g.minConfidence || done[next] {
				continue
			}
			conf := cur.conf * d.confidence
			if conf < minConfidence {
				continue
			}
			if prev, seen := best[next]; seen && prev >= conf {
				continue
			}
			best[next] = conf
			heap.Push(pq, chainItem{id: next, conf: conf, hops: cur.hops + 1})
		}
	}
	return 0, 0, false
}

type chainItem struct {
	id   string
	conf float64
	hops int
}

type chainQueue []chainItem

func (q chainQueue) Len() int { return len(q) }
func (q chainQueue) Less(i, j int) bool {
	if q[i].conf != q[j].conf {
		return q[i].conf > q[j].conf
	}
	return q[i].hops < q[j].hops
}
func (q chainQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *chainQueue) Push(x any)   { *q = append(*q, x.(chainItem)) }
func (q *chainQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// Edges lists every edge once, ordered by (source, target) with source < target.
func (g *Graph) Edges() []model.DecisionEdge {
	var out []model.DecisionEdge
	for a, nbrs := range g.adj {
		for b, d := range nbrs {
			if a < b {
				out = append(out, model.DecisionEdge{SourceID: a, TargetID: b, IsMatch: d.isMatch, Confidence: d.confidence, CreatedAt: d.createdAt})
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

// LoadEdges replays persisted edges in order.
func (g *Graph) LoadEdges(edges []model.DecisionEdge) {
	for _, e := range edges {
		g.AddEdge(e.SourceID, e.TargetID, e.IsMatch, e.Confidence)
		if !e.CreatedAt.IsZero() && e.SourceID != e.TargetID {
			d := g.adj[e.SourceID][e.TargetID]
			d.createdAt = e.CreatedAt
			g.adj[e.SourceID][e.TargetID] = d
			g.adj[e.TargetID][e.SourceID] = d
		}
	}
}
