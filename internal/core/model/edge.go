package model

import "time"

// DecisionEdge is an undirected pairwise decision between two items.
type DecisionEdge struct {
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	IsMatch    bool      `json:"is_match"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Inference is a decision read back from the graph, direct or composed along a path.
type Inference struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	Hops       int     `json:"hops"`
}
