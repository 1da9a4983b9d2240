package model

// MergeReason explains a SimilarityResult. It fully determines ShouldMerge.
type MergeReason string

const (
	ReasonTranslation           MergeReason = "translation"
	ReasonSemanticallyDifferent MergeReason = "semantically_different"
	ReasonAboveThreshold        MergeReason = "above_threshold"
	ReasonBelowThreshold        MergeReason = "below_threshold"
)

// Merges reports whether the reason implies a merge.
func (r MergeReason) Merges() bool {
	return r == ReasonTranslation || r == ReasonAboveThreshold
}

type SimilarityResult struct {
	ShouldMerge     bool        `json:"should_merge"`
	SimilarityScore float64     `json:"similarity_score"`
	Reason          MergeReason `json:"reason"`
}

// ScoredCandidate is a find-similar hit.
type ScoredCandidate struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// OracleVerdict matches the JSON an LLM oracle is asked to return.
type OracleVerdict struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// OppositeVerdict is the LLM answer to "are these distinct, non-mergeable concepts?".
type OppositeVerdict struct {
	AreOpposites bool   `json:"are_opposites"`
	Reason       string `json:"reason,omitempty"`
}
