package model

import "time"

// FeatureCount is the length of PairFeatures.ToVector.
const FeatureCount = 7

// PairFeatures summarizes how related two knowledge items are.
type PairFeatures struct {
	EmbeddingSimilarity float64 `json:"embedding_similarity"`
	TokenJaccard        float64 `json:"token_jaccard"`
	TrigramJaccard      float64 `json:"trigram_jaccard"`
	DescLengthRatio     float64 `json:"desc_length_ratio"`
	SameCategory        bool    `json:"same_category"`
	VerbMatch           bool    `json:"verb_match"`
	NameSimilarity      float64 `json:"name_similarity"`
}

// ToVector returns the classifier input. The order is fixed:
// embedding, token jaccard, trigram jaccard, length ratio, category, verb, name.
func (f PairFeatures) ToVector() []float64 {
	return []float64{
		f.EmbeddingSimilarity,
		f.TokenJaccard,
		f.TrigramJaccard,
		f.DescLengthRatio,
		boolToFloat(f.SameCategory),
		boolToFloat(f.VerbMatch),
		f.NameSimilarity,
	}
}

// PairFeaturesFromVector is the inverse of ToVector. It reports false when v
// does not have exactly FeatureCount components.
func PairFeaturesFromVector(v []float64) (PairFeatures, bool) {
	if len(v) != FeatureCount {
		return PairFeatures{}, false
	}
	return PairFeatures{
		EmbeddingSimilarity: v[0],
		TokenJaccard:        v[1],
		TrigramJaccard:      v[2],
		DescLengthRatio:     v[3],
		SameCategory:        v[4] >= 0.5,
		VerbMatch:           v[5] >= 0.5,
		NameSimilarity:      v[6],
	}, true
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// LabeledExample is one accepted training pair.
type LabeledExample struct {
	ID               string       `json:"id"`
	ItemA            string       `json:"item_a,omitempty"`
	ItemB            string       `json:"item_b,omitempty"`
	Features         PairFeatures `json:"features"`
	Label            int          `json:"label"`
	OracleConfidence float64      `json:"oracle_confidence,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// TrainingRecord is the flattened import/export format: {"features": [...7], "label": 0|1}.
type TrainingRecord struct {
	Features []float64 `json:"features"`
	Label    int       `json:"label"`
}
