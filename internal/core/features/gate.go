package features

import (
	"math"

	"github.com/agenthands/examina/internal/core/model"
)

// GateConfig holds the QualityGate cutoffs.
type GateConfig struct {
	UncertainLow        float64
	UncertainHigh       float64
	SuspiciousEmbedding float64
	SuspiciousName      float64
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		UncertainLow:        0.4,
		UncertainHigh:       0.6,
		SuspiciousEmbedding: 0.3,
		SuspiciousName:      0.3,
	}
}

// Gate decides whether an oracle-labeled pair is trustworthy enough to train on.
type Gate struct {
	cfg GateConfig
}

func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

func (g *Gate) Config() GateConfig { return g.cfg }

// ShouldAddToTraining is pure: it rejects oracle confidences inside the
// uncertain band and confident matches that no feature supports.
// oracleConfidence is the oracle's P(match).
func (g *Gate) ShouldAddToTraining(f model.PairFeatures, oracleConfidence float64) bool {
	if math.IsNaN(oracleConfidence) {
		return false
	}
	if oracleConfidence >= g.cfg.UncertainLow && oracleConfidence <= g.cfg.UncertainHigh {
		return false
	}
	if oracleConfidence > g.cfg.UncertainHigh &&
		f.EmbeddingSimilarity < g.cfg.SuspiciousEmbedding &&
		f.NameSimilarity < g.cfg.SuspiciousName {
		return false
	}
	return true
}

// ShouldAddToTraining applies the default gate.
func ShouldAddToTraining(f model.PairFeatures, oracleConfidence float64) bool {
	return NewGate(DefaultGateConfig()).ShouldAddToTraining(f, oracleConfidence)
}

// MatchProbability converts a verdict and the oracle's confidence in it into
// P(match), the quantity the gate reasons about.
func MatchProbability(isMatch bool, confidence float64) float64 {
	if isMatch {
		return confidence
	}
	return 1 - confidence
}
