// Package boost provides a committee of gradient-boosted decision stumps.
// Importing it registers the backend with the learner factory.
package boost

import (
	"math"
	"math/rand"
	"sort"

	"github.com/agenthands/examina/internal/core/learner"
	"github.com/agenthands/examina/internal/core/model"
)

func init() {
	learner.Register(learner.BoostedName, func(nEstimators int, seed int64) learner.CommitteeClassifier {
		return New(nEstimators, seed, DefaultConfig())
	})
}

type Config struct {
	Rounds          int
	LearningRate    float64
	Lambda          float64
	RowSubsample    float64
	FeatureFraction float64
	ValidationFrac  float64
	Patience        int
	Calibrate       bool
}

func DefaultConfig() Config {
	return Config{
		Rounds:          120,
		LearningRate:    0.3,
		Lambda:          1.0,
		RowSubsample:    0.8,
		FeatureFraction: 0.7,
		ValidationFrac:  0.2,
		Patience:        10,
		Calibrate:       true,
	}
}

type stump struct {
	feature     int
	threshold   float64
	left, right float64
}

func (s stump) score(x []float64) float64 {
	if x[s.feature] <= s.threshold {
		return s.left
	}
	return s.right
}

type gbm struct {
	base   float64
	stumps []stump
	rate   float64
	platt  learner.Platt
}

func (g *gbm) raw(x []float64) float64 {
	z := g.base
	for _, s := range g.stumps {
		z += g.rate * s.score(x)
	}
	return learner.Sigmoid(z)
}

func (g *gbm) predict(x []float64) float64 {
	return g.platt.Apply(g.raw(x))
}

// Committee is a set of independently seeded boosted models.
type Committee struct {
	nEstimators int
	seed        int64
	cfg         Config

	members []*gbm
	xTrain  [][]float64
	yTrain  []int
}

func New(nEstimators int, seed int64, cfg Config) *Committee {
	if nEstimators < 1 {
		nEstimators = 1
	}
	return &Committee{nEstimators: nEstimators, seed: seed, cfg: cfg}
}

func (c *Committee) Name() string       { return learner.BoostedName }
func (c *Committee) IsFitted() bool     { return len(c.members) > 0 }
func (c *Committee) CommitteeSize() int { return len(c.members) }
func (c *Committee) TrainingSize() int  { return len(c.yTrain) }

func (c *Committee) Fit(X [][]float64, y []int) error {
	return c.fit(X, y, false)
}

// FitWithEarlyStopping holds out a validation slice per member, stops adding
// stumps once validation loss stalls for Patience rounds and, when enabled,
// Platt-calibrates each member on that slice.
func (c *Committee) FitWithEarlyStopping(X [][]float64, y []int) error {
	return c.fit(X, y, true)
}

func (c *Committee) fit(X [][]float64, y []int, earlyStopping bool) error {
	if err := learner.Validate(X, y); err != nil {
		return err
	}
	if len(y) == 0 {
		return learner.ErrEmptyTrainingSet
	}
	c.xTrain = learner.Matrix(X)
	c.yTrain = append([]int(nil), y...)

	members := make([]*gbm, c.nEstimators)
	for i := range members {
		rng := rand.New(rand.NewSource(c.seed + int64(i)*104729))
		train, val := learner.Identity(len(y)), []int(nil)
		if earlyStopping {
			train, val = learner.SplitValidation(rng, c.yTrain, c.cfg.ValidationFrac)
		}
		m := c.boost(rng, train, val)
		if earlyStopping && c.cfg.Calibrate {
			probs := make([]float64, len(c.yTrain))
			for _, j := range val {
				probs[j] = m.raw(c.xTrain[j])
			}
			m.platt = learner.FitPlatt(probs, c.yTrain, val)
		}
		members[i] = m
	}
	c.members = members
	return nil
}

func (c *Committee) boost(rng *rand.Rand, train, val []int) *gbm {
	var pos float64
	for _, i := range train {
		pos += float64(c.yTrain[i])
	}
	// Laplace-smoothed prior log-odds.
	base := math.Log((pos + 1) / (float64(len(train)) - pos + 1))
	m := &gbm{base: base, rate: c.cfg.LearningRate, platt: learner.IdentityPlatt}

	n := len(c.yTrain)
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = base
	}
	k := int(math.Ceil(c.cfg.FeatureFraction * model.FeatureCount))
	probs := make([]float64, n)

	bestLoss, bestRounds, stale := math.Inf(1), 0, 0
	for round := 0; round < c.cfg.Rounds; round++ {
		rows := subsample(rng, train, c.cfg.RowSubsample)
		s := c.fitStump(rows, scores, learner.FeatureSubset(rng, model.FeatureCount, k))
		m.stumps = append(m.stumps, s)
		for i := 0; i < n; i++ {
			scores[i] += m.rate * s.score(c.xTrain[i])
		}

		if len(val) == 0 {
			continue
		}
		for _, i := range val {
			probs[i] = learner.Sigmoid(scores[i])
		}
		loss := learner.LogLoss(probs, c.yTrain, val)
		if loss < bestLoss-1e-6 {
			bestLoss, bestRounds, stale = loss, len(m.stumps), 0
			continue
		}
		stale++
		if stale >= c.cfg.Patience {
			break
		}
	}
	if len(val) > 0 && bestRounds > 0 {
		m.stumps = m.stumps[:bestRounds]
	}
	return m
}

func subsample(rng *rand.Rand, idx []int, frac float64) []int {
	k := int(math.Ceil(frac * float64(len(idx))))
	if k >= len(idx) || k < 2 {
		return idx
	}
	out := make([]int, k)
	for i, p := range rng.Perm(len(idx))[:k] {
		out[i] = idx[p]
	}
	return out
}

// fitStump picks the single split with the largest second-order gain of the
// log-loss. Leaf values are Newton steps G/(H+lambda).
func (c *Committee) fitStump(rows []int, scores []float64, features []int) stump {
	grad := make(map[int]float64, len(rows))
	hess := make(map[int]float64, len(rows))
	var gTotal, hTotal float64
	for _, i := range rows {
		p := learner.Sigmoid(scores[i])
		grad[i] = float64(c.yTrain[i]) - p
		hess[i] = math.Max(p*(1-p), 1e-6)
		gTotal += grad[i]
		hTotal += hess[i]
	}
	lambda := c.cfg.Lambda
	leaf := func(g, h float64) float64 { return g / (h + lambda) }

	best := stump{feature: features[0], threshold: math.Inf(1), left: leaf(gTotal, hTotal), right: leaf(gTotal, hTotal)}
	bestGain := gTotal * gTotal / (hTotal + lambda)

	sorted := append([]int(nil), rows...)
	for _, f := range features {
		sort.Slice(sorted, func(a, b int) bool {
			return c.xTrain[sorted[a]][f] < c.xTrain[sorted[b]][f]
		})
		var gLeft, hLeft float64
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			gLeft += grad[i]
			hLeft += hess[i]
			v, next := c.xTrain[i][f], c.xTrain[sorted[pos+1]][f]
			if v == next {
				continue
			}
			gRight, hRight := gTotal-gLeft, hTotal-hLeft
			gain := gLeft*gLeft/(hLeft+lambda) + gRight*gRight/(hRight+lambda)
			if gain > bestGain+1e-12 {
				bestGain = gain
				best = stump{
					feature:   f,
					threshold: (v + next) / 2,
					left:      leaf(gLeft, hLeft),
					right:     leaf(gRight, hRight),
				}
			}
		}
	}
	return best
}

func (c *Committee) memberProbs(x []float64) []float64 {
	probs := make([]float64, len(c.members))
	for i, m := range c.members {
		probs[i] = m.predict(x)
	}
	return probs
}

func (c *Committee) PredictProba(X [][]float64) [][2]float64 {
	if !c.IsFitted() {
		return learner.UnfittedProba(len(X))
	}
	out := make([][2]float64, len(X))
	for i, x := range X {
		p := learner.Mean(c.memberProbs(x))
		out[i] = [2]float64{1 - p, p}
	}
	return out
}

func (c *Committee) Uncertainty(X [][]float64) []float64 {
	if !c.IsFitted() {
		return learner.MaxUncertainty(len(X))
	}
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = learner.CommitteeSpread(c.memberProbs(x))
	}
	return out
}

func (c *Committee) Teach(X [][]float64, y []int) error {
	if err := learner.Validate(X, y); err != nil {
		return err
	}
	c.xTrain = append(c.xTrain, learner.Matrix(X)...)
	c.yTrain = append(c.yTrain, y...)
	return nil
}
