package learner

import (
	"math"
	"math/rand"

	"github.com/agenthands/examina/internal/core/model"
)

// BaselineName identifies the bagged logistic-regression committee.
const BaselineName = "bagged-logistic"

// EnsembleConfig tunes the baseline committee members.
type EnsembleConfig struct {
	Epochs          int
	LearningRate    float64
	L2              float64
	FeatureFraction float64
	ValidationFrac  float64
	Patience        int
}

func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		Epochs:          400,
		LearningRate:    0.5,
		L2:              0.01,
		FeatureFraction: 0.85,
		ValidationFrac:  0.2,
		Patience:        5,
	}
}

type logisticMember struct {
	features []int
	weights  []float64
	bias     float64
}

func (m *logisticMember) predict(x []float64) float64 {
	z := m.bias
	for k, f := range m.features {
		z += m.weights[k] * x[f]
	}
	return Sigmoid(z)
}

func (m *logisticMember) clone() *logisticMember {
	return &logisticMember{
		features: m.features,
		weights:  append([]float64(nil), m.weights...),
		bias:     m.bias,
	}
}

// Ensemble is the always-available committee: N logistic regressions, each
// trained on its own bootstrap sample and random feature subspace.
type Ensemble struct {
	nEstimators int
	seed        int64
	cfg         EnsembleConfig

	members []*logisticMember
	xTrain  [][]float64
	yTrain  []int
}

func NewEnsemble(nEstimators int, seed int64) *Ensemble {
	return NewEnsembleWithConfig(nEstimators, seed, DefaultEnsembleConfig())
}

func NewEnsembleWithConfig(nEstimators int, seed int64, cfg EnsembleConfig) *Ensemble {
	if nEstimators < 1 {
		nEstimators = 1
	}
	return &Ensemble{nEstimators: nEstimators, seed: seed, cfg: cfg}
}

func (e *Ensemble) Name() string       { return BaselineName }
func (e *Ensemble) IsFitted() bool     { return len(e.members) > 0 }
func (e *Ensemble) CommitteeSize() int { return len(e.members) }
func (e *Ensemble) TrainingSize() int  { return len(e.yTrain) }

func (e *Ensemble) Fit(X [][]float64, y []int) error {
	return e.fit(X, y, false)
}

func (e *Ensemble) FitWithEarlyStopping(X [][]float64, y []int) error {
	return e.fit(X, y, true)
}

func (e *Ensemble) fit(X [][]float64, y []int, earlyStopping bool) error {
	if err := Validate(X, y); err != nil {
		return err
	}
	if len(y) == 0 {
		return ErrEmptyTrainingSet
	}
	e.xTrain = Matrix(X)
	e.yTrain = append([]int(nil), y...)

	k := int(math.Ceil(e.cfg.FeatureFraction * model.FeatureCount))
	members := make([]*logisticMember, e.nEstimators)
	for i := range members {
		rng := rand.New(rand.NewSource(e.seed + int64(i)*7919))
		var sample, val []int
		if earlyStopping {
			var train []int
			train, val = SplitValidation(rng, e.yTrain, e.cfg.ValidationFrac)
			sample = resample(rng, train, e.yTrain)
		} else {
			sample = Bootstrap(rng, e.yTrain)
		}
		m := &logisticMember{features: FeatureSubset(rng, model.FeatureCount, k)}
		m.weights = make([]float64, len(m.features))
		members[i] = e.train(m, sample, val)
	}
	e.members = members
	return nil
}

// resample bootstraps within the training side of a validation split.
func resample(rng *rand.Rand, idx []int, y []int) []int {
	sub := make([]int, len(idx))
	for i, j := range idx {
		sub[i] = y[j]
	}
	picks := Bootstrap(rng, sub)
	out := make([]int, len(picks))
	for i, p := range picks {
		out[i] = idx[p]
	}
	return out
}

// train runs full-batch gradient descent with L2. With a validation slice it
// keeps the weights of the epoch with the lowest validation loss and stops
// after Patience checks without improvement.
func (e *Ensemble) train(m *logisticMember, sample, val []int) *logisticMember {
	const checkEvery = 10
	n := float64(len(sample))
	grad := make([]float64, len(m.weights))

	best := m.clone()
	bestLoss := math.Inf(1)
	stale := 0
	probs := make([]float64, len(e.yTrain))

	for epoch := 0; epoch < e.cfg.Epochs; epoch++ {
		for k := range grad {
			grad[k] = 0
		}
		var gradBias float64
		for _, i := range sample {
			diff := m.predict(e.xTrain[i]) - float64(e.yTrain[i])
			for k, f := range m.features {
				grad[k] += diff * e.xTrain[i][f]
			}
			gradBias += diff
		}
		for k := range m.weights {
			m.weights[k] -= e.cfg.LearningRate * (grad[k]/n + e.cfg.L2*m.weights[k])
		}
		m.bias -= e.cfg.LearningRate * gradBias / n

		if len(val) == 0 || epoch%checkEvery != 0 {
			continue
		}
		for _, i := range val {
			probs[i] = m.predict(e.xTrain[i])
		}
		loss := LogLoss(probs, e.yTrain, val)
		if loss < bestLoss-1e-6 {
			bestLoss = loss
			best = m.clone()
			stale = 0
			continue
		}
		stale++
		if stale >= e.cfg.Patience {
			return best
		}
	}
	if len(val) == 0 {
		return m
	}
	for _, i := range val {
		probs[i] = m.predict(e.xTrain[i])
	}
	if LogLoss(probs, e.yTrain, val) < bestLoss {
		return m
	}
	return best
}

func (e *Ensemble) memberProbs(x []float64) []float64 {
	probs := make([]float64, len(e.members))
	for i, m := range e.members {
		probs[i] = m.predict(x)
	}
	return probs
}

func (e *Ensemble) PredictProba(X [][]float64) [][2]float64 {
	if !e.IsFitted() {
		return UnfittedProba(len(X))
	}
	out := make([][2]float64, len(X))
	for i, x := range X {
		p := Mean(e.memberProbs(x))
		out[i] = [2]float64{1 - p, p}
	}
	return out
}

func (e *Ensemble) Uncertainty(X [][]float64) []float64 {
	if !e.IsFitted() {
		return MaxUncertainty(len(X))
	}
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = CommitteeSpread(e.memberProbs(x))
	}
	return out
}

func (e *Ensemble) Teach(X [][]float64, y []int) error {
	if err := Validate(X, y); err != nil {
		return err
	}
	e.xTrain = append(e.xTrain, Matrix(X)...)
	e.yTrain = append(e.yTrain, y...)
	return nil
}
