package learner

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallTrainingSet() ([][]float64, []int) {
	X := [][]float64{
		{0.9, 0.6, 0.7, 0.9, 1, 1, 0.85},
		{0.85, 0.5, 0.6, 0.9, 1, 1, 0.8},
		{0.2, 0.1, 0.1, 0.5, 0, 0, 0.2},
		{0.3, 0.0, 0.2, 0.6, 1, 0, 0.3},
	}
	return X, []int{1, 1, 0, 0}
}

// syntheticSet draws matches with high feature values and non-matches with low ones.
func syntheticSet(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		label := i % 2
		base := 0.2
		if label == 1 {
			base = 0.75
		}
		row := make([]float64, 7)
		for k := range row {
			row[k] = math.Min(1, math.Max(0, base+rng.NormFloat64()*0.1))
		}
		row[4] = float64(label)
		X[i], y[i] = row, label
	}
	return X, y
}

func TestEnsembleUnfitted(t *testing.T) {
	e := NewEnsemble(5, 1)
	X := [][]float64{{0.9, 0.6, 0.7, 0.9, 1, 1, 0.85}, {0, 0, 0, 0, 0, 0, 0}}

	assert.False(t, e.IsFitted())
	assert.Equal(t, []float64{1.0, 1.0}, e.Uncertainty(X))
	for _, row := range e.PredictProba(X) {
		assert.Equal(t, [2]float64{0.5, 0.5}, row)
	}
	assert.Empty(t, e.Uncertainty(nil))
}

func TestEnsembleFitAndPredict(t *testing.T) {
	X, y := smallTrainingSet()
	e := NewEnsemble(5, 42)
	require.NoError(t, e.Fit(X, y))

	assert.True(t, e.IsFitted())
	assert.Equal(t, 5, e.CommitteeSize())
	assert.Equal(t, 4, e.TrainingSize())

	proba := e.PredictProba([][]float64{
		{0.88, 0.55, 0.65, 0.88, 1, 1, 0.82},
		{0.25, 0.05, 0.15, 0.55, 0, 0, 0.25},
	})
	assert.Greater(t, proba[0][1], 0.5)
	assert.Less(t, proba[1][1], 0.5)
	for _, row := range proba {
		assert.InDelta(t, 1.0, row[0]+row[1], 1e-12)
	}

	for _, u := range e.Uncertainty(X) {
		assert.True(t, u >= 0 && u <= 1)
	}
}

func TestEnsembleFitWithEarlyStopping(t *testing.T) {
	X, y := syntheticSet(40, 3)
	e := NewEnsemble(3, 7)
	require.NoError(t, e.FitWithEarlyStopping(X, y))

	assert.True(t, e.IsFitted())
	assert.Equal(t, 3, e.CommitteeSize())

	proba := e.PredictProba([][]float64{{0.8, 0.8, 0.8, 0.8, 1, 0.8, 0.8}, {0.1, 0.1, 0.1, 0.1, 0, 0.1, 0.1}})
	assert.Greater(t, proba[0][1], 0.5)
	assert.Less(t, proba[1][1], 0.5)
}

func TestEnsembleEarlyStoppingSmallSet(t *testing.T) {
	X, y := smallTrainingSet()
	e := NewEnsemble(3, 7)
	require.NoError(t, e.FitWithEarlyStopping(X, y))
	assert.Equal(t, 3, e.CommitteeSize())
}

func TestEnsembleFitIsDeterministic(t *testing.T) {
	X, y := syntheticSet(30, 5)
	a, b := NewEnsemble(4, 11), NewEnsemble(4, 11)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.PredictProba(X), b.PredictProba(X))
}

func TestEnsembleRefitResetsCommittee(t *testing.T) {
	X, y := smallTrainingSet()
	e := NewEnsemble(2, 1)
	require.NoError(t, e.Fit(X, y))
	require.NoError(t, e.Teach(X[:1], y[:1]))
	assert.Equal(t, 5, e.TrainingSize())

	require.NoError(t, e.Fit(X, y))
	assert.Equal(t, 4, e.TrainingSize())
	assert.Equal(t, 2, e.CommitteeSize())
}

func TestEnsembleTeach(t *testing.T) {
	X, y := smallTrainingSet()
	e := NewEnsemble(3, 1)
	require.NoError(t, e.Fit(X, y))
	before := e.PredictProba(X)

	require.NoError(t, e.Teach([][]float64{{0.95, 0.7, 0.8, 0.95, 1, 1, 0.9}}, []int{1}))
	assert.Equal(t, 5, e.TrainingSize())
	// Teaching does not retrain.
	assert.Equal(t, before, e.PredictProba(X))

	unfitted := NewEnsemble(3, 1)
	require.NoError(t, unfitted.Teach(X, y))
	assert.Equal(t, 4, unfitted.TrainingSize())
	assert.False(t, unfitted.IsFitted())
}

func TestEnsembleValidation(t *testing.T) {
	e := NewEnsemble(3, 1)
	assert.ErrorIs(t, e.Fit([][]float64{{1, 2, 3}}, []int{1}), ErrShapeMismatch)
	assert.ErrorIs(t, e.Fit([][]float64{{0, 0, 0, 0, 0, 0, 0}}, []int{1, 0}), ErrShapeMismatch)
	assert.ErrorIs(t, e.Fit([][]float64{{0, 0, 0, 0, 0, 0, 0}}, []int{2}), ErrInvalidTrainLabel)
	assert.ErrorIs(t, e.Fit(nil, nil), ErrEmptyTrainingSet)
	assert.ErrorIs(t, e.Teach([][]float64{{1}}, []int{1}), ErrShapeMismatch)
	assert.False(t, e.IsFitted())
}

func TestEnsembleSingleClass(t *testing.T) {
	X, _ := smallTrainingSet()
	e := NewEnsemble(3, 1)
	require.NoError(t, e.Fit(X, []int{1, 1, 1, 1}))
	assert.Greater(t, e.PredictProba(X[:1])[0][1], 0.5)
}

func TestNaNPropagates(t *testing.T) {
	X, y := smallTrainingSet()
	e := NewEnsemble(3, 1)
	require.NoError(t, e.Fit(X, y))

	row := []float64{math.NaN(), 0.5, 0.5, 0.5, 1, 1, 0.5}
	assert.NotPanics(t, func() {
		e.PredictProba([][]float64{row})
		e.Uncertainty([][]float64{row})
	})
}

func TestCommitteeSpread(t *testing.T) {
	assert.Equal(t, 0.0, CommitteeSpread([]float64{0.7, 0.7, 0.7}))
	assert.Equal(t, 0.0, CommitteeSpread([]float64{0.1, 0.1, 0.1, 0.1, 0.1}))
	assert.InDelta(t, 1.0, CommitteeSpread([]float64{0, 1}), 1e-12)
	assert.Equal(t, 0.0, CommitteeSpread([]float64{0.3}))
	u := CommitteeSpread([]float64{0.2, 0.4, 0.9})
	assert.True(t, u > 0 && u < 1)
}

func TestPlatt(t *testing.T) {
	probs := []float64{0.6, 0.65, 0.7, 0.35, 0.4, 0.3}
	y := []int{1, 1, 1, 0, 0, 0}
	p := FitPlatt(probs, y, Identity(len(y)))
	assert.Greater(t, p.A, 1.0, "separable but timid scores get sharpened")
	assert.Greater(t, p.Apply(0.7), 0.7)

	assert.Equal(t, IdentityPlatt, FitPlatt(probs, []int{1, 1, 1, 1, 1, 1}, Identity(6)))
	assert.Equal(t, IdentityPlatt, FitPlatt(probs, y, nil))
	assert.Equal(t, 0.42, IdentityPlatt.Apply(0.42))
}

func TestSplitValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	train, val := SplitValidation(rng, []int{1, 0, 1, 0}, 0.2)
	assert.Len(t, train, 4)
	assert.Empty(t, val)

	y := []int{1, 0, 1, 0, 1, 0, 1, 0, 1, 0}
	train, val = SplitValidation(rng, y, 0.2)
	assert.Len(t, val, 2)
	assert.Len(t, train, 8)
	assert.True(t, hasBothClasses(y, train))
}

func TestFeatureSubset(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sub := FeatureSubset(rng, 7, 5)
	assert.Len(t, sub, 5)
	assert.IsIncreasing(t, sub)
	assert.Equal(t, Identity(7), FeatureSubset(rng, 7, 9))
}
