package learner

import (
	"errors"
	"fmt"

	"github.com/agenthands/examina/internal/core/model"
)

var (
	ErrShapeMismatch     = errors.New("learner: feature matrix and labels have mismatched shapes")
	ErrEmptyTrainingSet  = errors.New("learner: empty training set")
	ErrInvalidTrainLabel = errors.New("learner: labels must be 0 or 1")
)

// CommitteeClassifier is a query-by-committee binary classifier over
// PairFeatures vectors.
//
// Unfitted classifiers never fail: PredictProba returns 0.5/0.5 rows and
// Uncertainty returns 1.0 for every row. Fit rebuilds the committee from
// scratch. Teach only extends the retained training set.
type CommitteeClassifier interface {
	Fit(X [][]float64, y []int) error
	FitWithEarlyStopping(X [][]float64, y []int) error
	PredictProba(X [][]float64) [][2]float64
	Uncertainty(X [][]float64) []float64
	Teach(X [][]float64, y []int) error
	IsFitted() bool
	CommitteeSize() int
	TrainingSize() int
	Name() string
}

// Validate checks that X has one row per label, every row has
// model.FeatureCount columns and every label is 0 or 1.
func Validate(X [][]float64, y []int) error {
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(X), len(y))
	}
	for i, row := range X {
		if len(row) != model.FeatureCount {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), model.FeatureCount)
		}
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("%w: label %d is %d", ErrInvalidTrainLabel, i, label)
		}
	}
	return nil
}

// Matrix copies X so callers can keep mutating their slices.
func Matrix(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// UnfittedProba is the degenerate output of an unfitted classifier.
func UnfittedProba(m int) [][2]float64 {
	out := make([][2]float64, m)
	for i := range out {
		out[i] = [2]float64{0.5, 0.5}
	}
	return out
}

// MaxUncertainty is the uncertainty of an unfitted classifier.
func MaxUncertainty(m int) []float64 {
	out := make([]float64, m)
	for i := range out {
		out[i] = 1.0
	}
	return out
}
