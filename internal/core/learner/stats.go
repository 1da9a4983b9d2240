package learner

import (
	"math"
	"math/rand"
)

const probEpsilon = 1e-7

func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Logit is the inverse of Sigmoid with p clipped away from 0 and 1.
func Logit(p float64) float64 {
	p = math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
	return math.Log(p / (1 - p))
}

// LogLoss is the mean binary cross-entropy of probs against y over idx.
func LogLoss(probs []float64, y []int, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		p := math.Min(math.Max(probs[i], probEpsilon), 1-probEpsilon)
		if y[i] == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(idx))
}

// Variances below this are rounding noise from identical votes.
const spreadEpsilon = 1e-12

// CommitteeSpread turns member match probabilities into an uncertainty in
// [0, 1]: twice their population standard deviation. A committee in full
// agreement scores 0; an even split between 0 and 1 scores 1.
func CommitteeSpread(probs []float64) float64 {
	if len(probs) < 2 {
		return 0
	}
	var mean float64
	for _, p := range probs {
		mean += p
	}
	mean /= float64(len(probs))
	var variance float64
	for _, p := range probs {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(probs))
	if variance < spreadEpsilon {
		return 0
	}
	u := 2 * math.Sqrt(variance)
	if u > 1 {
		return 1
	}
	return u
}

// Mean of xs; NaN inputs propagate.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Bootstrap draws len(y) indices with replacement. When y holds both classes
// it redraws until the sample does too, and falls back to every index.
func Bootstrap(rng *rand.Rand, y []int) []int {
	n := len(y)
	both := hasBothClasses(y, nil)
	for attempt := 0; attempt < 20; attempt++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		if !both || hasBothClasses(y, idx) {
			return idx
		}
	}
	return Identity(n)
}

// FeatureSubset picks k distinct column indices in ascending order.
func FeatureSubset(rng *rand.Rand, total, k int) []int {
	if k >= total || k <= 0 {
		return Identity(total)
	}
	perm := rng.Perm(total)[:k]
	chosen := make([]bool, total)
	for _, f := range perm {
		chosen[f] = true
	}
	out := make([]int, 0, k)
	for f, ok := range chosen {
		if ok {
			out = append(out, f)
		}
	}
	return out
}

// SplitValidation holds out about frac of the rows for validation. Sets too
// small to spare a row, or whose training side would lose a class, get no
// validation slice.
func SplitValidation(rng *rand.Rand, y []int, frac float64) (train, val []int) {
	n := len(y)
	nVal := int(math.Round(float64(n) * frac))
	if n < 5 || nVal < 1 {
		return Identity(n), nil
	}
	for attempt := 0; attempt < 20; attempt++ {
		perm := rng.Perm(n)
		val, train = perm[:nVal], perm[nVal:]
		if !hasBothClasses(y, nil) || hasBothClasses(y, train) {
			return train, val
		}
	}
	return Identity(n), nil
}

func Identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func hasBothClasses(y []int, idx []int) bool {
	var pos, neg bool
	visit := func(label int) {
		if label == 1 {
			pos = true
		} else {
			neg = true
		}
	}
	if idx == nil {
		for _, label := range y {
			visit(label)
		}
	} else {
		for _, i := range idx {
			visit(y[i])
		}
	}
	return pos && neg
}
