package learner

// Platt rescales raw probabilities as sigmoid(A*logit(p) + B).
type Platt struct {
	A, B float64
}

// IdentityPlatt leaves probabilities unchanged.
var IdentityPlatt = Platt{A: 1}

// FitPlatt fits A and B by gradient descent on log-loss over the held-out
// rows idx. It returns IdentityPlatt when idx lacks one of the classes.
func FitPlatt(probs []float64, y []int, idx []int) Platt {
	if len(idx) == 0 || !hasBothClasses(y, idx) {
		return IdentityPlatt
	}
	const (
		iterations = 300
		rate       = 0.1
	)

	// Smoothed targets keep A finite on separable validation slices.
	var pos, neg float64
	for _, i := range idx {
		if y[i] == 1 {
			pos++
		} else {
			neg++
		}
	}
	hi, lo := (pos+1)/(pos+2), 1/(neg+2)

	p := IdentityPlatt
	for it := 0; it < iterations; it++ {
		var ga, gb float64
		for _, i := range idx {
			s := Logit(probs[i])
			target := lo
			if y[i] == 1 {
				target = hi
			}
			diff := Sigmoid(p.A*s+p.B) - target
			ga += diff * s
			gb += diff
		}
		n := float64(len(idx))
		p.A -= rate * ga / n
		p.B -= rate * gb / n
	}
	if p.A <= 0 {
		return IdentityPlatt
	}
	return p
}

func (p Platt) Apply(prob float64) float64 {
	if p == IdentityPlatt {
		return prob
	}
	return Sigmoid(p.A*Logit(prob) + p.B)
}
