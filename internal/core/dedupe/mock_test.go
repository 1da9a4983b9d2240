package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agenthands/examina/internal/core/model"
)

// countingOracle returns Verdict (or Err) and tracks peak concurrency.
type countingOracle struct {
	Verdict model.OracleVerdict
	Err     error
	Delay   time.Duration

	mu       sync.Mutex
	calls    int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (o *countingOracle) Judge(ctx context.Context, a, b model.KnowledgeItem) (model.OracleVerdict, error) {
	n := o.inFlight.Add(1)
	defer o.inFlight.Add(-1)
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if o.Delay > 0 {
		time.Sleep(o.Delay)
	}
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if o.Err != nil {
		return model.OracleVerdict{}, o.Err
	}
	return o.Verdict, nil
}

func (o *countingOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// stubLearner is a fitted committee with a fixed opinion.
type stubLearner struct {
	proba       float64
	uncertainty float64
}

func (s *stubLearner) Fit(X [][]float64, y []int) error                  { return nil }
func (s *stubLearner) FitWithEarlyStopping(X [][]float64, y []int) error { return nil }
func (s *stubLearner) Teach(X [][]float64, y []int) error                { return nil }
func (s *stubLearner) IsFitted() bool                                    { return true }
func (s *stubLearner) CommitteeSize() int                                { return 1 }
func (s *stubLearner) TrainingSize() int                                 { return 0 }
func (s *stubLearner) Name() string                                      { return "stub" }

func (s *stubLearner) PredictProba(X [][]float64) [][2]float64 {
	out := make([][2]float64, len(X))
	for i := range out {
		out[i] = [2]float64{1 - s.proba, s.proba}
	}
	return out
}

func (s *stubLearner) Uncertainty(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = s.uncertainty
	}
	return out
}
