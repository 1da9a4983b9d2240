package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core/classifier"
	"github.com/agenthands/examina/internal/core/community"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/core/similarity"
	"github.com/agenthands/examina/internal/llm"
)

func newTestDeduplicator(cfg Config, clfOpts []classifier.Option, opts ...Option) (*Deduplicator, *classifier.ActiveClassifier, *community.Graph) {
	judge := similarity.NewJudge(similarity.DefaultVocabulary())
	clf := classifier.New(classifier.DefaultConfig(), clfOpts...)
	graph := community.NewGraph(community.DefaultMinConfidence)
	return NewDeduplicator(judge, clf, graph, cfg, opts...), clf, graph
}

func item(id, name string, emb ...float32) model.KnowledgeItem {
	return model.KnowledgeItem{ID: id, Name: name, Category: "math", Embedding: emb}
}

func TestRunJudgeOnly(t *testing.T) {
	d, _, _ := newTestDeduplicator(DefaultConfig(), nil)
	items := []model.KnowledgeItem{
		item("1", "Moore Machine"),
		item("2", "Macchina di Moore"),
		item("3", "Mealy Machine"),
		item("4", "Macchina di Mealy"),
	}

	report, err := d.Run(context.Background(), items)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.Items)
	assert.Equal(t, 6, report.Pairs)
	assert.Zero(t, report.OracleCalls)
	require.Len(t, report.Clusters, 2)
	assert.Equal(t, []string{"1", "2"}, report.Clusters[0].Members)
	assert.Equal(t, "Moore Machine", report.Clusters[0].CanonicalName)
	assert.Equal(t, []string{"3", "4"}, report.Clusters[1].Members)
	assert.Equal(t, "Mealy Machine", report.Clusters[1].CanonicalName)

	var translations, opposites int
	for _, dec := range report.Decisions {
		assert.Equal(t, SourceJudge, dec.Source)
		switch dec.Reason {
		case model.ReasonTranslation:
			translations++
			assert.True(t, dec.IsMatch)
			assert.GreaterOrEqual(t, dec.Confidence, similarity.TranslationFloor)
		case model.ReasonSemanticallyDifferent:
			opposites++
			assert.False(t, dec.IsMatch)
		}
	}
	assert.Equal(t, 2, translations)
	assert.Positive(t, opposites)
}

func TestRunSendsUncertainPairsToOracle(t *testing.T) {
	oracle := &countingOracle{Verdict: model.OracleVerdict{IsMatch: true, Confidence: 0.95}}
	d, clf, graph := newTestDeduplicator(DefaultConfig(), nil, WithOracle(oracle))
	items := []model.KnowledgeItem{
		item("ge", "Gaussian Elimination", 1, 0),
		item("rr", "Row Reduction", 0.9, 0.1),
		item("bp", "Bode Plot", 0, 1),
	}

	report, err := d.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 1, oracle.Calls())
	assert.Equal(t, 1, report.OracleCalls)
	assert.Equal(t, 2, report.SkippedPairs)
	assert.Equal(t, 1, report.Accepted)
	assert.False(t, report.Retrained)
	assert.Equal(t, 1, clf.Stats().TrainingSamples)

	e, ok := graph.Edge("ge", "rr")
	require.True(t, ok)
	assert.True(t, e.IsMatch)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, []string{"ge", "rr"}, report.Clusters[0].Members)
	assert.Equal(t, "Row Reduction", report.Clusters[0].CanonicalName)
}

func TestRunOracleFailureIsCounted(t *testing.T) {
	oracle := &countingOracle{Err: errors.New("rate limited")}
	d, clf, graph := newTestDeduplicator(DefaultConfig(), nil, WithOracle(oracle))

	report, err := d.Run(context.Background(), []model.KnowledgeItem{
		item("ge", "Gaussian Elimination", 1, 0),
		item("rr", "Row Reduction", 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.OracleFailures)
	assert.Empty(t, report.Clusters)
	assert.Zero(t, clf.Stats().TrainingSamples)
	_, ok := graph.Edge("ge", "rr")
	assert.False(t, ok)
}

func TestRunRejectedVerdictStillAddsEdge(t *testing.T) {
	// 0.5 confidence lands in the uncertain band.
	oracle := &countingOracle{Verdict: model.OracleVerdict{IsMatch: true, Confidence: 0.5}}
	d, clf, graph := newTestDeduplicator(DefaultConfig(), nil, WithOracle(oracle))

	report, err := d.Run(context.Background(), []model.KnowledgeItem{
		item("ge", "Gaussian Elimination", 1, 0),
		item("rr", "Row Reduction", 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rejected)
	assert.Zero(t, clf.Stats().TrainingSamples)
	e, ok := graph.Edge("ge", "rr")
	require.True(t, ok)
	assert.Equal(t, 0.5, e.Confidence)
}

func TestRunUsesConfidentClassifier(t *testing.T) {
	oracle := &countingOracle{Verdict: model.OracleVerdict{IsMatch: false, Confidence: 0.99}}
	d, _, graph := newTestDeduplicator(DefaultConfig(),
		[]classifier.Option{classifier.WithLearner(&stubLearner{proba: 0.97, uncertainty: 0.05})},
		WithOracle(oracle))

	report, err := d.Run(context.Background(), []model.KnowledgeItem{
		item("ge", "Gaussian Elimination", 1, 0),
		item("rr", "Row Reduction", 1, 0),
	})
	require.NoError(t, err)
	assert.Zero(t, oracle.Calls())
	assert.Equal(t, 1, report.ClassifierDecisions)
	e, ok := graph.Edge("ge", "rr")
	require.True(t, ok)
	assert.True(t, e.IsMatch)
	assert.InDelta(t, 0.97, e.Confidence, 1e-12)
}

func TestRunSkipsInferablePairs(t *testing.T) {
	oracle := &countingOracle{Verdict: model.OracleVerdict{IsMatch: true, Confidence: 0.95}}
	d, _, graph := newTestDeduplicator(DefaultConfig(), nil, WithOracle(oracle))
	graph.AddEdge("x", "y", true, 0.95)
	graph.AddEdge("y", "z", true, 0.90)

	report, err := d.Run(context.Background(), []model.KnowledgeItem{
		item("x", "Gaussian Elimination", 1, 0),
		item("y", "Row Reduction", 1, 0),
		item("z", "Bode Plot", 1, 0),
	})
	require.NoError(t, err)
	assert.Zero(t, oracle.Calls())
	assert.Equal(t, 2, report.KnownPairs)
	assert.Equal(t, 1, report.InferredPairs)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, []string{"x", "y", "z"}, report.Clusters[0].Members)
	assert.Equal(t, "Bode Plot", report.Clusters[0].CanonicalName)
}

func TestRunBoundsOracleConcurrency(t *testing.T) {
	oracle := &countingOracle{Verdict: model.OracleVerdict{IsMatch: false, Confidence: 0.95}, Delay: 5 * time.Millisecond}
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.RetrainAfterRun = false
	d, clf, _ := newTestDeduplicator(cfg, nil, WithOracle(oracle))

	names := []string{"Gaussian Elimination", "Row Reduction", "Bode Plot", "Nyquist Criterion", "Laplace Transform", "Fourier Series"}
	var items []model.KnowledgeItem
	for _, n := range names {
		items = append(items, item(n, n, 1, 0))
	}

	report, err := d.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 15, report.Pairs)
	assert.Equal(t, 15, oracle.Calls())
	assert.LessOrEqual(t, oracle.peak.Load(), int32(2))
	assert.Equal(t, 15, report.Accepted)
	assert.Equal(t, 15, clf.Stats().TrainingSamples)
	assert.Empty(t, report.Clusters)
}

func TestRunCancelled(t *testing.T) {
	d, _, _ := newTestDeduplicator(DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Run(ctx, []model.KnowledgeItem{item("a", "A"), item("b", "B")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCollapsesDuplicateKeys(t *testing.T) {
	d, _, _ := newTestDeduplicator(DefaultConfig(), nil)
	report, err := d.Run(context.Background(), []model.KnowledgeItem{
		item("1", "Moore Machine"),
		item("1", "Moore Machine (copy)"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Items)
	assert.Zero(t, report.Pairs)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.Default())
	assert.Equal(t, 0.85, cfg.Threshold)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 0.5, cfg.CandidateFloor)
}

func TestLLMOracle(t *testing.T) {
	prompts := config.Default().Deduplication
	mockLLM := &llm.MockLLMClient{Response: "```json\n{\"is_match\": true, \"confidence\": 1.4, \"reasoning\": \"same concept\"}\n```"}
	oracle := NewLLMOracle(mockLLM, prompts)

	v, err := oracle.Judge(context.Background(),
		model.KnowledgeItem{Name: "Moore Machine", Description: "Design a Moore machine"},
		model.KnowledgeItem{Name: "Macchina di Moore", Category: "automata"})
	require.NoError(t, err)
	assert.True(t, v.IsMatch)
	assert.Equal(t, 1.0, v.Confidence)
	assert.Equal(t, "same concept", v.Reasoning)
	assert.Contains(t, mockLLM.Prompts[0], "Name: Moore Machine\nDescription: Design a Moore machine")
	assert.Contains(t, mockLLM.Prompts[0], "Category: automata")

	mockLLM.Response = "not sure"
	_, err = oracle.Judge(context.Background(), model.KnowledgeItem{Name: "a"}, model.KnowledgeItem{Name: "b"})
	assert.Error(t, err)

	mockLLM.Err = errors.New("timeout")
	_, err = oracle.Judge(context.Background(), model.KnowledgeItem{Name: "a"}, model.KnowledgeItem{Name: "b"})
	assert.Error(t, err)
}

func TestLLMOppositeDetectorWithJudge(t *testing.T) {
	mockLLM := &llm.MockLLMClient{Response: `{"are_opposites": true, "reason": "left vs right"}`}
	detector := NewLLMOppositeDetector(mockLLM, config.Default().Deduplication)
	judge := similarity.NewJudge(similarity.DefaultVocabulary(), similarity.WithOppositeDetector(detector))

	// The names score about 0.82, so the detector runs at a 0.8 threshold.
	r := judge.ShouldMerge("Left Shift Register", "Right Shift Register", 0.8)
	assert.False(t, r.ShouldMerge)
	assert.Equal(t, model.ReasonSemanticallyDifferent, r.Reason)
	require.Equal(t, 1, mockLLM.Calls())
	assert.Contains(t, mockLLM.Prompts[0], "Name A: Left Shift Register")

	// Cached per unordered pair.
	judge.ShouldMerge("Right Shift Register", "Left Shift Register", 0.8)
	assert.Equal(t, 1, mockLLM.Calls())
}
