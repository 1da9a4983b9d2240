package similarity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/llm"
)

func newTestJudge(opts ...Option) *Judge {
	return NewJudge(DefaultVocabulary(), opts...)
}

func TestShouldNotMergeOpposites(t *testing.T) {
	j := newTestJudge()
	cases := [][2]string{
		{"Mealy Machine", "Moore Machine"},
		{"SoP Minimization", "PoS Minimization"},
		{"Sequential Circuit Design", "Combinational Circuit Design"},
		{"DFA Minimization", "NFA Minimization"},
		{"Synchronous Counter", "Asynchronous Counter"},
		{"Macchina di Moore", "Mealy Machine"},
	}
	for _, c := range cases {
		for _, threshold := range []float64{0.0, 0.5, DefaultThreshold} {
			r := j.ShouldMerge(c[0], c[1], threshold)
			assert.False(t, r.ShouldMerge, "%s vs %s", c[0], c[1])
			assert.Equal(t, model.ReasonSemanticallyDifferent, r.Reason, "%s vs %s", c[0], c[1])
		}
	}
}

func TestShouldMergeTranslations(t *testing.T) {
	j := newTestJudge()
	cases := [][2]string{
		{"Moore Machine", "Macchina di Moore"},
		{"Finite State Machines", "Macchine a Stati Finiti"},
		{"Mealy Machine Design", "Progettazione Macchina di Mealy"},
		{"Boolean Algebra", "Algebra Booleana"},
		{"Karnaugh Map", "Mappa di Karnaugh"},
		{"Design", "Progettazione"},
		{"MOORE MACHINE", "macchina di moore"},
	}
	for _, c := range cases {
		assert.True(t, j.IsTranslation(c[0], c[1]), "%s vs %s", c[0], c[1])
		assert.True(t, j.IsTranslation(c[1], c[0]), "%s vs %s", c[1], c[0])

		r := j.ShouldMerge(c[0], c[1], DefaultThreshold)
		assert.True(t, r.ShouldMerge, "%s vs %s", c[0], c[1])
		assert.Equal(t, model.ReasonTranslation, r.Reason)
		assert.GreaterOrEqual(t, r.SimilarityScore, TranslationFloor)
	}
}

func TestTranslationNeverFiresForOpposites(t *testing.T) {
	j := newTestJudge()
	assert.False(t, j.IsTranslation("Mealy Machine", "Macchina di Moore"))
	assert.False(t, j.IsTranslation("Moore Machine", "Mealy Machine"))
}

func TestTranslationGuardSameLanguage(t *testing.T) {
	j := newTestJudge()
	assert.False(t, j.IsTranslation("Base Conversion", "Unit Conversion"))
	assert.False(t, j.IsTranslation("Integrale Definito", "Integrale Indefinito"))
}

func TestWordBoundaryMatching(t *testing.T) {
	j := newTestJudge()
	// "asynchronous" must not be read as containing "synchronous".
	assert.False(t, j.AreSemanticallyDifferent("Asynchronous Counter", "Asynchronous Counter Design"))
	// Hyphens split tokens.
	assert.True(t, j.AreSemanticallyDifferent("Non-Synchronous Reset", "Asynchronous Reset"))
	// Both names mention both terms: a comparison, not an opposite.
	assert.False(t, j.AreSemanticallyDifferent("Mealy vs Moore", "Moore and Mealy comparison"))
}

func TestComputeSimilarity(t *testing.T) {
	j := newTestJudge()

	assert.Greater(t, j.ComputeSimilarity("Progettazione di Monitor", "Progettazione Monitor"), 0.8)
	assert.Greater(t, j.ComputeSimilarity("Mealy Machine", "Mealy Machines"), 0.9)
	assert.Less(t, j.ComputeSimilarity("Mealy", "Boolean"), 0.5)
	assert.Greater(t, j.ComputeSimilarity("Moore Machine Design", "Moore Machine Design and Minimization"), 0.7)
}

func TestComputeSimilaritySymmetryAndIdentity(t *testing.T) {
	j := newTestJudge()
	names := []string{"", "Moore Machine", "Macchina di Moore", "Mealy", "Boolean Algebra Simplification", "abcab", "bacba"}
	for _, a := range names {
		assert.Equal(t, 1.0, j.ComputeSimilarity(a, a))
		for _, b := range names {
			assert.Equal(t, j.ComputeSimilarity(a, b), j.ComputeSimilarity(b, a), "%q vs %q", a, b)
			s := j.ComputeSimilarity(a, b)
			assert.True(t, s >= 0 && s <= 1)
		}
	}
	assert.Equal(t, 1.0, j.ComputeSimilarity("MOORE  machine", "moore machine"))
}

func TestLowSimilarityDoesNotMerge(t *testing.T) {
	j := newTestJudge()
	for _, c := range [][2]string{
		{"Boolean Algebra Simplification", "Concurrent Programming with Monitors"},
		{"Gaussian Elimination", "Mealy Machine Design"},
	} {
		r := j.ShouldMerge(c[0], c[1], DefaultThreshold)
		assert.False(t, r.ShouldMerge)
		assert.Equal(t, model.ReasonBelowThreshold, r.Reason)
	}
}

func TestEmptyStrings(t *testing.T) {
	j := newTestJudge()

	r := j.ShouldMerge("", "", DefaultThreshold)
	assert.True(t, r.ShouldMerge)
	assert.Equal(t, 1.0, r.SimilarityScore)
	assert.Equal(t, model.ReasonAboveThreshold, r.Reason)

	r = j.ShouldMerge("Moore Machine", "", DefaultThreshold)
	assert.False(t, r.ShouldMerge)
	assert.Equal(t, model.ReasonBelowThreshold, r.Reason)
}

func TestReasonDeterminesShouldMerge(t *testing.T) {
	j := newTestJudge()
	pairs := []Pair{
		{"Moore Machine", "Macchina di Moore"},
		{"Mealy Machine", "Moore Machine"},
		{"Mealy Machine", "Mealy Machines"},
		{"Gaussian Elimination", "Mealy Machine Design"},
		{"", ""},
	}
	results := j.BatchShouldMerge(context.Background(), pairs)
	require.Len(t, results, len(pairs))
	for i, r := range results {
		assert.Equal(t, r.Reason.Merges(), r.ShouldMerge)
		assert.Equal(t, j.ShouldMerge(pairs[i].A, pairs[i].B, DefaultThreshold), r)
	}
	assert.Equal(t, model.ReasonTranslation, results[0].Reason)
	assert.Equal(t, model.ReasonSemanticallyDifferent, results[1].Reason)
	assert.Equal(t, model.ReasonAboveThreshold, results[2].Reason)
	assert.Equal(t, model.ReasonBelowThreshold, results[3].Reason)
}

func TestFindSimilarItems(t *testing.T) {
	j := newTestJudge()
	candidates := []string{"Macchina di Moore", "Mealy Machine", "Moore Machines", "Gaussian Elimination"}

	hits := j.FindSimilarItems(context.Background(), "Moore Machine", candidates, DefaultThreshold)
	require.Len(t, hits, 2)
	assert.Equal(t, "Moore Machines", hits[0].Name)
	assert.Equal(t, "Macchina di Moore", hits[1].Name)
	assert.Equal(t, TranslationFloor, hits[1].Score)
}

func TestFindSimilarItemsKeepsInputOrderOnTies(t *testing.T) {
	j := newTestJudge()
	hits := j.FindSimilarItems(context.Background(), "Moore Machine", []string{"macchina di moore", "Macchina di Moore"}, DefaultThreshold)
	require.Len(t, hits, 2)
	assert.Equal(t, "macchina di moore", hits[0].Name)
	assert.Equal(t, "Macchina di Moore", hits[1].Name)
}

func TestStats(t *testing.T) {
	j := newTestJudge()
	s := j.Stats()
	assert.Equal(t, "sequence-matcher", s.ModelName)
	assert.False(t, s.UseEmbeddings)
	assert.Equal(t, len(DefaultTranslationPairs()), s.TranslationPairsCount)
	assert.Equal(t, len(DefaultSemanticOpposites()), s.SemanticOppositesCount)
	assert.False(t, s.DynamicOpposites)
	assert.Zero(t, s.OppositeCacheSize)
}

type mockDetector struct {
	opposites map[string]bool
	all       bool
	err       error
	calls     int
}

func (m *mockDetector) AreOpposites(ctx context.Context, a, b string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return m.all || m.opposites[a+"|"+b] || m.opposites[b+"|"+a], nil
}

func TestDynamicOpposites(t *testing.T) {
	det := &mockDetector{opposites: map[string]bool{"Upper Triangular Matrix|Lower Triangular Matrix": true}}
	j := newTestJudge(WithOppositeDetector(det))

	r := j.ShouldMerge("Upper Triangular Matrix", "Lower Triangular Matrix", 0.8)
	assert.False(t, r.ShouldMerge)
	assert.Equal(t, model.ReasonSemanticallyDifferent, r.Reason)

	// Cached per unordered pair.
	r = j.ShouldMerge("Lower Triangular Matrix", "Upper Triangular Matrix", 0.8)
	assert.Equal(t, model.ReasonSemanticallyDifferent, r.Reason)
	assert.Equal(t, 1, det.calls)
	assert.Equal(t, 1, j.Stats().OppositeCacheSize)
	assert.True(t, j.Stats().DynamicOpposites)

	// Never consulted for pairs that would not merge anyway.
	r = j.ShouldMerge("Mealy", "Boolean", DefaultThreshold)
	assert.Equal(t, model.ReasonBelowThreshold, r.Reason)
	assert.Equal(t, 1, det.calls)
}

func TestDynamicOppositesErrorFallsThrough(t *testing.T) {
	det := &mockDetector{err: errors.New("llm down")}
	j := newTestJudge(WithOppositeDetector(det))

	r := j.ShouldMerge("Mealy", "Boolean", 0)
	assert.True(t, r.ShouldMerge)
	assert.Equal(t, model.ReasonAboveThreshold, r.Reason)
	assert.Equal(t, 1, det.calls)
	assert.Zero(t, j.Stats().OppositeCacheSize)
}

func TestDynamicOppositesCannotVetoTranslations(t *testing.T) {
	det := &mockDetector{all: true}
	j := newTestJudge(WithOppositeDetector(det))

	r := j.ShouldMerge("Moore Machine", "Macchina di Moore", DefaultThreshold)
	assert.True(t, r.ShouldMerge)
	assert.Equal(t, model.ReasonTranslation, r.Reason)
	assert.GreaterOrEqual(t, r.SimilarityScore, TranslationFloor)
	assert.Zero(t, det.calls)

	// Static opposites still win over translations.
	r = j.ShouldMerge("Mealy Machine", "Macchina di Moore", DefaultThreshold)
	assert.False(t, r.ShouldMerge)
	assert.Zero(t, det.calls)
}

func TestEmbeddingBackend(t *testing.T) {
	emb := &llm.MockEmbedder{Vectors: map[string][]float32{
		"derivative rules": {1, 0, 0},
		"derivation rules": {0.9, 0.1, 0},
		"mealy machine":    {0, 1, 0},
		"moore machine":    {0, 0.99, 0.01},
	}}
	j := newTestJudge(WithBackend(NewEmbeddingBackend(emb, "test-embed", nil)))

	assert.True(t, j.Stats().UseEmbeddings)
	assert.Equal(t, "test-embed", j.Stats().ModelName)
	assert.Greater(t, j.ComputeSimilarity("Derivative Rules", "Derivation Rules"), 0.9)

	// Near-identical embeddings do not override the opposites table.
	r := j.ShouldMerge("Mealy Machine", "Moore Machine", DefaultThreshold)
	assert.Equal(t, model.ReasonSemanticallyDifferent, r.Reason)
}

func TestEmbeddingBackendFallsBackOnError(t *testing.T) {
	emb := &llm.MockEmbedder{Err: errors.New("quota")}
	b := NewEmbeddingBackend(emb, "", nil)
	assert.Equal(t, StringSimilarity("Mealy Machine", "Mealy Machines"), b.Similarity(context.Background(), "Mealy Machine", "Mealy Machines"))
	assert.Equal(t, "embeddings", b.Name())
}

func TestLoadVocabularyAndMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	content := `translations:
  - {a: "eigenvector", b: "autovettore"}
  - {a: "Design", b: "Progettazione"}
opposites:
  - {a: "upper triangular", b: "lower triangular"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	extra, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Len(t, extra.Translations, 2)

	merged := DefaultVocabulary().Merge(extra)
	assert.Len(t, merged.Translations, len(DefaultTranslationPairs())+1)
	assert.Len(t, merged.Opposites, len(DefaultSemanticOpposites())+1)

	j := NewJudge(merged)
	assert.True(t, j.IsTranslation("Eigenvector Computation", "Calcolo Autovettore"))
	assert.True(t, j.AreSemanticallyDifferent("Upper Triangular Form", "Lower Triangular Form"))
}

func TestLoadVocabularyErrors(t *testing.T) {
	_, err := LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("translations:\n  - {a: \"\", b: \"x\"}\n"), 0o644))
	_, err = LoadVocabulary(path)
	assert.Error(t, err)
}

func TestHasTranslatedTerm(t *testing.T) {
	j := newTestJudge()
	assert.True(t, j.HasTranslatedTerm("Macchina di Moore"))
	assert.False(t, j.HasTranslatedTerm("Moore Machine"))
}

func TestInjectedVocabulary(t *testing.T) {
	j := NewJudge(Vocabulary{Opposites: []TermPair{{"cat", "dog"}}})
	assert.True(t, j.AreSemanticallyDifferent("Cat Food", "Dog Food"))
	assert.False(t, j.AreSemanticallyDifferent("Mealy Machine", "Moore Machine"))
	assert.False(t, j.IsTranslation("Moore Machine", "Macchina di Moore"))
}
