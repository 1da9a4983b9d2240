package similarity

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/core/common"
	"github.com/agenthands/examina/internal/core/model"
)

const (
	// DefaultThreshold is the merge threshold used when the caller gives none.
	DefaultThreshold = 0.85
	// TranslationFloor is the minimum score reported for a translation.
	TranslationFloor = 0.9
)

// OppositeDetector decides whether two lexically close names still denote
// distinct concepts. It is consulted only after the static tables miss.
type OppositeDetector interface {
	AreOpposites(ctx context.Context, a, b string) (bool, error)
}

// Pair is one input of BatchShouldMerge.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Stats describes the judge configuration.
type Stats struct {
	ModelName              string `json:"model_name"`
	UseEmbeddings          bool   `json:"use_embeddings"`
	TranslationPairsCount  int    `json:"translation_pairs_count"`
	SemanticOppositesCount int    `json:"semantic_opposites_count"`
	DynamicOpposites       bool   `json:"dynamic_opposites"`
	OppositeCacheSize      int    `json:"opposite_cache_size"`
}

// Judge decides whether two knowledge item names denote the same concept.
// The vocabulary tables take precedence over the numeric score.
type Judge struct {
	backend      Backend
	detector     OppositeDetector
	logger       *zap.Logger
	threshold    float64
	translations []compiledPair
	opposites    []compiledPair

	mu            sync.Mutex
	oppositeCache map[Pair]bool
}

type Option func(*Judge)

// WithBackend replaces the default sequence-matcher backend.
func WithBackend(b Backend) Option {
	return func(j *Judge) {
		if b != nil {
			j.backend = b
		}
	}
}

// WithOppositeDetector enables dynamic opposite detection.
func WithOppositeDetector(d OppositeDetector) Option {
	return func(j *Judge) { j.detector = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(j *Judge) {
		if l != nil {
			j.logger = l
		}
	}
}

// WithThreshold sets the threshold used by BatchShouldMerge.
func WithThreshold(t float64) Option {
	return func(j *Judge) { j.threshold = t }
}

func NewJudge(vocab Vocabulary, opts ...Option) *Judge {
	j := &Judge{
		backend:       StringBackend{},
		logger:        zap.NewNop(),
		threshold:     DefaultThreshold,
		translations:  compilePairs(vocab.Translations),
		opposites:     compilePairs(vocab.Opposites),
		oppositeCache: make(map[Pair]bool),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Threshold is the default merge threshold of this judge.
func (j *Judge) Threshold() float64 { return j.threshold }

// ComputeSimilarity returns a symmetric score in [0, 1]. Names that are equal
// after normalization score exactly 1.0, including two empty names.
func (j *Judge) ComputeSimilarity(a, b string) float64 {
	return j.computeSimilarity(context.Background(), a, b)
}

func (j *Judge) computeSimilarity(ctx context.Context, a, b string) float64 {
	if common.Normalize(a) == common.Normalize(b) {
		return 1.0
	}
	return j.backend.Similarity(ctx, a, b)
}

// AreSemanticallyDifferent reports whether the names fall on opposite sides
// of a curated opposite pair. Matching is on whole tokens.
func (j *Judge) AreSemanticallyDifferent(a, b string) bool {
	return j.staticOpposite(common.Tokens(a), common.Tokens(b))
}

// IsTranslation reports whether the names are an English/Italian rendering of
// the same concept. It never fires for a pair of opposites.
func (j *Judge) IsTranslation(a, b string) bool {
	ta, tb := common.Tokens(a), common.Tokens(b)
	if j.staticOpposite(ta, tb) {
		return false
	}
	return j.translation(ta, tb)
}

// HasTranslatedTerm reports whether name contains the Italian side of any
// translation pair.
func (j *Judge) HasTranslatedTerm(name string) bool {
	tokens := common.Tokens(name)
	for _, p := range j.translations {
		if containsPhrase(tokens, p.b, false) {
			return true
		}
	}
	return false
}

func (j *Judge) staticOpposite(ta, tb []string) bool {
	for _, p := range j.opposites {
		if oppositeHit(ta, tb, p) {
			return true
		}
	}
	return false
}

func (j *Judge) translation(ta, tb []string) bool {
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	for _, p := range j.translations {
		if translationHit(ta, tb, p) {
			return true
		}
	}
	return false
}

// ShouldMerge applies the decision policy with a background context.
func (j *Judge) ShouldMerge(a, b string, threshold float64) model.SimilarityResult {
	return j.ShouldMergeContext(context.Background(), a, b, threshold)
}

// ShouldMergeContext evaluates, in order: static opposites, translations,
// dynamic opposites (when a detector is set and the pair clears the
// threshold), then the threshold. Curated translations are never vetoed by
// the detector.
func (j *Judge) ShouldMergeContext(ctx context.Context, a, b string, threshold float64) model.SimilarityResult {
	score := j.computeSimilarity(ctx, a, b)
	ta, tb := common.Tokens(a), common.Tokens(b)

	if j.staticOpposite(ta, tb) {
		return model.SimilarityResult{ShouldMerge: false, SimilarityScore: score, Reason: model.ReasonSemanticallyDifferent}
	}

	if j.translation(ta, tb) {
		return model.SimilarityResult{ShouldMerge: true, SimilarityScore: math.Max(score, TranslationFloor), Reason: model.ReasonTranslation}
	}
	if j.detector != nil && score >= threshold && j.dynamicOpposite(ctx, a, b) {
		return model.SimilarityResult{ShouldMerge: false, SimilarityScore: score, Reason: model.ReasonSemanticallyDifferent}
	}
	if score >= threshold {
		return model.SimilarityResult{ShouldMerge: true, SimilarityScore: score, Reason: model.ReasonAboveThreshold}
	}
	return model.SimilarityResult{ShouldMerge: false, SimilarityScore: score, Reason: model.ReasonBelowThreshold}
}

func (j *Judge) dynamicOpposite(ctx context.Context, a, b string) bool {
	na, nb := common.Normalize(a), common.Normalize(b)
	if na == nb {
		return false
	}
	if na > nb {
		na, nb = nb, na
	}
	key := Pair{A: na, B: nb}

	j.mu.Lock()
	cached, ok := j.oppositeCache[key]
	j.mu.Unlock()
	if ok {
		return cached
	}

	opposite, err := j.detector.AreOpposites(ctx, a, b)
	if err != nil {
		j.logger.Warn("dynamic opposite check failed", zap.String("a", a), zap.String("b", b), zap.Error(err))
		return false
	}

	j.mu.Lock()
	j.oppositeCache[key] = opposite
	j.mu.Unlock()
	if opposite {
		j.logger.Debug("dynamic opposite detected", zap.String("a", a), zap.String("b", b))
	}
	return opposite
}

// BatchShouldMerge judges each pair independently with the judge threshold.
func (j *Judge) BatchShouldMerge(ctx context.Context, pairs []Pair) []model.SimilarityResult {
	results := make([]model.SimilarityResult, len(pairs))
	for i, p := range pairs {
		results[i] = j.ShouldMergeContext(ctx, p.A, p.B, j.threshold)
	}
	return results
}

// FindSimilarItems returns the candidates that should merge with query,
// best score first. Equal scores keep their input order.
func (j *Judge) FindSimilarItems(ctx context.Context, query string, candidates []string, threshold float64) []model.ScoredCandidate {
	var hits []model.ScoredCandidate
	for _, c := range candidates {
		r := j.ShouldMergeContext(ctx, query, c, threshold)
		if r.ShouldMerge {
			hits = append(hits, model.ScoredCandidate{Name: c, Score: r.SimilarityScore})
		}
	}
	sort.SliceStable(hits, func(x, y int) bool {
		return hits[x].Score > hits[y].Score
	})
	return hits
}

func (j *Judge) Stats() Stats {
	j.mu.Lock()
	cacheSize := len(j.oppositeCache)
	j.mu.Unlock()

	_, isString := j.backend.(StringBackend)
	return Stats{
		ModelName:              j.backend.Name(),
		UseEmbeddings:          !isString,
		TranslationPairsCount:  len(j.translations),
		SemanticOppositesCount: len(j.opposites),
		DynamicOpposites:       j.detector != nil,
		OppositeCacheSize:      cacheSize,
	}
}
