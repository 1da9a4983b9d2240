package similarity

import (
	"context"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/core/common"
	"github.com/agenthands/examina/internal/llm"
)

// Backend scores two item names in [0, 1]. Implementations must be symmetric.
type Backend interface {
	Similarity(ctx context.Context, a, b string) float64
	Name() string
}

// StringSimilarity is the sequence-matcher ratio 2*M/T of the normalized
// strings, where M is the number of matched characters and T the total length.
// The arguments are ordered before matching so the score is symmetric.
func StringSimilarity(a, b string) float64 {
	a, b = common.Normalize(a), common.Normalize(b)
	if a == b {
		return 1.0
	}
	if a > b {
		a, b = b, a
	}
	m := difflib.NewMatcherWithJunk(strings.Split(a, ""), strings.Split(b, ""), false, nil)
	return m.Ratio()
}

// StringBackend is the default, dependency-free backend.
type StringBackend struct{}

func (StringBackend) Similarity(_ context.Context, a, b string) float64 {
	return StringSimilarity(a, b)
}

func (StringBackend) Name() string { return "sequence-matcher" }

// EmbeddingBackend scores names by cosine similarity of their embeddings and
// falls back to StringSimilarity when the provider fails.
type EmbeddingBackend struct {
	Embedder  llm.EmbedderClient
	ModelName string
	Logger    *zap.Logger
}

func NewEmbeddingBackend(embedder llm.EmbedderClient, modelName string, logger *zap.Logger) *EmbeddingBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingBackend{Embedder: embedder, ModelName: modelName, Logger: logger}
}

func (e *EmbeddingBackend) Similarity(ctx context.Context, a, b string) float64 {
	va, err := e.Embedder.Embed(ctx, common.Normalize(a))
	if err != nil {
		e.Logger.Warn("embedding failed, using string similarity", zap.String("text", a), zap.Error(err))
		return StringSimilarity(a, b)
	}
	vb, err := e.Embedder.Embed(ctx, common.Normalize(b))
	if err != nil {
		e.Logger.Warn("embedding failed, using string similarity", zap.String("text", b), zap.Error(err))
		return StringSimilarity(a, b)
	}
	return common.Clamp01(common.CosineSimilarity(va, vb))
}

func (e *EmbeddingBackend) Name() string {
	if e.ModelName == "" {
		return "embeddings"
	}
	return e.ModelName
}
