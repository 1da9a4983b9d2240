package features

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/core/common"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/core/similarity"
	"github.com/agenthands/examina/internal/llm"
)

var leadingStopwords = map[string]struct{}{
	"to": {}, "how": {}, "the": {}, "a": {}, "an": {},
}

// VerbSynonyms maps a leading verb onto its canonical English form. Only
// verbs listed here are treated as equal; "calculate" and "compute" stay apart.
var VerbSynonyms = map[string]string{
	"calcolare":    "calculate",
	"progettare":   "design",
	"dimostrare":   "prove",
	"minimizzare":  "minimize",
	"minimise":     "minimize",
	"semplificare": "simplify",
	"implementare": "implement",
	"verificare":   "verify",
	"convertire":   "convert",
	"analizzare":   "analyze",
	"analyse":      "analyze",
	"determinare":  "determine",
	"trovare":      "find",
	"risolvere":    "solve",
	"disegnare":    "draw",
	"costruire":    "construct",
	"spiegare":     "explain",
	"descrivere":   "describe",
}

// Extractor turns a pair of knowledge items into PairFeatures.
type Extractor struct {
	embedder llm.EmbedderClient
	logger   *zap.Logger
}

// NewExtractor builds an extractor. A nil embedder makes embedding_similarity
// fall back to item embeddings, then to a sequence-matcher ratio of the
// descriptions.
func NewExtractor(embedder llm.EmbedderClient, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{embedder: embedder, logger: logger}
}

// Extract computes the seven features of (a, b).
func (e *Extractor) Extract(ctx context.Context, a, b model.KnowledgeItem) model.PairFeatures {
	return model.PairFeatures{
		EmbeddingSimilarity: e.embeddingSimilarity(ctx, a, b),
		TokenJaccard:        common.Jaccard(common.TokenSet(a.Description), common.TokenSet(b.Description)),
		TrigramJaccard:      common.Jaccard(Trigrams(a.Name), Trigrams(b.Name)),
		DescLengthRatio:     LengthRatio(a.Description, b.Description),
		SameCategory:        common.Normalize(a.Category) == common.Normalize(b.Category),
		VerbMatch:           VerbMatch(a.Description, b.Description),
		NameSimilarity:      similarity.StringSimilarity(a.Name, b.Name),
	}
}

func (e *Extractor) embeddingSimilarity(ctx context.Context, a, b model.KnowledgeItem) float64 {
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		return common.Clamp01(common.CosineSimilarity(a.Embedding, b.Embedding))
	}

	ta, tb := embeddingText(a), embeddingText(b)
	if e.embedder != nil {
		va, errA := e.embedder.Embed(ctx, ta)
		vb, errB := e.embedder.Embed(ctx, tb)
		if errA == nil && errB == nil {
			return common.Clamp01(common.CosineSimilarity(va, vb))
		}
		e.logger.Warn("embedding failed, using description similarity",
			zap.String("item_a", a.Name), zap.String("item_b", b.Name),
			zap.NamedError("error_a", errA), zap.NamedError("error_b", errB))
	}
	return similarity.StringSimilarity(ta, tb)
}

func embeddingText(item model.KnowledgeItem) string {
	if strings.TrimSpace(item.Description) != "" {
		return item.Description
	}
	return item.Name
}

// Trigrams returns the character trigrams of the space-padded, tokenized name.
// Underscores and punctuation act as spaces.
func Trigrams(name string) map[string]struct{} {
	set := make(map[string]struct{})
	tokens := common.Tokens(name)
	if len(tokens) == 0 {
		return set
	}
	runes := []rune(" " + strings.Join(tokens, " ") + " ")
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// LengthRatio is min/max of the description lengths in runes. It never
// divides by zero and never returns 0.
func LengthRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(strings.TrimSpace(a)), utf8.RuneCountInString(strings.TrimSpace(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	lo, hi := la, lb
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == 0 {
		return 1.0 / float64(hi+1)
	}
	return float64(lo) / float64(hi)
}

// LeadingVerb returns the first content word of a description, mapped through
// VerbSynonyms. It returns "" when there is none.
func LeadingVerb(desc string) string {
	for _, tok := range common.Tokens(desc) {
		if _, skip := leadingStopwords[tok]; skip {
			continue
		}
		if canon, ok := VerbSynonyms[tok]; ok {
			return canon
		}
		return tok
	}
	return ""
}

// VerbMatch reports whether both descriptions open with the same verb.
func VerbMatch(a, b string) bool {
	va := LeadingVerb(a)
	return va != "" && va == LeadingVerb(b)
}
