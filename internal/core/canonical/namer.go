package canonical

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core/common"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/llm"
)

// clusterNamespace scopes cluster ids derived from member lists.
var clusterNamespace = uuid.MustParse("6f1c2a52-4b0e-4d8e-9a3b-5d1f0e7c9b21")

// TermDetector reports whether a name carries non-English vocabulary.
// *similarity.Judge satisfies it.
type TermDetector interface {
	HasTranslatedTerm(name string) bool
}

// Namer picks the canonical name of a cluster. With an LLM it asks for one
// and falls back to the deterministic choice on any failure.
type Namer struct {
	LLM     llm.LLMClient
	Prompts config.SummaryPrompts
	terms   TermDetector
	logger  *zap.Logger
}

func NewNamer(llmClient llm.LLMClient, prompts config.SummaryPrompts, terms TermDetector, logger *zap.Logger) *Namer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Namer{
		LLM:     llmClient,
		Prompts: prompts,
		terms:   terms,
		logger:  logger,
	}
}

func (n *Namer) Name(ctx context.Context, names []string) string {
	if len(names) == 0 {
		return ""
	}
	if n.LLM != nil && n.Prompts.CommunityName != "" && len(names) > 1 {
		name, err := n.generate(ctx, names)
		if err == nil && name != "" {
			return name
		}
		n.logger.Warn("canonical name generation failed, using fallback", zap.Strings("names", names), zap.Error(err))
	}
	return n.Fallback(names)
}

func (n *Namer) generate(ctx context.Context, names []string) (string, error) {
	var list strings.Builder
	for _, name := range names {
		fmt.Fprintf(&list, "- %s\n", name)
	}
	prompt := fmt.Sprintf(n.Prompts.CommunityName, list.String())

	response, err := n.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate community name: %w", err)
	}

	result, err := common.ParseJSON[model.CommunityName](response)
	if err != nil {
		return "", fmt.Errorf("failed to parse community name: %w", err)
	}
	return strings.TrimSpace(result.Name), nil
}

// Fallback prefers names without translated vocabulary, then the shortest,
// then the lexicographically smallest.
func (n *Namer) Fallback(names []string) string {
	if len(names) == 0 {
		return ""
	}
	sorted := append([]string(nil), names...)
	translated := func(s string) bool {
		return n.terms != nil && n.terms.HasTranslatedTerm(s)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := translated(sorted[i]), translated(sorted[j])
		if ti != tj {
			return !ti
		}
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	return sorted[0]
}

// ClusterID is stable for a given member set regardless of order.
func ClusterID(members []string) string {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	return uuid.NewSHA1(clusterNamespace, []byte(strings.Join(sorted, "\x00"))).String()
}

// Build turns components of item keys into named clusters. names maps a key
// to its display name; unknown keys are shown as themselves.
func (n *Namer) Build(ctx context.Context, components [][]string, names map[string]string) []model.Cluster {
	clusters := make([]model.Cluster, 0, len(components))
	for _, members := range components {
		display := make([]string, len(members))
		for i, id := range members {
			display[i] = id
			if name, ok := names[id]; ok && name != "" {
				display[i] = name
			}
		}
		clusters = append(clusters, model.Cluster{
			ID:            ClusterID(members),
			CanonicalName: n.Name(ctx, display),
			Members:       append([]string(nil), members...),
		})
	}
	return clusters
}
