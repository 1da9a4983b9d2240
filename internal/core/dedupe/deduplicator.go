package dedupe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core/canonical"
	"github.com/agenthands/examina/internal/core/classifier"
	"github.com/agenthands/examina/internal/core/community"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/core/similarity"
)

type Config struct {
	Threshold float64
	// Classifier verdicts below this uncertainty skip the oracle.
	ReviewUncertainty float64
	// Confidence given to edges from a static or dynamic opposite.
	AutoConfidence float64
	// Pairs whose name and embedding similarity both fall below this are
	// never sent to the oracle.
	CandidateFloor    float64
	RetrainAfterRun   bool
	Workers           int
	RequestsPerSecond float64
}

func DefaultConfig() Config {
	return Config{
		Threshold:         similarity.DefaultThreshold,
		ReviewUncertainty: 0.3,
		AutoConfidence:    0.9,
		CandidateFloor:    0.5,
		RetrainAfterRun:   true,
		Workers:           4,
	}
}

// ConfigFrom maps the file configuration onto the driver settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Threshold:         cfg.Similarity.Threshold,
		ReviewUncertainty: cfg.Dedupe.ReviewUncertainty,
		AutoConfidence:    cfg.Dedupe.AutoConfidence,
		CandidateFloor:    cfg.Dedupe.CandidateFloor,
		RetrainAfterRun:   cfg.Dedupe.RetrainAfterRun,
		Workers:           cfg.Concurrency.OracleWorkers,
		RequestsPerSecond: cfg.Concurrency.RequestsPerSecond,
	}
}

// Source says which stage produced a decision.
type Source string

const (
	SourceJudge      Source = "judge"
	SourceClassifier Source = "classifier"
	SourceOracle     Source = "oracle"
	SourceInferred   Source = "inferred"
)

type Decision struct {
	ItemA      string            `json:"item_a"`
	ItemB      string            `json:"item_b"`
	IsMatch    bool              `json:"is_match"`
	Confidence float64           `json:"confidence"`
	Source     Source            `json:"source"`
	Reason     model.MergeReason `json:"reason,omitempty"`
	// Accepted is set for oracle verdicts that passed the quality gate.
	Accepted bool `json:"accepted,omitempty"`
}

// Report summarizes one Run.
type Report struct {
	RunID               string            `json:"run_id"`
	StartedAt           time.Time         `json:"started_at"`
	Duration            time.Duration     `json:"duration"`
	Items               int               `json:"items"`
	Pairs               int               `json:"pairs"`
	KnownPairs          int               `json:"known_pairs"`
	JudgeDecisions      int               `json:"judge_decisions"`
	ClassifierDecisions int               `json:"classifier_decisions"`
	InferredPairs       int               `json:"inferred_pairs"`
	SkippedPairs        int               `json:"skipped_pairs"`
	OracleCalls         int               `json:"oracle_calls"`
	OracleFailures      int               `json:"oracle_failures"`
	Accepted            int               `json:"accepted"`
	Rejected            int               `json:"rejected"`
	Retrained           bool              `json:"retrained"`
	Decisions           []Decision        `json:"decisions"`
	Clusters            []model.Cluster   `json:"clusters"`
	Splits              []community.Split `json:"splits,omitempty"`
}

// Deduplicator drives a batch of items through judge, committee and oracle
// and writes every decision into the graph.
//
// Run mutates the classifier and the graph; callers serialize it with any
// other writer of those two.
type Deduplicator struct {
	judge      *similarity.Judge
	classifier *classifier.ActiveClassifier
	graph      *community.Graph
	oracle     Oracle
	namer      *canonical.Namer
	cfg        Config
	logger     *zap.Logger
	limiter    *rate.Limiter
	names      map[string]string
}

type Option func(*Deduplicator)

func WithOracle(o Oracle) Option {
	return func(d *Deduplicator) { d.oracle = o }
}

func WithNamer(n *canonical.Namer) Option {
	return func(d *Deduplicator) { d.namer = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Deduplicator) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDeduplicator(judge *similarity.Judge, clf *classifier.ActiveClassifier, graph *community.Graph, cfg Config, opts ...Option) *Deduplicator {
	d := &Deduplicator{
		judge:      judge,
		classifier: clf,
		graph:      graph,
		cfg:        cfg,
		logger:     zap.NewNop(),
		names:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cfg.Workers <= 0 {
		d.cfg.Workers = 1
	}
	limit := rate.Inf
	if d.cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(d.cfg.RequestsPerSecond)
	}
	d.limiter = rate.NewLimiter(limit, d.cfg.Workers)
	if d.namer == nil {
		d.namer = canonical.NewNamer(nil, config.SummaryPrompts{}, judge, d.logger)
	}
	return d
}

type pendingPair struct {
	a, b     model.KnowledgeItem
	features model.PairFeatures
}

type oracleResult struct {
	verdict model.OracleVerdict
	err     error
}

// Run judges every unordered pair of items. Items sharing a key are
// collapsed to the first occurrence.
func (d *Deduplicator) Run(ctx context.Context, items []model.KnowledgeItem) (*Report, error) {
	started := time.Now()
	report := &Report{RunID: uuid.NewString(), StartedAt: started}

	items = uniqueItems(items)
	report.Items = len(items)
	for _, it := range items {
		d.graph.AddNode(it.Key())
		d.names[it.Key()] = it.Name
	}

	pending, err := d.screen(ctx, items, report)
	if err != nil {
		return nil, err
	}
	queue := d.dropInferred(d.rank(pending), report)

	d.logger.Info("dedupe screening done",
		zap.String("run_id", report.RunID),
		zap.Int("pairs", report.Pairs),
		zap.Int("oracle_queue", len(queue)))

	results, err := d.consult(ctx, queue)
	if err != nil {
		return nil, err
	}
	d.record(queue, results, report)

	if d.cfg.RetrainAfterRun && report.Accepted > 0 {
		switch err := d.classifier.Retrain(); {
		case err == nil:
			report.Retrained = true
		case errors.Is(err, classifier.ErrInsufficientData):
		default:
			d.logger.Warn("retrain after dedupe run failed", zap.Error(err))
		}
	}

	d.collect(ctx, items, report)
	report.Duration = time.Since(started)
	d.logger.Info("dedupe run finished",
		zap.String("run_id", report.RunID),
		zap.Int("clusters", len(report.Clusters)),
		zap.Int("oracle_calls", report.OracleCalls),
		zap.Int("oracle_failures", report.OracleFailures),
		zap.Duration("took", report.Duration))
	return report, nil
}

// screen settles what the judge and the committee can and returns the rest.
func (d *Deduplicator) screen(ctx context.Context, items []model.KnowledgeItem, report *Report) ([]pendingPair, error) {
	var pending []pendingPair
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			report.Pairs++
			a, b := items[i], items[j]
			if _, ok := d.graph.Edge(a.Key(), b.Key()); ok {
				report.KnownPairs++
				continue
			}

			r := d.judge.ShouldMergeContext(ctx, a.Name, b.Name, d.cfg.Threshold)
			switch r.Reason {
			case model.ReasonTranslation, model.ReasonAboveThreshold:
				d.decide(report, Decision{ItemA: a.Key(), ItemB: b.Key(), IsMatch: true, Confidence: r.SimilarityScore, Source: SourceJudge, Reason: r.Reason})
				continue
			case model.ReasonSemanticallyDifferent:
				d.decide(report, Decision{ItemA: a.Key(), ItemB: b.Key(), IsMatch: false, Confidence: d.cfg.AutoConfidence, Source: SourceJudge, Reason: r.Reason})
				continue
			}

			f := d.classifier.ExtractFeatures(ctx, a, b)
			p := d.classifier.Predict(f)
			if p.Fitted && p.Uncertainty < d.cfg.ReviewUncertainty {
				d.decide(report, Decision{
					ItemA:      a.Key(),
					ItemB:      b.Key(),
					IsMatch:    p.Probability >= 0.5,
					Confidence: math.Max(p.Probability, 1-p.Probability),
					Source:     SourceClassifier,
				})
				continue
			}

			if d.oracle == nil || (f.NameSimilarity < d.cfg.CandidateFloor && f.EmbeddingSimilarity < d.cfg.CandidateFloor) {
				report.SkippedPairs++
				continue
			}
			pending = append(pending, pendingPair{a: a, b: b, features: f})
		}
	}
	return pending, nil
}

func (d *Deduplicator) decide(report *Report, dec Decision) {
	d.graph.AddEdge(dec.ItemA, dec.ItemB, dec.IsMatch, dec.Confidence)
	switch dec.Source {
	case SourceJudge:
		report.JudgeDecisions++
	case SourceClassifier:
		report.ClassifierDecisions++
	}
	report.Decisions = append(report.Decisions, dec)
}

// rank orders the oracle queue by committee uncertainty, most uncertain first.
func (d *Deduplicator) rank(pending []pendingPair) []pendingPair {
	if len(pending) < 2 {
		return pending
	}
	type pairKey struct{ a, b string }
	byKey := make(map[pairKey]pendingPair, len(pending))
	candidates := make([]classifier.ReviewCandidate, len(pending))
	for i, p := range pending {
		byKey[pairKey{p.a.Key(), p.b.Key()}] = p
		candidates[i] = classifier.ReviewCandidate{ItemA: p.a.Key(), ItemB: p.b.Key(), Features: p.features}
	}
	ranked := d.classifier.RankForReview(candidates)
	out := make([]pendingPair, len(ranked))
	for i, rc := range ranked {
		out[i] = byKey[pairKey{rc.ItemA, rc.ItemB}]
	}
	return out
}

// dropInferred removes pairs the graph already links through a chain of
// confident matches.
func (d *Deduplicator) dropInferred(pending []pendingPair, report *Report) []pendingPair {
	queue := pending[:0:0]
	for _, p := range pending {
		if inf, ok := d.graph.Infer(p.a.Key(), p.b.Key()); ok && inf.IsMatch {
			report.InferredPairs++
			report.Decisions = append(report.Decisions, Decision{
				ItemA:      p.a.Key(),
				ItemB:      p.b.Key(),
				IsMatch:    true,
				Confidence: inf.Confidence,
				Source:     SourceInferred,
			})
			continue
		}
		queue = append(queue, p)
	}
	return queue
}

// consult calls the oracle concurrently. A failed call is reported in its
// slot; only cancellation aborts the phase.
func (d *Deduplicator) consult(ctx context.Context, queue []pendingPair) ([]oracleResult, error) {
	results := make([]oracleResult, len(queue))
	if len(queue) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, p := range queue {
		g.Go(func() error {
			if err := d.limiter.Wait(gctx); err != nil {
				return fmt.Errorf("oracle rate limiter: %w", err)
			}
			v, err := d.oracle.Judge(gctx, p.a, p.b)
			results[i] = oracleResult{verdict: v, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// record funnels oracle verdicts into the classifier and the graph in queue
// order.
func (d *Deduplicator) record(queue []pendingPair, results []oracleResult, report *Report) {
	for i, p := range queue {
		report.OracleCalls++
		res := results[i]
		if res.err != nil {
			report.OracleFailures++
			d.logger.Warn("oracle call failed",
				zap.String("item_a", p.a.Name), zap.String("item_b", p.b.Name), zap.Error(res.err))
			continue
		}

		v := res.verdict
		accepted := d.classifier.RecordDecision(p.a, p.b, p.features, v.IsMatch, v.Confidence)
		if accepted {
			report.Accepted++
		} else {
			report.Rejected++
		}
		d.graph.AddEdge(p.a.Key(), p.b.Key(), v.IsMatch, v.Confidence)
		report.Decisions = append(report.Decisions, Decision{
			ItemA:      p.a.Key(),
			ItemB:      p.b.Key(),
			IsMatch:    v.IsMatch,
			Confidence: v.Confidence,
			Source:     SourceOracle,
			Accepted:   accepted,
		})
	}
}

// collect names the clusters and split candidates touching this run.
func (d *Deduplicator) collect(ctx context.Context, items []model.KnowledgeItem, report *Report) {
	inRun := make(map[string]bool, len(items))
	for _, it := range items {
		inRun[it.Key()] = true
	}
	touches := func(ids []string) bool {
		for _, id := range ids {
			if inRun[id] {
				return true
			}
		}
		return false
	}

	var components [][]string
	for _, c := range d.graph.Clusters() {
		if touches(c) {
			components = append(components, c)
		}
	}
	report.Clusters = d.namer.Build(ctx, components, d.names)

	for _, s := range d.graph.ReviewSplits() {
		if touches(s.Component) {
			report.Splits = append(report.Splits, s)
		}
	}
}

func uniqueItems(items []model.KnowledgeItem) []model.KnowledgeItem {
	seen := make(map[string]bool, len(items))
	out := make([]model.KnowledgeItem, 0, len(items))
	for _, it := range items {
		if seen[it.Key()] {
			continue
		}
		seen[it.Key()] = true
		out = append(out, it)
	}
	return out
}
