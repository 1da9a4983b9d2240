package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core/canonical"
	"github.com/agenthands/examina/internal/core/classifier"
	"github.com/agenthands/examina/internal/core/community"
	"github.com/agenthands/examina/internal/core/dedupe"
	"github.com/agenthands/examina/internal/core/features"
	"github.com/agenthands/examina/internal/core/learner"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/core/similarity"
	"github.com/agenthands/examina/internal/llm"

	// Links the boosted committee into CreateActiveLearner.
	_ "github.com/agenthands/examina/internal/core/learner/boost"
)

// ClusterStore receives the clusters of a dedupe run.
type ClusterStore interface {
	SaveItems(ctx context.Context, items []model.KnowledgeItem) error
	SaveCluster(ctx context.Context, c model.Cluster) error
	LoadClusters(ctx context.Context) ([]model.Cluster, error)
}

// storeInspector is implemented by the SQLite store.
type storeInspector interface {
	Ping(ctx context.Context) error
	CountExamples(ctx context.Context) (int, error)
	SchemaVersionInUse(ctx context.Context) (int, error)
}

// Dependencies are the external collaborators of an Engine. Every field is
// optional; a nil store means nothing is persisted.
type Dependencies struct {
	LLM           llm.LLMClient
	Embedder      llm.EmbedderClient
	TrainingStore classifier.TrainingStore
	EdgeStore     community.EdgeStore
	ClusterStore  ClusterStore
}

// Engine owns the judge, the classifier and the decision graph.
// Its methods are safe for concurrent use.
type Engine struct {
	Config       *config.Config
	Judge        *similarity.Judge
	Classifier   *classifier.ActiveClassifier
	Graph        *community.Graph
	Deduplicator *dedupe.Deduplicator
	Namer        *canonical.Namer

	deps    Dependencies
	logger  *zap.Logger
	mu      sync.Mutex
	closers []func(context.Context) error
}

// Stats is the combined view served by GET /stats.
type Stats struct {
	Judge      similarity.Stats `json:"judge"`
	Classifier classifier.Stats `json:"classifier"`
	Graph      GraphStats       `json:"graph"`
	Embeddings *CacheStats      `json:"embeddings,omitempty"`
	Store      *StoreStats      `json:"store,omitempty"`
}

type StoreStats struct {
	SchemaVersion  int `json:"schema_version"`
	StoredExamples int `json:"stored_examples"`
}

type GraphStats struct {
	Nodes         int     `json:"nodes"`
	Edges         int     `json:"edges"`
	MinConfidence float64 `json:"min_confidence"`
}

type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

type modelNamer interface {
	EmbeddingModel() string
}

// NewEngine assembles an engine from cfg. It does not touch the stores;
// call Restore to load persisted state.
func NewEngine(cfg *config.Config, deps Dependencies, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	vocab := similarity.DefaultVocabulary()
	if cfg.Similarity.VocabularyFile != "" {
		extra, err := similarity.LoadVocabulary(cfg.Similarity.VocabularyFile)
		if err != nil {
			return nil, err
		}
		vocab = vocab.Merge(extra)
	}

	if deps.Embedder != nil && cfg.LLM.CacheSize > 0 {
		cached, err := llm.NewCachedEmbedder(deps.Embedder, cfg.LLM.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		deps.Embedder = cached
	}

	judgeOpts := []similarity.Option{
		similarity.WithThreshold(cfg.Similarity.Threshold),
		similarity.WithLogger(logger.Named("judge")),
	}
	if cfg.Similarity.UseEmbeddings && deps.Embedder != nil {
		var name string
		if m, ok := deps.Embedder.(modelNamer); ok {
			name = m.EmbeddingModel()
		}
		judgeOpts = append(judgeOpts, similarity.WithBackend(similarity.NewEmbeddingBackend(deps.Embedder, name, logger.Named("embeddings"))))
	}
	if cfg.Similarity.DynamicOpposites && deps.LLM != nil {
		judgeOpts = append(judgeOpts, similarity.WithOppositeDetector(dedupe.NewLLMOppositeDetector(deps.LLM, cfg.Deduplication)))
	}
	judge := similarity.NewJudge(vocab, judgeOpts...)

	clf := classifier.New(classifier.Config{
		NEstimators:        cfg.Learner.NEstimators,
		PreferBoosted:      cfg.Learner.PreferBoosted,
		MinTrainingSamples: cfg.Learner.MinTrainingSamples,
		EarlyStopping:      cfg.Learner.EarlyStopping,
		Seed:               cfg.Learner.Seed,
		Gate: features.GateConfig{
			UncertainLow:        cfg.QualityGate.UncertainLow,
			UncertainHigh:       cfg.QualityGate.UncertainHigh,
			SuspiciousEmbedding: cfg.QualityGate.SuspiciousEmbedding,
			SuspiciousName:      cfg.QualityGate.SuspiciousName,
		},
	},
		classifier.WithExtractor(features.NewExtractor(deps.Embedder, logger.Named("features"))),
		classifier.WithLogger(logger.Named("classifier")),
	)

	if cfg.Learner.PreferBoosted && !learner.Available(learner.BoostedName) {
		logger.Warn("boosted backend not linked, using baseline committee", zap.Strings("available", learner.Backends()))
	}

	graph := community.NewGraph(cfg.Transitive.MinConfidence)
	namer := canonical.NewNamer(deps.LLM, cfg.Summary, judge, logger.Named("namer"))

	dedupeOpts := []dedupe.Option{
		dedupe.WithNamer(namer),
		dedupe.WithLogger(logger.Named("dedupe")),
	}
	if deps.LLM != nil {
		dedupeOpts = append(dedupeOpts, dedupe.WithOracle(dedupe.NewLLMOracle(deps.LLM, cfg.Deduplication)))
	}

	return &Engine{
		Config:       cfg,
		Judge:        judge,
		Classifier:   clf,
		Graph:        graph,
		Deduplicator: dedupe.NewDeduplicator(judge, clf, graph, dedupe.ConfigFrom(cfg), dedupeOpts...),
		Namer:        namer,
		deps:         deps,
		logger:       logger,
	}, nil
}

// Restore loads the training set and the decision graph from the stores.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deps.TrainingStore != nil {
		if err := e.Classifier.Restore(ctx, e.deps.TrainingStore); err != nil && !errors.Is(err, classifier.ErrInsufficientData) {
			return err
		}
	}
	if e.deps.EdgeStore != nil {
		if err := e.Graph.Restore(ctx, e.deps.EdgeStore); err != nil {
			return err
		}
	}
	e.logger.Info("engine state restored",
		zap.Int("training_samples", e.Classifier.Stats().TrainingSamples),
		zap.Int("edges", e.Graph.EdgeCount()))
	return nil
}

// persistLocked writes pending examples and the edge list. Caller holds mu.
func (e *Engine) persistLocked(ctx context.Context) error {
	if e.deps.TrainingStore != nil {
		if err := e.Classifier.Sync(ctx, e.deps.TrainingStore); err != nil {
			return err
		}
	}
	if e.deps.EdgeStore != nil {
		if err := e.Graph.Persist(ctx, e.deps.EdgeStore); err != nil {
			return err
		}
	}
	return nil
}

// ShouldMerge judges two names. A negative threshold means the configured one.
func (e *Engine) ShouldMerge(ctx context.Context, a, b string, threshold float64) model.SimilarityResult {
	if threshold < 0 {
		threshold = e.Judge.Threshold()
	}
	return e.Judge.ShouldMergeContext(ctx, a, b, threshold)
}

func (e *Engine) BatchShouldMerge(ctx context.Context, pairs []similarity.Pair) []model.SimilarityResult {
	return e.Judge.BatchShouldMerge(ctx, pairs)
}

func (e *Engine) FindSimilar(ctx context.Context, query string, candidates []string, threshold float64) []model.ScoredCandidate {
	if threshold < 0 {
		threshold = e.Judge.Threshold()
	}
	return e.Judge.FindSimilarItems(ctx, query, candidates, threshold)
}

func (e *Engine) ExtractFeatures(ctx context.Context, a, b model.KnowledgeItem) model.PairFeatures {
	return e.Classifier.ExtractFeatures(ctx, a, b)
}

func (e *Engine) Classify(ctx context.Context, a, b model.KnowledgeItem) classifier.Prediction {
	f := e.Classifier.ExtractFeatures(ctx, a, b)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Classifier.Predict(f)
}

// RecordDecision runs an oracle verdict through the quality gate and, when
// accepted, stores it as a training example.
func (e *Engine) RecordDecision(ctx context.Context, a, b model.KnowledgeItem, isMatch bool, confidence float64, retrain bool) (bool, error) {
	f := e.Classifier.ExtractFeatures(ctx, a, b)

	e.mu.Lock()
	defer e.mu.Unlock()

	var opts []classifier.RecordOption
	if retrain {
		opts = append(opts, classifier.WithRetrain())
	}
	accepted := e.Classifier.RecordDecision(a, b, f, isMatch, confidence, opts...)
	if err := e.persistLocked(ctx); err != nil {
		return accepted, err
	}
	return accepted, nil
}

func (e *Engine) Train(ctx context.Context) (classifier.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.Classifier.Retrain(); err != nil {
		return e.Classifier.Stats(), err
	}
	return e.Classifier.Stats(), nil
}

func (e *Engine) ExportTraining() []model.TrainingRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Classifier.ExportTrainingData()
}

func (e *Engine) ImportTraining(ctx context.Context, records []model.TrainingRecord) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.Classifier.ImportTrainingData(records)
	if err != nil && !errors.Is(err, classifier.ErrInsufficientData) {
		return n, err
	}
	if err := e.persistLocked(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// LoadTraining replaces the training set, in memory and in the store.
// Malformed records are skipped; it returns how many were kept.
func (e *Engine) LoadTraining(ctx context.Context, records []model.TrainingRecord) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.Classifier.LoadTrainingData(records); err != nil && !errors.Is(err, classifier.ErrInsufficientData) {
		return e.Classifier.Stats().TrainingSamples, err
	}
	if err := e.persistLocked(ctx); err != nil {
		return e.Classifier.Stats().TrainingSamples, err
	}
	return e.Classifier.Stats().TrainingSamples, nil
}

func (e *Engine) AddEdge(ctx context.Context, a, b string, isMatch bool, confidence float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Graph.AddEdge(a, b, isMatch, confidence)
	return e.persistLocked(ctx)
}

// Infer answers from the graph. minConfidence < 0 uses the graph floor.
func (e *Engine) Infer(a, b string, minConfidence float64) (model.Inference, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if minConfidence < 0 {
		return e.Graph.Infer(a, b)
	}
	return e.Graph.InferWithMin(a, b, minConfidence)
}

func (e *Engine) Component(id string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Graph.Component(id)
}

func (e *Engine) Splits() []community.Split {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Graph.ReviewSplits()
}

// Dedupe runs a batch and persists everything it learned.
func (e *Engine) Dedupe(ctx context.Context, items []model.KnowledgeItem) (*dedupe.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report, err := e.Deduplicator.Run(ctx, items)
	if err != nil {
		return nil, err
	}
	if err := e.persistLocked(ctx); err != nil {
		return report, err
	}
	if cs := e.deps.ClusterStore; cs != nil {
		if err := cs.SaveItems(ctx, items); err != nil {
			return report, err
		}
		for _, c := range report.Clusters {
			if err := cs.SaveCluster(ctx, c); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

// Clusters lists the clusters saved by earlier dedupe runs. It is empty
// without a cluster store.
func (e *Engine) Clusters(ctx context.Context) ([]model.Cluster, error) {
	if e.deps.ClusterStore == nil {
		return []model.Cluster{}, nil
	}
	clusters, err := e.deps.ClusterStore.LoadClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load clusters: %w", err)
	}
	if clusters == nil {
		clusters = []model.Cluster{}
	}
	return clusters, nil
}

// Health pings the training store when it supports it.
func (e *Engine) Health(ctx context.Context) error {
	if si, ok := e.deps.TrainingStore.(storeInspector); ok {
		if err := si.Ping(ctx); err != nil {
			return fmt.Errorf("training store: %w", err)
		}
	}
	return nil
}

func (e *Engine) storeStats(ctx context.Context) *StoreStats {
	si, ok := e.deps.TrainingStore.(storeInspector)
	if !ok {
		return nil
	}
	var s StoreStats
	var err error
	if s.SchemaVersion, err = si.SchemaVersionInUse(ctx); err != nil {
		e.logger.Warn("failed to read schema version", zap.Error(err))
	}
	if s.StoredExamples, err = si.CountExamples(ctx); err != nil {
		e.logger.Warn("failed to count stored examples", zap.Error(err))
	}
	return &s
}

func (e *Engine) Stats(ctx context.Context) Stats {
	e.mu.Lock()
	s := Stats{
		Judge:      e.Judge.Stats(),
		Classifier: e.Classifier.Stats(),
		Graph: GraphStats{
			Nodes:         e.Graph.NodeCount(),
			Edges:         e.Graph.EdgeCount(),
			MinConfidence: e.Graph.MinConfidence(),
		},
	}
	e.mu.Unlock()

	if c, ok := e.deps.Embedder.(*llm.CachedEmbedder); ok {
		hits, misses, size := c.Stats()
		s.Embeddings = &CacheStats{Hits: hits, Misses: misses, Size: size}
	}
	s.Store = e.storeStats(ctx)
	return s
}
