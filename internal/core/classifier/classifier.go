package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/core/features"
	"github.com/agenthands/examina/internal/core/learner"
	"github.com/agenthands/examina/internal/core/model"
)

var (
	ErrFeatureLength    = errors.New("classifier: training record must have 7 features")
	ErrInvalidLabel     = errors.New("classifier: training label must be 0 or 1")
	ErrNonFiniteFeature = errors.New("classifier: training record has a non-finite feature")
	ErrInsufficientData = errors.New("classifier: not enough training samples")
)

type Config struct {
	NEstimators        int
	PreferBoosted      bool
	MinTrainingSamples int
	EarlyStopping      bool
	Seed               int64
	Gate               features.GateConfig
}

func DefaultConfig() Config {
	return Config{
		NEstimators:        5,
		PreferBoosted:      true,
		MinTrainingSamples: 4,
		EarlyStopping:      true,
		Seed:               learner.DefaultSeed,
		Gate:               features.DefaultGateConfig(),
	}
}

// TrainingStore persists labeled examples. Saves append; ReplaceExamples
// swaps the whole set.
type TrainingStore interface {
	SaveExamples(ctx context.Context, examples []model.LabeledExample) error
	ReplaceExamples(ctx context.Context, examples []model.LabeledExample) error
	LoadExamples(ctx context.Context) ([]model.LabeledExample, error)
}

type Stats struct {
	TrainingSamples int       `json:"training_samples"`
	Positives       int       `json:"positives"`
	Negatives       int       `json:"negatives"`
	Accepted        int       `json:"accepted"`
	Rejected        int       `json:"rejected"`
	Retrains        int       `json:"retrains"`
	IsFitted        bool      `json:"is_fitted"`
	Backend         string    `json:"backend"`
	Backends        []string  `json:"available_backends"`
	CommitteeSize   int       `json:"committee_size"`
	Unsaved         int       `json:"unsaved"`
	LastTrained     time.Time `json:"last_trained,omitempty"`
}

// Prediction is the committee's view of one pair.
type Prediction struct {
	Features    model.PairFeatures `json:"features"`
	Probability float64            `json:"probability"`
	Uncertainty float64            `json:"uncertainty"`
	Fitted      bool               `json:"fitted"`
}

// ReviewCandidate is a pair waiting for an oracle.
type ReviewCandidate struct {
	ItemA       string             `json:"item_a"`
	ItemB       string             `json:"item_b"`
	Features    model.PairFeatures `json:"features"`
	Uncertainty float64            `json:"uncertainty"`
}

// ActiveClassifier binds the feature extractor, the quality gate and a
// committee to an append-only log of labeled examples.
//
// It is not safe for concurrent use; callers funnel decisions through one
// goroutine.
type ActiveClassifier struct {
	cfg       Config
	learner   learner.CommitteeClassifier
	gate      *features.Gate
	extractor *features.Extractor
	logger    *zap.Logger
	now       func() time.Time

	examples  []model.LabeledExample
	persisted int
	// replaced marks a wholesale reload the store has not seen yet.
	replaced bool

	accepted, rejected, retrains int
	lastTrained                  time.Time
}

type Option func(*ActiveClassifier)

func WithLearner(l learner.CommitteeClassifier) Option {
	return func(c *ActiveClassifier) { c.learner = l }
}

func WithExtractor(e *features.Extractor) Option {
	return func(c *ActiveClassifier) { c.extractor = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *ActiveClassifier) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *ActiveClassifier) { c.now = now }
}

func New(cfg Config, opts ...Option) *ActiveClassifier {
	c := &ActiveClassifier{
		cfg:    cfg,
		gate:   features.NewGate(cfg.Gate),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.learner == nil {
		c.learner = learner.CreateActiveLearner(cfg.NEstimators, cfg.PreferBoosted, learner.WithSeed(cfg.Seed))
	}
	if c.extractor == nil {
		c.extractor = features.NewExtractor(nil, c.logger)
	}
	return c
}

func (c *ActiveClassifier) Learner() learner.CommitteeClassifier { return c.learner }
func (c *ActiveClassifier) Gate() *features.Gate                { return c.gate }

// ValidateRecord checks one flattened training record.
func ValidateRecord(r model.TrainingRecord) error {
	if len(r.Features) != model.FeatureCount {
		return fmt.Errorf("%w: got %d", ErrFeatureLength, len(r.Features))
	}
	if r.Label != 0 && r.Label != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLabel, r.Label)
	}
	for i, v := range r.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: index %d", ErrNonFiniteFeature, i)
		}
	}
	return nil
}

func (c *ActiveClassifier) exampleFromRecord(r model.TrainingRecord) model.LabeledExample {
	f, _ := model.PairFeaturesFromVector(r.Features)
	return model.LabeledExample{
		ID:        uuid.NewString(),
		Features:  f,
		Label:     r.Label,
		CreatedAt: c.now(),
	}
}

// LoadTrainingData replaces the training set with records and fits the
// committee when there are enough of them. Malformed records are skipped
// with a warning. The next Sync replaces the stored set too.
func (c *ActiveClassifier) LoadTrainingData(records []model.TrainingRecord) error {
	examples := make([]model.LabeledExample, 0, len(records))
	for i, r := range records {
		if err := ValidateRecord(r); err != nil {
			c.logger.Warn("skipping training record", zap.Int("index", i), zap.Error(err))
			continue
		}
		examples = append(examples, c.exampleFromRecord(r))
	}
	c.examples = examples
	c.persisted = 0
	c.replaced = true
	c.logger.Info("loaded training data", zap.Int("records", len(records)), zap.Int("kept", len(examples)))
	return c.retrainIfEnough()
}

// ImportTrainingData appends records and returns how many were ingested.
// It is all-or-nothing: one malformed record rejects the whole batch.
func (c *ActiveClassifier) ImportTrainingData(records []model.TrainingRecord) (int, error) {
	for i, r := range records {
		if err := ValidateRecord(r); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}
	for _, r := range records {
		c.examples = append(c.examples, c.exampleFromRecord(r))
	}
	if err := c.retrainIfEnough(); err != nil {
		return len(records), err
	}
	return len(records), nil
}

// ExportTrainingData returns the training set in insertion order.
func (c *ActiveClassifier) ExportTrainingData() []model.TrainingRecord {
	out := make([]model.TrainingRecord, len(c.examples))
	for i, ex := range c.examples {
		out[i] = model.TrainingRecord{Features: ex.Features.ToVector(), Label: ex.Label}
	}
	return out
}

type recordOptions struct {
	retrain bool
}

type RecordOption func(*recordOptions)

// WithRetrain refits the committee right after an accepted decision.
func WithRetrain() RecordOption {
	return func(o *recordOptions) { o.retrain = true }
}

// RecordDecision runs the quality gate over an oracle verdict. Accepted
// verdicts become labeled examples; rejected ones are dropped. confidence is
// the oracle's confidence in its own verdict.
func (c *ActiveClassifier) RecordDecision(a, b model.KnowledgeItem, f model.PairFeatures, isMatch bool, confidence float64, opts ...RecordOption) bool {
	var o recordOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !c.gate.ShouldAddToTraining(f, features.MatchProbability(isMatch, confidence)) {
		c.rejected++
		c.logger.Debug("quality gate rejected decision",
			zap.String("item_a", a.Key()), zap.String("item_b", b.Key()),
			zap.Bool("is_match", isMatch), zap.Float64("confidence", confidence))
		return false
	}

	label := 0
	if isMatch {
		label = 1
	}
	c.examples = append(c.examples, model.LabeledExample{
		ID:               uuid.NewString(),
		ItemA:            a.Key(),
		ItemB:            b.Key(),
		Features:         f,
		Label:            label,
		OracleConfidence: confidence,
		CreatedAt:        c.now(),
	})
	c.accepted++

	if c.learner.IsFitted() {
		if err := c.learner.Teach([][]float64{f.ToVector()}, []int{label}); err != nil {
			c.logger.Warn("teach failed", zap.Error(err))
		}
	}
	if o.retrain {
		if err := c.Retrain(); err != nil && !errors.Is(err, ErrInsufficientData) {
			c.logger.Warn("retrain after decision failed", zap.Error(err))
		}
	}
	return true
}

// Retrain refits the committee on every retained example.
func (c *ActiveClassifier) Retrain() error {
	if len(c.examples) < c.cfg.MinTrainingSamples || len(c.examples) == 0 {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(c.examples), c.cfg.MinTrainingSamples)
	}
	X := make([][]float64, len(c.examples))
	y := make([]int, len(c.examples))
	for i, ex := range c.examples {
		X[i] = ex.Features.ToVector()
		y[i] = ex.Label
	}

	start := c.now()
	var err error
	if c.cfg.EarlyStopping {
		err = c.learner.FitWithEarlyStopping(X, y)
	} else {
		err = c.learner.Fit(X, y)
	}
	if err != nil {
		return fmt.Errorf("failed to fit committee: %w", err)
	}
	c.retrains++
	c.lastTrained = c.now()
	c.logger.Info("committee retrained",
		zap.String("backend", c.learner.Name()),
		zap.Int("samples", len(y)),
		zap.Int("committee", c.learner.CommitteeSize()),
		zap.Duration("took", c.lastTrained.Sub(start)))
	return nil
}

func (c *ActiveClassifier) retrainIfEnough() error {
	if err := c.Retrain(); err != nil && !errors.Is(err, ErrInsufficientData) {
		return err
	}
	return nil
}

// Predict returns P(match) and the committee uncertainty for f. An unfitted
// committee yields 0.5 and 1.0.
func (c *ActiveClassifier) Predict(f model.PairFeatures) Prediction {
	x := [][]float64{f.ToVector()}
	return Prediction{
		Features:    f,
		Probability: c.learner.PredictProba(x)[0][1],
		Uncertainty: c.learner.Uncertainty(x)[0],
		Fitted:      c.learner.IsFitted(),
	}
}

// Classify extracts features for (a, b) and predicts on them.
func (c *ActiveClassifier) Classify(ctx context.Context, a, b model.KnowledgeItem) Prediction {
	return c.Predict(c.extractor.Extract(ctx, a, b))
}

// ExtractFeatures exposes the configured extractor.
func (c *ActiveClassifier) ExtractFeatures(ctx context.Context, a, b model.KnowledgeItem) model.PairFeatures {
	return c.extractor.Extract(ctx, a, b)
}

// RankForReview orders candidates by descending committee uncertainty,
// filling in each Uncertainty. Ties keep their input order.
func (c *ActiveClassifier) RankForReview(candidates []ReviewCandidate) []ReviewCandidate {
	out := append([]ReviewCandidate(nil), candidates...)
	if len(out) == 0 {
		return out
	}
	X := make([][]float64, len(out))
	for i, rc := range out {
		X[i] = rc.Features.ToVector()
	}
	for i, u := range c.learner.Uncertainty(X) {
		out[i].Uncertainty = u
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Uncertainty > out[j].Uncertainty
	})
	return out
}

func (c *ActiveClassifier) Stats() Stats {
	s := Stats{
		TrainingSamples: len(c.examples),
		Accepted:        c.accepted,
		Rejected:        c.rejected,
		Retrains:        c.retrains,
		IsFitted:        c.learner.IsFitted(),
		Backend:         c.learner.Name(),
		Backends:        learner.Backends(),
		CommitteeSize:   c.learner.CommitteeSize(),
		Unsaved:         len(c.examples) - c.persisted,
		LastTrained:     c.lastTrained,
	}
	for _, ex := range c.examples {
		if ex.Label == 1 {
			s.Positives++
		} else {
			s.Negatives++
		}
	}
	return s
}

// Sync appends the examples the store has not seen yet, or rewrites the
// store after LoadTrainingData.
func (c *ActiveClassifier) Sync(ctx context.Context, store TrainingStore) error {
	if c.replaced {
		if err := store.ReplaceExamples(ctx, c.examples); err != nil {
			return fmt.Errorf("failed to replace training examples: %w", err)
		}
		c.replaced = false
		c.persisted = len(c.examples)
		c.logger.Debug("training examples replaced", zap.Int("count", len(c.examples)))
		return nil
	}
	pending := c.examples[c.persisted:]
	if len(pending) == 0 {
		return nil
	}
	if err := store.SaveExamples(ctx, pending); err != nil {
		return fmt.Errorf("failed to save training examples: %w", err)
	}
	c.persisted = len(c.examples)
	c.logger.Debug("training examples saved", zap.Int("count", len(pending)))
	return nil
}

// Restore replaces the training set with the store contents and refits.
func (c *ActiveClassifier) Restore(ctx context.Context, store TrainingStore) error {
	examples, err := store.LoadExamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to load training examples: %w", err)
	}
	c.examples = examples
	c.persisted = len(examples)
	c.replaced = false
	c.logger.Info("training data restored", zap.Int("samples", len(examples)))
	return c.retrainIfEnough()
}
