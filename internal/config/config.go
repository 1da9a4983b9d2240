package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type DeduplicationPrompts struct {
	Nodes     string `toml:"nodes"`
	Opposites string `toml:"opposites"`
}

type SummaryPrompts struct {
	CommunityName string `toml:"community_name"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	CacheSize      int    `toml:"cache_size"`
}

// Enabled reports whether an LLM provider is configured at all.
func (c LLMConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != "none"
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type SimilarityConfig struct {
	Threshold        float64 `toml:"threshold"`
	UseEmbeddings    bool    `toml:"use_embeddings"`
	VocabularyFile   string  `toml:"vocabulary_file"`
	DynamicOpposites bool    `toml:"dynamic_opposites"`
}

type QualityGateConfig struct {
	UncertainLow        float64 `toml:"uncertain_low"`
	UncertainHigh       float64 `toml:"uncertain_high"`
	SuspiciousEmbedding float64 `toml:"suspicious_embedding"`
	SuspiciousName      float64 `toml:"suspicious_name"`
}

type LearnerConfig struct {
	NEstimators        int   `toml:"n_estimators"`
	PreferBoosted      bool  `toml:"prefer_boosted"`
	MinTrainingSamples int   `toml:"min_training_samples"`
	EarlyStopping      bool  `toml:"early_stopping"`
	Seed               int64 `toml:"seed"`
}

type TransitiveConfig struct {
	MinConfidence float64 `toml:"min_confidence"`
}

type DedupeConfig struct {
	ReviewUncertainty float64 `toml:"review_uncertainty"`
	AutoConfidence    float64 `toml:"auto_confidence"`
	CandidateFloor    float64 `toml:"candidate_floor"`
	RetrainAfterRun   bool    `toml:"retrain_after_run"`
}

type ConcurrencyConfig struct {
	OracleWorkers     int     `toml:"oracle_workers"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type LoggingConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	Mode string `toml:"mode"`
}

type Config struct {
	LLM           LLMConfig            `toml:"llm"`
	Memgraph      MemgraphConfig       `toml:"memgraph"`
	Storage       StorageConfig        `toml:"storage"`
	Similarity    SimilarityConfig     `toml:"similarity"`
	QualityGate   QualityGateConfig    `toml:"quality_gate"`
	Learner       LearnerConfig        `toml:"learner"`
	Transitive    TransitiveConfig     `toml:"transitive"`
	Dedupe        DedupeConfig         `toml:"dedupe"`
	Concurrency   ConcurrencyConfig    `toml:"concurrency"`
	Deduplication DeduplicationPrompts `toml:"deduplication"`
	Summary       SummaryPrompts       `toml:"summary"`
	Logging       LoggingConfig        `toml:"logging"`
	Server        ServerConfig         `toml:"server"`
}

const defaultNodesPrompt = `You are deduplicating knowledge items extracted from university exercises.
Decide whether the two items below denote the same skill or concept.
Translations of the same concept (e.g. English and Italian) are the same concept.
Related but distinct concepts (e.g. Mealy vs Moore machines) are NOT the same.

Item A:
%s

Item B:
%s

Return a JSON object: {"is_match": true|false, "confidence": 0.0-1.0, "reasoning": "..."}`

const defaultOppositesPrompt = `Do these two names denote distinct concepts that must never be merged,
even though they look alike (e.g. "Upper Triangular Matrix" vs "Lower Triangular Matrix")?

Name A: %s
Name B: %s

Return a JSON object: {"are_opposites": true|false, "reason": "..."}`

const defaultCommunityNamePrompt = `The following names all denote the same knowledge item:
%s
Pick the clearest canonical English name for it.
Return a JSON object: {"name": "..."}`

// Default runs fully offline: no LLM, a SQLite file in the working
// directory and no Memgraph.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "none",
			CacheSize: 4096,
		},
		Storage: StorageConfig{
			Path: "examina.db",
		},
		Similarity: SimilarityConfig{
			Threshold: 0.85,
		},
		QualityGate: QualityGateConfig{
			UncertainLow:        0.4,
			UncertainHigh:       0.6,
			SuspiciousEmbedding: 0.3,
			SuspiciousName:      0.3,
		},
		Learner: LearnerConfig{
			NEstimators:        5,
			PreferBoosted:      true,
			MinTrainingSamples: 4,
			EarlyStopping:      true,
			Seed:               42,
		},
		Transitive: TransitiveConfig{
			MinConfidence: 0.75,
		},
		Dedupe: DedupeConfig{
			ReviewUncertainty: 0.3,
			AutoConfidence:    0.9,
			CandidateFloor:    0.5,
			RetrainAfterRun:   true,
		},
		Concurrency: ConcurrencyConfig{
			OracleWorkers:     4,
			RequestsPerSecond: 5,
		},
		Deduplication: DeduplicationPrompts{
			Nodes:     defaultNodesPrompt,
			Opposites: defaultOppositesPrompt,
		},
		Summary: SummaryPrompts{
			CommunityName: defaultCommunityNamePrompt,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides connection settings from the environment.
func (c *Config) ApplyEnv() {
	setString("LLM_PROVIDER", &c.LLM.Provider)
	setString("LLM_MODEL", &c.LLM.Model)
	setString("LLM_EMBEDDING_MODEL", &c.LLM.EmbeddingModel)
	setString("LLM_API_KEY", &c.LLM.APIKey)
	setString("LLM_BASE_URL", &c.LLM.BaseURL)
	setString("MEMGRAPH_URI", &c.Memgraph.URI)
	setString("MEMGRAPH_USER", &c.Memgraph.User)
	setString("MEMGRAPH_PASSWORD", &c.Memgraph.Password)
	setString("EXAMINA_DB_PATH", &c.Storage.Path)
	setString("EXAMINA_LOG_LEVEL", &c.Logging.Level)
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Similarity.Threshold < 0 || c.Similarity.Threshold > 1 {
		return fmt.Errorf("similarity.threshold must be between 0 and 1 (got %.2f)", c.Similarity.Threshold)
	}
	g := c.QualityGate
	for name, v := range map[string]float64{
		"quality_gate.uncertain_low":        g.UncertainLow,
		"quality_gate.uncertain_high":       g.UncertainHigh,
		"quality_gate.suspicious_embedding": g.SuspiciousEmbedding,
		"quality_gate.suspicious_name":      g.SuspiciousName,
		"transitive.min_confidence":         c.Transitive.MinConfidence,
		"dedupe.review_uncertainty":         c.Dedupe.ReviewUncertainty,
		"dedupe.auto_confidence":            c.Dedupe.AutoConfidence,
		"dedupe.candidate_floor":            c.Dedupe.CandidateFloor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1 (got %.2f)", name, v)
		}
	}
	if g.UncertainLow >= g.UncertainHigh {
		return fmt.Errorf("quality_gate.uncertain_low must be below uncertain_high (got %.2f >= %.2f)", g.UncertainLow, g.UncertainHigh)
	}
	if c.Learner.NEstimators <= 0 {
		return fmt.Errorf("learner.n_estimators must be positive (got %d)", c.Learner.NEstimators)
	}
	if c.Learner.MinTrainingSamples < 1 {
		return fmt.Errorf("learner.min_training_samples must be at least 1 (got %d)", c.Learner.MinTrainingSamples)
	}
	if c.Concurrency.OracleWorkers <= 0 {
		return fmt.Errorf("concurrency.oracle_workers must be positive (got %d)", c.Concurrency.OracleWorkers)
	}
	if c.Concurrency.RequestsPerSecond < 0 {
		return fmt.Errorf("concurrency.requests_per_second cannot be negative (got %.2f)", c.Concurrency.RequestsPerSecond)
	}
	if c.LLM.Enabled() {
		switch strings.ToLower(c.LLM.Provider) {
		case "openai", "claude", "gemini", "ollama":
		default:
			return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
		}
	}
	return nil
}
