package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/core"
	"github.com/agenthands/examina/internal/core/classifier"
	"github.com/agenthands/examina/internal/core/community"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/core/similarity"
)

type Server struct {
	Engine *core.Engine
	logger *zap.Logger
}

func NewServer(engine *core.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Engine: engine, logger: logger}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.Health)
	r.GET("/stats", s.Stats)

	r.POST("/similarity", s.Similarity)
	r.POST("/similarity/batch", s.BatchSimilarity)
	r.POST("/similarity/search", s.SearchSimilar)

	r.POST("/features", s.Features)
	r.POST("/decisions", s.RecordDecision)
	r.POST("/train", s.Train)
	r.GET("/training", s.ExportTraining)
	r.POST("/training", s.ImportTraining)

	r.POST("/edges", s.AddEdge)
	r.GET("/infer", s.Infer)
	r.GET("/components/:id", s.Component)
	r.GET("/splits", s.Splits)

	r.POST("/dedupe", s.Dedupe)
	r.GET("/clusters", s.Clusters)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) Health(c *gin.Context) {
	if err := s.Engine.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Stats(c.Request.Context()))
}

// SimilarityRequest takes pointers so that empty names are accepted while a
// missing field is still rejected.
type SimilarityRequest struct {
	A *string `json:"a" binding:"required"`
	B *string `json:"b" binding:"required"`
	// Threshold defaults to the configured one.
	Threshold *float64 `json:"threshold" binding:"omitempty,gte=0,lte=1"`
}

func threshold(t *float64) float64 {
	if t == nil {
		return -1
	}
	return *t
}

func (s *Server) Similarity(c *gin.Context) {
	var req SimilarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, s.Engine.ShouldMerge(c.Request.Context(), *req.A, *req.B, threshold(req.Threshold)))
}

type BatchSimilarityRequest struct {
	Pairs []similarity.Pair `json:"pairs" binding:"required"`
}

func (s *Server) BatchSimilarity(c *gin.Context) {
	var req BatchSimilarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": s.Engine.BatchShouldMerge(c.Request.Context(), req.Pairs)})
}

type SearchRequest struct {
	Query      string   `json:"query" binding:"required"`
	Candidates []string `json:"candidates"`
	Threshold  *float64 `json:"threshold" binding:"omitempty,gte=0,lte=1"`
}

func (s *Server) SearchSimilar(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	hits := s.Engine.FindSimilar(c.Request.Context(), req.Query, req.Candidates, threshold(req.Threshold))
	if hits == nil {
		hits = []model.ScoredCandidate{}
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

type PairRequest struct {
	ItemA model.KnowledgeItem `json:"item_a"`
	ItemB model.KnowledgeItem `json:"item_b"`
}

func (s *Server) Features(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	pred := s.Engine.Classify(c.Request.Context(), req.ItemA, req.ItemB)
	c.JSON(http.StatusOK, pred)
}

type DecisionRequest struct {
	ItemA      model.KnowledgeItem `json:"item_a"`
	ItemB      model.KnowledgeItem `json:"item_b"`
	IsMatch    bool                `json:"is_match"`
	Confidence float64             `json:"confidence" binding:"gte=0,lte=1"`
	Retrain    bool                `json:"retrain"`
}

func (s *Server) RecordDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	accepted, err := s.Engine.RecordDecision(c.Request.Context(), req.ItemA, req.ItemB, req.IsMatch, req.Confidence, req.Retrain)
	if err != nil {
		s.logger.Error("failed to record decision", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record decision"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted})
}

func (s *Server) Train(c *gin.Context) {
	stats, err := s.Engine.Train(c.Request.Context())
	if errors.Is(err, classifier.ErrInsufficientData) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "stats": stats})
		return
	}
	if err != nil {
		s.logger.Error("failed to train", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to train"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) ExportTraining(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": s.Engine.ExportTraining()})
}

type ImportRequest struct {
	Records []model.TrainingRecord `json:"records" binding:"required"`
	// Replace swaps the whole training set instead of appending.
	Replace bool `json:"replace"`
}

func (s *Server) ImportTraining(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Replace {
		n, err := s.Engine.LoadTraining(c.Request.Context(), req.Records)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"loaded": n})
		return
	}
	n, err := s.Engine.ImportTraining(c.Request.Context(), req.Records)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

type EdgeRequest struct {
	SourceID   string  `json:"source_id" binding:"required"`
	TargetID   string  `json:"target_id" binding:"required"`
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence" binding:"gte=0,lte=1"`
}

func (s *Server) AddEdge(c *gin.Context) {
	var req EdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.Engine.AddEdge(c.Request.Context(), req.SourceID, req.TargetID, req.IsMatch, req.Confidence); err != nil {
		s.logger.Error("failed to add edge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add edge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) Infer(c *gin.Context) {
	a, b := c.Query("a"), c.Query("b")
	if a == "" || b == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a and b are required"})
		return
	}
	minConfidence := -1.0
	if raw := c.Query("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_confidence must be between 0 and 1"})
			return
		}
		minConfidence = v
	}
	inf, ok := s.Engine.Infer(a, b, minConfidence)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "inference": inf})
}

func (s *Server) Component(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{"id": id, "members": s.Engine.Component(id)})
}

func (s *Server) Splits(c *gin.Context) {
	splits := s.Engine.Splits()
	if splits == nil {
		splits = []community.Split{}
	}
	c.JSON(http.StatusOK, gin.H{"splits": splits})
}

type DedupeRequest struct {
	Items []model.KnowledgeItem `json:"items" binding:"required"`
}

func (s *Server) Dedupe(c *gin.Context) {
	var req DedupeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	report, err := s.Engine.Dedupe(c.Request.Context(), req.Items)
	if err != nil {
		s.logger.Error("dedupe run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deduplicate"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) Clusters(c *gin.Context) {
	clusters, err := s.Engine.Clusters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}
