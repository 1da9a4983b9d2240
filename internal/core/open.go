package core

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/driver"
	"github.com/agenthands/examina/internal/llm"
	"github.com/agenthands/examina/internal/storage"
)

// Open builds the LLM clients and stores named by cfg, assembles the engine
// and restores its state. Training examples always live in SQLite when a
// storage path is set; the edge list goes to Memgraph when a URI is set and
// to SQLite otherwise.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		deps    Dependencies
		closers []func(context.Context) error
	)
	fail := func(err error) (*Engine, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](ctx)
		}
		return nil, err
	}

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM, logger.Named("llm"))
	if err != nil {
		return fail(err)
	}
	deps.LLM, deps.Embedder = llmClient, embedder
	if c, ok := llmClient.(io.Closer); ok {
		closers = append(closers, func(context.Context) error { return c.Close() })
	}

	if cfg.Storage.Path != "" {
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func(context.Context) error { return db.Close() })
		deps.TrainingStore = db
		deps.EdgeStore = db
		logger.Info("using sqlite store", zap.String("path", db.Path()))
	}

	if cfg.Memgraph.URI != "" {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger.Named("memgraph"))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, d.Close)
		if err := d.BuildIndices(ctx); err != nil {
			return fail(err)
		}
		es := driver.NewEdgeStore(d)
		deps.EdgeStore = es
		deps.ClusterStore = es
	}

	e, err := NewEngine(cfg, deps, logger)
	if err != nil {
		return fail(err)
	}
	e.closers = closers
	if err := e.Restore(ctx); err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	return e, nil
}

// Close releases the stores and clients opened by Open, newest first.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
