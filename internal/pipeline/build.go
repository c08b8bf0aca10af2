package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/backend"
	"github.com/ppiankov/donortrace/internal/cache"
	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/util"
	"github.com/ppiankov/donortrace/internal/worker"
)

// Engine is a fully wired pipeline together with the resources it owns
type Engine struct {
	*Pipeline
	Provider llm.Provider
	closers  []func()
}

// Close releases the backend connection
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// Build wires the backend, caches, model provider and limiter from cfg
func Build(ctx context.Context, cfg *model.Config, m *metrics.Collector, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)
	e := &Engine{}

	caller, err := newCaller(ctx, cfg.Backend, logger, e)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = defaultCacheDir()
		}
		caller = cache.NewCachingCaller(caller, cache.NewMemoryDiskCache(cfg.Cache.MemoryTTL, filepath.Join(dir, "backend"), cfg.Cache.DiskTTL), cfg.Cache.MemoryTTL, m, logger)
		logger.Debug("backend cache enabled", zap.String("dir", dir))
	}
	fetcher := NewFetcher(caller, m, logger)

	httpClient := util.NewHTTPClient(cfg.HTTP, cfg.LLM.Timeout)
	raw, err := llm.NewProvider(ctx, cfg.LLM, httpClient)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create model provider: %w", err)
	}
	opts := llm.GuardOptions{
		Timeout: cfg.LLM.Timeout,
		Limiter: worker.NewModelLimiter(cfg.RateLimiting),
		Metrics: m,
		Logger:  logger,
	}
	provider := llm.NewGuard(raw, opts)

	var embedder llm.Embedder
	inner, err := llm.EmbedderOf(raw)
	switch {
	case errors.Is(err, llm.ErrNoEmbeddings):
		logger.Info("provider has no embeddings; bill search is lexical only", zap.String("provider", raw.Name()))
	case err != nil:
		e.Close()
		return nil, err
	default:
		cached, err := cache.NewEmbeddingCache(llm.NewGuardEmbedder(inner, raw.Name(), opts), cfg.Cache.EmbeddingSize, m)
		if err != nil {
			e.Close()
			return nil, err
		}
		embedder = cached
	}

	e.Pipeline = New(cfg, fetcher, provider, embedder, m, logger)
	e.Provider = provider
	return e, nil
}

func newCaller(ctx context.Context, cfg model.BackendConfig, logger *zap.Logger, e *Engine) (backend.Caller, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := backend.NewPostgresCaller(ctx, cfg.DatabaseURL, cfg.Schema, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres backend: %w", err)
		}
		e.closers = append(e.closers, pg.Close)
		return pg, nil
	default:
		sb, err := backend.NewSupabaseCaller(cfg.URL, cfg.Key, cfg.Schema, logger)
		if err != nil {
			return nil, fmt.Errorf("create supabase backend: %w", err)
		}
		return sb, nil
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "donortrace")
	}
	return filepath.Join(os.TempDir(), "donortrace-cache")
}
