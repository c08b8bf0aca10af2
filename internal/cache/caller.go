package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/backend"
	"github.com/ppiankov/donortrace/internal/metrics"
)

// CachingCaller caches read-only backend procedures. Only procedures
// named get_* are cached; searches, listings and save_* hooks always go
// to the backend.
type CachingCaller struct {
	inner   backend.Caller
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewCachingCaller wraps inner with c
func NewCachingCaller(inner backend.Caller, c Cache, ttl time.Duration, m *metrics.Collector, logger *zap.Logger) *CachingCaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingCaller{inner: inner, cache: c, ttl: ttl, metrics: m, logger: logger}
}

// Call answers from cache when possible
func (c *CachingCaller) Call(ctx context.Context, procedure string, params map[string]any) (json.RawMessage, error) {
	if !strings.HasPrefix(procedure, "get_") {
		return c.inner.Call(ctx, procedure, params)
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params for %s: %w", procedure, err)
	}
	key := Key(procedure, string(encoded))

	if val, found := c.cache.Get(key); found {
		c.metrics.ObserveCache("backend", true)
		return json.RawMessage(val), nil
	}
	c.metrics.ObserveCache("backend", false)

	raw, err := c.inner.Call(ctx, procedure, params)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(key, raw, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("procedure", procedure), zap.Error(err))
	}
	return raw, nil
}
