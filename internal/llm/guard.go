package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/worker"
)

// DefaultCallTimeout bounds every outbound model call
const DefaultCallTimeout = 10 * time.Minute

// GuardOptions configures a Guard
type GuardOptions struct {
	Timeout time.Duration
	Limiter *worker.Limiter
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Guard wraps a Provider so every call is rate limited, bounded by a
// timeout, cancelled on return, measured and translated into ModelError.
// It does not retry.
type Guard struct {
	inner   Provider
	timeout time.Duration
	limiter *worker.Limiter
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewGuard wraps p
func NewGuard(p Provider, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Guard{
		inner:   p,
		timeout: opts.Timeout,
		limiter: opts.Limiter,
		metrics: opts.Metrics,
		logger:  opts.Logger.With(zap.String("provider", p.Name()), zap.String("model", p.Model())),
	}
}

// Name returns the wrapped provider's name
func (g *Guard) Name() string { return g.inner.Name() }

// Model returns the wrapped provider's model
func (g *Guard) Model() string { return g.inner.Model() }

// Generate runs req through the wrapped provider
func (g *Guard) Generate(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := g.call(ctx, req.Phase, func(ctx context.Context) (int, error) {
		var err error
		resp, err = g.inner.Generate(ctx, req)
		if err != nil {
			return 0, err
		}
		if resp == nil || strings.TrimSpace(resp.Text) == "" {
			return 0, ErrEmptyResponse
		}
		return resp.TokensUsed, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Converse runs conv through the wrapped provider
func (g *Guard) Converse(ctx context.Context, conv Conversation) (*Turn, error) {
	var turn *Turn
	err := g.call(ctx, conv.Phase, func(ctx context.Context) (int, error) {
		var err error
		turn, err = g.inner.Converse(ctx, conv)
		if err != nil {
			return 0, err
		}
		if turn == nil || (!turn.HasToolCalls() && strings.TrimSpace(turn.Text) == "") {
			return 0, ErrEmptyResponse
		}
		return turn.TokensUsed, nil
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

func (g *Guard) call(ctx context.Context, phase string, fn func(context.Context) (int, error)) error {
	key := g.inner.Name() + "/" + g.inner.Model()
	if err := g.limiter.Wait(ctx, key); err != nil {
		return Classify(g.inner.Name(), phase, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	tokens, err := fn(callCtx)
	elapsed := time.Since(start)
	g.metrics.ObserveModelCall(g.inner.Name(), phase, err, elapsed, tokens)

	if err != nil {
		me := Classify(g.inner.Name(), phase, err)
		g.logger.Warn("model call failed",
			zap.String("phase", phase),
			zap.String("kind", string(me.Kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return me
	}

	g.logger.Debug("model call",
		zap.String("phase", phase),
		zap.Duration("elapsed", elapsed),
		zap.Int("tokens", tokens))
	return nil
}

// GuardEmbedder applies the same timeout and metrics to an Embedder
type GuardEmbedder struct {
	inner    Embedder
	provider string
	timeout  time.Duration
	metrics  *metrics.Collector
}

// NewGuardEmbedder wraps e
func NewGuardEmbedder(e Embedder, provider string, opts GuardOptions) *GuardEmbedder {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCallTimeout
	}
	return &GuardEmbedder{inner: e, provider: provider, timeout: opts.Timeout, metrics: opts.Metrics}
}

// Embed returns one vector per text
func (g *GuardEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	vectors, err := g.inner.Embed(callCtx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = ErrEmptyResponse
	}
	g.metrics.ObserveModelCall(g.provider, "embed", err, time.Since(start), 0)
	if err != nil {
		return nil, Classify(g.provider, "embed", err)
	}
	return vectors, nil
}
