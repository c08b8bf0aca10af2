package worker

import (
	"context"
	"testing"
	"time"

	"github.com/ppiankov/donortrace/internal/model"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 1 {
		t.Errorf("expected default burst 1 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "gemini/gemini-2.5-flash"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "openai/gpt-4o"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

// exhausted reports whether a second call for key would have to wait
// longer than a few milliseconds
func exhausted(l *Limiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, key) != nil
}

func TestLimiter_PerKey(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "gemini/flash"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	if !exhausted(limiter, "gemini/flash") {
		t.Errorf("expected tokens for gemini/flash to be exhausted")
	}
	if exhausted(limiter, "openai/gpt-4o") {
		t.Errorf("expected other key to be allowed")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 50; i++ {
		if exhausted(limiter, "k") {
			t.Fatalf("call %d rejected by unlimited limiter", i)
		}
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Wait(context.Background(), "k"); err != nil {
		t.Errorf("nil limiter should not block: %v", err)
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetRate("slow", 0.1, 1)

	if exhausted(limiter, "slow") {
		t.Errorf("first request should pass")
	}
	if !exhausted(limiter, "slow") {
		t.Errorf("second request should wait")
	}
	if exhausted(limiter, "fast") {
		t.Errorf("other key should pass")
	}
}

func TestNewModelLimiter_Overrides(t *testing.T) {
	limiter := NewModelLimiter(model.RateLimitConfig{
		RequestsPerSecond: 0,
		BurstSize:         1,
		Overrides: []model.RateOverride{
			{Key: "gemini/gemini-2.5-pro", RequestsPerSecond: 0.1, BurstSize: 1},
		},
	})

	if exhausted(limiter, "gemini/gemini-2.5-pro") {
		t.Errorf("first request should pass")
	}
	if !exhausted(limiter, "gemini/gemini-2.5-pro") {
		t.Errorf("override should throttle the second request")
	}
	for i := 0; i < 5; i++ {
		if exhausted(limiter, "gemini/gemini-2.5-flash") {
			t.Fatalf("unlimited default rejected call %d", i)
		}
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	_ = limiter.Wait(context.Background(), "k")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx, "k"); err == nil {
		t.Errorf("expected error on cancelled context")
	}
}
