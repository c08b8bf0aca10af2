package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

// ErrNoEmbeddings is returned for providers without an embedding endpoint
var ErrNoEmbeddings = errors.New("provider has no embedding endpoint")

// NewProvider creates the provider named by cfg.Provider
func NewProvider(ctx context.Context, cfg model.LLMConfig, httpClient *http.Client) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini", "google", "":
		return NewGeminiProvider(ctx, cfg, httpClient)

	case "openai":
		return NewOpenAIProvider(cfg, httpClient)

	case "anthropic", "claude":
		return NewAnthropicProvider(cfg, httpClient)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: gemini, openai, anthropic)", cfg.Provider)
	}
}

// EmbedderOf returns p as an Embedder when it supports embeddings
func EmbedderOf(p Provider) (Embedder, error) {
	if g, ok := p.(*Guard); ok {
		p = g.inner
	}
	if e, ok := p.(Embedder); ok {
		return e, nil
	}
	return nil, fmt.Errorf("%s: %w", p.Name(), ErrNoEmbeddings)
}
