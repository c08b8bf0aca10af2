package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete runtime configuration
type Config struct {
	Backend      BackendConfig     `yaml:"backend" mapstructure:"backend"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Analysis     AnalysisConfig    `yaml:"analysis" mapstructure:"analysis"`
	Themes       ThemeConfig       `yaml:"themes" mapstructure:"themes"`
	Search       SearchConfig      `yaml:"search" mapstructure:"search"`
	Agent        AgentConfig       `yaml:"agent" mapstructure:"agent"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// BackendConfig selects and configures the remote-procedure backend
type BackendConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=supabase postgres"`
	URL         string `yaml:"url" mapstructure:"url"`                             // Supabase project URL
	Key         string `yaml:"key,omitempty" mapstructure:"key"`                   // Prefer DONORTRACE_BACKEND_KEY
	Schema      string `yaml:"schema" mapstructure:"schema"`                       // PostgREST schema
	DatabaseURL string `yaml:"database_url,omitempty" mapstructure:"database_url"` // postgres driver only
}

// LLMConfig configures the generative model
type LLMConfig struct {
	Provider        string        `yaml:"provider" mapstructure:"provider" validate:"oneof=gemini openai anthropic"`
	Model           string        `yaml:"model" mapstructure:"model"`
	EmbeddingModel  string        `yaml:"embedding_model" mapstructure:"embedding_model"`
	APIKey          string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL         string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"` // Per model call
	Temperature     float32       `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int           `yaml:"max_output_tokens" mapstructure:"max_output_tokens" validate:"gt=0"`
}

// AnalysisConfig tunes the two-phase pipeline
type AnalysisConfig struct {
	MinDonation         float64 `yaml:"min_donation" mapstructure:"min_donation" validate:"gte=0"`
	DonationBufferDays  int     `yaml:"donation_buffer_days" mapstructure:"donation_buffer_days" validate:"gte=0"`
	BillsPerBatch       int     `yaml:"bills_per_batch" mapstructure:"bills_per_batch" validate:"gt=0"`
	Phase2TopN          int     `yaml:"phase2_top_n" mapstructure:"phase2_top_n" validate:"gt=0"`
	Phase2MinConfidence float64 `yaml:"phase2_min_confidence" mapstructure:"phase2_min_confidence" validate:"gte=0,lte=1"`
	BillTextChars       int     `yaml:"bill_text_chars" mapstructure:"bill_text_chars" validate:"gt=0"`
	Persist             bool    `yaml:"persist" mapstructure:"persist"` // Call save_* procedures
}

// ThemeConfig tunes theme discovery
type ThemeConfig struct {
	DaysBefore     int      `yaml:"days_before" mapstructure:"days_before" validate:"gte=0"`
	DaysAfter      int      `yaml:"days_after" mapstructure:"days_after" validate:"gte=0"`
	MinAmount      float64  `yaml:"min_amount" mapstructure:"min_amount" validate:"gte=0"`
	DonorLimit     int      `yaml:"donor_limit" mapstructure:"donor_limit" validate:"gt=0"`
	MinThemes      int      `yaml:"min_themes" mapstructure:"min_themes" validate:"gt=0"`
	MaxThemes      int      `yaml:"max_themes" mapstructure:"max_themes" validate:"gtefield=MinThemes"`
	ExcludedDonors []string `yaml:"excluded_donors" mapstructure:"excluded_donors"` // Case-insensitive substrings
}

// SearchConfig tunes the iterative evidence search
type SearchConfig struct {
	Thresholds      []float64 `yaml:"thresholds" mapstructure:"thresholds" validate:"min=1,dive,gt=0,lte=1"`
	BatchSize       int       `yaml:"batch_size" mapstructure:"batch_size" validate:"gt=0"`
	MinNewResults   int       `yaml:"min_new_results" mapstructure:"min_new_results" validate:"gte=0"`
	StagnationLimit int       `yaml:"stagnation_limit" mapstructure:"stagnation_limit" validate:"gt=0"`
	BillCap         int       `yaml:"bill_cap" mapstructure:"bill_cap" validate:"gt=0"`
	MinPhrases      int       `yaml:"min_phrases" mapstructure:"min_phrases" validate:"gte=0"`
	PageSize        int       `yaml:"page_size" mapstructure:"page_size" validate:"gt=0"` // Rows per search call
	RankTopN        int       `yaml:"rank_top_n" mapstructure:"rank_top_n" validate:"gt=0"`
	SelectMax       int       `yaml:"select_max" mapstructure:"select_max" validate:"gt=0"`
	FallbackTopN    int       `yaml:"fallback_top_n" mapstructure:"fallback_top_n" validate:"gt=0"`
}

// AgentConfig tunes the tool-calling loop
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations" validate:"gt=0"`
}

// CacheConfig configures the session and report caches
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL       time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	EmbeddingSize int           `yaml:"embedding_entries" mapstructure:"embedding_entries" validate:"gte=0"`
}

// ConcurrencyConfig bounds fan-out
type ConcurrencyConfig struct {
	FetchWorkers     int `yaml:"fetch_workers" mapstructure:"fetch_workers" validate:"gt=0"`         // Parallel backend fetches within a phase
	EmbeddingWorkers int `yaml:"embedding_workers" mapstructure:"embedding_workers" validate:"gt=0"` // Parallel phrase embeddings
	BatchWorkers     int `yaml:"batch_workers" mapstructure:"batch_workers" validate:"gt=0"`         // Legislators analysed at once
}

// RateLimitConfig throttles outbound model calls
type RateLimitConfig struct {
	RequestsPerSecond float64        `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`
	BurstSize         int            `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=0"`
	Overrides         []RateOverride `yaml:"overrides,omitempty" mapstructure:"overrides" validate:"dive"`
}

// RateOverride sets a different rate for one provider/model key,
// e.g. "gemini/gemini-2.5-pro"
type RateOverride struct {
	Key               string  `yaml:"key" mapstructure:"key" validate:"required"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=0"`
}

// HTTPConfig holds proxy settings for outbound model traffic
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// OutputConfig controls rendering and logging
type OutputConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	LogJSON       bool   `yaml:"log_json" mapstructure:"log_json"`
	MetricsAddr   string `yaml:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"` // Markdown disclaimer footer
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Driver: "supabase",
			Schema: "public",
		},
		LLM: LLMConfig{
			Provider:        "gemini",
			Model:           "gemini-2.5-flash",
			EmbeddingModel:  "text-embedding-004",
			Timeout:         10 * time.Minute,
			Temperature:     0.2,
			MaxOutputTokens: 32768,
		},
		Analysis: AnalysisConfig{
			MinDonation:         MinSignificantDonation,
			DonationBufferDays:  100,
			BillsPerBatch:       150,
			Phase2TopN:          10,
			Phase2MinConfidence: 0.5,
			BillTextChars:       30000,
			Persist:             true,
		},
		Themes: ThemeConfig{
			DaysBefore: 180,
			DaysAfter:  180,
			MinAmount:  MinSignificantDonation,
			DonorLimit: 100,
			MinThemes:  5,
			MaxThemes:  30,
			ExcludedDonors: []string{
				"public financing",
				"clean elections",
				"multiple contributors",
				"small contributors",
				"friends of",
			},
		},
		Search: SearchConfig{
			Thresholds:      []float64{0.35, 0.25, 0.15, 0.10},
			BatchSize:       5,
			MinNewResults:   5,
			StagnationLimit: 2,
			BillCap:         1000,
			MinPhrases:      10,
			PageSize:        200,
			RankTopN:        150,
			SelectMax:       20,
			FallbackTopN:    15,
		},
		Agent: AgentConfig{
			MaxIterations: 25,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Dir:           "",
			MemoryTTL:     time.Hour,
			DiskTTL:       24 * time.Hour,
			EmbeddingSize: 4096,
		},
		Concurrency: ConcurrencyConfig{
			FetchWorkers:     10,
			EmbeddingWorkers: 5,
			BatchWorkers:     2,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Output: OutputConfig{
			Dir:           "./donortrace-reports",
			IncludeFooter: true,
		},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for i := 1; i < len(c.Search.Thresholds); i++ {
		if c.Search.Thresholds[i] >= c.Search.Thresholds[i-1] {
			return fmt.Errorf("invalid config: search thresholds must be strictly descending, got %v", c.Search.Thresholds)
		}
	}
	switch c.Backend.Driver {
	case "supabase":
		if c.Backend.URL == "" {
			return fmt.Errorf("invalid config: backend.url is required for the supabase driver")
		}
	case "postgres":
		if c.Backend.DatabaseURL == "" {
			return fmt.Errorf("invalid config: backend.database_url is required for the postgres driver")
		}
	}
	return nil
}
