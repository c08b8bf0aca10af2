package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/donortrace/internal/model"
)

// Keys that are usually empty by default and so need an explicit env binding
var secretKeys = []string{
	"backend.url",
	"backend.key",
	"backend.database_url",
	"llm.api_key",
	"llm.base_url",
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
}

// Conventional variables read when the DONORTRACE_* ones are unset
var envFallbacks = map[string][]string{
	"backend.url":          {"SUPABASE_URL"},
	"backend.key":          {"SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_KEY"},
	"backend.database_url": {"DATABASE_URL"},
}

var providerKeyEnv = map[string][]string{
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

// registerDefaults makes every key of cfg known to v so that Unmarshal
// sees env overrides for it
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	for _, key := range secretKeys {
		_ = v.BindEnv(key)
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig merges defaults, the config file, env and bound flags.
// Validation happens when the engine is built.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnvFallbacks(cfg)
	return cfg, nil
}

func applyEnvFallbacks(cfg *model.Config) {
	fields := map[string]*string{
		"backend.url":          &cfg.Backend.URL,
		"backend.key":          &cfg.Backend.Key,
		"backend.database_url": &cfg.Backend.DatabaseURL,
	}
	for key, names := range envFallbacks {
		if *fields[key] == "" {
			*fields[key] = firstEnv(names...)
		}
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = firstEnv(providerKeyEnv[cfg.LLM.Provider]...)
	}
	if cfg.Backend.Driver == "" && cfg.Backend.DatabaseURL != "" && cfg.Backend.URL == "" {
		cfg.Backend.Driver = "postgres"
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// masked returns a copy of cfg safe to print
func masked(cfg *model.Config) *model.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		if len(s) <= 8 {
			return "****"
		}
		return s[:4] + "****"
	}
	out.Backend.Key = mask(out.Backend.Key)
	out.Backend.DatabaseURL = mask(out.Backend.DatabaseURL)
	out.LLM.APIKey = mask(out.LLM.APIKey)
	return &out
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage donortrace configuration",
	Long: `Manage donortrace configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (DONORTRACE_*, then SUPABASE_*, DATABASE_URL and the provider API key variables)
3. Config file (~/.donortrace/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after merging defaults, the config file, environment variables and flags. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(masked(cfg))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(yamlData))

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "\nWarning: %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.donortrace/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := configDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}
		configPath := filepath.Join(dir, "config.yaml")

		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		fmt.Printf("Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the effective configuration:\n  donortrace config show\n")
		return nil
	},
}

const configHeader = `# donortrace configuration
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (DONORTRACE_*, e.g. DONORTRACE_LLM_MODEL)
#   3. This config file
#   4. Built-in defaults
#
# Keep secrets out of this file; prefer the environment or a .env file:
#   SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY or DATABASE_URL
#   GEMINI_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY
#
# A slower model can get its own rate under rate_limiting:
#   overrides:
#     - key: gemini/gemini-2.5-pro
#       requests_per_second: 0.2
#       burst_size: 1

`

// writeDefaultConfig writes the defaults to path, refusing to overwrite
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'donortrace config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), yamlData...), 0600); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
