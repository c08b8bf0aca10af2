package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/report"
	"github.com/ppiankov/donortrace/internal/worker"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetEnvPrefix("DONORTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	require.NoError(t, registerDefaults(v, model.DefaultConfig()))
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newViper(t))
	require.NoError(t, err)

	def := model.DefaultConfig()
	assert.Equal(t, def.Search.Thresholds, cfg.Search.Thresholds)
	assert.Equal(t, def.LLM.Timeout, cfg.LLM.Timeout)
	assert.Equal(t, def.Themes.ExcludedDonors, cfg.Themes.ExcludedDonors)
	assert.Equal(t, 25, cfg.Agent.MaxIterations)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 2m
search:
  thresholds: [0.5, 0.2]
themes:
  max_themes: 12
rate_limiting:
  overrides:
    - key: gemini/gemini-2.5-pro
      requests_per_second: 0.2
      burst_size: 1
`), 0600))

	t.Setenv("DONORTRACE_ANALYSIS_MIN_DONATION", "250")
	t.Setenv("DONORTRACE_BACKEND_KEY", "service-role-key")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
	assert.Equal(t, []float64{0.5, 0.2}, cfg.Search.Thresholds)
	assert.Equal(t, 12, cfg.Themes.MaxThemes)
	assert.Equal(t, []model.RateOverride{{Key: "gemini/gemini-2.5-pro", RequestsPerSecond: 0.2, BurstSize: 1}}, cfg.RateLimiting.Overrides)
	assert.Equal(t, 1.0, cfg.RateLimiting.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Themes.MinThemes)
	assert.Equal(t, 250.0, cfg.Analysis.MinDonation)
	assert.Equal(t, "service-role-key", cfg.Backend.Key)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoadConfig_ConventionalEnv(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "role")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := loadConfig(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, "https://example.supabase.co", cfg.Backend.URL)
	assert.Equal(t, "role", cfg.Backend.Key)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
}

func TestMasked(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-1234567890"
	cfg.Backend.Key = "short"

	out := masked(cfg)
	assert.Equal(t, "sk-1****", out.LLM.APIKey)
	assert.Equal(t, "****", out.Backend.Key)
	assert.Equal(t, "sk-1234567890", cfg.LLM.APIKey)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# donortrace configuration"))
	assert.Contains(t, string(data), "max_iterations: 25")

	err = writeDefaultConfig(path)
	assert.ErrorContains(t, err, "already exists")
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want model.Mode
	}{
		{"", model.ModeTwoPhase},
		{"two-phase", model.ModeTwoPhase},
		{"Two_Phase", model.ModeTwoPhase},
		{"agent", model.ModeAgent},
	}
	for _, tt := range tests {
		got, err := parseMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseMode("theme")
	assert.Error(t, err)
}

func TestReportBase(t *testing.T) {
	r := &model.Report{
		Mode:       model.ModeTwoPhase,
		Legislator: model.Legislator{PersonID: 42},
		Sessions:   []model.Session{{ID: 7}, {ID: 8}},
	}
	assert.Equal(t, "42-7-8-two_phase", reportBase(r))

	r = &model.Report{
		Mode:       model.ModeTheme,
		Legislator: model.Legislator{PersonID: 42},
		Sessions:   []model.Session{{ID: 7}},
		Themes:     []model.Theme{{Title: "Oil / Gas: Upstream"}},
	}
	assert.Equal(t, "42-7-theme-oil-_-gas_-upstream", reportBase(r))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report", sanitizeFilename("  ..  "))
	assert.Equal(t, "a_b_c", sanitizeFilename("a/b\\c"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 300)), 100)
}

func TestLoadAndPickTheme(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.json")
	require.NoError(t, os.WriteFile(listPath, []byte(`{"themes": [
		{"id": "energy", "title": "Energy utilities"},
		{"title": "Real estate"}
	]}`), 0644))
	arrayPath := filepath.Join(dir, "array.json")
	require.NoError(t, os.WriteFile(arrayPath, []byte(`[{"title": "Tobacco"}]`), 0644))

	themes, err := loadThemes(listPath)
	require.NoError(t, err)
	require.Len(t, themes, 2)

	th, err := pickTheme(themes, "energy")
	require.NoError(t, err)
	assert.Equal(t, "Energy utilities", th.Title)

	th, err = pickTheme(themes, "real ESTATE")
	require.NoError(t, err)
	assert.Equal(t, "Real estate", th.Title)

	th, err = pickTheme(themes, "2")
	require.NoError(t, err)
	assert.Equal(t, "Real estate", th.Title)

	_, err = pickTheme(themes, "3")
	assert.Error(t, err)

	themes, err = loadThemes(arrayPath)
	require.NoError(t, err)
	assert.Equal(t, "Tobacco", themes[0].Title)

	_, err = loadThemes(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestWriteBatch(t *testing.T) {
	dir := t.TempDir()
	ok := &model.Report{ID: "r1", Mode: model.ModeTwoPhase, Legislator: model.Legislator{PersonID: 1, Name: "A"}, Sessions: []model.Session{{ID: 7}}}
	partial := &model.Report{ID: "r2", Mode: model.ModeTwoPhase, Legislator: model.Legislator{PersonID: 2, Name: "B"}, Sessions: []model.Session{{ID: 8}}}

	results := []*worker.PersonResult{
		{PersonID: 1, Reports: []*model.Report{ok}},
		{PersonID: 2, Reports: []*model.Report{partial}, Error: assert.AnError},
		{PersonID: 3, Error: assert.AnError},
	}
	stats := writeBatch(report.NewRenderer(false), results, dir, nil)

	assert.Equal(t, batchStats{succeeded: 1, partial: 1, failed: 1, reports: 2}, stats)
	assert.FileExists(t, filepath.Join(dir, "1-7-two_phase.json"))
	assert.FileExists(t, filepath.Join(dir, "2-8-two_phase.md"))
}
