package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/pipeline"
	"github.com/ppiankov/donortrace/internal/report"
)

var (
	themeSession int64
	themeFile    string
	themeKey     string
	phrases      []string
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Discover donor themes and analyse them one at a time",
	Long: `Theme mode groups a legislator's donors into themes (industries, networks,
geography, timing), then searches for the bills each theme's donors have a
stake in and writes a report citing individual transactions.

Discover first, review or edit the search phrases, then analyse:
  donortrace themes discover --person 12345 --session 2021
  donortrace themes analyze --person 12345 --session 2021 --theme-file themes.json --theme energy`,
}

var themesDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Cluster the donors around a session into themes",
	Args:  cobra.NoArgs,
	RunE:  runThemesDiscover,
}

var themesAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Search the bills for one theme and write its report",
	Long: `Analyze runs the iterative bill search for one theme from a theme file written
by 'themes discover'. --theme selects it by id, title or 1-based position.
--phrase replaces the theme's search phrases.`,
	Args: cobra.NoArgs,
	RunE: runThemesAnalyze,
}

func init() {
	rootCmd.AddCommand(themesCmd)
	themesCmd.AddCommand(themesDiscoverCmd)
	themesCmd.AddCommand(themesAnalyzeCmd)

	for _, cmd := range []*cobra.Command{themesDiscoverCmd, themesAnalyzeCmd} {
		cmd.Flags().Int64Var(&personID, "person", 0, "legislator person id (required)")
		cmd.Flags().Int64Var(&themeSession, "session", 0, "session id (required)")
		cmd.Flags().StringVar(&legName, "name", "", "legislator display name")
		_ = cmd.MarkFlagRequired("person")
		_ = cmd.MarkFlagRequired("session")
		addRunFlags(cmd, &timeout, 30*time.Minute)
	}

	themesAnalyzeCmd.Flags().StringVar(&themeFile, "theme-file", "", "theme list JSON written by 'themes discover' (required)")
	themesAnalyzeCmd.Flags().StringVar(&themeKey, "theme", "", "theme id, title or 1-based position (required)")
	themesAnalyzeCmd.Flags().StringArrayVar(&phrases, "phrase", nil, "search phrase replacing the theme's own (repeatable)")
	_ = themesAnalyzeCmd.MarkFlagRequired("theme-file")
	_ = themesAnalyzeCmd.MarkFlagRequired("theme")
}

func runThemesDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	env, cleanup, err := openEnv(ctx, runFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := env.engine.DiscoverThemes(ctx, model.ID(personID), model.ID(themeSession), legName)
	if err != nil {
		return fmt.Errorf("theme discovery failed: %s", describeError(err))
	}

	path := filepath.Join(env.cfg.Output.Dir, sanitizeFilename(fmt.Sprintf("themes-%d-%d", personID, themeSession))+".json")
	if err := writeJSON(path, list); err != nil {
		return err
	}

	fmt.Printf("%d themes for %s, %s (%d donors)\n", len(list.Themes), list.Legislator.Name, list.Session.Name, len(list.Donors))
	for i, th := range list.Themes {
		fmt.Printf("%3d. %-28s %-40s %2d donors  %3.0f%%\n", i+1, th.ID, th.Title, len(th.Donors), th.Confidence.Float()*100)
	}
	for _, w := range list.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	fmt.Fprintf(os.Stderr, "  wrote %s\n", path)
	return nil
}

func runThemesAnalyze(cmd *cobra.Command, args []string) error {
	themes, err := loadThemes(themeFile)
	if err != nil {
		return err
	}
	theme, err := pickTheme(themes, themeKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	env, cleanup, err := openEnv(ctx, runFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := env.engine.AnalyzeTheme(ctx, pipeline.ThemeRequest{
		PersonID:  model.ID(personID),
		SessionID: model.ID(themeSession),
		Name:      legName,
		Theme:     theme,
		Phrases:   phrases,
	})
	if err != nil {
		return fmt.Errorf("theme analysis failed: %s", describeError(err))
	}

	renderer := report.NewRenderer(env.cfg.Output.IncludeFooter)
	path, err := writeReport(renderer, r, env.cfg.Output.Dir)
	if err != nil {
		return err
	}
	renderer.RenderSummary(os.Stdout, r)
	fmt.Fprintf(os.Stderr, "  wrote %s\n", path)
	return nil
}

// loadThemes reads a theme list file or a bare JSON array of themes
func loadThemes(path string) ([]model.Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme file: %w", err)
	}
	var list model.ThemeList
	if err := json.Unmarshal(data, &list); err == nil && len(list.Themes) > 0 {
		return list.Themes, nil
	}
	var themes []model.Theme
	if err := json.Unmarshal(data, &themes); err != nil {
		return nil, fmt.Errorf("parse theme file %s: %w", path, err)
	}
	if len(themes) == 0 {
		return nil, fmt.Errorf("theme file %s has no themes", path)
	}
	return themes, nil
}

// pickTheme finds a theme by id, case-insensitive title or 1-based position
func pickTheme(themes []model.Theme, key string) (model.Theme, error) {
	key = strings.TrimSpace(key)
	for _, th := range themes {
		if th.ID != "" && th.ID == key {
			return th, nil
		}
	}
	for _, th := range themes {
		if strings.EqualFold(th.Title, key) {
			return th, nil
		}
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(themes) {
		return themes[n-1], nil
	}
	return model.Theme{}, fmt.Errorf("theme %q not found among %d themes", key, len(themes))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
