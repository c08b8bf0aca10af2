package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/report"
)

// parseMode accepts the user-facing spellings of the analysis modes
func parseMode(s string) (model.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "two-phase", "two_phase", "twophase":
		return model.ModeTwoPhase, nil
	case "agent":
		return model.ModeAgent, nil
	default:
		return "", fmt.Errorf("unknown mode %q (supported: two-phase, agent)", s)
	}
}

func toIDs(values []int64) []model.ID {
	ids := make([]model.ID, 0, len(values))
	for _, v := range values {
		ids = append(ids, model.ID(v))
	}
	return ids
}

// reportBase names the files a report is written to, without extension
func reportBase(r *model.Report) string {
	parts := []string{r.Legislator.PersonID.String()}
	for _, s := range r.Sessions {
		parts = append(parts, s.ID.String())
	}
	parts = append(parts, string(r.Mode))
	if r.Mode == model.ModeTheme && len(r.Themes) > 0 {
		th := r.Themes[0]
		key := th.ID
		if key == "" {
			key = th.Title
		}
		parts = append(parts, key)
	}
	return sanitizeFilename(strings.Join(parts, "-"))
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename makes s safe to use as a file name
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".-_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "report"
	}
	return strings.ToLower(s)
}

// writeReport renders r as JSON and Markdown into dir and returns the
// JSON path
func writeReport(renderer *report.Renderer, r *model.Report, dir string) (string, error) {
	base := filepath.Join(dir, reportBase(r))
	jsonPath := base + ".json"
	if err := renderer.RenderJSON(r, jsonPath); err != nil {
		return "", err
	}
	if err := renderer.RenderMarkdown(r, base+".md"); err != nil {
		return "", err
	}
	return jsonPath, nil
}
