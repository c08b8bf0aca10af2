package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/repair"
	"github.com/ppiankov/donortrace/internal/score"
)

// PhaseSelect labels bill selection model calls
const PhaseSelect = "bill_selection"

// Selector asks the model to pick the bills worth deep evidence
type Selector struct {
	provider llm.Provider
	cfg      model.SearchConfig
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewSelector creates a Selector
func NewSelector(provider llm.Provider, cfg model.SearchConfig, m *metrics.Collector, logger *zap.Logger) *Selector {
	return &Selector{provider: provider, cfg: cfg, metrics: m, logger: logging.OrNop(logger)}
}

// Selection is the chosen bill set
type Selection struct {
	Bills        []model.BillCandidate
	UsedFallback bool
	Rationale    string
}

const selectPrompt = `You are choosing which bills deserve a close reading in an investigation of a legislator's donors.

Theme: %s
%s
Candidate bills (best search score first):
%s
Pick at most %d bills where the donors in this theme most plausibly have a financial stake. Prefer bills the legislator sponsored or voted on in a way that helps the donors.

Respond with JSON: {"selected_bill_ids": [123, 456], "rationale": "one or two sentences"}`

// Select offers the top RankTopN candidates to the model, which picks at
// most SelectMax of them. Unknown ids are dropped. A model error, an
// unreadable answer or an empty pick falls back to the top FallbackTopN.
func (s *Selector) Select(ctx context.Context, theme model.Theme, candidates []model.BillCandidate) *Selection {
	offered := score.RankCandidates(candidates, s.cfg.RankTopN)
	if len(offered) == 0 {
		return &Selection{}
	}

	picked, rationale, err := s.pick(ctx, theme, offered)
	if err != nil {
		s.logger.Warn("bill selection failed, using top candidates by score",
			zap.String("theme", theme.Title), zap.Int("fallback", s.cfg.FallbackTopN), zap.Error(err))
		return &Selection{Bills: score.RankCandidates(offered, s.cfg.FallbackTopN), UsedFallback: true}
	}
	return &Selection{Bills: picked, Rationale: rationale}
}

func (s *Selector) pick(ctx context.Context, theme model.Theme, offered []model.BillCandidate) ([]model.BillCandidate, string, error) {
	var list strings.Builder
	for _, c := range offered {
		fmt.Fprintf(&list, "- bill_id=%d %s: %s (score %.3f", c.BillID, c.BillNumber, c.Title, c.Score)
		if c.IsSponsor {
			list.WriteString(", sponsored")
		}
		if c.Vote != "" {
			fmt.Fprintf(&list, ", vote %s", c.Vote)
		}
		list.WriteString(")\n")
	}

	resp, err := s.provider.Generate(ctx, llm.Request{
		Phase:  PhaseSelect,
		Prompt: fmt.Sprintf(selectPrompt, theme.Title, theme.Description, list.String(), s.cfg.SelectMax),
		JSON:   true,
	})
	if err != nil {
		return nil, "", err
	}

	res := repair.Parse(resp.Text)
	s.metrics.ObserveParse(PhaseSelect, string(res.Stage))
	if !res.OK() {
		return nil, "", res.Failure
	}

	byID := make(map[model.ID]model.BillCandidate, len(offered))
	for _, c := range offered {
		byID[c.BillID] = c
	}

	var picked []model.BillCandidate
	seen := make(map[model.ID]bool)
	for _, id := range idList(res.Value, "selected_bill_ids", "bill_ids", "selected", "bills") {
		c, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		picked = append(picked, c)
		if len(picked) == s.cfg.SelectMax {
			break
		}
	}
	if len(picked) == 0 {
		return nil, "", fmt.Errorf("%s: no known bill ids in response", PhaseSelect)
	}

	rationale := ""
	if obj, ok := res.Value.(map[string]any); ok {
		rationale, _ = obj["rationale"].(string)
	}
	return picked, rationale, nil
}

// idList reads bill ids given as numbers, numeric strings or objects
// carrying bill_id
func idList(v any, keys ...string) []model.ID {
	if obj, ok := v.(map[string]any); ok {
		for _, k := range keys {
			if list, ok := obj[k]; ok {
				return idList(list)
			}
		}
		return nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []model.ID
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			item = obj["bill_id"]
		}
		switch t := item.(type) {
		case float64:
			out = append(out, model.ID(int64(t)))
		case string:
			if n, err := model.ParseNumber(t); err == nil && n > 0 {
				out = append(out, model.ID(int64(n)))
			}
		}
	}
	return out
}
