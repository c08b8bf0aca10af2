// Package themes clusters a legislator's donors into named themes with
// suggested bill-search phrases.
package themes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/repair"
)

// Phase labels theme discovery model calls
const Phase = "theme_discovery"

// ErrNoDonors means no donor remained after exclusions
var ErrNoDonors = errors.New("no donors in the session window")

// DonorSource fetches donor aggregates around a session
type DonorSource interface {
	DonorTotals(ctx context.Context, w model.DonorWindow) ([]model.DonorTotal, error)
	DonorTransactions(ctx context.Context, w model.DonorWindow, donorIDs []string) ([]model.DonorTransaction, error)
}

// Discoverer runs theme discovery
type Discoverer struct {
	provider llm.Provider
	donors   DonorSource
	cfg      model.ThemeConfig
	validate *validator.Validate
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewDiscoverer creates a Discoverer
func NewDiscoverer(provider llm.Provider, donors DonorSource, cfg model.ThemeConfig, m *metrics.Collector, logger *zap.Logger) *Discoverer {
	return &Discoverer{
		provider: provider,
		donors:   donors,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  m,
		logger:   logging.OrNop(logger),
	}
}

type themeEntry struct {
	model.Theme
	AltPhrases []string `json:"search_phrases"`
}

// Discover fetches the top donors and their transactions, drops excluded
// donors and asks the model for themes
func (d *Discoverer) Discover(ctx context.Context, leg model.Legislator, session model.Session) (*model.ThemeList, error) {
	window := model.DonorWindow{
		PersonID:   leg.PersonID,
		SessionID:  session.ID,
		DaysBefore: d.cfg.DaysBefore,
		DaysAfter:  d.cfg.DaysAfter,
		MinAmount:  d.cfg.MinAmount,
		Limit:      d.cfg.DonorLimit,
	}

	totals, err := d.donors.DonorTotals(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("donor totals: %w", err)
	}
	kept, excluded := Exclude(totals, d.cfg.ExcludedDonors, leg)
	if len(excluded) > 0 {
		d.logger.Info("excluded non-signal donors", zap.Int("excluded", len(excluded)), zap.Int("kept", len(kept)))
	}
	if len(kept) == 0 {
		return nil, ErrNoDonors
	}

	ids := make([]string, 0, len(kept))
	for _, t := range kept {
		if t.DonorID != "" {
			ids = append(ids, string(t.DonorID))
		}
	}
	txns, err := d.donors.DonorTransactions(ctx, window, ids)
	if err != nil {
		return nil, fmt.Errorf("donor transactions: %w", err)
	}

	resp, err := d.provider.Generate(ctx, llm.Request{
		Phase:  Phase,
		System: systemPrompt,
		Prompt: BuildPrompt(leg, session, kept, txns, d.cfg.MinThemes, d.cfg.MaxThemes),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Phase, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, llm.Classify(d.provider.Name(), Phase, llm.ErrEmptyResponse)
	}

	res := repair.Parse(resp.Text)
	d.metrics.ObserveParse(Phase, string(res.Stage))
	if !res.OK() {
		return nil, fmt.Errorf("%s: %w", Phase, res.Failure)
	}

	list := &model.ThemeList{Legislator: leg, Session: session, Donors: kept}
	list.Themes = d.decodeThemes(themeItems(res.Value), kept)

	if n := len(list.Themes); n > d.cfg.MaxThemes {
		list.Warnings = append(list.Warnings, fmt.Sprintf("model returned %d themes, kept the first %d", n, d.cfg.MaxThemes))
		list.Themes = list.Themes[:d.cfg.MaxThemes]
	} else if n < d.cfg.MinThemes {
		list.Warnings = append(list.Warnings, fmt.Sprintf("model returned %d themes, fewer than the %d asked for", n, d.cfg.MinThemes))
	}

	d.logger.Info("theme discovery complete",
		zap.String("session", session.Name),
		zap.Int("themes", len(list.Themes)),
		zap.Int("donors", len(kept)),
		zap.Int("transactions", len(txns)))
	return list, nil
}

func themeItems(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		if items, ok := t["themes"].([]any); ok {
			return items
		}
	}
	return nil
}

func (d *Discoverer) decodeThemes(items []any, donors []model.DonorTotal) []model.Theme {
	byID := make(map[string]model.DonorTotal, len(donors))
	byName := make(map[string]model.DonorTotal, len(donors))
	for _, t := range donors {
		if t.DonorID != "" {
			byID[string(t.DonorID)] = t
		}
		byName[nameKey(t.Name)] = t
	}

	themes := make([]model.Theme, 0, len(items))
	usedIDs := make(map[string]bool)
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var entry themeEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			d.logger.Warn("dropping undecodable theme", zap.Error(err))
			continue
		}
		th := entry.Theme
		th.Title = strings.TrimSpace(th.Title)
		if err := d.validate.Struct(th); err != nil {
			d.logger.Warn("dropping invalid theme", zap.Error(err))
			continue
		}

		if len(th.SearchPhrases) == 0 {
			th.SearchPhrases = entry.AltPhrases
		}
		th.Confidence = model.Number(model.Clamp01(th.Confidence.Float()))

		th.ID = strings.TrimSpace(th.ID)
		if th.ID == "" || usedIDs[th.ID] {
			th.ID = fmt.Sprintf("theme-%d", len(themes)+1)
		}
		usedIDs[th.ID] = true

		for i, donor := range th.Donors {
			match, ok := byID[string(donor.DonorID)]
			if !ok {
				match, ok = byName[nameKey(donor.Name)]
			}
			if !ok {
				continue
			}
			th.Donors[i].DonorID = match.DonorID
			th.Donors[i].Total = match.Total
			if th.Donors[i].Name == "" {
				th.Donors[i].Name = match.Name
			}
		}
		themes = append(themes, th)
	}
	return themes
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
