// Package validate runs Phase 2: each high-confidence group is checked
// against the full bill text and confirmed or rejected.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/donortrace/internal/extract"
	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/repair"
	"github.com/ppiankov/donortrace/internal/score"
)

// Phase labels Phase 2 model calls
const Phase = "phase2"

const (
	maxKeywords   = 12
	maxProvisions = 8
)

// BillSource fetches full bill records
type BillSource interface {
	BillDetail(ctx context.Context, billID model.ID) (*model.BillDetail, error)
}

// Validator confirms or rejects groups against bill text
type Validator struct {
	provider llm.Provider
	bills    BillSource
	severity *SeverityClassifier
	cfg      model.AnalysisConfig
	workers  int
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewValidator creates a Validator. workers bounds concurrent bill fetches.
func NewValidator(provider llm.Provider, bills BillSource, cfg model.AnalysisConfig, workers int, m *metrics.Collector, logger *zap.Logger) *Validator {
	if workers <= 0 {
		workers = 10
	}
	return &Validator{
		provider: provider,
		bills:    bills,
		severity: NewSeverityClassifier(nil),
		cfg:      cfg,
		workers:  workers,
		metrics:  m,
		logger:   logging.OrNop(logger),
	}
}

// Outcome is the Phase 2 result. Every selected group appears exactly once
// in Confirmed or Rejected.
type Outcome struct {
	Selected  []model.Group
	Confirmed []model.ConfirmedConnection
	Rejected  []model.RejectedConnection
}

type verdict struct {
	Decision        string            `json:"decision"`
	Severity        string            `json:"severity"`
	CitedProvisions []json.RawMessage `json:"cited_provisions"`
	Explanation     string            `json:"explanation"`
	Reason          string            `json:"reason"`
	Confidence      model.Score       `json:"confidence"`
}

// Validate selects the top groups, fetches their bills concurrently and
// asks the model about each group in turn. A fetch or model call error
// aborts; an unparseable answer becomes a rejection.
func (v *Validator) Validate(ctx context.Context, groups []model.Group, records []model.EvidenceRecord) (*Outcome, error) {
	selected := score.TopGroups(groups, v.cfg.Phase2TopN, v.cfg.Phase2MinConfidence)
	out := &Outcome{Selected: selected}
	if len(selected) == 0 {
		v.logger.Info("no groups above the phase 2 threshold",
			zap.Float64("min_confidence", v.cfg.Phase2MinConfidence))
		return out, nil
	}

	details, err := v.fetchDetails(ctx, selected)
	if err != nil {
		return nil, err
	}

	byBill := make(map[model.ID]*model.EvidenceRecord, len(records))
	for i := range records {
		if _, seen := byBill[records[i].BillID]; !seen {
			byBill[records[i].BillID] = &records[i]
		}
	}

	for i, g := range selected {
		confirmed, rejected, err := v.validateGroup(ctx, g, details[i], byBill[g.BillID])
		if err != nil {
			return nil, err
		}
		if confirmed != nil {
			out.Confirmed = append(out.Confirmed, *confirmed)
		} else {
			out.Rejected = append(out.Rejected, *rejected)
		}
	}

	v.logger.Info("phase 2 complete",
		zap.Int("selected", len(selected)),
		zap.Int("confirmed", len(out.Confirmed)),
		zap.Int("rejected", len(out.Rejected)))
	return out, nil
}

func (v *Validator) fetchDetails(ctx context.Context, groups []model.Group) ([]*model.BillDetail, error) {
	details := make([]*model.BillDetail, len(groups))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(v.workers)
	for i, g := range groups {
		eg.Go(func() error {
			detail, err := v.bills.BillDetail(egCtx, g.BillID)
			if err != nil {
				return fmt.Errorf("fetch bill %d: %w", g.BillID, err)
			}
			details[i] = detail
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

func (v *Validator) validateGroup(ctx context.Context, g model.Group, detail *model.BillDetail, record *model.EvidenceRecord) (*model.ConfirmedConnection, *model.RejectedConnection, error) {
	text := billText(detail)
	finder := extract.NewProvisionFinder(extract.DonorKeywords(g.Donors, maxKeywords)...)
	provisions := finder.Find(text, maxProvisions)
	text = extract.Truncate(text, v.cfg.BillTextChars)

	resp, err := v.provider.Generate(ctx, llm.Request{
		Phase:  Phase,
		System: systemPrompt,
		Prompt: BuildPrompt(g, detail, record, text, provisions),
		JSON:   true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("validate bill %d: %w", g.BillID, err)
	}

	number, title := g.BillNumber, g.Title
	if detail != nil {
		if number == "" {
			number = detail.BillNumber
		}
		if title == "" {
			title = detail.Title
		}
	}

	var vd verdict
	res, decodeErr := repair.Decode(resp.Text, &vd)
	v.metrics.ObserveParse(Phase, string(res.Stage))
	decision := model.Decision(strings.ToLower(strings.TrimSpace(vd.Decision)))

	if decodeErr != nil || (decision != model.DecisionConfirmed && decision != model.DecisionRejected) {
		reason := "parsing error: model response could not be read"
		if decodeErr == nil {
			reason = fmt.Sprintf("parsing error: unknown decision %q", vd.Decision)
		}
		v.logger.Warn("unparseable phase 2 response, recording rejection",
			zap.Int64("bill_id", int64(g.BillID)), zap.String("stage", string(res.Stage)))
		return nil, &model.RejectedConnection{
			BillID:      g.BillID,
			BillNumber:  number,
			Title:       title,
			Reason:      reason,
			ParseFailed: true,
		}, nil
	}

	if decision == model.DecisionRejected {
		reason := firstNonEmpty(vd.Explanation, vd.Reason, "rejected without explanation")
		return nil, &model.RejectedConnection{
			BillID:     g.BillID,
			BillNumber: number,
			Title:      title,
			Reason:     reason,
		}, nil
	}

	confidence := vd.Confidence.Or(g.Confidence.Float())
	return &model.ConfirmedConnection{
		BillID:          g.BillID,
		BillNumber:      number,
		Title:           title,
		Severity:        v.severity.Classify(vd.Severity, g, record),
		CitedProvisions: citations(vd.CitedProvisions),
		Explanation:     firstNonEmpty(vd.Explanation, vd.Reason),
		Donors:          g.Donors,
		Confidence:      model.Clamp01(confidence),
	}, nil, nil
}

// billText picks the best available text and normalises it
func billText(detail *model.BillDetail) string {
	if detail == nil {
		return ""
	}
	for _, candidate := range []string{detail.FullText, detail.Summary, detail.Description} {
		if text := extract.BillText(candidate); text != "" {
			return text
		}
	}
	return ""
}

// citations accepts strings or {section, text} objects
func citations(raw []json.RawMessage) []string {
	var out []string
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(r, &obj); err != nil {
			continue
		}
		var parts []string
		for _, key := range []string{"section", "provision", "text", "quote"} {
			if val, ok := obj[key].(string); ok && strings.TrimSpace(val) != "" {
				parts = append(parts, strings.TrimSpace(val))
			}
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, ": "))
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
