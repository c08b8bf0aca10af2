package report

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/repair"
	"github.com/ppiankov/donortrace/internal/search"
)

// ThemeInput is the evidence gathered for one theme
type ThemeInput struct {
	Legislator   model.Legislator
	Session      model.Session
	Theme        model.Theme
	Transactions []model.DonorTransaction
	Evidence     []search.Evidence
	Trace        *model.SearchTrace
}

type themeAnswer struct {
	Summary   string             `json:"summary"`
	Narrative string             `json:"narrative"`
	Bills     []model.ReportBill `json:"bills"`
	Cited     []struct {
		TransactionID model.FlexString `json:"transaction_id"`
		Relevance     string           `json:"relevance"`
	} `json:"cited_transactions"`
}

// Theme asks the model for the theme report and keeps only citations of
// transactions it was shown. Dropped ids become warnings.
func (s *Synthesizer) Theme(ctx context.Context, in ThemeInput) (*model.Report, error) {
	resp, err := s.provider.Generate(ctx, llm.Request{
		Phase:  PhaseTheme,
		System: themeSystem,
		Prompt: ThemePrompt(in),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseTheme, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, llm.Classify(s.provider.Name(), PhaseTheme, llm.ErrEmptyResponse)
	}

	var answer themeAnswer
	parsed, err := repair.Decode(resp.Text, &answer)
	s.metrics.ObserveParse(PhaseTheme, string(parsed.Stage))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseTheme, err)
	}

	r := s.newReport(model.ModeTheme, in.Legislator, []model.Session{in.Session})
	r.Themes = []model.Theme{in.Theme}
	r.Donors = in.Theme.Donors
	r.Search = in.Trace
	r.Summary = strings.TrimSpace(answer.Summary)
	r.Narrative = strings.TrimSpace(answer.Narrative)

	allowed := make(map[string]model.DonorTransaction, len(in.Transactions))
	for _, t := range in.Transactions {
		allowed[string(t.TransactionID)] = t
	}
	bills := make(map[model.ID]bool, len(in.Evidence))
	for _, e := range in.Evidence {
		bills[e.Candidate.BillID] = true
	}

	cited := make(map[string]bool)
	for _, c := range answer.Cited {
		id := string(c.TransactionID)
		t, ok := allowed[id]
		if !ok {
			r.AddWarning("dropped cited transaction %q: not among the provided transactions", id)
			continue
		}
		if cited[id] {
			continue
		}
		cited[id] = true
		r.CitedTransactions = append(r.CitedTransactions, model.CitedTransaction{
			TransactionID: id,
			DonorName:     t.DonorName,
			Amount:        t.Amount.Float(),
			Date:          t.Date,
			Relevance:     strings.TrimSpace(c.Relevance),
		})
	}

	for _, b := range answer.Bills {
		if !bills[b.BillID] {
			r.AddWarning("dropped bill %s: not among the selected bills", b.BillID)
			continue
		}
		var ids []model.FlexString
		for _, id := range b.TransactionIDs {
			if _, ok := allowed[string(id)]; !ok {
				r.AddWarning("dropped transaction %q cited for bill %s", id, b.BillID)
				continue
			}
			ids = append(ids, id)
		}
		b.TransactionIDs = ids
		r.Bills = append(r.Bills, b)
	}

	if len(r.Warnings) > 0 {
		s.logger.Warn("theme report cited unknown records",
			zap.String("theme", in.Theme.Title),
			zap.Int("warnings", len(r.Warnings)))
	}
	if r.Summary == "" {
		r.Summary = fmt.Sprintf("%s: %d bills examined, %d transactions cited.", in.Theme.Title, len(r.Bills), len(r.CitedTransactions))
	}
	return r, nil
}
