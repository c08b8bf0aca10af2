package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/donortrace/internal/extract"
	"github.com/ppiankov/donortrace/internal/model"
)

// EvidenceSource fetches the deep evidence for selected bills
type EvidenceSource interface {
	BillTexts(ctx context.Context, billIDs []model.ID) ([]model.BillText, error)
	BillDetail(ctx context.Context, billID model.ID) (*model.BillDetail, error)
	VoteRollup(ctx context.Context, billID model.ID) (*model.VoteRollup, error)
}

// Evidence is everything known about one selected bill
type Evidence struct {
	Candidate model.BillCandidate
	Detail    *model.BillDetail
	Rollup    *model.VoteRollup
	Text      string // Normalised and truncated
}

// FetchEvidence loads texts for the selection in one batched call, then
// detail and vote roll-up per bill concurrently. Output follows the
// selection order.
func FetchEvidence(ctx context.Context, src EvidenceSource, selected []model.BillCandidate, textChars, workers int) ([]Evidence, error) {
	if len(selected) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 10
	}

	ids := make([]model.ID, len(selected))
	for i, c := range selected {
		ids[i] = c.BillID
	}
	texts, err := src.BillTexts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch bill texts: %w", err)
	}
	textByID := make(map[model.ID]model.BillText, len(texts))
	for _, t := range texts {
		textByID[t.BillID] = t
	}

	out := make([]Evidence, len(selected))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, c := range selected {
		out[i].Candidate = c
		eg.Go(func() error {
			detail, err := src.BillDetail(egCtx, c.BillID)
			if err != nil {
				return fmt.Errorf("fetch bill %d: %w", c.BillID, err)
			}
			rollup, err := src.VoteRollup(egCtx, c.BillID)
			if err != nil {
				return fmt.Errorf("fetch vote rollup %d: %w", c.BillID, err)
			}
			out[i].Detail = detail
			out[i].Rollup = rollup
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i := range out {
		raw := textByID[out[i].Candidate.BillID].Text
		if raw == "" && out[i].Detail != nil {
			raw = out[i].Detail.FullText
		}
		if raw == "" {
			raw = textByID[out[i].Candidate.BillID].Summary
		}
		out[i].Text = extract.Truncate(extract.BillText(raw), textChars)
	}
	return out, nil
}
