package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/llm/llmtest"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/search"
)

func themeInput() ThemeInput {
	return ThemeInput{
		Legislator: legislator,
		Session:    session,
		Theme: model.Theme{
			ID:     "energy",
			Title:  "Energy utilities",
			Donors: []model.ThemeDonor{{DonorID: "d1", Name: "Grid Power PAC", Total: 5000}},
		},
		Transactions: []model.DonorTransaction{
			{TransactionID: "T-1", DonorName: "Grid Power PAC", Amount: 2500, Date: model.NewDate(2021, time.February, 1)},
			{TransactionID: "T-2", DonorName: "Grid Power PAC", Amount: 2500, Date: model.NewDate(2021, time.March, 1)},
		},
		Evidence: []search.Evidence{
			{Candidate: model.BillCandidate{BillID: 500, BillNumber: "HB 500", Title: "Utility Rates", Vote: "Yea"}, Text: "Section 1. Rates."},
		},
		Trace: &model.SearchTrace{Batches: 3, StopReason: search.StopStagnation},
	}
}

func TestTheme_CitationAllowlist(t *testing.T) {
	fake := llmtest.New().Reply(`{
		"summary": "Utility donors gave before the rate vote.",
		"narrative": "...",
		"bills": [
			{"bill_id": 500, "bill_number": "HB 500", "relevance": "rate relief", "transaction_ids": ["T-1", "T-9", 7]},
			{"bill_id": 999, "bill_number": "HB 999"}
		],
		"cited_transactions": [
			{"transaction_id": "T-1", "relevance": "largest gift"},
			{"transaction_id": "T-1"},
			{"transaction_id": "T-404"}
		]
	}`)

	r, err := newSynth(fake).Theme(context.Background(), themeInput())
	require.NoError(t, err)

	assert.Equal(t, model.ModeTheme, r.Mode)
	assert.Equal(t, "Utility donors gave before the rate vote.", r.Summary)
	require.Len(t, r.CitedTransactions, 1)
	cited := r.CitedTransactions[0]
	assert.Equal(t, "T-1", cited.TransactionID)
	assert.Equal(t, 2500.0, cited.Amount)
	assert.Equal(t, "largest gift", cited.Relevance)
	assert.Equal(t, model.NewDate(2021, time.February, 1), cited.Date)

	require.Len(t, r.Bills, 1)
	assert.Equal(t, []model.FlexString{"T-1"}, r.Bills[0].TransactionIDs)

	assert.Len(t, r.Warnings, 4)
	assert.Contains(t, r.Warnings[0], "T-404")
	assert.Contains(t, r.Warnings[1], "T-9")
	assert.Contains(t, r.Warnings[2], `"7"`)
	assert.Contains(t, r.Warnings[3], "999")
	assert.Len(t, r.Themes, 1)
	assert.Equal(t, search.StopStagnation, r.Search.StopReason)

	prompt := fake.Requests()[0].Prompt
	assert.Contains(t, prompt, "transaction_id=T-2")
	assert.Contains(t, prompt, "bill_id=500 HB 500")
}

func TestTheme_UnparseableIsAnError(t *testing.T) {
	fake := llmtest.New().Reply("The donors seem unrelated.")

	_, err := newSynth(fake).Theme(context.Background(), themeInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), PhaseTheme)
}

func TestTheme_FallbackSummary(t *testing.T) {
	fake := llmtest.New().Reply(`{"cited_transactions": [{"transaction_id": "T-2"}]}`)

	r, err := newSynth(fake).Theme(context.Background(), themeInput())
	require.NoError(t, err)
	assert.Equal(t, "Energy utilities: 0 bills examined, 1 transactions cited.", r.Summary)
	assert.Empty(t, r.Warnings)
}
