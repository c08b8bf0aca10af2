package validate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/llm/llmtest"
	"github.com/ppiankov/donortrace/internal/model"
)

type fakeBills struct {
	mu      sync.Mutex
	details map[model.ID]*model.BillDetail
	err     error
	fetched []model.ID
}

func (f *fakeBills) BillDetail(ctx context.Context, billID model.ID) (*model.BillDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, billID)
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.details[billID]; ok {
		return d, nil
	}
	return &model.BillDetail{BillID: billID}, nil
}

func testConfig() model.AnalysisConfig {
	return model.DefaultConfig().Analysis
}

func groupFor(bill model.ID, confidence float64) model.Group {
	return model.Group{
		BillID:     bill,
		BillNumber: "HB " + bill.String(),
		Confidence: model.Number(confidence),
		Reason:     "utility donors",
		Donors: []model.DonationRecord{
			{DonationID: "d1", DonorName: "Grid Power PAC", Employer: "Grid Power Utility", Amount: 2500, Date: model.NewDate(2021, time.February, 1)},
		},
	}
}

func TestValidate_SelectsTopGroupsAndRecordsEveryOutcome(t *testing.T) {
	bills := &fakeBills{details: map[model.ID]*model.BillDetail{
		1: {BillID: 1, Title: "Utility Rate Recovery", FullText: "<p>Section 1. A utility may recover grid upgrade costs from its customers.</p>"},
	}}
	fake := llmtest.New().
		Reply("```json\n{\"decision\": \"confirmed\", \"severity\": \"HIGH\", \"cited_provisions\": [\"Sec. 1\"], \"explanation\": \"Direct benefit.\"}\n```").
		Reply("I could not decide, sorry.")

	v := NewValidator(fake, bills, testConfig(), 4, nil, nil)
	groups := []model.Group{groupFor(2, 0.6), groupFor(1, 0.9), groupFor(3, 0.3)}

	out, err := v.Validate(context.Background(), groups, nil)
	require.NoError(t, err)

	require.Len(t, out.Selected, 2)
	assert.Equal(t, model.ID(1), out.Selected[0].BillID)
	assert.Len(t, fake.Requests(), 2)

	require.Len(t, out.Confirmed, 1)
	c := out.Confirmed[0]
	assert.Equal(t, model.ID(1), c.BillID)
	assert.Equal(t, model.SeverityHigh, c.Severity)
	assert.Equal(t, []string{"Sec. 1"}, c.CitedProvisions)
	assert.Equal(t, "Utility Rate Recovery", c.Title)
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)

	require.Len(t, out.Rejected, 1)
	r := out.Rejected[0]
	assert.Equal(t, model.ID(2), r.BillID)
	assert.True(t, r.ParseFailed)
	assert.Contains(t, r.Reason, "parsing error")
}

func TestValidate_PromptCarriesTextAndProvisions(t *testing.T) {
	bills := &fakeBills{details: map[model.ID]*model.BillDetail{
		1: {BillID: 1, FullText: "Section 1. The commission shall allow a utility to recover grid costs from ratepayers."},
	}}
	fake := llmtest.New().Reply(`{"decision":"rejected","explanation":"General policy."}`)

	v := NewValidator(fake, bills, testConfig(), 1, nil, nil)
	out, err := v.Validate(context.Background(), []model.Group{groupFor(1, 0.8)}, nil)
	require.NoError(t, err)

	require.Len(t, out.Rejected, 1)
	assert.Equal(t, "General policy.", out.Rejected[0].Reason)
	assert.False(t, out.Rejected[0].ParseFailed)

	req := fake.Requests()[0]
	assert.Equal(t, Phase, req.Phase)
	assert.True(t, req.JSON)
	assert.Contains(t, req.Prompt, "Provisions mentioning donor industries")
	assert.Contains(t, req.Prompt, "recover grid costs")
	assert.Contains(t, req.Prompt, "Grid Power PAC")
}

func TestValidate_DerivesSeverityWhenMissing(t *testing.T) {
	fake := llmtest.New().Reply(`{"decision": "confirmed", "explanation": "ok"}`)
	v := NewValidator(fake, &fakeBills{}, testConfig(), 1, nil, nil)
	records := []model.EvidenceRecord{{BillID: 1, Vote: "Yea", IsOutlier: true}}

	out, err := v.Validate(context.Background(), []model.Group{groupFor(1, 0.55)}, records)
	require.NoError(t, err)
	require.Len(t, out.Confirmed, 1)
	assert.Equal(t, model.SeverityHigh, out.Confirmed[0].Severity)
}

func TestValidate_UnreadableConfidenceKeepsVerdict(t *testing.T) {
	fake := llmtest.New().
		Reply(`{"decision": "confirmed", "severity": "medium", "confidence": "high", "explanation": "Direct benefit."}`).
		Reply(`{"decision": "confirmed", "severity": "low", "confidence": "85%", "explanation": "Some benefit."}`)
	v := NewValidator(fake, &fakeBills{}, testConfig(), 1, nil, nil)

	out, err := v.Validate(context.Background(), []model.Group{groupFor(1, 0.9), groupFor(2, 0.6)}, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Rejected)
	require.Len(t, out.Confirmed, 2)
	assert.InDelta(t, 0.9, out.Confirmed[0].Confidence, 1e-9)
	assert.InDelta(t, 0.85, out.Confirmed[1].Confidence, 1e-9)
}

func TestValidate_ModelErrorAborts(t *testing.T) {
	boom := errors.New("quota exceeded")
	fake := llmtest.New().ReplyError(boom)
	v := NewValidator(fake, &fakeBills{}, testConfig(), 1, nil, nil)

	_, err := v.Validate(context.Background(), []model.Group{groupFor(1, 0.9)}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestValidate_FetchErrorAbortsBeforeModel(t *testing.T) {
	boom := errors.New("backend down")
	fake := llmtest.New()
	v := NewValidator(fake, &fakeBills{err: boom}, testConfig(), 2, nil, nil)

	_, err := v.Validate(context.Background(), []model.Group{groupFor(1, 0.9), groupFor(2, 0.8)}, nil)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, fake.Requests())
}

func TestValidate_NothingSelected(t *testing.T) {
	fake := llmtest.New()
	bills := &fakeBills{}
	v := NewValidator(fake, bills, testConfig(), 1, nil, nil)

	out, err := v.Validate(context.Background(), []model.Group{groupFor(1, 0.2)}, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Selected)
	assert.Empty(t, bills.fetched)
	assert.Empty(t, fake.Requests())
}

func TestValidate_TopNLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Phase2TopN = 2
	fake := llmtest.New()
	fake.GenerateFunc = func(req llm.Request) (string, error) {
		return `{"decision":"rejected","explanation":"no"}`, nil
	}
	v := NewValidator(fake, &fakeBills{}, cfg, 1, nil, nil)

	out, err := v.Validate(context.Background(), []model.Group{groupFor(1, 0.9), groupFor(2, 0.8), groupFor(3, 0.7)}, nil)
	require.NoError(t, err)
	assert.Len(t, out.Rejected, 2)
}

func TestCitations_AcceptsObjects(t *testing.T) {
	got := citations([]json.RawMessage{
		json.RawMessage(`"Section 4(b)"`),
		json.RawMessage(`{"section": "5", "text": "exempts utilities"}`),
		json.RawMessage(`42`),
		json.RawMessage(`"  "`),
	})
	assert.Equal(t, []string{"Section 4(b)", "5: exempts utilities"}, got)
}

func TestBuildPrompt_NoRecordOrText(t *testing.T) {
	prompt := BuildPrompt(groupFor(9, 0.5), nil, nil, "", nil)
	assert.Contains(t, prompt, "No vote or sponsorship record")
	assert.Contains(t, prompt, "(no text available)")
	assert.True(t, strings.HasSuffix(prompt, instructions))
}
