package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/llm/llmtest"
	"github.com/ppiankov/donortrace/internal/model"
)

func sampleReport(t *testing.T) *model.Report {
	t.Helper()
	r := newSynth(llmtest.New().Reply("narrative text")).TwoPhase(context.Background(), twoPhaseInput())
	r.Confirmed[0].Donors = []model.DonationRecord{{DonorName: "Grid | Power", Amount: 1200, Employer: "Grid Co"}}
	r.Confirmed[0].CitedProvisions = []string{"Section 4: rate credits"}
	return r
}

func TestRenderJSON(t *testing.T) {
	r := sampleReport(t)
	path := filepath.Join(t.TempDir(), "nested", "report.json")

	require.NoError(t, NewRenderer(true).RenderJSON(r, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"id\""))

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.ID, back["id"])
	assert.Equal(t, "two_phase", back["mode"])
	assert.Len(t, back["confirmed"], 1)
}

func TestMarkdown(t *testing.T) {
	r := sampleReport(t)
	md := NewRenderer(true).Markdown(r)

	assert.True(t, strings.HasPrefix(md, "# Pat Smith (R)\n"))
	for _, want := range []string{
		"## Summary",
		"## Analysis\n\nnarrative text",
		"## Confirmed connections",
		"**Severity:** high",
		"> Section 4: rate credits",
		`| Grid \| Power | Grid Co | $1200.00 |`,
		"## Rejected hypotheses",
		"- **HB 501** : unrelated",
		"## Warnings",
		footer,
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "## Hypotheses", "validated reports list outcomes, not raw groups")

	assert.NotContains(t, NewRenderer(false).Markdown(r), footer)
}

func TestRenderMarkdownWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, NewRenderer(false).RenderMarkdown(sampleReport(t), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Confirmed connections")
}

func TestSummary(t *testing.T) {
	r := sampleReport(t)
	assert.Equal(t, "Pat Smith [2021 Regular] two_phase: 2 groups 1 confirmed, 1 rejected (1 warnings)", Summary(r))

	theme := &model.Report{
		Mode:              model.ModeTheme,
		Legislator:        model.Legislator{PersonID: 9},
		Bills:             []model.ReportBill{{BillID: 1}},
		CitedTransactions: []model.CitedTransaction{{TransactionID: "T-1"}, {TransactionID: "T-2"}},
	}
	assert.Equal(t, "person 9 [] theme: 1 bills, 2 cited transactions", Summary(theme))

	var buf bytes.Buffer
	NewRenderer(true).RenderSummary(&buf, theme)
	assert.Equal(t, Summary(theme)+"\n", buf.String())
}
