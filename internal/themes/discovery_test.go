package themes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/llm/llmtest"
	"github.com/ppiankov/donortrace/internal/model"
)

type fakeDonors struct {
	totals    []model.DonorTotal
	txns      []model.DonorTransaction
	window    model.DonorWindow
	txnDonors []string
	err       error
}

func (f *fakeDonors) DonorTotals(ctx context.Context, w model.DonorWindow) ([]model.DonorTotal, error) {
	f.window = w
	return f.totals, f.err
}

func (f *fakeDonors) DonorTransactions(ctx context.Context, w model.DonorWindow, ids []string) ([]model.DonorTransaction, error) {
	f.txnDonors = ids
	return f.txns, nil
}

var (
	legislator = model.Legislator{PersonID: 42, Name: "Pat Smith", Party: "R"}
	session    = model.Session{ID: 7, Name: "2021 Regular", StartDate: model.NewDate(2021, time.January, 11), EndDate: model.NewDate(2021, time.April, 29)}
)

func donorFixture() *fakeDonors {
	return &fakeDonors{
		totals: []model.DonorTotal{
			{DonorID: "d1", Name: "Grid Power PAC", Total: 5000, TransactionCount: 2},
			{DonorID: "d2", Name: "Jane Driller", Employer: "Basin Oil", Total: 2500, TransactionCount: 1},
			{DonorID: "d3", Name: "Citizens Clean Elections Commission", Total: 90000},
			{DonorID: "d4", Name: "Smith for Senate Committee", Total: 12000},
			{DonorID: "d5", Name: "Multiple Contributors", Total: 700},
		},
		txns: []model.DonorTransaction{
			{TransactionID: "t1", DonorID: "d1", DonorName: "Grid Power PAC", Amount: 2500, Date: model.NewDate(2021, time.February, 1)},
		},
	}
}

func themesJSON(n int) string {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{"title": fmt.Sprintf("Theme %d", i+1), "confidence": 0.5}
	}
	raw, _ := json.Marshal(map[string]any{"themes": items})
	return string(raw)
}

func newDiscoverer(p llm.Provider, donors DonorSource) *Discoverer {
	return NewDiscoverer(p, donors, model.DefaultConfig().Themes, nil, nil)
}

func TestDiscover_ExcludesAndReconciles(t *testing.T) {
	donors := donorFixture()
	fake := llmtest.New().Reply(`{"themes": [
		{"id": "energy", "title": "Energy utilities", "donors": [{"donor_id": "d1", "name": "Grid Power PAC", "total": 1}], "suggested_search_phrases": ["utility rates"], "confidence": "90%"},
		{"title": "Oil and gas", "donors": [{"name": "jane  driller"}], "search_phrases": ["drilling permits"], "confidence": 1.4},
		{"id": "energy", "title": "Duplicate id", "confidence": 0.2},
		{"description": "no title"},
		{"title": "Geography", "confidence": 0.3},
		{"title": "Timing", "confidence": 0.3}
	]}`)

	list, err := newDiscoverer(fake, donors).Discover(context.Background(), legislator, session)
	require.NoError(t, err)

	assert.Equal(t, model.DonorWindow{PersonID: 42, SessionID: 7, DaysBefore: 180, DaysAfter: 180, MinAmount: 100, Limit: 100}, donors.window)
	assert.Equal(t, []string{"d1", "d2"}, donors.txnDonors)
	require.Len(t, list.Donors, 2)

	prompt := fake.Requests()[0].Prompt
	assert.NotContains(t, prompt, "Clean Elections")
	assert.NotContains(t, prompt, "Smith for Senate")
	assert.Contains(t, prompt, "txn=t1")

	require.Len(t, list.Themes, 5)
	energy := list.Themes[0]
	assert.Equal(t, "energy", energy.ID)
	assert.InDelta(t, 0.9, energy.Confidence.Float(), 1e-9)
	assert.Equal(t, 5000.0, energy.Donors[0].Total.Float())

	oil := list.Themes[1]
	assert.Equal(t, "theme-2", oil.ID)
	assert.Equal(t, 1.0, oil.Confidence.Float())
	assert.Equal(t, []string{"drilling permits"}, oil.SearchPhrases)
	assert.Equal(t, model.FlexString("d2"), oil.Donors[0].DonorID)

	assert.Equal(t, "theme-3", list.Themes[2].ID)
	assert.Empty(t, list.Warnings)
}

func TestDiscover_TruncatesAboveMax(t *testing.T) {
	fake := llmtest.New().Reply(themesJSON(34))

	list, err := newDiscoverer(fake, donorFixture()).Discover(context.Background(), legislator, session)
	require.NoError(t, err)

	assert.Len(t, list.Themes, 30)
	require.Len(t, list.Warnings, 1)
	assert.Contains(t, list.Warnings[0], "34 themes")
}

func TestDiscover_KeepsFewerThanMinWithWarning(t *testing.T) {
	fake := llmtest.New().Reply(themesJSON(3))

	list, err := newDiscoverer(fake, donorFixture()).Discover(context.Background(), legislator, session)
	require.NoError(t, err)

	assert.Len(t, list.Themes, 3)
	require.Len(t, list.Warnings, 1)
	assert.True(t, strings.Contains(list.Warnings[0], "fewer than the 5"))
}

func TestDiscover_NoDonorsSkipsModel(t *testing.T) {
	donors := &fakeDonors{totals: []model.DonorTotal{{DonorID: "x", Name: "Multiple Contributors"}}}
	fake := llmtest.New()

	_, err := newDiscoverer(fake, donors).Discover(context.Background(), legislator, session)
	assert.ErrorIs(t, err, ErrNoDonors)
	assert.Empty(t, fake.Requests())
}

func TestDiscover_FetchErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	_, err := newDiscoverer(llmtest.New(), &fakeDonors{err: boom}).Discover(context.Background(), legislator, session)
	assert.ErrorIs(t, err, boom)
}

func TestDiscover_UnparseableResponse(t *testing.T) {
	fake := llmtest.New().Reply("Here are some themes: energy, oil.")

	_, err := newDiscoverer(fake, donorFixture()).Discover(context.Background(), legislator, session)
	require.Error(t, err)
	assert.Contains(t, err.Error(), Phase)
}

func TestExclude(t *testing.T) {
	kept, excluded := Exclude(donorFixture().totals, model.DefaultConfig().Themes.ExcludedDonors, legislator)

	assert.Len(t, kept, 2)
	assert.Len(t, excluded, 3)

	kept, _ = Exclude([]model.DonorTotal{{Name: "Smithfield Foods"}}, nil, legislator)
	assert.Len(t, kept, 1, "surname alone is not a committee")
}
