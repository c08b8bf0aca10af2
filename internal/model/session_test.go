package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_DonationWindow(t *testing.T) {
	s := Session{
		StartDate: NewDate(2021, time.January, 11),
		EndDate:   NewDate(2021, time.April, 29),
	}

	start, end := s.DonationWindow(100)
	assert.Equal(t, "2020-10-03", start.String())
	assert.Equal(t, "2021-08-07", end.String())
}

func TestCombineSessions(t *testing.T) {
	sessions := []Session{
		{ID: 2, Name: "2022 Regular", StartDate: NewDate(2022, time.January, 10), EndDate: NewDate(2022, time.May, 1), VoteCount: 40},
		{ID: 1, Name: "2021 Regular", StartDate: NewDate(2021, time.January, 11), EndDate: NewDate(2021, time.April, 29), VoteCount: 30},
		{ID: 3, Name: "2021 Special", StartDate: NewDate(2021, time.June, 1), EndDate: NewDate(2021, time.June, 20), VoteCount: 5},
	}

	combined := CombineSessions(sessions)
	require.True(t, combined.HasDates())
	assert.Equal(t, "2021-01-11", combined.StartDate.String())
	assert.Equal(t, "2022-05-01", combined.EndDate.String())
	assert.Equal(t, 75, combined.VoteCount)
	assert.Equal(t, []ID{1, 3, 2}, combined.SessionIDs())
	assert.Equal(t, "2021 Regular + 2021 Special + 2022 Regular", combined.Name)
}

func TestCombineSessions_Single(t *testing.T) {
	s := Session{ID: 9, Name: "Only"}
	combined := CombineSessions([]Session{s})
	assert.Equal(t, s.ID, combined.ID)
	assert.Equal(t, []ID{9}, combined.SessionIDs())
}

func TestDonationRecord_Key(t *testing.T) {
	withID := DonationRecord{DonationID: "a1", DonorName: "Acme PAC", Amount: 500}
	assert.Equal(t, "id:a1", withID.Key())

	a := DonationRecord{DonorName: "Jane  Doe", Amount: 250, Date: NewDate(2021, time.March, 2)}
	b := DonationRecord{DonorName: "jane doe", Amount: 250.0, Date: NewDate(2021, time.March, 2)}
	assert.Equal(t, a.Key(), b.Key())

	c := b
	c.Amount = 251
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestWithSessionOffsets(t *testing.T) {
	start := NewDate(2021, time.January, 11)
	donations := []DonationRecord{
		{DonorName: "Early", Date: NewDate(2021, time.January, 1)},
		{DonorName: "Late", Date: NewDate(2021, time.January, 21)},
		{DonorName: "Undated"},
	}

	out := WithSessionOffsets(donations, start)
	assert.Equal(t, -10, out[0].DaysFromSessionStart)
	assert.Equal(t, 10, out[1].DaysFromSessionStart)
	assert.Equal(t, 0, out[2].DaysFromSessionStart)
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandHigh, BandFor(0.7))
	assert.Equal(t, BandMedium, BandFor(0.69))
	assert.Equal(t, BandMedium, BandFor(0.4))
	assert.Equal(t, BandLow, BandFor(0.39))
	assert.Equal(t, BandLow, BandFor(0.1))
	assert.Equal(t, BandNone, BandFor(0.05))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.URL = "https://example.supabase.co"
	require.NoError(t, cfg.Validate())

	cfg.Search.Thresholds = []float64{0.25, 0.35}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	assert.Error(t, cfg.Validate(), "supabase driver without url")

	cfg = DefaultConfig()
	cfg.Backend.URL = "https://example.supabase.co"
	cfg.LLM.Provider = "ollama"
	assert.Error(t, cfg.Validate())
}
