package hypothesis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/model"
)

func TestMerge_OverlappingDonorsForSameBill(t *testing.T) {
	first := []model.Group{{
		BillID:     500,
		Confidence: 0.6,
		Reason:     "energy donors",
		Donors:     []model.DonationRecord{{DonationID: "a1", Amount: 500}},
	}}
	second := []model.Group{{
		BillID:     500,
		Confidence: 0.8,
		Reason:     "energy donors",
		Donors: []model.DonationRecord{
			{DonationID: "a1", Amount: 500},
			{DonationID: "b2", Amount: 200},
		},
	}}

	merged := Merge(first, second)

	require.Len(t, merged, 1)
	g := merged[0]
	assert.Equal(t, model.ID(500), g.BillID)
	assert.InDelta(t, 0.8, g.Confidence.Float(), 1e-9)
	require.Len(t, g.Donors, 2)
	assert.Equal(t, model.FlexString("a1"), g.Donors[0].DonationID)
	assert.Equal(t, model.FlexString("b2"), g.Donors[1].DonationID)
	assert.Equal(t, "energy donors", g.Reason)
}

func TestMerge_NoDuplicateKeysAndMaxConfidence(t *testing.T) {
	day := model.NewDate(2021, time.March, 3)
	batches := [][]model.Group{
		{
			{BillID: 1, Confidence: 0.3, Donors: []model.DonationRecord{{DonationID: "x"}, {DonorName: "Jane  Roe", Amount: 100, Date: day}}},
			{BillID: 2, Confidence: 0.9},
		},
		{
			{BillID: 1, Confidence: 0.55, Donors: []model.DonationRecord{{DonationID: "x"}, {DonorName: "jane roe", Amount: 100, Date: day}}},
			{BillID: 1, Confidence: 0.4, Donors: []model.DonationRecord{{DonationID: "y"}}},
		},
	}

	merged := Merge(batches...)

	require.Len(t, merged, 2)
	assert.Equal(t, model.ID(1), merged[0].BillID, "first-seen order")
	assert.InDelta(t, 0.55, merged[0].Confidence.Float(), 1e-9)

	seen := map[string]bool{}
	for _, d := range merged[0].Donors {
		assert.False(t, seen[d.Key()], "duplicate donor %s", d.Key())
		seen[d.Key()] = true
	}
	assert.Len(t, merged[0].Donors, 3)
}

func TestMerge_ReasonsAndMetadata(t *testing.T) {
	merged := Merge(
		[]model.Group{{BillID: 7, Reason: "Utility donors", Confidence: 0.2}},
		[]model.Group{{BillID: 7, BillNumber: "SB 7", Title: "Rates", Reason: "utility donors", Confidence: 0.1}},
		[]model.Group{{BillID: 7, Reason: "Timing of PAC gifts", Confidence: 0.3}},
	)

	require.Len(t, merged, 1)
	assert.Equal(t, "Utility donors; Timing of PAC gifts", merged[0].Reason)
	assert.Equal(t, "SB 7", merged[0].BillNumber)
	assert.Equal(t, "Rates", merged[0].Title)
}

func TestMerge_ClampsConfidence(t *testing.T) {
	merged := Merge([]model.Group{{BillID: 1, Confidence: 1.7}}, []model.Group{{BillID: 2, Confidence: -0.2}})

	assert.Equal(t, 1.0, merged[0].Confidence.Float())
	assert.Equal(t, 0.0, merged[1].Confidence.Float())
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge())
	assert.Empty(t, Merge(nil, nil))
}
