// Package score ranks groups and search candidates and grades the
// signals behind a donor-bill group.
package score

import (
	"math"
	"sort"

	"github.com/ppiankov/donortrace/internal/model"
)

// Bands counts groups per confidence band using the shared boundaries
func Bands(groups []model.Group) model.BandSummary {
	summary := model.BandSummary{Total: len(groups), Recomputed: true}
	for _, g := range groups {
		switch model.BandFor(g.Confidence.Float()) {
		case model.BandHigh:
			summary.High++
		case model.BandMedium:
			summary.Medium++
		case model.BandLow:
			summary.Low++
		}
	}
	return summary
}

// TopGroups returns up to n groups with confidence >= minConfidence,
// highest first. Ties go to the larger donor total, then the lower bill
// id, so the selection is deterministic.
func TopGroups(groups []model.Group, n int, minConfidence float64) []model.Group {
	var eligible []model.Group
	for _, g := range groups {
		if g.Confidence.Float() >= minConfidence {
			eligible = append(eligible, g)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ci, cj := eligible[i].Confidence.Float(), eligible[j].Confidence.Float()
		if ci != cj {
			return ci > cj
		}
		ti, tj := GroupTotal(eligible[i]), GroupTotal(eligible[j])
		if ti != tj {
			return ti > tj
		}
		return eligible[i].BillID < eligible[j].BillID
	})

	if n > 0 && len(eligible) > n {
		eligible = eligible[:n]
	}
	return eligible
}

// GroupTotal sums the donation amounts in a group
func GroupTotal(g model.Group) float64 {
	total := 0.0
	for _, d := range g.Donors {
		total += d.Amount.Float()
	}
	return math.Round(total*100) / 100
}

// RankCandidates returns the top n candidates by search score. Sponsored
// bills win ties, then lower bill ids.
func RankCandidates(candidates []model.BillCandidate, n int) []model.BillCandidate {
	ranked := append([]model.BillCandidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].IsSponsor != ranked[j].IsSponsor {
			return ranked[i].IsSponsor
		}
		return ranked[i].BillID < ranked[j].BillID
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Assessment holds the vote facts that grade a group
type Assessment struct {
	Outlier     bool `json:"party_outlier"`
	Sponsor     bool `json:"sponsor"`
	NearestDays int  `json:"nearest_days"` // Smallest |days| between a donation and the vote; -1 if unknown
}

// ProximityDays is how close a donation must be to the vote to count as
// well-timed
const ProximityDays = 30

// Assess combines a group with the vote record it is keyed on. record
// may be nil when the bill was not in the fetched evidence.
func Assess(g model.Group, record *model.EvidenceRecord) Assessment {
	a := Assessment{NearestDays: -1}
	if record == nil {
		return a
	}
	a.Outlier = record.IsOutlier
	a.Sponsor = record.IsSponsor

	if record.VoteDate.IsZero() {
		return a
	}
	for _, d := range g.Donors {
		if d.Date.IsZero() {
			continue
		}
		days := d.Date.DaysSince(record.VoteDate)
		if days < 0 {
			days = -days
		}
		if a.NearestDays < 0 || days < a.NearestDays {
			a.NearestDays = days
		}
	}
	return a
}

// WellTimed reports whether a donation landed within ProximityDays of the vote
func (a Assessment) WellTimed() bool {
	return a.NearestDays >= 0 && a.NearestDays <= ProximityDays
}
