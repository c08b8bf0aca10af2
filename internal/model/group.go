package model

import "encoding/json"

// Group is a donor-bill hypothesis. Created by Phase 1, mutated only by the
// merger, never edited once Phase 2 starts.
type Group struct {
	BillID     ID               `json:"bill_id" validate:"required"`
	BillNumber string           `json:"bill_number,omitempty"`
	Title      string           `json:"title,omitempty"`
	Donors     []DonationRecord `json:"donors"`
	Reason     string           `json:"reason,omitempty"`
	Confidence Number           `json:"confidence" validate:"gte=0,lte=1"`
}

// Band is a confidence band
type Band string

const (
	BandHigh   Band = "high"   // >= 0.7
	BandMedium Band = "medium" // 0.4 - 0.69
	BandLow    Band = "low"    // 0.1 - 0.39
	BandNone   Band = "none"   // below 0.1
)

// Band boundaries
const (
	HighConfidence   = 0.7
	MediumConfidence = 0.4
	LowConfidence    = 0.1
)

// BandFor classifies a confidence value
func BandFor(confidence float64) Band {
	switch c := Clamp01(confidence); {
	case c >= HighConfidence:
		return BandHigh
	case c >= MediumConfidence:
		return BandMedium
	case c >= LowConfidence:
		return BandLow
	default:
		return BandNone
	}
}

// BandSummary counts groups per confidence band
type BandSummary struct {
	Total  int `json:"total_groups"`
	High   int `json:"high_confidence"`
	Medium int `json:"medium_confidence"`
	Low    int `json:"low_confidence"`

	Recomputed bool `json:"recomputed"` // Counts were derived locally
}

// HypothesisBatch is one Phase 1 response. Summary is kept raw because
// models often report counts as strings or omit them.
type HypothesisBatch struct {
	Groups  []json.RawMessage `json:"groups"`
	Summary json.RawMessage   `json:"summary,omitempty"`
}

// Severity grades a confirmed connection
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Decision is the Phase 2 verdict for a group
type Decision string

const (
	DecisionConfirmed Decision = "confirmed"
	DecisionRejected  Decision = "rejected"
)

// ConfirmedConnection is a Phase 2 outcome that survived validation
type ConfirmedConnection struct {
	BillID          ID               `json:"bill_id"`
	BillNumber      string           `json:"bill_number,omitempty"`
	Title           string           `json:"title,omitempty"`
	Severity        Severity         `json:"severity"`
	CitedProvisions []string         `json:"cited_provisions,omitempty"`
	Explanation     string           `json:"explanation"`
	Donors          []DonationRecord `json:"donors"`
	Confidence      float64          `json:"confidence"`
}

// RejectedConnection is a Phase 2 outcome that did not survive validation
type RejectedConnection struct {
	BillID      ID     `json:"bill_id"`
	BillNumber  string `json:"bill_number,omitempty"`
	Title       string `json:"title,omitempty"`
	Reason      string `json:"reason"`
	ParseFailed bool   `json:"parse_failed,omitempty"`
}
