package model

import (
	"fmt"
	"time"
)

// Mode identifies which engine produced a report
type Mode string

const (
	ModeTwoPhase Mode = "two_phase" // Phase 1 hypotheses + Phase 2 validation
	ModeAgent    Mode = "agent"     // Single-pass tool-calling loop
	ModeTheme    Mode = "theme"     // Theme discovery + iterative search
)

// Report is the final output of an analysis. Append-only during synthesis.
type Report struct {
	ID          string       `json:"id"`
	Mode        Mode         `json:"mode"`
	Legislator  Legislator   `json:"legislator"`
	Sessions    []Session    `json:"sessions"`
	GeneratedAt time.Time    `json:"generated_at"`
	Model       ModelInfo    `json:"model"`
	Summary     string       `json:"overall_summary"`
	Narrative   string       `json:"narrative,omitempty"`
	Themes      []Theme      `json:"themes,omitempty"`
	Donors      []ThemeDonor `json:"donors,omitempty"`

	Groups       []Group               `json:"groups,omitempty"`        // Merged Phase 1 hypotheses
	GroupSummary *BandSummary          `json:"group_summary,omitempty"` // Counts by confidence band
	Confirmed    []ConfirmedConnection `json:"confirmed,omitempty"`
	Rejected     []RejectedConnection  `json:"rejected,omitempty"`

	Bills             []ReportBill       `json:"bills,omitempty"`
	CitedTransactions []CitedTransaction `json:"cited_transactions,omitempty"`
	Search            *SearchTrace       `json:"search,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// ModelInfo records which provider produced the model output
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ReportBill is a bill discussed by a report
type ReportBill struct {
	BillID         ID           `json:"bill_id"`
	BillNumber     string       `json:"bill_number,omitempty"`
	Title          string       `json:"title,omitempty"`
	Vote           string       `json:"vote_value,omitempty"`
	Relevance      string       `json:"relevance,omitempty"`
	Provisions     []string     `json:"key_provisions,omitempty"`
	TransactionIDs []FlexString `json:"transaction_ids,omitempty"`
}

// CitedTransaction is a transaction the narrative relies on
type CitedTransaction struct {
	TransactionID string  `json:"transaction_id"`
	DonorName     string  `json:"donor_name,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Date          Date    `json:"transaction_date"`
	Relevance     string  `json:"relevance,omitempty"`
}

// SearchTrace records how the iterative search ran
type SearchTrace struct {
	Phrases      []string  `json:"phrases"`
	Expanded     bool      `json:"expanded"`
	Batches      int       `json:"batches"`
	Thresholds   []float64 `json:"thresholds"` // Threshold used per batch
	StopReason   string    `json:"stop_reason"`
	Candidates   int       `json:"candidates"`
	Selected     []ID      `json:"selected"`
	UsedFallback bool      `json:"used_fallback"`
	LexicalOnly  int       `json:"lexical_only_batches,omitempty"`
}

// AddWarning appends a formatted warning
func (r *Report) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// SessionNames lists the names of the sessions the report covers
func (r *Report) SessionNames() []string {
	names := make([]string, 0, len(r.Sessions))
	for _, s := range r.Sessions {
		names = append(names, s.Name)
	}
	return names
}
