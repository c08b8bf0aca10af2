package model

// EvidenceRecord is one vote or sponsorship by the legislator. Read-only.
type EvidenceRecord struct {
	BillID         ID             `json:"bill_id"`
	BillNumber     string         `json:"bill_number"`
	Title          string         `json:"bill_title"`
	IsSponsor      bool           `json:"is_sponsor"`
	SponsorType    string         `json:"sponsor_type,omitempty"` // primary, co-sponsor
	Vote           string         `json:"vote_value,omitempty"`   // Yea, Nay, Absent, NV
	VoteDate       Date           `json:"vote_date"`
	IsOutlier      bool           `json:"is_party_outlier"` // Voted against party majority
	PartyBreakdown map[string]any `json:"party_breakdown,omitempty"`
	SessionID      ID             `json:"session_id,omitempty"`
}

// BillDetail is the full record for a single bill
type BillDetail struct {
	BillID      ID       `json:"bill_id"`
	BillNumber  string   `json:"bill_number"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Status      string   `json:"status,omitempty"`
	Subjects    []string `json:"subjects,omitempty"`
	FullText    string   `json:"full_text,omitempty"` // May be HTML
	URL         string   `json:"url,omitempty"`
}

// BillText is one entry from the batched text fetch
type BillText struct {
	BillID     ID     `json:"bill_id"`
	BillNumber string `json:"bill_number,omitempty"`
	Title      string `json:"title,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Text       string `json:"full_text"`
}

// VoteRollup is the aggregate tally for a bill
type VoteRollup struct {
	BillID  ID             `json:"bill_id"`
	Yea     int            `json:"yea"`
	Nay     int            `json:"nay"`
	Absent  int            `json:"absent"`
	NV      int            `json:"nv"`
	ByParty map[string]any `json:"by_party,omitempty"`
	Passed  *bool          `json:"passed,omitempty"`
}

// StakeholderPosition is a recorded public position on a bill
type StakeholderPosition struct {
	BillID       ID     `json:"bill_id"`
	Organization string `json:"organization"`
	Position     string `json:"position"` // support, oppose, neutral
	Representing string `json:"representing,omitempty"`
	Date         Date   `json:"position_date"`
	Notes        string `json:"notes,omitempty"`
}

// BillCandidate is a bill returned by semantic search
type BillCandidate struct {
	BillID         ID       `json:"bill_id"`
	BillNumber     string   `json:"bill_number"`
	Title          string   `json:"title"`
	Score          float64  `json:"score"`
	Vote           string   `json:"vote_value,omitempty"`
	IsSponsor      bool     `json:"is_sponsor,omitempty"`
	MatchedPhrases []string `json:"matched_phrases,omitempty"`
}
