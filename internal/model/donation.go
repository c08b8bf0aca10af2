package model

import (
	"fmt"
	"strings"
)

// MinSignificantDonation is the default floor for donations worth prompting about
const MinSignificantDonation = 100.0

// DonationRecord is a single contribution to the legislator. Read-only.
type DonationRecord struct {
	DonationID           FlexString `json:"donation_id,omitempty"`
	DonorName            string     `json:"donor_name"`
	Employer             string     `json:"employer,omitempty"`
	Occupation           string     `json:"occupation,omitempty"`
	DonorType            string     `json:"donor_type,omitempty"` // individual, pac, business, party
	Amount               Number     `json:"amount"`
	Date                 Date       `json:"transaction_date"`
	DaysFromSessionStart int        `json:"days_from_session_start,omitempty"`
}

// Key identifies the donation for deduplication: the donation id when
// present, otherwise name, amount and date
func (d DonationRecord) Key() string {
	if id := strings.TrimSpace(string(d.DonationID)); id != "" {
		return "id:" + id
	}
	name := strings.ToLower(strings.Join(strings.Fields(d.DonorName), " "))
	return fmt.Sprintf("c:%s|%.2f|%s", name, d.Amount.Float(), d.Date.String())
}

// DonorTotal is a ranked per-donor aggregate inside a session window
type DonorTotal struct {
	DonorID          FlexString `json:"donor_id"`
	Name             string     `json:"donor_name"`
	Employer         string     `json:"employer,omitempty"`
	Occupation       string     `json:"occupation,omitempty"`
	DonorType        string     `json:"donor_type,omitempty"`
	City             string     `json:"city,omitempty"`
	State            string     `json:"state,omitempty"`
	Total            Number     `json:"total_amount"`
	TransactionCount int        `json:"transaction_count"`
}

// DonorTransaction is an itemised transaction. TransactionID is the key
// reports cite by.
type DonorTransaction struct {
	TransactionID FlexString `json:"transaction_id"`
	DonorID       FlexString `json:"donor_id"`
	DonorName     string     `json:"donor_name"`
	Employer      string     `json:"employer,omitempty"`
	Occupation    string     `json:"occupation,omitempty"`
	Amount        Number     `json:"amount"`
	Date          Date       `json:"transaction_date"`
}

// SignificantDonations keeps donations at or above min, in input order
func SignificantDonations(donations []DonationRecord, min float64) []DonationRecord {
	out := make([]DonationRecord, 0, len(donations))
	for _, d := range donations {
		if d.Amount.Float() >= min {
			out = append(out, d)
		}
	}
	return out
}

// WithSessionOffsets fills DaysFromSessionStart relative to start
func WithSessionOffsets(donations []DonationRecord, start Date) []DonationRecord {
	out := make([]DonationRecord, len(donations))
	for i, d := range donations {
		if !d.Date.IsZero() && !start.IsZero() {
			d.DaysFromSessionStart = d.Date.DaysSince(start)
		}
		out[i] = d
	}
	return out
}
