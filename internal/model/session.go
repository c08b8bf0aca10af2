package model

import (
	"sort"
	"strings"
)

// Legislator is the subject of an analysis
type Legislator struct {
	PersonID ID     `json:"person_id"`
	Name     string `json:"name"`
	Party    string `json:"party,omitempty"`
	Role     string `json:"role,omitempty"`     // Chamber or title
	District string `json:"district,omitempty"` // Electoral district
	State    string `json:"state,omitempty"`
}

// Session is a legislative period. Immutable once fetched.
type Session struct {
	ID        ID     `json:"session_id"`
	Name      string `json:"session_name"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
	VoteCount int    `json:"vote_count"`

	// MemberIDs lists the original sessions when this one is a combination
	MemberIDs []ID `json:"member_ids,omitempty"`
}

// HasDates reports whether both ends of the session are known
func (s Session) HasDates() bool {
	return !s.StartDate.IsZero() && !s.EndDate.IsZero()
}

// SessionIDs returns the ids the backend should be queried with
func (s Session) SessionIDs() []ID {
	if len(s.MemberIDs) > 0 {
		return s.MemberIDs
	}
	return []ID{s.ID}
}

// DonationWindow returns the donation window around the session, widened by
// bufferDays on both ends
func (s Session) DonationWindow(bufferDays int) (Date, Date) {
	return s.StartDate.AddDays(-bufferDays), s.EndDate.AddDays(bufferDays)
}

// CombineSessions merges a selection into one window spanning the earliest
// start and the latest end. Vote counts are summed.
func CombineSessions(sessions []Session) Session {
	if len(sessions) == 0 {
		return Session{}
	}
	if len(sessions) == 1 {
		return sessions[0]
	}

	sorted := make([]Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate.Time)
	})

	combined := Session{ID: sorted[0].ID}
	names := make([]string, 0, len(sorted))
	for _, s := range sorted {
		combined.MemberIDs = append(combined.MemberIDs, s.ID)
		combined.VoteCount += s.VoteCount
		names = append(names, s.Name)

		if !s.StartDate.IsZero() && (combined.StartDate.IsZero() || s.StartDate.Before(combined.StartDate.Time)) {
			combined.StartDate = s.StartDate
		}
		if s.EndDate.After(combined.EndDate.Time) {
			combined.EndDate = s.EndDate
		}
	}
	combined.Name = strings.Join(names, " + ")
	return combined
}
