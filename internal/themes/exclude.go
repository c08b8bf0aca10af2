package themes

import (
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

var committeeWords = []string{"committee", "campaign", "for senate", "for house", "for assembly", "for state", "victory fund"}

// Exclude removes non-signal donors: names containing any of the
// configured patterns, and the legislator's own committee.
func Exclude(totals []model.DonorTotal, patterns []string, leg model.Legislator) (kept, excluded []model.DonorTotal) {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}

	for _, t := range totals {
		name := nameKey(t.Name)
		if matchesAny(name, lowered) || isOwnCommittee(name, leg) {
			excluded = append(excluded, t)
			continue
		}
		kept = append(kept, t)
	}
	return kept, excluded
}

// isOwnCommittee matches committee-like names that carry the legislator's
// surname
func isOwnCommittee(name string, leg model.Legislator) bool {
	fields := strings.Fields(strings.ToLower(leg.Name))
	if len(fields) == 0 {
		return false
	}
	surname := strings.Trim(fields[len(fields)-1], ".,")
	if len(surname) < 3 || !strings.Contains(name, surname) {
		return false
	}
	return matchesAny(name, committeeWords) || strings.Contains(name, surname+" for ")
}

func matchesAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
