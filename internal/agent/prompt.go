package agent

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an investigative analyst looking for potential conflicts of interest between a legislator's campaign donors and their legislative record.
Use the tools to gather evidence. Do not invent bills, donors, amounts or dates; every fact you report must come from a tool result.`

const answerFormat = `When you have enough evidence, stop calling tools and answer with one JSON object and nothing else:
{
  "overall_summary": "two or three sentences",
  "narrative": "the full analysis in plain prose",
  "confirmed_connections": [
    {
      "bill_id": 123,
      "bill_number": "HB 1234",
      "title": "...",
      "severity": "high|medium|low",
      "cited_provisions": ["Section 3: ..."],
      "explanation": "how the bill benefits the donors",
      "donors": [{"donor_name": "...", "amount": 500, "transaction_date": "YYYY-MM-DD", "donation_id": "..."}],
      "confidence": 0.0
    }
  ],
  "rejected_connections": [{"bill_id": 456, "bill_number": "SB 1", "reason": "..."}],
  "bills": [{"bill_id": 123, "bill_number": "HB 1234", "title": "...", "vote_value": "Yea", "relevance": "..."}]
}

Severity: high when the bill directly benefits a donor's industry and the vote broke with the legislator's party or was a sponsorship; medium for a direct benefit without that signal; low for an indirect or speculative benefit.`

// BuildPrompt writes the opening user message
func BuildPrompt(req Request) string {
	var b strings.Builder

	leg := req.Legislator
	switch {
	case leg.PersonID != 0:
		fmt.Fprintf(&b, "Analyze legislator %s (person_id=%d", leg.Name, leg.PersonID)
		if leg.Party != "" {
			fmt.Fprintf(&b, ", party %s", leg.Party)
		}
		b.WriteString(").\n")
	default:
		fmt.Fprintf(&b, "Analyze the legislator named %q. Start with resolve_legislator.\n", leg.Name)
	}

	if len(req.Sessions) > 0 {
		b.WriteString("\nSessions in scope:\n")
		for _, s := range req.Sessions {
			fmt.Fprintf(&b, "- session_id=%d %s", s.ID, s.Name)
			if s.HasDates() {
				start, end := s.DonationWindow(req.BufferDays)
				fmt.Fprintf(&b, " (%s to %s; donation window %s to %s)", s.StartDate, s.EndDate, start, end)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\nNo sessions were chosen: call list_sessions and analyze the most recent one.\n")
	}

	if req.MinDonation > 0 {
		fmt.Fprintf(&b, "\nIgnore donations below $%.0f (pass min_amount to list_donations).\n", req.MinDonation)
	}

	b.WriteString("\nLook first at party-outlier votes and sponsorships, then compare the donors' industries with each bill's text.\n\n")
	b.WriteString(answerFormat)
	return b.String()
}
