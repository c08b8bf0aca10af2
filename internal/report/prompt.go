package report

import (
	"fmt"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

const narrativeSystem = `You write short, factual investigative summaries. Use only the facts given. Do not speculate about intent and do not add facts.`

const themeSystem = `You are an investigative analyst writing a report on whether a group of campaign donors stands to benefit from bills a legislator voted on.
Cite donors only by the transaction ids you are given. Never invent a transaction id, bill, amount or date.`

const themeFormat = `Answer with one JSON object:
{
  "summary": "two or three sentences",
  "narrative": "the full analysis in plain prose",
  "bills": [
    {"bill_id": 123, "bill_number": "HB 1234", "title": "...", "vote_value": "Yea", "relevance": "why this bill matters to these donors", "key_provisions": ["Section 2: ..."], "transaction_ids": ["T-1"]}
  ],
  "cited_transactions": [{"transaction_id": "T-1", "relevance": "..."}]
}
Only include bills from the list above. Only cite transaction ids from the transaction list.`

// NarrativePrompt describes a two-phase report for the narrative call
func NarrativePrompt(r *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Legislator: %s", r.Legislator.Name)
	if r.Legislator.Party != "" {
		fmt.Fprintf(&b, " (%s)", r.Legislator.Party)
	}
	fmt.Fprintf(&b, "\nSessions: %s\n", strings.Join(r.SessionNames(), ", "))
	fmt.Fprintf(&b, "\nFindings: %s\n", r.Summary)

	if len(r.Confirmed) > 0 {
		b.WriteString("\nConfirmed connections:\n")
		for _, c := range r.Confirmed {
			fmt.Fprintf(&b, "- %s %s [%s severity, confidence %.2f]: %s\n", c.BillNumber, c.Title, c.Severity, c.Confidence, c.Explanation)
			for _, p := range c.CitedProvisions {
				fmt.Fprintf(&b, "  provision: %s\n", p)
			}
			for _, d := range c.Donors {
				fmt.Fprintf(&b, "  donor: %s $%.2f on %s\n", d.DonorName, d.Amount.Float(), d.Date)
			}
		}
	}
	if len(r.Rejected) > 0 {
		b.WriteString("\nRejected after reading the bill text:\n")
		for _, c := range r.Rejected {
			fmt.Fprintf(&b, "- %s %s: %s\n", c.BillNumber, c.Title, c.Reason)
		}
	}
	if len(r.Confirmed) == 0 && len(r.Rejected) == 0 {
		b.WriteString("\nUnvalidated hypotheses (highest confidence first):\n")
		for i, g := range r.Groups {
			if i == 10 {
				break
			}
			fmt.Fprintf(&b, "- %s %s (confidence %.2f, %d donors): %s\n", g.BillNumber, g.Title, g.Confidence.Float(), len(g.Donors), g.Reason)
		}
	}

	b.WriteString("\nWrite three to five paragraphs of plain prose summarising these findings for a general reader. Say clearly that these are potential conflicts, not proof of wrongdoing.")
	return b.String()
}

// ThemePrompt lays out a theme's donors, transactions and bill evidence
func ThemePrompt(in ThemeInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Legislator: %s (person_id=%d", in.Legislator.Name, in.Legislator.PersonID)
	if in.Legislator.Party != "" {
		fmt.Fprintf(&b, ", %s", in.Legislator.Party)
	}
	fmt.Fprintf(&b, ")\nSession: %s (%s to %s)\n", in.Session.Name, in.Session.StartDate, in.Session.EndDate)

	th := in.Theme
	fmt.Fprintf(&b, "\n## Theme: %s\n", th.Title)
	if th.Description != "" {
		fmt.Fprintf(&b, "%s\n", th.Description)
	}
	if len(th.IndustryTags) > 0 {
		fmt.Fprintf(&b, "Industries: %s\n", strings.Join(th.IndustryTags, ", "))
	}
	for _, e := range th.Evidence {
		fmt.Fprintf(&b, "- %s\n", e)
	}

	fmt.Fprintf(&b, "\n## Transactions (%d)\n", len(in.Transactions))
	for _, t := range in.Transactions {
		fmt.Fprintf(&b, "- transaction_id=%s %s", t.TransactionID, t.DonorName)
		if t.Employer != "" {
			fmt.Fprintf(&b, " (%s)", t.Employer)
		}
		fmt.Fprintf(&b, ": $%.2f on %s\n", t.Amount.Float(), t.Date)
	}

	fmt.Fprintf(&b, "\n## Bills (%d)\n", len(in.Evidence))
	for _, e := range in.Evidence {
		c := e.Candidate
		fmt.Fprintf(&b, "\n### bill_id=%d %s: %s\n", c.BillID, c.BillNumber, c.Title)
		if c.IsSponsor {
			b.WriteString("Sponsored by the legislator.\n")
		}
		if c.Vote != "" {
			fmt.Fprintf(&b, "Legislator's vote: %s\n", c.Vote)
		}
		if e.Rollup != nil {
			fmt.Fprintf(&b, "Tally: %d yea, %d nay, %d absent\n", e.Rollup.Yea, e.Rollup.Nay, e.Rollup.Absent)
		}
		if e.Detail != nil && e.Detail.Status != "" {
			fmt.Fprintf(&b, "Status: %s\n", e.Detail.Status)
		}
		if e.Text != "" {
			fmt.Fprintf(&b, "Text:\n%s\n", e.Text)
		}
	}

	b.WriteString("\n")
	b.WriteString(themeFormat)
	return b.String()
}
