package validate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/donortrace/internal/extract"
	"github.com/ppiankov/donortrace/internal/model"
)

const systemPrompt = `You are an investigative analyst checking whether campaign donations line up with a legislator's action on a specific bill. You only judge the evidence you are given. Respond with a single JSON object and nothing else.`

const instructions = `Decide whether the bill text supports a connection between these donors and the legislator's action.

Severity heuristics:
- high: the bill directly benefits the donors' business in a way that looks like a quid pro quo, or the legislator voted against their party majority
- medium: the bill mixes public benefit with a clear private benefit to the donors' industry
- low: the connection is indirect, or the vote aligns with the legislator's stated policy positions

Respond with exactly this JSON shape:
{
  "decision": "confirmed" or "rejected",
  "severity": "high" | "medium" | "low",
  "cited_provisions": ["quote or section reference from the bill text", ...],
  "explanation": "two to four sentences"
}

Cite provisions only from the text above. Reject the connection if the text does not support it.`

// BuildPrompt renders the Phase 2 prompt for one group
func BuildPrompt(g model.Group, detail *model.BillDetail, record *model.EvidenceRecord, text string, provisions []extract.Provision) string {
	var b strings.Builder

	b.WriteString("## Bill\n")
	fmt.Fprintf(&b, "ID: %d\n", g.BillID)
	number, title := g.BillNumber, g.Title
	if detail != nil {
		if detail.BillNumber != "" {
			number = detail.BillNumber
		}
		if detail.Title != "" {
			title = detail.Title
		}
	}
	fmt.Fprintf(&b, "Number: %s\nTitle: %s\n", number, title)
	if detail != nil {
		if detail.Status != "" {
			fmt.Fprintf(&b, "Status: %s\n", detail.Status)
		}
		if len(detail.Subjects) > 0 {
			fmt.Fprintf(&b, "Subjects: %s\n", strings.Join(detail.Subjects, ", "))
		}
		if detail.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", detail.Summary)
		}
	}

	b.WriteString("\n## Legislator action\n")
	if record == nil {
		b.WriteString("No vote or sponsorship record was found for this bill.\n")
	} else {
		if record.IsSponsor {
			kind := record.SponsorType
			if kind == "" {
				kind = "sponsor"
			}
			fmt.Fprintf(&b, "Sponsorship: %s\n", kind)
		}
		if record.Vote != "" {
			fmt.Fprintf(&b, "Vote: %s on %s\n", record.Vote, record.VoteDate)
		}
		if record.IsOutlier {
			b.WriteString("Party outlier: voted against the party majority\n")
		}
	}

	b.WriteString("\n## Donors in this group\n")
	for _, d := range g.Donors {
		fmt.Fprintf(&b, "- %s", d.DonorName)
		if d.Employer != "" || d.Occupation != "" {
			fmt.Fprintf(&b, " (%s)", strings.Trim(d.Employer+", "+d.Occupation, ", "))
		}
		fmt.Fprintf(&b, ": $%.2f on %s\n", d.Amount.Float(), d.Date)
	}
	fmt.Fprintf(&b, "\nPhase 1 reason (confidence %.2f): %s\n", g.Confidence.Float(), g.Reason)

	if len(provisions) > 0 {
		b.WriteString("\n## Provisions mentioning donor industries\n")
		for _, p := range provisions {
			if p.Section != "" {
				fmt.Fprintf(&b, "- [Sec. %s] %s\n", p.Section, p.Text)
			} else {
				fmt.Fprintf(&b, "- %s\n", p.Text)
			}
		}
	}

	b.WriteString("\n## Bill text\n")
	if strings.TrimSpace(text) == "" {
		b.WriteString("(no text available)\n")
	} else {
		b.WriteString(text)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(instructions)
	return b.String()
}
