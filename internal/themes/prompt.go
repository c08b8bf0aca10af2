package themes

import (
	"fmt"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

const systemPrompt = `You are an investigative analyst who groups a legislator's campaign donors into themes that could explain shared legislative interests. Respond with a single JSON object and nothing else.`

const themeFormat = `Group these donors into between %d and %d themes. Use these heuristics and name the ones you used:
- industry: donors from the same industry or trade
- network: family members, business partners, or employees of the same company
- pac: political action committees and their affiliated donors
- geography: donors clustered in one city or region with a shared local interest
- timing: donations bunched around a date, vote or event

Respond with exactly this JSON shape:
{
  "themes": [
    {
      "id": "short-slug",
      "title": "short theme name",
      "description": "what ties these donors together",
      "industry_tags": ["..."],
      "heuristics_used": ["industry", "network"],
      "evidence": ["one bullet per supporting fact, citing transaction ids"],
      "donors": [{"donor_id": "id from the donor list", "name": "...", "total": 0}],
      "suggested_search_phrases": ["short concrete phrases that would appear in bills affecting these donors"],
      "confidence": 0.0
    }
  ]
}`

// BuildPrompt renders the discovery prompt
func BuildPrompt(leg model.Legislator, session model.Session, donors []model.DonorTotal, txns []model.DonorTransaction, minThemes, maxThemes int) string {
	var b strings.Builder

	name := leg.Name
	if name == "" {
		name = "person " + leg.PersonID.String()
	}
	fmt.Fprintf(&b, "## Legislator\n%s", name)
	if leg.Party != "" {
		fmt.Fprintf(&b, " (%s)", leg.Party)
	}
	fmt.Fprintf(&b, "\nSession: %s (%s to %s)\n", session.Name, session.StartDate, session.EndDate)

	fmt.Fprintf(&b, "\n## Donors by total (%d)\n", len(donors))
	for _, d := range donors {
		fmt.Fprintf(&b, "- donor_id=%s %s", d.DonorID, d.Name)
		var attrs []string
		for _, a := range []string{d.Employer, d.Occupation, d.DonorType, strings.Trim(d.City+", "+d.State, ", ")} {
			if a != "" {
				attrs = append(attrs, a)
			}
		}
		if len(attrs) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(attrs, "; "))
		}
		fmt.Fprintf(&b, ": $%.2f over %d transactions\n", d.Total.Float(), d.TransactionCount)
	}

	if len(txns) > 0 {
		fmt.Fprintf(&b, "\n## Transactions (%d)\n", len(txns))
		for _, t := range txns {
			fmt.Fprintf(&b, "- txn=%s donor_id=%s %s: $%.2f on %s\n", t.TransactionID, t.DonorID, t.DonorName, t.Amount.Float(), t.Date)
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, themeFormat, minThemes, maxThemes)
	return b.String()
}
