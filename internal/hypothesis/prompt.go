package hypothesis

import (
	"fmt"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

const systemPrompt = `You are an investigative analyst looking for potential conflicts of interest between a legislator's campaign donors and the legislator's votes and sponsorships. List every plausible donor-bill grouping, including weak ones, and score each honestly. Respond with a single JSON object and nothing else.`

const outputFormat = `Return ALL candidate groupings as JSON in exactly this shape:
{
  "groups": [
    {
      "bill_id": 123,
      "bill_number": "HB 1234",
      "title": "bill title",
      "donors": [
        {"donation_id": "id from the donation list", "donor_name": "...", "employer": "...", "occupation": "...", "amount": 500, "transaction_date": "YYYY-MM-DD"}
      ],
      "reason": "why these donors would care about this bill",
      "confidence": 0.0
    }
  ],
  "summary": {"total_groups": 0, "high_confidence": 0, "medium_confidence": 0, "low_confidence": 0}
}

Confidence bands:
- high (>= 0.7): the donors' industry is the direct subject of the bill, or the vote broke with the party
- medium (0.4 - 0.69): the bill materially affects the donors' industry
- low (0.1 - 0.39): a plausible but indirect link

Use bill_id values from the vote list and donation_id values from the donation list. One entry per bill; put every related donor in it.`

// Input is everything Phase 1 prompts with
type Input struct {
	Legislator  model.Legislator
	Session     model.Session
	Votes       []model.EvidenceRecord
	Donations   []model.DonationRecord
	MinDonation float64
}

// BuildPrompt renders the Phase 1 prompt for one batch of votes.
// Donations below the minimum are left out.
func BuildPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("## Legislator\n")
	name := in.Legislator.Name
	if name == "" {
		name = "person " + in.Legislator.PersonID.String()
	}
	fmt.Fprintf(&b, "%s", name)
	if in.Legislator.Party != "" {
		fmt.Fprintf(&b, " (%s)", in.Legislator.Party)
	}
	if in.Legislator.Role != "" {
		fmt.Fprintf(&b, ", %s", in.Legislator.Role)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Session: %s (%s to %s)\n", in.Session.Name, in.Session.StartDate, in.Session.EndDate)

	fmt.Fprintf(&b, "\n## Votes and sponsorships (%d)\n", len(in.Votes))
	if len(in.Votes) == 0 {
		b.WriteString("None recorded.\n")
	}
	for _, v := range in.Votes {
		fmt.Fprintf(&b, "- bill_id=%d %s: %s", v.BillID, v.BillNumber, v.Title)
		if v.IsSponsor {
			kind := v.SponsorType
			if kind == "" {
				kind = "sponsor"
			}
			fmt.Fprintf(&b, " [%s]", kind)
		}
		if v.Vote != "" {
			fmt.Fprintf(&b, " vote=%s", v.Vote)
		}
		if !v.VoteDate.IsZero() {
			fmt.Fprintf(&b, " on %s", v.VoteDate)
		}
		if v.IsOutlier {
			b.WriteString(" PARTY-OUTLIER")
		}
		b.WriteString("\n")
	}

	donations := model.SignificantDonations(in.Donations, in.MinDonation)
	fmt.Fprintf(&b, "\n## Donations of $%.0f or more (%d)\n", in.MinDonation, len(donations))
	if len(donations) == 0 {
		b.WriteString("None recorded.\n")
	}
	for _, d := range donations {
		fmt.Fprintf(&b, "- donation_id=%s %s", d.DonationID, d.DonorName)
		if d.Employer != "" {
			fmt.Fprintf(&b, ", employer: %s", d.Employer)
		}
		if d.Occupation != "" {
			fmt.Fprintf(&b, ", occupation: %s", d.Occupation)
		}
		if d.DonorType != "" {
			fmt.Fprintf(&b, ", type: %s", d.DonorType)
		}
		fmt.Fprintf(&b, ": $%.2f on %s", d.Amount.Float(), d.Date)
		if d.DaysFromSessionStart != 0 {
			fmt.Fprintf(&b, " (day %d of session)", d.DaysFromSessionStart)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(outputFormat)
	return b.String()
}
