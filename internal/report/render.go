package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

const footer = "_Generated by donortrace. These are potential conflicts of interest surfaced from public records, not findings of wrongdoing._\n"

// Renderer writes reports as JSON and Markdown
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a Renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderSummary prints the one-line summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	_, _ = fmt.Fprintln(w, Summary(report))
}

// Summary is a one-line description of the report
func Summary(report *model.Report) string {
	name := report.Legislator.Name
	if name == "" {
		name = "person " + report.Legislator.PersonID.String()
	}
	line := fmt.Sprintf("%s [%s] %s", name, strings.Join(report.SessionNames(), ", "), report.Mode)

	switch report.Mode {
	case model.ModeTheme:
		line += fmt.Sprintf(": %d bills, %d cited transactions", len(report.Bills), len(report.CitedTransactions))
	default:
		if report.GroupSummary != nil {
			line += fmt.Sprintf(": %d groups", report.GroupSummary.Total)
		} else {
			line += ":"
		}
		line += fmt.Sprintf(" %d confirmed, %d rejected", len(report.Confirmed), len(report.Rejected))
	}
	if n := len(report.Warnings); n > 0 {
		line += fmt.Sprintf(" (%d warnings)", n)
	}
	return line
}

// Markdown renders the report
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	leg := report.Legislator
	fmt.Fprintf(&b, "# %s", leg.Name)
	if leg.Party != "" {
		fmt.Fprintf(&b, " (%s)", leg.Party)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "- **Sessions:** %s\n", strings.Join(report.SessionNames(), ", "))
	fmt.Fprintf(&b, "- **Mode:** %s\n", report.Mode)
	if report.Model.Provider != "" {
		fmt.Fprintf(&b, "- **Model:** %s/%s\n", report.Model.Provider, report.Model.Model)
	}
	fmt.Fprintf(&b, "- **Generated:** %s\n", report.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- **Report id:** `%s`\n\n", report.ID)

	if report.Summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", report.Summary)
	}
	if report.Narrative != "" {
		fmt.Fprintf(&b, "## Analysis\n\n%s\n\n", report.Narrative)
	}

	for _, th := range report.Themes {
		fmt.Fprintf(&b, "## Theme: %s\n\n", th.Title)
		if th.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", th.Description)
		}
		if len(th.Donors) > 0 {
			b.WriteString("| Donor | Total |\n|---|---:|\n")
			for _, d := range th.Donors {
				fmt.Fprintf(&b, "| %s | $%.2f |\n", escapeCell(d.Name), d.Total.Float())
			}
			b.WriteString("\n")
		}
	}

	if len(report.Confirmed) > 0 {
		b.WriteString("## Confirmed connections\n\n")
		for _, c := range report.Confirmed {
			fmt.Fprintf(&b, "### %s %s\n\n", c.BillNumber, c.Title)
			fmt.Fprintf(&b, "**Severity:** %s · **Confidence:** %.0f%%\n\n", c.Severity, c.Confidence*100)
			if c.Explanation != "" {
				fmt.Fprintf(&b, "%s\n\n", c.Explanation)
			}
			for _, p := range c.CitedProvisions {
				fmt.Fprintf(&b, "> %s\n\n", p)
			}
			writeDonations(&b, c.Donors)
		}
	}

	if len(report.Rejected) > 0 {
		b.WriteString("## Rejected hypotheses\n\n")
		for _, c := range report.Rejected {
			fmt.Fprintf(&b, "- **%s** %s: %s\n", c.BillNumber, c.Title, c.Reason)
		}
		b.WriteString("\n")
	}

	if len(report.Groups) > 0 && len(report.Confirmed)+len(report.Rejected) == 0 {
		b.WriteString("## Hypotheses\n\n")
		if s := report.GroupSummary; s != nil {
			fmt.Fprintf(&b, "%d groups: %d high, %d medium, %d low confidence.\n\n", s.Total, s.High, s.Medium, s.Low)
		}
		for _, g := range report.Groups {
			fmt.Fprintf(&b, "- **%s** %s (%.0f%%): %s\n", g.BillNumber, g.Title, g.Confidence.Float()*100, g.Reason)
		}
		b.WriteString("\n")
	}

	if len(report.Bills) > 0 {
		b.WriteString("## Bills\n\n")
		for _, bill := range report.Bills {
			fmt.Fprintf(&b, "### %s %s\n\n", bill.BillNumber, bill.Title)
			if bill.Vote != "" {
				fmt.Fprintf(&b, "**Vote:** %s\n\n", bill.Vote)
			}
			if bill.Relevance != "" {
				fmt.Fprintf(&b, "%s\n\n", bill.Relevance)
			}
			for _, p := range bill.Provisions {
				fmt.Fprintf(&b, "- %s\n", p)
			}
			if len(bill.Provisions) > 0 {
				b.WriteString("\n")
			}
		}
	}

	if len(report.CitedTransactions) > 0 {
		b.WriteString("## Cited transactions\n\n| Transaction | Donor | Amount | Date | Relevance |\n|---|---|---:|---|---|\n")
		for _, t := range report.CitedTransactions {
			fmt.Fprintf(&b, "| `%s` | %s | $%.2f | %s | %s |\n",
				t.TransactionID, escapeCell(t.DonorName), t.Amount, t.Date, escapeCell(t.Relevance))
		}
		b.WriteString("\n")
	}

	if s := report.Search; s != nil {
		b.WriteString("## Search\n\n")
		fmt.Fprintf(&b, "%d batches over %d phrases, stopped on %s. %d candidates, %d selected",
			s.Batches, len(s.Phrases), s.StopReason, s.Candidates, len(s.Selected))
		if s.UsedFallback {
			b.WriteString(" (fallback ranking)")
		}
		b.WriteString(".\n\n")
	}

	if len(report.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString(footer)
	}
	return b.String()
}

func writeDonations(b *strings.Builder, donors []model.DonationRecord) {
	if len(donors) == 0 {
		return
	}
	b.WriteString("| Donor | Employer | Amount | Date |\n|---|---|---:|---|\n")
	for _, d := range donors {
		fmt.Fprintf(b, "| %s | %s | $%.2f | %s |\n", escapeCell(d.DonorName), escapeCell(d.Employer), d.Amount.Float(), d.Date)
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
