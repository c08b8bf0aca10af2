package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

// Provision is a bill sentence worth showing the model
type Provision struct {
	Section string   `json:"section,omitempty"`
	Text    string   `json:"text"`
	Matched []string `json:"matched"`

	score    int
	position int
}

// ProvisionFinder picks sentences that mention donor-industry keywords
// or carry operative legal language.
type ProvisionFinder struct {
	keywords []string
	markers  []string
}

var sectionHeader = regexp.MustCompile(`(?i)^(?:section|sec\.)\s+([0-9]+[a-z]?(?:\.[0-9]+)*)`)

// NewProvisionFinder creates a finder for the given keywords
func NewProvisionFinder(keywords ...string) *ProvisionFinder {
	return &ProvisionFinder{
		keywords: normalizeKeywords(keywords),
		markers: []string{
			"shall", "appropriat", "exempt", "tax credit", "deduction", "grant",
			"contract", "license", "permit", "fee", "subsid", "rebate", "incentive",
			"reimburse", "procure", "tariff", "rate", "penalt", "prohibit",
		},
	}
}

// Find returns at most max provisions, best first. Donor keyword hits
// outrank generic legal markers.
func (f *ProvisionFinder) Find(text string, max int) []Provision {
	section := ""
	var found []Provision

	for i, sentence := range splitSentences(text) {
		if m := sectionHeader.FindStringSubmatch(sentence); m != nil {
			section = m[1]
		}

		lower := strings.ToLower(sentence)
		var matched []string
		score := 0
		for _, kw := range f.keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
				score += 3
			}
		}
		for _, marker := range f.markers {
			if strings.Contains(lower, marker) {
				score++
			}
		}
		if len(matched) == 0 && score < 2 {
			continue
		}

		found = append(found, Provision{
			Section:  section,
			Text:     sentence,
			Matched:  matched,
			score:    score,
			position: i,
		})
	}

	found = dedupeProvisions(found)
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].score != found[j].score {
			return found[i].score > found[j].score
		}
		return found[i].position < found[j].position
	})

	if max > 0 && len(found) > max {
		found = found[:max]
	}
	return found
}

var keywordStopwords = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "corp": true, "corporation": true, "company": true,
	"the": true, "and": true, "of": true, "for": true, "group": true, "association": true,
	"self": true, "employed": true, "self-employed": true, "retired": true, "none": true,
	"not": true, "n/a": true, "unemployed": true, "homemaker": true, "information": true,
	"requested": true, "services": true, "national": true, "american": true, "state": true,
}

// DonorKeywords derives search keywords from donor employers and
// occupations, most frequent first.
func DonorKeywords(donors []model.DonationRecord, max int) []string {
	counts := make(map[string]int)
	var order []string

	add := func(field string) {
		for _, word := range strings.FieldsFunc(strings.ToLower(field), func(r rune) bool {
			return !(r >= 'a' && r <= 'z') && r != '-' && r != '/'
		}) {
			word = strings.Trim(word, "-/")
			if len(word) < 4 || keywordStopwords[word] {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	for _, d := range donors {
		add(d.Employer)
		add(d.Occupation)
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if max > 0 && len(order) > max {
		order = order[:max]
	}
	return order
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func dedupeProvisions(provisions []Provision) []Provision {
	seen := make(map[string]bool)
	var unique []Provision

	for _, p := range provisions {
		key := strings.ToLower(strings.TrimSpace(p.Text))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, p)
		}
	}
	return unique
}
