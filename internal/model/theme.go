package model

// Theme is a model-identified cluster of donors. Only its search phrases
// may be edited after discovery.
type Theme struct {
	ID            string       `json:"id"`
	Title         string       `json:"title" validate:"required"`
	Description   string       `json:"description,omitempty"`
	IndustryTags  []string     `json:"industry_tags,omitempty"`
	Heuristics    []string     `json:"heuristics_used,omitempty"` // industry, network, pac, geography, timing
	Evidence      []string     `json:"evidence,omitempty"`
	Donors        []ThemeDonor `json:"donors,omitempty"`
	SearchPhrases []string     `json:"suggested_search_phrases,omitempty"`
	Confidence    Number       `json:"confidence"`
}

// ThemeDonor is a donor reference within a theme
type ThemeDonor struct {
	DonorID FlexString `json:"donor_id,omitempty"`
	Name    string     `json:"name"`
	Total   Number     `json:"total,omitempty"`
}

// DonorIDs returns the non-empty donor ids of the theme
func (t Theme) DonorIDs() []string {
	ids := make([]string, 0, len(t.Donors))
	for _, d := range t.Donors {
		if d.DonorID != "" {
			ids = append(ids, string(d.DonorID))
		}
	}
	return ids
}

// WithPhrases returns a copy of the theme carrying user-edited phrases
func (t Theme) WithPhrases(phrases []string) Theme {
	out := t
	out.SearchPhrases = append([]string(nil), phrases...)
	return out
}

// ThemeList is the result of a discovery run
type ThemeList struct {
	Legislator Legislator   `json:"legislator"`
	Session    Session      `json:"session"`
	Themes     []Theme      `json:"themes"`
	Donors     []DonorTotal `json:"donors"`
	Warnings   []string     `json:"warnings,omitempty"`
}
