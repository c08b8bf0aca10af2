package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/repair"
)

// PhaseExpand labels phrase expansion model calls
const PhaseExpand = "phrase_expansion"

// Expander asks the model for more search phrases
type Expander struct {
	provider llm.Provider
	metrics  *metrics.Collector
}

// NewExpander creates an Expander
func NewExpander(provider llm.Provider, m *metrics.Collector) *Expander {
	return &Expander{provider: provider, metrics: m}
}

const expandPrompt = `We are searching a legislature's bill texts for bills that matter to a group of campaign donors.

Theme: %s
%s
Existing search phrases:
%s

Suggest %d more short, concrete keyword phrases (2 to 4 words) that would appear in the text of bills affecting these donors. Use everyday industry terms, not legal jargon, and do not repeat the existing phrases.

Respond with JSON: {"phrases": ["...", "..."]}`

// Expand returns new phrases for the theme. The result is sanitized but
// may overlap the existing phrases.
func (e *Expander) Expand(ctx context.Context, theme model.Theme, existing []string, want int) ([]string, error) {
	var details strings.Builder
	if theme.Description != "" {
		fmt.Fprintf(&details, "Description: %s\n", theme.Description)
	}
	if len(theme.IndustryTags) > 0 {
		fmt.Fprintf(&details, "Industries: %s\n", strings.Join(theme.IndustryTags, ", "))
	}
	if len(theme.Donors) > 0 {
		names := make([]string, 0, len(theme.Donors))
		for i, d := range theme.Donors {
			if i == 15 {
				break
			}
			names = append(names, d.Name)
		}
		fmt.Fprintf(&details, "Donors: %s\n", strings.Join(names, "; "))
	}

	list := "(none)"
	if len(existing) > 0 {
		list = "- " + strings.Join(existing, "\n- ")
	}

	resp, err := e.provider.Generate(ctx, llm.Request{
		Phase:  PhaseExpand,
		Prompt: fmt.Sprintf(expandPrompt, theme.Title, details.String(), list, want),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	res := repair.Parse(resp.Text)
	e.metrics.ObserveParse(PhaseExpand, string(res.Stage))
	if !res.OK() {
		return nil, res.Failure
	}

	phrases := stringList(res.Value, "phrases", "search_phrases", "keywords")
	if len(phrases) == 0 {
		return nil, fmt.Errorf("%s: response held no phrases", PhaseExpand)
	}
	return Sanitize(phrases), nil
}

// stringList reads a list of strings from a bare array or from the first
// present key of an object
func stringList(v any, keys ...string) []string {
	if obj, ok := v.(map[string]any); ok {
		for _, k := range keys {
			if list, ok := obj[k]; ok {
				return stringList(list)
			}
		}
		return nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			if s, ok := t["phrase"].(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
