package validate

import (
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/score"
)

// SeverityClassifier maps model-provided severity labels onto the three
// tiers and derives a tier when the label is missing or unknown
type SeverityClassifier struct {
	aliases map[string]model.Severity
}

var defaultSeverityAliases = map[string]model.Severity{
	"high":     model.SeverityHigh,
	"severe":   model.SeverityHigh,
	"critical": model.SeverityHigh,
	"strong":   model.SeverityHigh,
	"3":        model.SeverityHigh,
	"medium":   model.SeverityMedium,
	"moderate": model.SeverityMedium,
	"mid":      model.SeverityMedium,
	"2":        model.SeverityMedium,
	"low":      model.SeverityLow,
	"minor":    model.SeverityLow,
	"weak":     model.SeverityLow,
	"indirect": model.SeverityLow,
	"1":        model.SeverityLow,
}

// NewSeverityClassifier creates a classifier. extra adds or overrides
// label aliases; values must be high, medium or low.
func NewSeverityClassifier(extra map[string]string) *SeverityClassifier {
	c := &SeverityClassifier{aliases: make(map[string]model.Severity, len(defaultSeverityAliases)+len(extra))}
	for k, v := range defaultSeverityAliases {
		c.aliases[k] = v
	}
	for k, v := range extra {
		if sev, ok := defaultSeverityAliases[strings.ToLower(v)]; ok {
			c.aliases[normalizeLabel(k)] = sev
		}
	}
	return c
}

// Normalize returns the tier for a label, or false when it is unknown
func (c *SeverityClassifier) Normalize(label string) (model.Severity, bool) {
	label = normalizeLabel(label)
	if label == "" {
		return "", false
	}
	if sev, ok := c.aliases[label]; ok {
		return sev, true
	}
	// "high severity", "medium-high" and similar: first known word wins
	for _, word := range strings.FieldsFunc(label, func(r rune) bool { return r == ' ' || r == '-' || r == '_' || r == '/' }) {
		if sev, ok := c.aliases[word]; ok {
			return sev, true
		}
	}
	return "", false
}

// Classify returns the model's label when it is usable, otherwise a tier
// derived from the group (see Derive).
func (c *SeverityClassifier) Classify(label string, g model.Group, record *model.EvidenceRecord) model.Severity {
	if sev, ok := c.Normalize(label); ok {
		return sev
	}
	return Derive(g, record)
}

// Derive grades a group from its own facts. An outlier vote is high. A
// confident group is high when it also looks like a direct exchange (a
// donation within ProximityDays of the vote, or the legislator sponsored
// the bill) and medium otherwise. Everything else is low.
func Derive(g model.Group, record *model.EvidenceRecord) model.Severity {
	a := score.Assess(g, record)
	confident := g.Confidence.Float() >= model.HighConfidence
	switch {
	case a.Outlier:
		return model.SeverityHigh
	case confident && (a.WellTimed() || a.Sponsor):
		return model.SeverityHigh
	case confident:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
