// Package report turns analysis results into the final report: the
// two-phase assembly, the theme synthesis call and the renderers.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/agent"
	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/validate"
)

// Phases of the synthesis model calls
const (
	PhaseNarrative = "narrative"
	PhaseTheme     = "theme_report"
)

// Synthesizer builds reports. The provider writes narratives and theme
// reports; everything else is assembled locally.
type Synthesizer struct {
	provider llm.Provider
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// NewSynthesizer creates a Synthesizer
func NewSynthesizer(provider llm.Provider, m *metrics.Collector, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		metrics:  m,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

func (s *Synthesizer) newReport(mode model.Mode, leg model.Legislator, sessions []model.Session) *model.Report {
	r := &model.Report{
		ID:          uuid.NewString(),
		Mode:        mode,
		Legislator:  leg,
		Sessions:    sessions,
		GeneratedAt: s.now().UTC(),
	}
	if s.provider != nil {
		r.Model = model.ModelInfo{Provider: s.provider.Name(), Model: s.provider.Model()}
	}
	return r
}

// TwoPhaseInput is what the two-phase pipeline produced for one session
type TwoPhaseInput struct {
	Legislator model.Legislator
	Session    model.Session
	Groups     []model.Group
	Summary    model.BandSummary
	Outcome    *validate.Outcome
	Warnings   []string
}

// TwoPhase assembles the report from merged groups and Phase 2 outcomes.
// Only the narrative comes from the model; when that call fails the
// report is returned intact with a warning.
func (s *Synthesizer) TwoPhase(ctx context.Context, in TwoPhaseInput) *model.Report {
	r := s.newReport(model.ModeTwoPhase, in.Legislator, []model.Session{in.Session})
	r.Groups = in.Groups
	summary := in.Summary
	r.GroupSummary = &summary
	r.Warnings = append(r.Warnings, in.Warnings...)
	if in.Outcome != nil {
		r.Confirmed = in.Outcome.Confirmed
		r.Rejected = in.Outcome.Rejected
	}
	r.Summary = twoPhaseSummary(r)

	if len(r.Groups) == 0 {
		return r
	}

	resp, err := s.provider.Generate(ctx, llm.Request{
		Phase:  PhaseNarrative,
		System: narrativeSystem,
		Prompt: NarrativePrompt(r),
	})
	switch {
	case err != nil:
		s.logger.Warn("narrative generation failed", zap.String("session", in.Session.Name), zap.Error(err))
		r.AddWarning("narrative unavailable: %v", err)
	case strings.TrimSpace(resp.Text) == "":
		r.AddWarning("narrative unavailable: %v", llm.ErrEmptyResponse)
	default:
		r.Narrative = strings.TrimSpace(resp.Text)
	}
	return r
}

func twoPhaseSummary(r *model.Report) string {
	g := r.GroupSummary
	parts := []string{fmt.Sprintf("%d potential donor-bill connections (%d high, %d medium, %d low confidence)",
		g.Total, g.High, g.Medium, g.Low)}
	if len(r.Confirmed)+len(r.Rejected) > 0 {
		high := 0
		for _, c := range r.Confirmed {
			if c.Severity == model.SeverityHigh {
				high++
			}
		}
		parts = append(parts, fmt.Sprintf("%d confirmed (%d high severity), %d rejected after reading the bill text",
			len(r.Confirmed), high, len(r.Rejected)))
	}
	return strings.Join(parts, "; ") + "."
}

// FromAgent wraps an agent result in a report
func (s *Synthesizer) FromAgent(leg model.Legislator, sessions []model.Session, res *agent.Result) *model.Report {
	r := s.newReport(model.ModeAgent, leg, sessions)
	r.Summary = res.Summary
	r.Narrative = res.Narrative
	r.Confirmed = res.Confirmed
	r.Rejected = res.Rejected
	r.Bills = res.Bills
	r.Warnings = append(r.Warnings, res.Warnings...)
	if r.Summary == "" {
		r.Summary = fmt.Sprintf("%d confirmed connections after %d tool calls.", len(r.Confirmed), res.ToolCalls)
	}
	return r
}
