package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/agent"
	"github.com/ppiankov/donortrace/internal/hypothesis"
	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/report"
	"github.com/ppiankov/donortrace/internal/search"
	"github.com/ppiankov/donortrace/internal/themes"
	"github.com/ppiankov/donortrace/internal/validate"
)

// Phase names used in SessionError
const (
	PhaseFetch      = "fetch"
	PhaseHypotheses = hypothesis.Phase
	PhaseValidate   = validate.Phase
	PhaseAgent      = agent.Phase
	PhaseThemes     = themes.Phase
	PhaseSearch     = "search"
	PhaseReport     = "report"
)

// Options selects what AnalyzePerson covers
type Options struct {
	Name       string     // Legislator display name, optional
	SessionIDs []model.ID // Empty means the most recent session
	Combine    bool       // Analyse the selected sessions as one window
	Mode       model.Mode // ModeTwoPhase or ModeAgent
}

// Pipeline orchestrates one legislator's analysis. Sessions run in
// sequence and a failed session does not discard the others.
type Pipeline struct {
	cfg      *model.Config
	opts     Options
	fetcher  *Fetcher
	provider llm.Provider

	generator  *hypothesis.Generator
	validator  *validate.Validator
	agent      *agent.Agent
	discoverer *themes.Discoverer
	controller *search.Controller
	selector   *search.Selector
	synth      *report.Synthesizer

	metrics *metrics.Collector
	logger  *zap.Logger
}

// New creates a pipeline. embedder may be nil, in which case bill search
// is lexical only.
func New(cfg *model.Config, fetcher *Fetcher, provider llm.Provider, embedder llm.Embedder, m *metrics.Collector, logger *zap.Logger) *Pipeline {
	logger = logging.OrNop(logger)
	workers := cfg.Concurrency.FetchWorkers

	return &Pipeline{
		cfg:        cfg,
		opts:       Options{Mode: model.ModeTwoPhase},
		fetcher:    fetcher,
		provider:   provider,
		generator:  hypothesis.NewGenerator(provider, cfg.Analysis, m, logger),
		validator:  validate.NewValidator(provider, fetcher, cfg.Analysis, workers, m, logger),
		agent:      agent.New(provider, fetcher, cfg.Agent.MaxIterations, cfg.Analysis.BillTextChars, m, logger),
		discoverer: themes.NewDiscoverer(provider, fetcher, cfg.Themes, m, logger),
		controller: search.NewController(fetcher, embedder, search.NewExpander(provider, m), cfg.Search, cfg.Concurrency.EmbeddingWorkers, m, logger),
		selector:   search.NewSelector(provider, cfg.Search, m, logger),
		synth:      report.NewSynthesizer(provider, m, logger),
		metrics:    m,
		logger:     logger,
	}
}

// WithOptions returns a copy of the pipeline that AnalyzePerson runs with opts
func (p *Pipeline) WithOptions(opts Options) *Pipeline {
	cp := *p
	cp.opts = opts
	return &cp
}

// AnalyzePerson runs the configured analysis for one legislator. It
// satisfies worker.Analyzer.
func (p *Pipeline) AnalyzePerson(ctx context.Context, personID model.ID) ([]*model.Report, error) {
	return p.Analyze(ctx, personID, p.opts)
}

// Analyze runs the two-phase or agent analysis over the selected sessions.
// Reports for the sessions that succeeded are returned together with the
// joined errors of the ones that failed.
func (p *Pipeline) Analyze(ctx context.Context, personID model.ID, opts Options) ([]*model.Report, error) {
	if personID <= 0 {
		return nil, &ValidationError{Field: "person_id", Reason: "must be a positive id"}
	}
	switch opts.Mode {
	case "", model.ModeTwoPhase, model.ModeAgent:
	default:
		return nil, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unsupported mode %q", opts.Mode)}
	}

	sessions, err := p.selectSessions(ctx, personID, opts.SessionIDs)
	if err != nil {
		return nil, err
	}
	if opts.Combine && len(sessions) > 1 {
		sessions = []model.Session{model.CombineSessions(sessions)}
	}
	leg := legislator(personID, opts.Name)

	var (
		reports []*model.Report
		errs    []error
	)
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		p.logger.Info("analysing session",
			zap.String("legislator", leg.Name),
			zap.String("session", session.Name),
			zap.String("mode", string(opts.Mode)))

		var r *model.Report
		if opts.Mode == model.ModeAgent {
			r, err = p.runAgent(ctx, leg, session)
		} else {
			r, err = p.runTwoPhase(ctx, leg, session)
		}
		if err != nil {
			p.logger.Warn("session failed", zap.String("session", session.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		reports = append(reports, r)
	}
	return reports, errors.Join(errs...)
}

func legislator(personID model.ID, name string) model.Legislator {
	if name = strings.TrimSpace(name); name == "" {
		name = "Legislator " + personID.String()
	}
	return model.Legislator{PersonID: personID, Name: name}
}

// selectSessions resolves the requested ids, or picks the most recent
// session when none are given
func (p *Pipeline) selectSessions(ctx context.Context, personID model.ID, ids []model.ID) ([]model.Session, error) {
	all, err := p.fetcher.Sessions(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(all) == 0 {
		return nil, &ValidationError{Field: "person_id", Reason: fmt.Sprintf("no sessions found for %s", personID)}
	}

	if len(ids) == 0 {
		latest := all[0]
		for _, s := range all[1:] {
			if s.StartDate.After(latest.StartDate.Time) {
				latest = s
			}
		}
		return []model.Session{latest}, nil
	}

	var selected []model.Session
	for _, id := range ids {
		i := slices.IndexFunc(all, func(s model.Session) bool { return s.ID == id })
		if i < 0 {
			return nil, &ValidationError{Field: "session_id", Reason: fmt.Sprintf("session %s not found for person %s", id, personID)}
		}
		if !slices.ContainsFunc(selected, func(s model.Session) bool { return s.ID == id }) {
			selected = append(selected, all[i])
		}
	}
	return selected, nil
}

func (p *Pipeline) runTwoPhase(ctx context.Context, leg model.Legislator, session model.Session) (*model.Report, error) {
	if !session.HasDates() {
		return nil, &SessionError{Phase: PhaseFetch, Session: session, Err: &ValidationError{Field: "session", Reason: "session has no start or end date"}}
	}

	votes, err := p.fetcher.Votes(ctx, leg.PersonID, session.SessionIDs())
	if err != nil {
		return nil, &SessionError{Phase: PhaseFetch, Session: session, Err: err}
	}
	start, end := session.DonationWindow(p.cfg.Analysis.DonationBufferDays)
	donations, err := p.fetcher.Donations(ctx, leg.PersonID, start, end)
	if err != nil {
		return nil, &SessionError{Phase: PhaseFetch, Session: session, Err: err}
	}
	p.logger.Info("evidence fetched",
		zap.String("phase", PhaseFetch),
		zap.String("session", session.Name),
		zap.Int("votes", len(votes)),
		zap.Int("donations", len(donations)),
		zap.Stringer("window_start", start),
		zap.Stringer("window_end", end))

	hyp, err := p.generator.Generate(ctx, hypothesis.Input{
		Legislator:  leg,
		Session:     session,
		Votes:       votes,
		Donations:   donations,
		MinDonation: p.cfg.Analysis.MinDonation,
	})
	if errors.Is(err, hypothesis.ErrNoEvidence) {
		err = &ValidationError{Field: "session", Reason: "no votes and no significant donations in the window"}
	}
	if err != nil {
		return nil, &SessionError{Phase: PhaseHypotheses, Session: session, Err: err}
	}

	var warnings []string
	if hyp.Dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d hypothesis groups failed validation and were dropped", hyp.Dropped))
	}
	if w := p.persist(ctx, ProcSavePhase1, leg, session, map[string]any{"groups": hyp.Groups, "summary": hyp.Summary}); w != "" {
		warnings = append(warnings, w)
	}

	outcome, err := p.validator.Validate(ctx, hyp.Groups, votes)
	if err != nil {
		return nil, &SessionError{Phase: PhaseValidate, Session: session, Err: err}
	}

	r := p.synth.TwoPhase(ctx, report.TwoPhaseInput{
		Legislator: leg,
		Session:    session,
		Groups:     hyp.Groups,
		Summary:    hyp.Summary,
		Outcome:    outcome,
		Warnings:   warnings,
	})
	if w := p.persist(ctx, ProcSavePhase2, leg, session, r); w != "" {
		r.Warnings = append(r.Warnings, w)
	}
	return r, nil
}

func (p *Pipeline) runAgent(ctx context.Context, leg model.Legislator, session model.Session) (*model.Report, error) {
	res, err := p.agent.Run(ctx, agent.Request{
		Legislator:  leg,
		Sessions:    []model.Session{session},
		MinDonation: p.cfg.Analysis.MinDonation,
		BufferDays:  p.cfg.Analysis.DonationBufferDays,
	})
	if err != nil {
		return nil, &SessionError{Phase: PhaseAgent, Session: session, Err: err}
	}
	return p.synth.FromAgent(leg, []model.Session{session}, res), nil
}

// persist calls a save procedure when persistence is enabled. Failures
// never abort the analysis; they come back as a warning.
func (p *Pipeline) persist(ctx context.Context, procedure string, leg model.Legislator, session model.Session, payload any) string {
	if !p.cfg.Analysis.Persist {
		return ""
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%s: encode payload: %v", procedure, err)
	}
	saved, err := p.fetcher.Save(ctx, procedure, map[string]any{
		"p_person_id":  leg.PersonID,
		"p_session_id": session.ID,
		"p_payload":    json.RawMessage(raw),
	})
	if err != nil {
		p.logger.Warn("persistence failed", zap.String("procedure", procedure), zap.Error(err))
		return fmt.Sprintf("%s failed: %v", procedure, err)
	}
	if saved {
		p.logger.Debug("persisted", zap.String("procedure", procedure), zap.String("session", session.Name))
	}
	return ""
}
