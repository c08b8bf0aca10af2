package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/report"
	"github.com/ppiankov/donortrace/internal/search"
	"github.com/ppiankov/donortrace/internal/themes"
)

// ThemeRequest asks for the report on one discovered theme
type ThemeRequest struct {
	PersonID  model.ID
	SessionID model.ID
	Name      string
	Theme     model.Theme
	Phrases   []string // User-edited phrases; empty uses the theme's own
}

func (p *Pipeline) session(ctx context.Context, personID, sessionID model.ID) (model.Session, error) {
	if personID <= 0 {
		return model.Session{}, &ValidationError{Field: "person_id", Reason: "must be a positive id"}
	}
	if sessionID <= 0 {
		return model.Session{}, &ValidationError{Field: "session_id", Reason: "must be a positive id"}
	}
	session, ok, err := p.fetcher.Session(ctx, personID, sessionID)
	if err != nil {
		return model.Session{}, fmt.Errorf("list sessions: %w", err)
	}
	if !ok {
		return model.Session{}, &ValidationError{Field: "session_id", Reason: fmt.Sprintf("session %s not found for person %s", sessionID, personID)}
	}
	return session, nil
}

// DiscoverThemes clusters the donors around one session into themes and
// saves the list when persistence is on
func (p *Pipeline) DiscoverThemes(ctx context.Context, personID, sessionID model.ID, name string) (*model.ThemeList, error) {
	session, err := p.session(ctx, personID, sessionID)
	if err != nil {
		return nil, err
	}
	leg := legislator(personID, name)

	p.logger.Info("discovering themes", zap.String("phase", PhaseThemes), zap.String("session", session.Name))
	list, err := p.discoverer.Discover(ctx, leg, session)
	if errors.Is(err, themes.ErrNoDonors) {
		err = &ValidationError{Field: "session", Reason: "no donors left in the session window after exclusions"}
	}
	if err != nil {
		return nil, &SessionError{Phase: PhaseThemes, Session: session, Err: err}
	}

	if w := p.persist(ctx, ProcSaveThemeList, leg, session, list); w != "" {
		list.Warnings = append(list.Warnings, w)
	}
	return list, nil
}

// AnalyzeTheme searches for the theme's bills, lets the model pick the
// ones worth reading, fetches their evidence and writes the theme report
func (p *Pipeline) AnalyzeTheme(ctx context.Context, req ThemeRequest) (*model.Report, error) {
	if req.Theme.Title == "" {
		return nil, &ValidationError{Field: "theme", Reason: "theme has no title"}
	}
	session, err := p.session(ctx, req.PersonID, req.SessionID)
	if err != nil {
		return nil, err
	}
	leg := legislator(req.PersonID, req.Name)
	theme := req.Theme
	if len(req.Phrases) > 0 {
		theme = theme.WithPhrases(req.Phrases)
	}

	found, err := p.controller.Run(ctx, search.Query{
		PersonID:  leg.PersonID,
		SessionID: session.ID,
		Theme:     theme,
	})
	if err != nil {
		return nil, &SessionError{Phase: PhaseSearch, Session: session, Err: err}
	}

	selection := p.selector.Select(ctx, theme, found.Candidates)
	trace := found.Trace
	trace.UsedFallback = selection.UsedFallback
	for _, b := range selection.Bills {
		trace.Selected = append(trace.Selected, b.BillID)
	}

	evidence, err := search.FetchEvidence(ctx, p.fetcher, selection.Bills, p.cfg.Analysis.BillTextChars, p.cfg.Concurrency.FetchWorkers)
	if err != nil {
		return nil, &SessionError{Phase: PhaseSearch, Session: session, Err: err}
	}

	var txns []model.DonorTransaction
	if ids := theme.DonorIDs(); len(ids) > 0 {
		window := model.DonorWindow{
			PersonID:   leg.PersonID,
			SessionID:  session.ID,
			DaysBefore: p.cfg.Themes.DaysBefore,
			DaysAfter:  p.cfg.Themes.DaysAfter,
			MinAmount:  p.cfg.Themes.MinAmount,
		}
		txns, err = p.fetcher.DonorTransactions(ctx, window, ids)
		if err != nil {
			return nil, &SessionError{Phase: PhaseFetch, Session: session, Err: err}
		}
	}

	p.logger.Info("writing theme report",
		zap.String("phase", PhaseReport),
		zap.String("theme", theme.Title),
		zap.Int("candidates", len(found.Candidates)),
		zap.Int("selected", len(selection.Bills)),
		zap.Int("transactions", len(txns)),
		zap.String("stop_reason", trace.StopReason))

	r, err := p.synth.Theme(ctx, report.ThemeInput{
		Legislator:   leg,
		Session:      session,
		Theme:        theme,
		Transactions: txns,
		Evidence:     evidence,
		Trace:        &trace,
	})
	if err != nil {
		return nil, &SessionError{Phase: PhaseReport, Session: session, Err: err}
	}
	if len(txns) == 0 {
		r.AddWarning("no transactions found for the theme's donors; nothing could be cited")
	}

	if w := p.persist(ctx, ProcSaveThemeReport, leg, session, r); w != "" {
		r.Warnings = append(r.Warnings, w)
	}
	return r, nil
}
