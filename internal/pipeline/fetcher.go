package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/backend"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
)

// Backend procedure names
const (
	ProcPersonSessions    = "get_person_sessions"
	ProcSessionBills      = "get_session_bills"
	ProcDonations         = "get_legislator_donations"
	ProcBillDetails       = "get_bill_details"
	ProcBillTexts         = "get_bill_texts_array"
	ProcVoteRollup        = "get_bill_vote_rollup"
	ProcDonorTotals       = "search_donor_totals_window"
	ProcDonorTransactions = "list_donor_transactions_window"
	ProcSearchBills       = "search_bills_for_legislator_optimized"
	ProcSearchPeople      = "search_people"
	ProcBillPositions     = "get_bill_positions"
	ProcSavePhase1        = "save_phase1_analysis_report"
	ProcSavePhase2        = "save_phase2_analysis_report"
	ProcSaveThemeList     = "save_donor_theme_list"
	ProcSaveThemeReport   = "save_theme_analysis_report"
)

// Fetcher wraps the backend procedures with typed calls. Sessions are
// cached by id for the lifetime of the fetcher, which is one analysis run.
type Fetcher struct {
	caller  backend.Caller
	metrics *metrics.Collector
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[model.ID]model.Session
}

// NewFetcher creates a Fetcher over caller. m and logger may be nil.
func NewFetcher(caller backend.Caller, m *metrics.Collector, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		caller:   caller,
		metrics:  m,
		logger:   logging.OrNop(logger),
		sessions: make(map[model.ID]model.Session),
	}
}

func (f *Fetcher) call(ctx context.Context, procedure string, params map[string]any) ([]byte, error) {
	raw, err := f.caller.Call(ctx, procedure, params)
	f.metrics.ObserveBackendCall(procedure, err)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("backend call", zap.String("procedure", procedure), zap.Int("bytes", len(raw)))
	return raw, nil
}

func rows[T any](ctx context.Context, f *Fetcher, procedure string, params map[string]any) ([]T, error) {
	raw, err := f.call(ctx, procedure, params)
	if err != nil {
		return nil, err
	}
	return backend.DecodeRows[T](procedure, raw)
}

// Sessions lists the legislator's sessions and caches them by id
func (f *Fetcher) Sessions(ctx context.Context, personID model.ID) ([]model.Session, error) {
	sessions, err := rows[model.Session](ctx, f, ProcPersonSessions, map[string]any{
		"p_person_id": personID,
	})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	f.mu.Unlock()
	return sessions, nil
}

// Session returns one session, fetching the legislator's list on a miss
func (f *Fetcher) Session(ctx context.Context, personID, sessionID model.ID) (model.Session, bool, error) {
	f.mu.Lock()
	s, ok := f.sessions[sessionID]
	f.mu.Unlock()
	if ok {
		return s, true, nil
	}

	if _, err := f.Sessions(ctx, personID); err != nil {
		return model.Session{}, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok = f.sessions[sessionID]
	return s, ok, nil
}

// Votes returns the vote and sponsorship records for the sessions
func (f *Fetcher) Votes(ctx context.Context, personID model.ID, sessionIDs []model.ID) ([]model.EvidenceRecord, error) {
	return rows[model.EvidenceRecord](ctx, f, ProcSessionBills, map[string]any{
		"p_person_id":   personID,
		"p_session_ids": sessionIDs,
	})
}

// Sponsorships returns only the sponsored bills of the sessions
func (f *Fetcher) Sponsorships(ctx context.Context, personID model.ID, sessionIDs []model.ID) ([]model.EvidenceRecord, error) {
	records, err := f.Votes(ctx, personID, sessionIDs)
	if err != nil {
		return nil, err
	}
	var out []model.EvidenceRecord
	for _, r := range records {
		if r.IsSponsor {
			out = append(out, r)
		}
	}
	return out, nil
}

// Donations returns donations received between start and end inclusive
func (f *Fetcher) Donations(ctx context.Context, personID model.ID, start, end model.Date) ([]model.DonationRecord, error) {
	return rows[model.DonationRecord](ctx, f, ProcDonations, map[string]any{
		"p_person_id":  personID,
		"p_start_date": start.String(),
		"p_end_date":   end.String(),
	})
}

// BillDetail returns the full record for one bill
func (f *Fetcher) BillDetail(ctx context.Context, billID model.ID) (*model.BillDetail, error) {
	raw, err := f.call(ctx, ProcBillDetails, map[string]any{"p_bill_id": billID})
	if err != nil {
		return nil, err
	}
	detail, ok, err := backend.DecodeOne[model.BillDetail](ProcBillDetails, raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &backend.FetchError{Procedure: ProcBillDetails, Message: fmt.Sprintf("bill %d not found", billID)}
	}
	if detail.BillID == 0 {
		detail.BillID = billID
	}
	return &detail, nil
}

// BillTexts fetches text for several bills in one call
func (f *Fetcher) BillTexts(ctx context.Context, billIDs []model.ID) ([]model.BillText, error) {
	if len(billIDs) == 0 {
		return nil, nil
	}
	return rows[model.BillText](ctx, f, ProcBillTexts, map[string]any{"p_bill_ids": billIDs})
}

// VoteRollup returns the aggregate tally for a bill
func (f *Fetcher) VoteRollup(ctx context.Context, billID model.ID) (*model.VoteRollup, error) {
	raw, err := f.call(ctx, ProcVoteRollup, map[string]any{"p_bill_id": billID})
	if err != nil {
		return nil, err
	}
	rollup, ok, err := backend.DecodeOne[model.VoteRollup](ProcVoteRollup, raw)
	if err != nil || !ok {
		return nil, err
	}
	if rollup.BillID == 0 {
		rollup.BillID = billID
	}
	return &rollup, nil
}

// DonorTotals returns donors ranked by total within the window
func (f *Fetcher) DonorTotals(ctx context.Context, w model.DonorWindow) ([]model.DonorTotal, error) {
	return rows[model.DonorTotal](ctx, f, ProcDonorTotals, map[string]any{
		"p_person_id":   w.PersonID,
		"p_session_id":  w.SessionID,
		"p_days_before": w.DaysBefore,
		"p_days_after":  w.DaysAfter,
		"p_min_amount":  w.MinAmount,
		"p_limit":       w.Limit,
	})
}

// DonorTransactions returns itemised transactions for the given donors
func (f *Fetcher) DonorTransactions(ctx context.Context, w model.DonorWindow, donorIDs []string) ([]model.DonorTransaction, error) {
	if len(donorIDs) == 0 {
		return nil, nil
	}
	return rows[model.DonorTransaction](ctx, f, ProcDonorTransactions, map[string]any{
		"p_person_id":   w.PersonID,
		"p_session_id":  w.SessionID,
		"p_donor_ids":   donorIDs,
		"p_days_before": w.DaysBefore,
		"p_days_after":  w.DaysAfter,
		"p_min_amount":  w.MinAmount,
	})
}

type searchRow struct {
	model.BillCandidate
	TextScore  model.Number `json:"text_score"`
	Similarity model.Number `json:"similarity"`
	Combined   model.Number `json:"combined_score"`
}

// SearchBills runs the semantic bill search for the legislator
func (f *Fetcher) SearchBills(ctx context.Context, q model.BillQuery) ([]model.BillCandidate, error) {
	found, err := rows[searchRow](ctx, f, ProcSearchBills, map[string]any{
		"p_session_id":     q.SessionID,
		"p_person_id":      q.PersonID,
		"p_search_terms":   q.Terms,
		"p_query_vectors":  q.Vectors,
		"p_min_text_score": q.MinScore,
		"p_limit":          q.Limit,
		"p_offset":         q.Offset,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.BillCandidate, 0, len(found))
	for _, r := range found {
		c := r.BillCandidate
		c.Score = math.Max(c.Score, math.Max(r.Combined.Float(), math.Max(r.TextScore.Float(), r.Similarity.Float())))
		out = append(out, c)
	}
	return out, nil
}

// SearchPeople resolves a legislator by name or id
func (f *Fetcher) SearchPeople(ctx context.Context, query string) ([]model.Legislator, error) {
	return rows[model.Legislator](ctx, f, ProcSearchPeople, map[string]any{"p_query": query})
}

// BillPositions returns recorded stakeholder positions on a bill
func (f *Fetcher) BillPositions(ctx context.Context, billID model.ID) ([]model.StakeholderPosition, error) {
	return rows[model.StakeholderPosition](ctx, f, ProcBillPositions, map[string]any{"p_bill_id": billID})
}

// Save calls a persistence procedure. A missing procedure is logged and
// reported as not saved; any other failure is returned.
func (f *Fetcher) Save(ctx context.Context, procedure string, params map[string]any) (bool, error) {
	if _, err := f.call(ctx, procedure, params); err != nil {
		if backend.IsProcedureNotFound(err) {
			f.logger.Warn("persistence unavailable, continuing without saving",
				zap.String("procedure", procedure), zap.Error(err))
			return false, nil
		}
		return false, err
	}
	return true, nil
}
