// Package search finds the bills behind a donor theme. Phrases are
// searched in batches against a relevance threshold that steps down a
// fixed ladder, and the search stops on stagnation or at the bill cap.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/score"
)

// Stop reasons
const (
	StopStagnation = "stagnation"
	StopBillCap    = "bill_cap"
	StopExhausted  = "exhausted"
	StopNoPhrases  = "no_phrases"
)

// BillSearcher runs one semantic bill search
type BillSearcher interface {
	SearchBills(ctx context.Context, q model.BillQuery) ([]model.BillCandidate, error)
}

// Query is one controller run for a theme
type Query struct {
	PersonID  model.ID
	SessionID model.ID
	Theme     model.Theme
	Phrases   []string // Overrides the theme's phrases when set
}

// Result is the accumulated search outcome
type Result struct {
	Candidates []model.BillCandidate // Best score first
	Trace      model.SearchTrace
}

// State is the mutable search state of one run
type State struct {
	ladder     []float64
	step       int
	bills      map[model.ID]model.BillCandidate
	stagnation int
	issued     [][]string
}

func newState(ladder []float64) *State {
	return &State{ladder: ladder, bills: make(map[model.ID]model.BillCandidate)}
}

// Threshold is the current relevance threshold
func (s *State) Threshold() float64 {
	return s.ladder[s.step]
}

// fold adds unseen bills until the cap and returns how many were new.
// Bills already held keep their best score and gain matched phrases.
func (s *State) fold(found []model.BillCandidate, batch []string, limit int) int {
	added := 0
	for _, c := range found {
		if len(c.MatchedPhrases) == 0 {
			c.MatchedPhrases = append([]string(nil), batch...)
		}
		if prev, ok := s.bills[c.BillID]; ok {
			if c.Score > prev.Score {
				prev.Score = c.Score
			}
			prev.MatchedPhrases = appendUnique(prev.MatchedPhrases, c.MatchedPhrases...)
			s.bills[c.BillID] = prev
			continue
		}
		if len(s.bills) >= limit {
			continue
		}
		s.bills[c.BillID] = c
		added++
	}
	return added
}

// advance records a batch yield and moves the ladder and stagnation counter
func (s *State) advance(added, minNew int) {
	if added == 0 {
		s.stagnation++
	} else {
		s.stagnation = 0
	}
	if added < minNew && s.step < len(s.ladder)-1 {
		s.step++
	}
}

// Controller runs the iterative search
type Controller struct {
	searcher BillSearcher
	embedder llm.Embedder // nil means lexical search only
	expander *Expander    // nil disables expansion
	cfg      model.SearchConfig
	workers  int
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewController creates a Controller. embedder and expander may be nil.
func NewController(searcher BillSearcher, embedder llm.Embedder, expander *Expander, cfg model.SearchConfig, workers int, m *metrics.Collector, logger *zap.Logger) *Controller {
	if workers <= 0 {
		workers = 5
	}
	return &Controller{
		searcher: searcher,
		embedder: embedder,
		expander: expander,
		cfg:      cfg,
		workers:  workers,
		metrics:  m,
		logger:   logging.OrNop(logger),
	}
}

// Run expands the phrases when there are too few, then searches batch by
// batch. A backend failure aborts the run; embedding and expansion
// failures degrade.
func (c *Controller) Run(ctx context.Context, q Query) (*Result, error) {
	if len(c.cfg.Thresholds) == 0 {
		return nil, fmt.Errorf("search: no relevance thresholds configured")
	}

	source := q.Phrases
	if len(source) == 0 {
		source = q.Theme.SearchPhrases
	}
	phrases := Sanitize(source)
	trace := model.SearchTrace{}

	if len(phrases) < c.cfg.MinPhrases && c.expander != nil {
		extra, err := c.expander.Expand(ctx, q.Theme, phrases, c.cfg.MinPhrases-len(phrases)+5)
		if err != nil {
			c.logger.Warn("phrase expansion failed, searching with the original phrases",
				zap.String("theme", q.Theme.Title), zap.Int("phrases", len(phrases)), zap.Error(err))
		} else {
			phrases = Sanitize(append(phrases, extra...))
			trace.Expanded = true
		}
	}
	trace.Phrases = phrases

	if len(phrases) == 0 {
		trace.StopReason = StopNoPhrases
		return &Result{Trace: trace}, nil
	}

	state := newState(c.cfg.Thresholds)
	trace.StopReason = StopExhausted

	for i, batch := range Batches(phrases, c.cfg.BatchSize) {
		vectors, err := c.embed(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("embedding failed, lexical search for this batch",
				zap.Int("batch", i+1), zap.Error(err))
			vectors = nil
		}
		if vectors == nil {
			trace.LexicalOnly++
		}

		threshold := state.Threshold()
		found, err := c.searcher.SearchBills(ctx, model.BillQuery{
			SessionID: q.SessionID,
			PersonID:  q.PersonID,
			Terms:     batch,
			Vectors:   vectors,
			MinScore:  threshold,
			Limit:     c.cfg.PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("search batch %d: %w", i+1, err)
		}

		added := state.fold(found, batch, c.cfg.BillCap)
		state.issued = append(state.issued, batch)
		state.advance(added, c.cfg.MinNewResults)

		trace.Batches++
		trace.Thresholds = append(trace.Thresholds, threshold)
		c.metrics.ObserveSearchBatch(threshold, added)
		c.logger.Info("search batch",
			zap.Int("batch", i+1),
			zap.Float64("threshold", threshold),
			zap.Int("returned", len(found)),
			zap.Int("new", added),
			zap.Int("total", len(state.bills)),
			zap.Int("stagnation", state.stagnation))

		if state.stagnation >= c.cfg.StagnationLimit {
			trace.StopReason = StopStagnation
			break
		}
		if len(state.bills) >= c.cfg.BillCap {
			trace.StopReason = StopBillCap
			break
		}
	}

	candidates := make([]model.BillCandidate, 0, len(state.bills))
	for _, b := range state.bills {
		candidates = append(candidates, b)
	}
	candidates = score.RankCandidates(candidates, 0)
	trace.Candidates = len(candidates)

	return &Result{Candidates: candidates, Trace: trace}, nil
}

// embed fetches one vector per phrase concurrently. No embedder means a
// lexical batch and returns nil without error.
func (c *Controller) embed(ctx context.Context, batch []string) ([][]float32, error) {
	if c.embedder == nil {
		return nil, nil
	}

	vectors := make([][]float32, len(batch))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers)
	for i, phrase := range batch {
		eg.Go(func() error {
			v, err := c.embedder.Embed(egCtx, []string{phrase})
			if err != nil {
				return fmt.Errorf("embed %q: %w", phrase, err)
			}
			if len(v) != 1 {
				return fmt.Errorf("embed %q: got %d vectors", phrase, len(v))
			}
			vectors[i] = v[0]
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
