// Package hypothesis runs Phase 1: the model lists every plausible
// donor-bill grouping, batches are parsed leniently and merged per bill.
package hypothesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/repair"
)

// Phase labels Phase 1 model calls
const Phase = "phase1"

// ErrNoEvidence means there were neither bills nor donations to prompt with
var ErrNoEvidence = errors.New("no bills and no donations to analyse")

// ParseError reports a batch whose response could not be recovered
type ParseError struct {
	Phase   string
	Batch   int
	Failure *repair.Failure
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s batch %d: %v", e.Phase, e.Batch+1, e.Failure)
}

func (e *ParseError) Unwrap() error {
	return e.Failure
}

// Result is the merged outcome of Phase 1
type Result struct {
	Groups  []model.Group
	Summary model.BandSummary
	Batches int
	Dropped int // Groups that failed validation
}

// Generator prompts for groupings and merges the batches
type Generator struct {
	provider llm.Provider
	cfg      model.AnalysisConfig
	validate *validator.Validate
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewGenerator creates a Phase 1 generator
func NewGenerator(provider llm.Provider, cfg model.AnalysisConfig, m *metrics.Collector, logger *zap.Logger) *Generator {
	return &Generator{
		provider: provider,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  m,
		logger:   logging.OrNop(logger),
	}
}

// Generate prompts once per batch of BillsPerBatch votes. Any empty or
// unrecoverable response fails the whole call.
func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	if len(in.Votes) == 0 && len(in.Donations) == 0 {
		return nil, ErrNoEvidence
	}
	if in.MinDonation <= 0 {
		in.MinDonation = g.cfg.MinDonation
	}
	if !in.Session.StartDate.IsZero() {
		in.Donations = model.WithSessionOffsets(in.Donations, in.Session.StartDate)
	}

	known := make(map[string]model.DonationRecord, len(in.Donations))
	for _, d := range in.Donations {
		if id := strings.TrimSpace(string(d.DonationID)); id != "" {
			known[id] = d
		}
	}

	chunks := chunkVotes(in.Votes, g.cfg.BillsPerBatch)
	res := &Result{Batches: len(chunks)}
	var batches [][]model.Group
	var summaries []json.RawMessage

	for i, votes := range chunks {
		batchIn := in
		batchIn.Votes = votes

		g.logger.Info("phase 1 batch",
			zap.String("session", in.Session.Name),
			zap.Int("batch", i+1),
			zap.Int("batches", len(chunks)),
			zap.Int("votes", len(votes)))

		resp, err := g.provider.Generate(ctx, llm.Request{
			Phase:  Phase,
			System: systemPrompt,
			Prompt: BuildPrompt(batchIn),
			JSON:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("%s batch %d: %w", Phase, i+1, err)
		}
		if strings.TrimSpace(resp.Text) == "" {
			return nil, llm.Classify(g.provider.Name(), Phase, llm.ErrEmptyResponse)
		}

		parsed := repair.Parse(resp.Text)
		g.metrics.ObserveParse(Phase, string(parsed.Stage))
		if !parsed.OK() {
			return nil, &ParseError{Phase: Phase, Batch: i, Failure: parsed.Failure}
		}

		raws, summary := splitResponse(parsed.Value)
		groups, dropped := g.decodeGroups(raws, known)
		res.Dropped += dropped
		batches = append(batches, groups)
		if summary != nil {
			summaries = append(summaries, summary)
		}
	}

	res.Groups = Merge(batches...)

	// A single self-reported summary describes the merged set; several do not
	var reported json.RawMessage
	if len(chunks) == 1 && len(summaries) == 1 {
		reported = summaries[0]
	}
	res.Summary = Summarize(res.Groups, reported)

	g.logger.Info("phase 1 complete",
		zap.String("session", in.Session.Name),
		zap.Int("groups", len(res.Groups)),
		zap.Int("dropped", res.Dropped),
		zap.Bool("summary_recomputed", res.Summary.Recomputed))
	return res, nil
}

// chunkVotes splits votes into batches. No votes still yields one batch
// so donations alone can be prompted with.
func chunkVotes(votes []model.EvidenceRecord, size int) [][]model.EvidenceRecord {
	if size <= 0 {
		size = len(votes)
	}
	if len(votes) == 0 {
		return [][]model.EvidenceRecord{nil}
	}
	var chunks [][]model.EvidenceRecord
	for start := 0; start < len(votes); start += size {
		end := min(start+size, len(votes))
		chunks = append(chunks, votes[start:end])
	}
	return chunks
}

// splitResponse finds the group list in any of the accepted shapes:
// {"groups": [...]}, {"batches": [{"groups": [...]}]} or a bare array.
func splitResponse(v any) ([]json.RawMessage, json.RawMessage) {
	var groups []json.RawMessage
	var summary json.RawMessage

	var visit func(v any)
	visit = func(v any) {
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				if obj, ok := item.(map[string]any); ok && isContainer(obj) {
					visit(obj)
					continue
				}
				if raw, err := json.Marshal(item); err == nil {
					groups = append(groups, raw)
				}
			}
		case map[string]any:
			if list, ok := t["groups"]; ok {
				visit(list)
			}
			if list, ok := t["batches"]; ok {
				visit(list)
			}
			if s, ok := t["summary"]; ok && summary == nil {
				if raw, err := json.Marshal(s); err == nil {
					summary = raw
				}
			}
		}
	}
	visit(v)
	return groups, summary
}

func isContainer(obj map[string]any) bool {
	_, hasGroups := obj["groups"]
	_, hasBatches := obj["batches"]
	return hasGroups || hasBatches
}

// decodeGroups turns raw entries into validated groups. Donors that cite a
// known donation id are replaced by the fetched record.
func (g *Generator) decodeGroups(raws []json.RawMessage, known map[string]model.DonationRecord) ([]model.Group, int) {
	groups := make([]model.Group, 0, len(raws))
	dropped := 0

	for _, raw := range raws {
		var grp model.Group
		if err := json.Unmarshal(raw, &grp); err != nil {
			dropped++
			g.logger.Warn("dropping undecodable group", zap.Error(err))
			continue
		}
		grp.Confidence = model.Number(model.Clamp01(grp.Confidence.Float()))
		if err := g.validate.Struct(grp); err != nil {
			dropped++
			g.logger.Warn("dropping invalid group", zap.Int64("bill_id", int64(grp.BillID)), zap.Error(err))
			continue
		}

		for i, d := range grp.Donors {
			if rec, ok := known[strings.TrimSpace(string(d.DonationID))]; ok {
				grp.Donors[i] = rec
			}
		}
		groups = append(groups, grp)
	}
	return groups, dropped
}
