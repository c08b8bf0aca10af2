// Package agent runs the single-pass analysis: the model drives its own
// evidence gathering through tool calls and ends with a JSON report.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/logging"
	"github.com/ppiankov/donortrace/internal/metrics"
	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/repair"
	"github.com/ppiankov/donortrace/internal/validate"
)

// Phase labels the conversation for logs, metrics and errors
const Phase = "agent"

// ErrMaxIterations means the model kept calling tools past the cap
var ErrMaxIterations = errors.New("agent exceeded the iteration limit")

// Request scopes one agent run
type Request struct {
	Legislator  model.Legislator
	Sessions    []model.Session
	MinDonation float64
	BufferDays  int
}

// Result is what the model concluded plus how it got there
type Result struct {
	Summary   string
	Narrative string
	Confirmed []model.ConfirmedConnection
	Rejected  []model.RejectedConnection
	Bills     []model.ReportBill
	Warnings  []string

	Iterations int
	ToolCalls  int
	Stage      repair.Stage
}

// Agent runs the tool-calling loop
type Agent struct {
	provider      llm.Provider
	source        Source
	tools         map[string]tool
	severity      *validate.SeverityClassifier
	maxIterations int
	metrics       *metrics.Collector
	logger        *zap.Logger
}

// New creates an Agent. maxIterations <= 0 uses 25 and textChars bounds
// each bill text handed to the model.
func New(provider llm.Provider, source Source, maxIterations, textChars int, m *metrics.Collector, logger *zap.Logger) *Agent {
	if maxIterations <= 0 {
		maxIterations = 25
	}
	return &Agent{
		provider:      provider,
		source:        source,
		tools:         tools(textChars),
		severity:      validate.NewSeverityClassifier(nil),
		maxIterations: maxIterations,
		metrics:       m,
		logger:        logging.OrNop(logger),
	}
}

// Run converses with the model until it answers without tool calls, then
// parses that answer. Fetch and model errors end the run.
func (a *Agent) Run(ctx context.Context, req Request) (*Result, error) {
	conv := llm.Conversation{
		Phase:    Phase,
		System:   systemPrompt,
		Messages: []llm.Message{llm.UserText(BuildPrompt(req))},
		Tools:    Declarations(),
	}

	res := &Result{}
	for res.Iterations < a.maxIterations {
		res.Iterations++

		turn, err := a.provider.Converse(ctx, conv)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", Phase, err)
		}
		if turn == nil {
			return nil, llm.Classify(a.provider.Name(), Phase, llm.ErrEmptyResponse)
		}

		if !turn.HasToolCalls() {
			if strings.TrimSpace(turn.Text) == "" {
				return nil, llm.Classify(a.provider.Name(), Phase, llm.ErrEmptyResponse)
			}
			a.finish(res, turn.Text)
			a.logger.Info("agent finished",
				zap.String("legislator", req.Legislator.Name),
				zap.Int("iterations", res.Iterations),
				zap.Int("tool_calls", res.ToolCalls),
				zap.String("stage", string(res.Stage)))
			return res, nil
		}

		results := make([]llm.ToolResult, 0, len(turn.ToolCalls))
		for _, call := range turn.ToolCalls {
			a.logger.Debug("tool call", zap.String("tool", call.Name), zap.Any("args", call.Args))
			out, err := execute(ctx, a.tools, a.source, call)
			if err != nil {
				return nil, err
			}
			if out.IsError {
				a.logger.Warn("tool call rejected", zap.String("tool", call.Name), zap.Any("error", out.Content["error"]))
			}
			results = append(results, out)
			res.ToolCalls++
		}

		conv.Messages = append(conv.Messages,
			llm.Message{Role: llm.RoleModel, Text: turn.Text, ToolCalls: turn.ToolCalls},
			llm.Message{Role: llm.RoleUser, ToolResults: results})
	}

	a.logger.Warn("agent hit the iteration limit", zap.Int("iterations", res.Iterations), zap.Int("tool_calls", res.ToolCalls))
	return nil, fmt.Errorf("%w (%d)", ErrMaxIterations, a.maxIterations)
}

// finalReport is the JSON shape the model is asked to end with
type finalReport struct {
	Summary   string                     `json:"overall_summary"`
	Narrative string                     `json:"narrative"`
	Confirmed []finalConnection          `json:"confirmed_connections"`
	Rejected  []model.RejectedConnection `json:"rejected_connections"`
	Bills     []model.ReportBill         `json:"bills"`
}

// finalConnection reads the confidence leniently so one odd value does not
// discard the whole answer
type finalConnection struct {
	model.ConfirmedConnection
	Confidence model.Score `json:"confidence"`
}

// finish parses the final answer. Prose that carries no JSON is kept as
// the narrative with a warning.
func (a *Agent) finish(res *Result, text string) {
	var report finalReport
	parsed, err := repair.Decode(text, &report)
	res.Stage = parsed.Stage
	a.metrics.ObserveParse(Phase, string(parsed.Stage))
	if err != nil {
		a.logger.Warn("agent answer was not structured", zap.Error(err))
		res.Narrative = strings.TrimSpace(text)
		res.Warnings = append(res.Warnings, fmt.Sprintf("agent answer could not be parsed: %v", err))
		return
	}

	res.Summary = strings.TrimSpace(report.Summary)
	res.Narrative = strings.TrimSpace(report.Narrative)
	res.Rejected = report.Rejected
	res.Bills = report.Bills
	for _, fc := range report.Confirmed {
		c := fc.ConfirmedConnection
		if c.BillID == 0 {
			res.Warnings = append(res.Warnings, "dropped a confirmed connection without a bill_id")
			continue
		}
		c.Confidence = model.Clamp01(fc.Confidence.Or(0))
		if sev, ok := a.severity.Normalize(string(c.Severity)); ok {
			c.Severity = sev
		} else {
			c.Severity = model.SeverityLow
		}
		res.Confirmed = append(res.Confirmed, c)
	}
}
