package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/donortrace/internal/extract"
	"github.com/ppiankov/donortrace/internal/llm"
	"github.com/ppiankov/donortrace/internal/model"
)

// Tool names
const (
	ToolResolveLegislator = "resolve_legislator"
	ToolListSessions      = "list_sessions"
	ToolListVotes         = "list_votes"
	ToolListDonations     = "list_donations"
	ToolListSponsorships  = "list_sponsorships"
	ToolBillDetail        = "get_bill_detail"
	ToolBillTexts         = "get_bill_texts"
	ToolPositions         = "get_stakeholder_positions"
)

// maxTextBills caps one get_bill_texts call
const maxTextBills = 10

// Source is the data the tools read
type Source interface {
	SearchPeople(ctx context.Context, query string) ([]model.Legislator, error)
	Sessions(ctx context.Context, personID model.ID) ([]model.Session, error)
	Votes(ctx context.Context, personID model.ID, sessionIDs []model.ID) ([]model.EvidenceRecord, error)
	Sponsorships(ctx context.Context, personID model.ID, sessionIDs []model.ID) ([]model.EvidenceRecord, error)
	Donations(ctx context.Context, personID model.ID, start, end model.Date) ([]model.DonationRecord, error)
	BillDetail(ctx context.Context, billID model.ID) (*model.BillDetail, error)
	BillTexts(ctx context.Context, billIDs []model.ID) ([]model.BillText, error)
	BillPositions(ctx context.Context, billID model.ID) ([]model.StakeholderPosition, error)
}

// argError is a problem with the model's arguments. It goes back to the
// model as a tool error instead of ending the run.
type argError struct {
	msg string
}

func (e *argError) Error() string { return e.msg }

func badArgs(format string, args ...any) error {
	return &argError{msg: fmt.Sprintf(format, args...)}
}

// toolArgs is the union of every tool's parameters. Decoding through the
// model types accepts ids sent as numbers or strings.
type toolArgs struct {
	Query      string     `json:"query"`
	PersonID   model.ID   `json:"person_id"`
	SessionIDs []model.ID `json:"session_ids"`
	BillID     model.ID   `json:"bill_id"`
	BillIDs    []model.ID `json:"bill_ids"`
	StartDate  string     `json:"start_date"`
	EndDate    string     `json:"end_date"`
	MinAmount  float64    `json:"min_amount"`
}

type handler func(ctx context.Context, s Source, a toolArgs) (any, error)

type tool struct {
	decl llm.ToolDeclaration
	run  handler
}

var (
	personParam   = llm.Schema{Type: llm.TypeInteger, Description: "Legislator person_id from resolve_legislator"}
	sessionsParam = llm.Schema{Type: llm.TypeArray, Description: "Session ids from list_sessions", Items: &llm.Schema{Type: llm.TypeInteger}}
	billParam     = llm.Schema{Type: llm.TypeInteger, Description: "Bill id"}
)

// tools returns the tool table keyed by name
func tools(textChars int) map[string]tool {
	return map[string]tool{
		ToolResolveLegislator: {
			decl: llm.ToolDeclaration{
				Name:        ToolResolveLegislator,
				Description: "Find legislators by name. Returns person_id, name, party, role and district.",
				Parameters: llm.Schema{
					Type:       llm.TypeObject,
					Properties: map[string]llm.Schema{"query": {Type: llm.TypeString, Description: "Full or partial name"}},
					Required:   []string{"query"},
				},
			},
			run: func(ctx context.Context, s Source, a toolArgs) (any, error) {
				q := strings.TrimSpace(a.Query)
				if q == "" {
					return nil, badArgs("query is required")
				}
				return s.SearchPeople(ctx, q)
			},
		},
		ToolListSessions: {
			decl: llm.ToolDeclaration{
				Name:        ToolListSessions,
				Description: "List the legislative sessions a legislator served in, with start and end dates.",
				Parameters: llm.Schema{
					Type:       llm.TypeObject,
					Properties: map[string]llm.Schema{"person_id": personParam},
					Required:   []string{"person_id"},
				},
			},
			run: func(ctx context.Context, s Source, a toolArgs) (any, error) {
				if a.PersonID == 0 {
					return nil, badArgs("person_id is required")
				}
				return s.Sessions(ctx, a.PersonID)
			},
		},
		ToolListVotes: {
			decl: llm.ToolDeclaration{
				Name:        ToolListVotes,
				Description: "List the legislator's votes in the given sessions, flagging party-outlier votes.",
				Parameters: llm.Schema{
					Type:       llm.TypeObject,
					Properties: map[string]llm.Schema{"person_id": personParam, "session_ids": sessionsParam},
					Required:   []string{"person_id", "session_ids"},
				},
			},
			run: func(ctx context.Context, s Source, a toolArgs) (any, error) {
				if err := a.needSessions(); err != nil {
					return nil, err
				}
				return s.Votes(ctx, a.PersonID, a.SessionIDs)
			},
		},
		ToolListSponsorships: {
			decl: llm.ToolDeclaration{
				Name:        ToolListSponsorships,
				Description: "List bills the legislator sponsored or co-sponsored in the given sessions.",
				Parameters: llm.Schema{
					Type:       llm.TypeObject,
					Properties: map[string]llm.Schema{"person_id": personParam, "session_ids": sessionsParam},
					Required:   []string{"person_id", "session_ids"},
				},
			},
			run: func(ctx context.Context, s Source, a toolArgs) (any, error) {
				if err := a.needSessions(); err != nil {
					return nil, err
				}
				return s.Sponsorships(ctx, a.PersonID, a.SessionIDs)
			},
		},
		ToolListDonations: {
			decl: llm.ToolDeclaration{
				Name:        ToolListDonations,
				Description: "List donations to the legislator between two dates (YYYY-MM-DD).",
				Parameters: llm.Schema{
					Type: llm.TypeObject,
					Properties: map[string]llm.Schema{
						"person_id":  personParam,
						"start_date": {Type: llm.TypeString, Description: "Window start, YYYY-MM-DD"},
						"end_date":   {Type: llm.TypeString, Description: "Window end, YYYY-MM-DD"},
						"min_amount": {Type: llm.TypeNumber, Description: "Drop donations below this amount"},
					},
					Required: []string{"person_id", "start_date", "end_date"},
				},
			},
			run: func(ctx context.Context, s Source, a toolArgs) (any, error) {
				if a.PersonID == 0 {
					return nil, badArgs("person_id is required")
				}
				start, err := model.ParseDate(a.StartDate)
				if err != nil {
					return nil, badArgs("start_date: %v", err)
				}
				end, err := model.ParseDate(a.EndDate)
				if err != nil {
					return nil, badArgs("end_date: %v", err)
				}
				if end.Time.Before(start.Time) {
					return nil, badArgs("end_date %s is before start_date %s", end, start)
				}
				donations, err := s.Donations(ctx, a.PersonID, start, end)
				if err != nil {
					return nil, err
				}
				return model.SignificantDonations(donations, a.MinAmount), nil
			},
		},
		ToolBillDetail: {
			decl: llm.ToolDeclaration{
				Name:        ToolBillDetail,
				Description: "Get the number, title, summary, status and subjects of one bill.",
				Parameters: llm.Schema{
					Type:       llm.TypeObject,
					Properties: map[string]llm.Schema{"bill_id": billParam},
					Required:   []string{"bill_id"},
				},
			},
			run: func(ctx context.Context, s Source, a toolArgs) (any, error) {
				if a.BillID == 0 {
					return nil, badArgs("bill_id is required")
				}
				detail, err := s.BillDetail(ctx, a.BillID)
				if err != nil {
					return nil, err
				}
				out := *detail
				out.FullText = ""
				return out, nil
			},
		},
		ToolBillTexts: {
			decl: llm.ToolDeclaration{
				Name:        ToolBillTexts,
				Description: fmt.Sprintf("Get the full text of up to %d bills, normalised and truncated.", maxTextBills),
				Parameters: llm.Schema{
					Type:       llm.TypeObject,
					Properties: map[string]llm.Schema{"bill_ids": {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeInteger}}},
					Required:   []string{"bill_ids"},
				},
			},
			run: func(ctx context.Context, s Source, a toolArgs) (any, error) {
				if len(a.BillIDs) == 0 {
					return nil, badArgs("bill_ids is required")
				}
				if len(a.BillIDs) > maxTextBills {
					return nil, badArgs("at most %d bill_ids per call, got %d", maxTextBills, len(a.BillIDs))
				}
				texts, err := s.BillTexts(ctx, a.BillIDs)
				if err != nil {
					return nil, err
				}
				for i := range texts {
					texts[i].Text = extract.Truncate(extract.BillText(texts[i].Text), textChars)
				}
				return texts, nil
			},
		},
		ToolPositions: {
			decl: llm.ToolDeclaration{
				Name:        ToolPositions,
				Description: "List recorded stakeholder positions (support, oppose) on a bill.",
				Parameters: llm.Schema{
					Type:       llm.TypeObject,
					Properties: map[string]llm.Schema{"bill_id": billParam},
					Required:   []string{"bill_id"},
				},
			},
			run: func(ctx context.Context, s Source, a toolArgs) (any, error) {
				if a.BillID == 0 {
					return nil, badArgs("bill_id is required")
				}
				return s.BillPositions(ctx, a.BillID)
			},
		},
	}
}

func (a toolArgs) needSessions() error {
	if a.PersonID == 0 {
		return badArgs("person_id is required")
	}
	if len(a.SessionIDs) == 0 {
		return badArgs("session_ids is required")
	}
	return nil
}

// Declarations returns the tool declarations in name order
func Declarations() []llm.ToolDeclaration {
	table := tools(0)
	decls := make([]llm.ToolDeclaration, 0, len(table))
	for _, t := range table {
		decls = append(decls, t.decl)
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls
}

// execute runs one tool call. Unknown tools and bad arguments come back as
// error results; anything else is returned as err.
func execute(ctx context.Context, table map[string]tool, s Source, call llm.ToolCall) (llm.ToolResult, error) {
	t, ok := table[call.Name]
	if !ok {
		return llm.ErrorResult(call, fmt.Sprintf("unknown tool %q", call.Name)), nil
	}

	var args toolArgs
	raw, err := json.Marshal(call.Args)
	if err == nil {
		err = json.Unmarshal(raw, &args)
	}
	if err != nil {
		return llm.ErrorResult(call, fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	out, err := t.run(ctx, s, args)
	var ae *argError
	if errors.As(err, &ae) {
		return llm.ErrorResult(call, ae.msg), nil
	}
	if err != nil {
		return llm.ToolResult{}, fmt.Errorf("tool %s: %w", call.Name, err)
	}
	return llm.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: map[string]any{"result": out},
	}, nil
}
