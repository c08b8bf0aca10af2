package hypothesis

import (
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

// ReasonSeparator joins distinct reasons of merged groups
const ReasonSeparator = "; "

// Merge folds groups with the same bill id into one. Donors are unioned
// by donation key, distinct reasons are joined and the highest confidence
// wins. Bills keep the order they were first seen in.
func Merge(batches ...[]model.Group) []model.Group {
	var order []model.ID
	merged := make(map[model.ID]*mergeState)

	for _, batch := range batches {
		for _, g := range batch {
			st, ok := merged[g.BillID]
			if !ok {
				st = &mergeState{
					group:  model.Group{BillID: g.BillID, Confidence: model.Number(model.Clamp01(g.Confidence.Float()))},
					donors: make(map[string]bool),
					reason: make(map[string]bool),
				}
				merged[g.BillID] = st
				order = append(order, g.BillID)
			}
			st.add(g)
		}
	}

	out := make([]model.Group, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id].group)
	}
	return out
}

type mergeState struct {
	group   model.Group
	donors  map[string]bool
	reason  map[string]bool
	reasons []string
}

func (st *mergeState) add(g model.Group) {
	if st.group.BillNumber == "" {
		st.group.BillNumber = strings.TrimSpace(g.BillNumber)
	}
	if st.group.Title == "" {
		st.group.Title = strings.TrimSpace(g.Title)
	}

	for _, d := range g.Donors {
		key := d.Key()
		if st.donors[key] {
			continue
		}
		st.donors[key] = true
		st.group.Donors = append(st.group.Donors, d)
	}

	if r := strings.TrimSpace(g.Reason); r != "" && !st.reason[strings.ToLower(r)] {
		st.reason[strings.ToLower(r)] = true
		st.reasons = append(st.reasons, r)
		st.group.Reason = strings.Join(st.reasons, ReasonSeparator)
	}

	if c := model.Clamp01(g.Confidence.Float()); c > st.group.Confidence.Float() {
		st.group.Confidence = model.Number(c)
	}
}
