package hypothesis

import (
	"encoding/json"

	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/score"
)

// Summarize returns the band counts for groups. The model's reported
// counts are used only when every count is present and a whole number;
// otherwise counts are recomputed with the shared boundaries.
func Summarize(groups []model.Group, reported json.RawMessage) model.BandSummary {
	if s, ok := reportedCounts(reported); ok {
		return s
	}
	return score.Bands(groups)
}

func reportedCounts(raw json.RawMessage) (model.BandSummary, bool) {
	if len(raw) == 0 {
		return model.BandSummary{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.BandSummary{}, false
	}

	var counts [4]int
	for i, key := range []string{"total_groups", "high_confidence", "medium_confidence", "low_confidence"} {
		v, ok := fields[key]
		if !ok {
			return model.BandSummary{}, false
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return model.BandSummary{}, false
		}
		i64, err := n.Int64()
		if err != nil || i64 < 0 {
			return model.BandSummary{}, false
		}
		counts[i] = int(i64)
	}

	return model.BandSummary{Total: counts[0], High: counts[1], Medium: counts[2], Low: counts[3]}, true
}
