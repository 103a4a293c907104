package hub

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// historyRow is one state change as returned by history/history_during_period
// over the websocket API. The compact keys (s, lu, lc) are the normal form;
// the long keys appear when minimal responses are disabled on older hubs.
type historyRow struct {
	S  string   `json:"s"`
	LU *float64 `json:"lu"`
	LC *float64 `json:"lc"`

	State       string `json:"state"`
	LastUpdated string `json:"last_updated"`
	LastChanged string `json:"last_changed"`
}

// History fetches state-change history for the given entities within
// [start, end) as one batched request. The result maps entity id to a
// chronologically ordered numeric trace. Entities with no rows, or whose
// rows are all non-numeric ("unknown", "unavailable"), map to an empty
// trace rather than an error.
func (c *Client) History(ctx context.Context, entityIDs []string, start, end time.Time) (map[string][]StatePoint, error) {
	if len(entityIDs) == 0 {
		return map[string][]StatePoint{}, nil
	}

	raw, err := c.Request(ctx, "history/history_during_period", map[string]any{
		"start_time":       start.Format(time.RFC3339),
		"end_time":         end.Format(time.RFC3339),
		"entity_ids":       entityIDs,
		"minimal_response": false,
		"no_attributes":    true,
	})
	if err != nil {
		return nil, err
	}

	var byEntity map[string][]historyRow
	if err := json.Unmarshal(raw, &byEntity); err != nil {
		return nil, &RegistryError{Op: "history decode", Err: err}
	}

	traces := make(map[string][]StatePoint, len(entityIDs))
	for _, id := range entityIDs {
		traces[id] = decodeTrace(byEntity[id])
	}
	return traces, nil
}

// decodeTrace converts raw history rows to an ordered numeric trace,
// dropping rows whose state is not a number.
func decodeTrace(rows []historyRow) []StatePoint {
	trace := make([]StatePoint, 0, len(rows))
	for _, row := range rows {
		when, ok := rowTime(row)
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(rowState(row), 64)
		if err != nil {
			continue
		}
		trace = append(trace, StatePoint{When: when, Value: value})
	}
	sort.Slice(trace, func(i, j int) bool { return trace[i].When.Before(trace[j].When) })
	return trace
}

func rowState(row historyRow) string {
	if row.S != "" {
		return row.S
	}
	return row.State
}

func rowTime(row historyRow) (time.Time, bool) {
	switch {
	case row.LU != nil:
		return unixFloat(*row.LU), true
	case row.LC != nil:
		return unixFloat(*row.LC), true
	case row.LastUpdated != "":
		t, err := time.Parse(time.RFC3339, row.LastUpdated)
		return t, err == nil
	case row.LastChanged != "":
		t, err := time.Parse(time.RFC3339, row.LastChanged)
		return t, err == nil
	}
	return time.Time{}, false
}

func unixFloat(sec float64) time.Time {
	return time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9)).UTC()
}
