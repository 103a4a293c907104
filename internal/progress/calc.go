package progress

import (
	"math"
	"strings"

	"github.com/blackwell-systems/habitboard/internal/hub"
)

// Status is the pacing verdict for one goal.
type Status string

const (
	StatusAhead   Status = "ahead"
	StatusOnTrack Status = "on_track"
	StatusBehind  Status = "behind"
)

// deadBand is the symmetric tolerance around the expected count inside
// which a goal is considered on track.
const deadBand = 0.5

// CountFunc reconstructs a completion count from an ordered state trace.
type CountFunc func(trace []hub.StatePoint) int

// CounterFor returns the counting strategy for an entity's domain. Only
// cumulative counters are supported today; unknown domains get counter
// semantics rather than a guess at toggle counting.
func CounterFor(entityID string) CountFunc {
	domain, _, _ := strings.Cut(entityID, ".")
	switch domain {
	default:
		return CountIncrements
	}
}

// CountIncrements sums the strictly positive deltas between consecutive
// samples. The first sample only establishes the baseline: a counter that
// was already at 3 when the week began contributes nothing until it rises.
// A sample at or below its predecessor (a reset, or a duplicate write)
// contributes zero, never a negative amount.
func CountIncrements(trace []hub.StatePoint) int {
	if len(trace) < 2 {
		return 0
	}
	total := 0.0
	prev := trace[0].Value
	for _, p := range trace[1:] {
		if p.Value > prev {
			total += p.Value - prev
		}
		prev = p.Value
	}
	return int(math.Round(total))
}

// TargetByNow is the linear pacing expectation: by the end of day d
// (0-based) of the week, weeklyTarget*(d+1)/7 completions are expected.
// It is non-decreasing in dayOfWeek and never exceeds the weekly target.
func TargetByNow(weeklyTarget, dayOfWeek int) float64 {
	return float64(weeklyTarget) * float64(dayOfWeek+1) / 7
}

// StatusOf compares the reconstructed count against the pacing
// expectation with a ±0.5 dead band.
func StatusOf(current int, targetByNow float64) Status {
	diff := float64(current) - targetByNow
	switch {
	case diff >= deadBand:
		return StatusAhead
	case diff <= -deadBand:
		return StatusBehind
	default:
		return StatusOnTrack
	}
}
