package progress

import (
	"testing"
	"time"

	"github.com/blackwell-systems/habitboard/internal/hub"
)

// trace builds a StatePoint sequence with one-minute spacing.
func trace(values ...float64) []hub.StatePoint {
	t0 := time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC)
	points := make([]hub.StatePoint, len(values))
	for i, v := range values {
		points[i] = hub.StatePoint{When: t0.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return points
}

func TestCountIncrements_ResetContributesZero(t *testing.T) {
	// 0->2 counts 2, 2->1 is a reset (0), 1->4 counts 3.
	got := CountIncrements(trace(0, 2, 1, 4))
	if got != 5 {
		t.Errorf("CountIncrements = %d, want 5", got)
	}
}

func TestCountIncrements_EmptyTrace(t *testing.T) {
	if got := CountIncrements(nil); got != 0 {
		t.Errorf("CountIncrements(nil) = %d, want 0", got)
	}
}

func TestCountIncrements_SingleSampleIsBaseline(t *testing.T) {
	// A counter already at 7 when the window opened has completed nothing
	// this week.
	if got := CountIncrements(trace(7)); got != 0 {
		t.Errorf("CountIncrements = %d, want 0", got)
	}
}

func TestCountIncrements_BaselineMidSeries(t *testing.T) {
	// Window entered with the counter at 3; only the rises after that count.
	if got := CountIncrements(trace(3, 4, 4, 6)); got != 3 {
		t.Errorf("CountIncrements = %d, want 3", got)
	}
}

func TestCountIncrements_MonotonicDecreaseNeverNegative(t *testing.T) {
	if got := CountIncrements(trace(5, 3, 1, 0)); got != 0 {
		t.Errorf("CountIncrements = %d, want 0", got)
	}
}

func TestTargetByNow_BoundsAndMonotonicity(t *testing.T) {
	for target := 1; target <= 7; target++ {
		prev := 0.0
		for day := 0; day <= 6; day++ {
			got := TargetByNow(target, day)
			if got < 0 || got > float64(target) {
				t.Errorf("TargetByNow(%d, %d) = %g, outside [0, %d]", target, day, got, target)
			}
			if got < prev {
				t.Errorf("TargetByNow(%d, %d) = %g, decreased from %g", target, day, got, prev)
			}
			prev = got
		}
		if last := TargetByNow(target, 6); last != float64(target) {
			t.Errorf("TargetByNow(%d, 6) = %g, want full target", target, last)
		}
	}
}

func TestStatusOf_Boundaries(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		targetByNow float64
		want        Status
	}{
		{"diff exactly +0.5 is ahead", 2, 1.5, StatusAhead},
		{"diff exactly -0.5 is behind", 1, 1.5, StatusBehind},
		{"diff zero is on track", 2, 2.0, StatusOnTrack},
		{"just inside upper band", 2, 1.51, StatusOnTrack},
		{"just inside lower band", 1, 1.49, StatusOnTrack},
		{"well ahead", 5, 2.0, StatusAhead},
		{"well behind", 0, 3.0, StatusBehind},
		{"week start, nothing done", 0, 0.0, StatusOnTrack},
	}

	for _, tc := range tests {
		if got := StatusOf(tc.current, tc.targetByNow); got != tc.want {
			t.Errorf("%s: StatusOf(%d, %g) = %s, want %s",
				tc.name, tc.current, tc.targetByNow, got, tc.want)
		}
	}
}

// TestWeeklyScenario walks the documented gym example: a 4-per-week goal
// with two completions by Wednesday is inside the dead band.
func TestWeeklyScenario(t *testing.T) {
	// Sunday 01:00 baseline 0, Monday 09:00 -> 1, Wednesday 18:00 -> 2.
	points := []hub.StatePoint{
		{When: time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC), Value: 0},
		{When: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC), Value: 1},
		{When: time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC), Value: 2},
	}

	count := CountIncrements(points)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	targetByNow := TargetByNow(4, 3) // Wednesday of a Sunday-start week
	if targetByNow < 2.28 || targetByNow > 2.29 {
		t.Fatalf("targetByNow = %g, want ~2.286", targetByNow)
	}

	// diff is -0.29: inside the dead band.
	if got := StatusOf(count, targetByNow); got != StatusOnTrack {
		t.Errorf("status = %s, want on_track", got)
	}
}

func TestCounterFor_DefaultsToIncrementCounting(t *testing.T) {
	count := CounterFor("counter.gym_visits")
	if got := count(trace(0, 1, 2)); got != 2 {
		t.Errorf("counter strategy = %d, want 2", got)
	}
}
