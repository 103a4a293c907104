// Package tracker orchestrates goal discovery, history reconstruction, and
// pacing calculation into a cached snapshot with bounded staleness.
// Refreshes are deduplicated: no matter how many readers trigger one, at
// most a single remote round-trip cycle runs at a time.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/blackwell-systems/habitboard/internal/goal"
	"github.com/blackwell-systems/habitboard/internal/hub"
	"github.com/blackwell-systems/habitboard/internal/progress"
)

// GoalProgress is one goal's computed state for the current week. It
// carries everything a renderer needs; no further computation happens
// downstream.
type GoalProgress struct {
	EntityID     string          `json:"entity_id"`
	FriendlyName string          `json:"friendly_name"`
	Emoji        string          `json:"emoji,omitempty"`
	WeeklyTarget int             `json:"weekly_target"`
	CurrentCount int             `json:"current_count"`
	TargetByNow  float64         `json:"target_by_now"`
	Status       progress.Status `json:"status"`
	DaysLeft     int             `json:"days_left"`
}

// Snapshot is the cache's unit of delivery: the full computed goal list at
// one instant. Snapshots are immutable once published.
type Snapshot struct {
	Goals      []GoalProgress  `json:"goals"`
	Window     progress.Window `json:"window"`
	ComputedAt time.Time       `json:"computed_at"`
	Valid      bool            `json:"valid"`
}

// Discoverer produces the current entity -> goal definition mapping.
type Discoverer interface {
	Discover(ctx context.Context) (map[string]goal.Definition, error)
}

// HistoryReader is the subset of the hub client the tracker reads history
// and live states through.
type HistoryReader interface {
	History(ctx context.Context, entityIDs []string, start, end time.Time) (map[string][]hub.StatePoint, error)
	GetStates(ctx context.Context) ([]hub.EntityState, error)
}

// Tracker owns the shared snapshot. Reads never block on a refresh in
// progress: while one is in flight, callers get the previous snapshot.
type Tracker struct {
	discoverer    Discoverer
	history       HistoryReader
	weekStart     progress.WeekStart
	cacheDuration time.Duration
	now           func() time.Time
	log           *slog.Logger

	group   singleflight.Group
	current atomic.Pointer[Snapshot]
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker. cacheDuration bounds how stale a served snapshot
// may be before a read triggers a refresh.
func New(d Discoverer, h HistoryReader, weekStart progress.WeekStart, cacheDuration time.Duration, log *slog.Logger, opts ...Option) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{
		discoverer:    d,
		history:       h,
		weekStart:     weekStart,
		cacheDuration: cacheDuration,
		now:           time.Now,
		log:           log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot returns the current snapshot. With force=false a fresh snapshot
// is served as-is, a stale one is returned immediately while a refresh is
// kicked off in the background, and only the very first call (no snapshot
// yet) blocks. With force=true the call joins a refresh — the in-flight
// one if any, a new one otherwise — and returns its outcome; on refresh
// failure the previous snapshot is served unchanged.
func (t *Tracker) Snapshot(ctx context.Context, force bool) *Snapshot {
	cur := t.current.Load()

	if !force && cur != nil {
		if t.now().Sub(cur.ComputedAt) < t.cacheDuration {
			return cur
		}
		// Stale: refresh behind the reader's back, serve what we have.
		go t.Refresh(context.Background())
		return cur
	}

	snap, err := t.Refresh(ctx)
	if err != nil {
		t.log.Error("snapshot refresh failed; serving previous", "error", err)
		if cur != nil {
			return cur
		}
		return &Snapshot{ComputedAt: t.now(), Valid: false}
	}
	return snap
}

// Refresh runs one discovery+history+calculation cycle, deduplicated: a
// call made while another refresh is in flight joins it instead of issuing
// a second remote round-trip. On success the new snapshot is swapped in
// atomically.
func (t *Tracker) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := t.group.Do("refresh", func() (any, error) {
		return t.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (t *Tracker) refresh(ctx context.Context) (*Snapshot, error) {
	started := t.now()
	window := progress.Week(started, t.weekStart)

	goals, err := t.discoverer.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	entityIDs := make([]string, 0, len(goals))
	for id := range goals {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	traces, err := t.history.History(ctx, entityIDs, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	names := t.liveNames(ctx, goals)

	results := make([]GoalProgress, 0, len(entityIDs))
	for _, id := range entityIDs {
		def := goals[id]
		count := progress.CounterFor(id)(traces[id])
		targetByNow := progress.TargetByNow(def.WeeklyTarget, window.DayOfWeek)

		name := def.FriendlyName
		if live := names[id]; live != "" {
			name = live
		}

		results = append(results, GoalProgress{
			EntityID:     id,
			FriendlyName: name,
			Emoji:        def.Emoji,
			WeeklyTarget: def.WeeklyTarget,
			CurrentCount: count,
			TargetByNow:  targetByNow,
			Status:       progress.StatusOf(count, targetByNow),
			DaysLeft:     window.DaysLeft,
		})
	}

	snap := &Snapshot{
		Goals:      results,
		Window:     window,
		ComputedAt: started,
		Valid:      true,
	}
	t.current.Store(snap)
	t.log.Info("snapshot refreshed", "goals", len(results), "took", t.now().Sub(started))
	return snap, nil
}

// liveNames fetches current friendly names so renames on the hub show up
// without waiting for a registry re-read. Failure here degrades to the
// registry names.
func (t *Tracker) liveNames(ctx context.Context, goals map[string]goal.Definition) map[string]string {
	states, err := t.history.GetStates(ctx)
	if err != nil {
		t.log.Warn("get_states failed; keeping registry names", "error", err)
		return nil
	}
	names := make(map[string]string, len(goals))
	for _, s := range states {
		if _, ok := goals[s.EntityID]; !ok {
			continue
		}
		if name := s.FriendlyName(); name != "" {
			names[s.EntityID] = name
		}
	}
	return names
}

// Run refreshes the snapshot on a fixed schedule until ctx is cancelled.
// Scheduled refreshes share the dedup gate with on-demand ones. Failures
// are logged; the previous snapshot stays in service.
func (t *Tracker) Run(ctx context.Context) error {
	if _, err := t.Refresh(ctx); err != nil {
		t.log.Warn("initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(t.cacheDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := t.Refresh(ctx); err != nil {
				t.log.Warn("scheduled refresh failed", "error", err)
			}
		}
	}
}
