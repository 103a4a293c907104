package goal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/blackwell-systems/habitboard/internal/hub"
)

// Registry is the subset of the hub client that discovery needs.
type Registry interface {
	ListLabels(ctx context.Context) ([]hub.Label, error)
	ListEntities(ctx context.Context) ([]hub.Entity, error)
}

// Discoverer builds the entity -> goal definition mapping from the hub
// registries.
type Discoverer struct {
	registry Registry
	log      *slog.Logger
}

// NewDiscoverer creates a Discoverer over the given registry reader.
func NewDiscoverer(registry Registry, log *slog.Logger) *Discoverer {
	if log == nil {
		log = slog.Default()
	}
	return &Discoverer{registry: registry, log: log}
}

// Discover fetches both registries and returns one Definition per entity
// that carries a valid goal label. A label that fails to parse is skipped
// with a warning and never aborts the cycle. When an entity carries more
// than one goal label, the lexicographically smallest label id wins and
// the rest are reported.
func (d *Discoverer) Discover(ctx context.Context) (map[string]Definition, error) {
	labels, err := d.registry.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover goals: %w", err)
	}

	configs := d.parseLabels(labels)
	d.log.Info("parsed goal labels", "valid", len(configs), "total", len(labels))

	entities, err := d.registry.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover goals: %w", err)
	}

	goals := make(map[string]Definition)
	for _, entity := range entities {
		def, ok := d.bind(entity, configs)
		if !ok {
			continue
		}
		goals[entity.EntityID] = def
		d.log.Debug("discovered goal",
			"entity", def.EntityID,
			"label", def.LabelName,
			"weekly_target", def.WeeklyTarget)
	}

	d.log.Info("goal discovery complete", "goals", len(goals))
	return goals, nil
}

// labelConfig pairs a validated payload with its source label.
type labelConfig struct {
	labelID   string
	labelName string
	payload   labelPayload
}

// parseLabels keeps the goal-pattern labels whose description parses as a
// valid payload, keyed by label id (entities reference label ids, not
// names).
func (d *Discoverer) parseLabels(labels []hub.Label) map[string]labelConfig {
	configs := make(map[string]labelConfig)
	for _, label := range labels {
		if !strings.HasPrefix(label.Name, LabelPrefix) {
			continue
		}
		payload, ok := parsePayload(label.Description)
		if !ok {
			d.log.Warn("skipping goal label with invalid configuration",
				"label", label.Name, "description", label.Description)
			continue
		}
		configs[label.LabelID] = labelConfig{
			labelID:   label.LabelID,
			labelName: label.Name,
			payload:   payload,
		}
	}
	return configs
}

// bind selects the goal label for one entity, if any. Candidates are
// ordered by label id so the choice is deterministic regardless of
// registry iteration order.
func (d *Discoverer) bind(entity hub.Entity, configs map[string]labelConfig) (Definition, bool) {
	var candidates []string
	for _, labelID := range entity.Labels {
		if _, ok := configs[labelID]; ok {
			candidates = append(candidates, labelID)
		}
	}
	if len(candidates) == 0 {
		return Definition{}, false
	}
	sort.Strings(candidates)
	if len(candidates) > 1 {
		d.log.Warn("entity carries multiple goal labels; using smallest label id",
			"entity", entity.EntityID,
			"chosen", candidates[0],
			"ignored", candidates[1:])
	}

	cfg := configs[candidates[0]]
	return Definition{
		EntityID:     entity.EntityID,
		FriendlyName: friendlyName(entity),
		LabelID:      cfg.labelID,
		LabelName:    cfg.labelName,
		WeeklyTarget: int(*cfg.payload.WeeklyTarget),
		Emoji:        cfg.payload.Emoji,
		Sound:        cfg.payload.Sound,
	}, true
}

// friendlyName picks the best display name for an entity: its registry
// name, then its original name, then a title-cased form of its entity id.
func friendlyName(entity hub.Entity) string {
	if entity.Name != "" {
		return entity.Name
	}
	if entity.OriginalName != "" {
		return entity.OriginalName
	}
	return friendlyNameFromID(entity.EntityID)
}
