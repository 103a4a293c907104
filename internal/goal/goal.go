// Package goal discovers habit goals from the hub's label and entity
// registries. A goal is a counter entity carrying a label named goal_*
// whose description holds a JSON configuration payload.
package goal

import (
	"encoding/json"
	"math"
	"strings"
)

// LabelPrefix marks a label as goal configuration.
const LabelPrefix = "goal_"

// Definition is one discovered goal: an entity bound to a valid goal label.
// Definitions are produced fresh by every discovery cycle and never
// partially updated.
type Definition struct {
	EntityID     string
	FriendlyName string
	LabelID      string
	LabelName    string
	WeeklyTarget int
	Emoji        string
	Sound        string
}

// labelPayload is the JSON object expected in a goal label's description.
type labelPayload struct {
	WeeklyTarget *float64 `json:"weekly_target"`
	Emoji        string   `json:"emoji"`
	Sound        string   `json:"sound"`
}

// parsePayload decodes and validates a goal label description. The weekly
// target must be an integer >= 1; anything else invalidates the label.
func parsePayload(description string) (labelPayload, bool) {
	var p labelPayload
	if err := json.Unmarshal([]byte(description), &p); err != nil {
		return labelPayload{}, false
	}
	if p.WeeklyTarget == nil {
		return labelPayload{}, false
	}
	t := *p.WeeklyTarget
	if t < 1 || t != math.Trunc(t) {
		return labelPayload{}, false
	}
	return p, true
}

// friendlyNameFromID derives a display name from an entity id:
// "counter.gym_visits" becomes "Gym Visits".
func friendlyNameFromID(entityID string) string {
	name := entityID
	if _, object, ok := strings.Cut(entityID, "."); ok {
		name = object
	}
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
