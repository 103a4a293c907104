package hub

import "time"

// Label is a row from the hub's label registry.
type Label struct {
	LabelID     string `json:"label_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// Entity is a row from the hub's entity registry. Labels holds label IDs,
// not label names.
type Entity struct {
	EntityID     string   `json:"entity_id"`
	Name         string   `json:"name"`
	OriginalName string   `json:"original_name"`
	Platform     string   `json:"platform"`
	Labels       []string `json:"labels"`
}

// EntityState is a row from get_states: the current state of one entity.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// FriendlyName returns the friendly_name attribute, if present.
func (s EntityState) FriendlyName() string {
	if v, ok := s.Attributes["friendly_name"].(string); ok {
		return v
	}
	return ""
}

// StatePoint is one numeric state change from an entity's history,
// in chronological order within a trace.
type StatePoint struct {
	When  time.Time
	Value float64
}
