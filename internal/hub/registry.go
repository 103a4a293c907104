package hub

import (
	"context"
	"encoding/json"
)

// ListLabels fetches the hub's label registry in a single round-trip.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	raw, err := c.Request(ctx, "config/label_registry/list", nil)
	if err != nil {
		return nil, &RegistryError{Op: "label list", Err: err}
	}
	var labels []Label
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, &RegistryError{Op: "label list decode", Err: err}
	}
	return labels, nil
}

// ListEntities fetches the hub's entity registry in a single round-trip.
// Each entity carries the set of label IDs attached to it.
func (c *Client) ListEntities(ctx context.Context) ([]Entity, error) {
	raw, err := c.Request(ctx, "config/entity_registry/list", nil)
	if err != nil {
		return nil, &RegistryError{Op: "entity list", Err: err}
	}
	var entities []Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, &RegistryError{Op: "entity list decode", Err: err}
	}
	return entities, nil
}

// GetStates fetches the current state of every entity. Used to refresh
// friendly names that were edited on the hub after discovery.
func (c *Client) GetStates(ctx context.Context) ([]EntityState, error) {
	raw, err := c.Request(ctx, "get_states", nil)
	if err != nil {
		return nil, &RegistryError{Op: "get_states", Err: err}
	}
	var states []EntityState
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, &RegistryError{Op: "get_states decode", Err: err}
	}
	return states, nil
}
