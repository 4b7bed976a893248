// Package dispatch maps an agent id to a healthy backend adapter,
// honoring the persona's declared fallback order.
package dispatch

import (
	"errors"

	"github.com/knightrooks/agent-hub/internal/model/persona"
	"github.com/knightrooks/agent-hub/internal/service/backend"
)

var (
	// ErrUnknownAgent means the agent id has no persona definition.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrNoBackendAvailable means no healthy backend remains for the persona.
	ErrNoBackendAvailable = errors.New("no backend available")
)

// Dispatcher is read-only over backend health; the health checker updates
// the registry asynchronously.
type Dispatcher struct {
	personas persona.Registry
	health   *backend.HealthRegistry
	adapters map[string]backend.Adapter
}

// New indexes the adapters by id.
func New(personas persona.Registry, health *backend.HealthRegistry, adapters []backend.Adapter) *Dispatcher {
	byID := make(map[string]backend.Adapter, len(adapters))
	for _, adapter := range adapters {
		byID[adapter.ID()] = adapter
	}
	return &Dispatcher{personas: personas, health: health, adapters: byID}
}

// Select returns the first healthy adapter in the persona's backend order,
// skipping any backends listed in skip (already-tried backends on retry).
func (d *Dispatcher) Select(agentID string, skip ...string) (backend.Adapter, error) {
	def, ok := d.personas.FindByID(agentID)
	if !ok {
		return nil, ErrUnknownAgent
	}

	skipped := make(map[string]struct{}, len(skip))
	for _, id := range skip {
		skipped[id] = struct{}{}
	}

	for _, backendID := range def.BackendOrder() {
		if _, tried := skipped[backendID]; tried {
			continue
		}
		adapter, registered := d.adapters[backendID]
		if !registered {
			continue
		}
		if !d.health.Healthy(backendID) {
			continue
		}
		return adapter, nil
	}
	return nil, ErrNoBackendAvailable
}
