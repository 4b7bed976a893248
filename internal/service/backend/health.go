package backend

import (
	"context"
	"log"
	"sync"
	"time"
)

// HandleStatus is the read-only view of one backend's health.
type HandleStatus struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Healthy     bool      `json:"healthy"`
	LastChecked time.Time `json:"lastChecked,omitempty"`
}

type handle struct {
	mu          sync.Mutex
	id          string
	kind        Kind
	healthy     bool
	lastChecked time.Time
}

// HealthRegistry tracks which backends are currently believed healthy. It
// is written by the checker goroutine and read by the dispatcher; readers
// tolerate stale information.
type HealthRegistry struct {
	mu      sync.RWMutex
	handles map[string]*handle
}

// NewHealthRegistry returns an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{handles: make(map[string]*handle)}
}

// Register adds a backend, optimistically healthy until the first probe
// says otherwise.
func (r *HealthRegistry) Register(id string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[id]; exists {
		return
	}
	r.handles[id] = &handle{id: id, kind: kind, healthy: true}
}

// SetHealthy records a probe result.
func (r *HealthRegistry) SetHealthy(id string, healthy bool) {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	h.mu.Lock()
	h.healthy = healthy
	h.lastChecked = time.Now().UTC()
	h.mu.Unlock()
}

// Healthy reports whether the backend is currently believed healthy.
// Unknown backends are unhealthy.
func (r *HealthRegistry) Healthy(id string) bool {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthy
}

// Snapshot returns the status of every registered backend.
func (r *HealthRegistry) Snapshot() []HandleStatus {
	r.mu.RLock()
	handles := make([]*handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	statuses := make([]HandleStatus, 0, len(handles))
	for _, h := range handles {
		h.mu.Lock()
		statuses = append(statuses, HandleStatus{
			ID:          h.id,
			Kind:        h.kind,
			Healthy:     h.healthy,
			LastChecked: h.lastChecked,
		})
		h.mu.Unlock()
	}
	return statuses
}

// Checker probes each adapter on an interval and writes the result into
// the registry. It runs outside the request path.
type Checker struct {
	registry *HealthRegistry
	adapters []Adapter
	interval time.Duration
}

// NewChecker wires adapters to a registry, registering each of them.
func NewChecker(registry *HealthRegistry, adapters []Adapter, interval time.Duration) *Checker {
	for _, adapter := range adapters {
		registry.Register(adapter.ID(), adapter.Kind())
	}
	return &Checker{registry: registry, adapters: adapters, interval: interval}
}

// Run probes immediately, then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.probeAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probeAll(ctx)
		}
	}
}

func (c *Checker) probeAll(ctx context.Context) {
	for _, adapter := range c.adapters {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := adapter.Probe(probeCtx)
		cancel()

		healthy := err == nil
		wasHealthy := c.registry.Healthy(adapter.ID())
		c.registry.SetHealthy(adapter.ID(), healthy)
		if healthy != wasHealthy {
			log.Printf("[health] backend %s healthy=%t (probe err: %v)", adapter.ID(), healthy, err)
		}
	}
}
