package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knightrooks/agent-hub/internal/model/persona"
	"github.com/knightrooks/agent-hub/internal/service/backend"
	"github.com/knightrooks/agent-hub/internal/service/dispatch"
)

type stubAdapter struct {
	id string
}

func (a *stubAdapter) ID() string         { return a.id }
func (a *stubAdapter) Kind() backend.Kind { return backend.KindLocal }
func (a *stubAdapter) Generate(context.Context, backend.Prompt, backend.Params) (string, error) {
	return "", nil
}
func (a *stubAdapter) Probe(context.Context) error { return nil }

func newDispatcher(t *testing.T, healthy map[string]bool) *dispatch.Dispatcher {
	t.Helper()

	registry := persona.NewRegistry([]persona.Definition{
		{
			ID:               "coderbot",
			PreferredBackend: "ollama",
			FallbackBackends: []string{"ark"},
		},
		{
			ID:               "loner",
			PreferredBackend: "ollama",
		},
	})

	health := backend.NewHealthRegistry()
	var adapters []backend.Adapter
	for id, ok := range healthy {
		adapters = append(adapters, &stubAdapter{id: id})
		health.Register(id, backend.KindLocal)
		health.SetHealthy(id, ok)
	}

	return dispatch.New(registry, health, adapters)
}

func TestSelectPrefersFirstHealthyBackend(t *testing.T) {
	d := newDispatcher(t, map[string]bool{"ollama": true, "ark": true})

	adapter, err := d.Select("coderbot")
	require.NoError(t, err)
	assert.Equal(t, "ollama", adapter.ID())
}

func TestSelectFallsBackWhenPreferredUnhealthy(t *testing.T) {
	d := newDispatcher(t, map[string]bool{"ollama": false, "ark": true})

	adapter, err := d.Select("coderbot")
	require.NoError(t, err)
	assert.Equal(t, "ark", adapter.ID())
}

func TestSelectSkipsAlreadyTriedBackend(t *testing.T) {
	d := newDispatcher(t, map[string]bool{"ollama": true, "ark": true})

	adapter, err := d.Select("coderbot", "ollama")
	require.NoError(t, err)
	assert.Equal(t, "ark", adapter.ID())
}

func TestSelectNoBackendAvailable(t *testing.T) {
	d := newDispatcher(t, map[string]bool{"ollama": false, "ark": false})

	_, err := d.Select("coderbot")
	assert.ErrorIs(t, err, dispatch.ErrNoBackendAvailable)
}

func TestSelectExhaustedBySkip(t *testing.T) {
	d := newDispatcher(t, map[string]bool{"ollama": true})

	_, err := d.Select("loner", "ollama")
	assert.ErrorIs(t, err, dispatch.ErrNoBackendAvailable)
}

func TestSelectSkipsUnregisteredBackend(t *testing.T) {
	// The persona lists ark as a fallback but no ark adapter is configured.
	d := newDispatcher(t, map[string]bool{"ollama": false})

	_, err := d.Select("coderbot")
	assert.ErrorIs(t, err, dispatch.ErrNoBackendAvailable)
}

func TestSelectUnknownAgent(t *testing.T) {
	d := newDispatcher(t, map[string]bool{"ollama": true})

	_, err := d.Select("nobody")
	assert.ErrorIs(t, err, dispatch.ErrUnknownAgent)
}
