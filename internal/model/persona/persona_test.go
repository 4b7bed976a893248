package persona

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionDefaults(t *testing.T) {
	var def Definition
	assert.Equal(t, 30*time.Second, def.GenerationTimeout())
	assert.Equal(t, 20, def.ContextWindow())
	assert.Empty(t, def.BackendOrder())

	def = Definition{
		TimeoutSeconds:   5,
		MaxContextTurns:  8,
		PreferredBackend: "ollama",
		FallbackBackends: []string{"ark"},
	}
	assert.Equal(t, 5*time.Second, def.GenerationTimeout())
	assert.Equal(t, 8, def.ContextWindow())
	assert.Equal(t, []string{"ollama", "ark"}, def.BackendOrder())
}

func TestRegistryListSortedAndLookup(t *testing.T) {
	registry := NewRegistry([]Definition{
		{ID: "zeta", PreferredBackend: "ollama"},
		{ID: "alpha", PreferredBackend: "ark"},
		{ID: "alpha", PreferredBackend: "ollama"}, // duplicate, ignored
		{ID: ""},                                  // empty id, ignored
	})

	listed := registry.List()
	require.Len(t, listed, 2)
	assert.Equal(t, "alpha", listed[0].ID)
	assert.Equal(t, "ark", listed[0].PreferredBackend, "first definition wins on duplicate id")
	assert.Equal(t, "zeta", listed[1].ID)

	_, ok := registry.FindByID("alpha")
	assert.True(t, ok)
	_, ok = registry.FindByID("missing")
	assert.False(t, ok)
}

func writePersonaFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writePersonaFile(t, `
personas:
  - id: coderbot
    displayName: CoderBot
    systemPrompt: You fix code.
    preferredBackend: ollama
    fallbackBackends: [ark]
    maxContextTurns: 12
    generationTimeoutSeconds: 20
    temperature: 0.2
  - id: strategist
    displayName: Business Strategist
    systemPrompt: You plan.
    preferredBackend: ark
`)

	defs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "coderbot", defs[0].ID)
	assert.Equal(t, []string{"ollama", "ark"}, defs[0].BackendOrder())
	assert.Equal(t, 12, defs[0].ContextWindow())
	assert.Equal(t, 20*time.Second, defs[0].GenerationTimeout())
	require.NotNil(t, defs[0].Temperature)
	assert.InDelta(t, 0.2, *defs[0].Temperature, 1e-9)
	assert.Nil(t, defs[0].MaxTokens)

	assert.Equal(t, "strategist", defs[1].ID)
	assert.Nil(t, defs[1].Temperature)
}

func TestLoadFileValidation(t *testing.T) {
	cases := map[string]string{
		"missing id": `
personas:
  - displayName: Nameless
    preferredBackend: ollama
`,
		"duplicate id": `
personas:
  - id: twin
    preferredBackend: ollama
  - id: twin
    preferredBackend: ark
`,
		"missing preferred backend": `
personas:
  - id: drifting
    displayName: No Backend
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writePersonaFile(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSeedPersonasAreValid(t *testing.T) {
	seen := make(map[string]struct{})
	for _, def := range Seed() {
		require.NotEmpty(t, def.ID)
		require.NotEmpty(t, def.SystemPrompt)
		require.NotEmpty(t, def.PreferredBackend)
		_, dup := seen[def.ID]
		require.False(t, dup, "seed ids must be unique")
		seen[def.ID] = struct{}{}
	}
}
