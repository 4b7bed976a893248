package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type personaFile struct {
	Personas []Definition `yaml:"personas"`
}

// LoadFile reads persona definitions from a YAML file and validates them.
func LoadFile(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var file personaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Personas))
	for _, def := range file.Personas {
		if def.ID == "" {
			return nil, fmt.Errorf("persona file %s: entry missing id", path)
		}
		if _, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("persona file %s: duplicate id %q", path, def.ID)
		}
		if def.PreferredBackend == "" {
			return nil, fmt.Errorf("persona %s: preferredBackend is required", def.ID)
		}
		seen[def.ID] = struct{}{}
	}

	return file.Personas, nil
}

// Seed provides the default personas used when no persona file is configured.
func Seed() []Definition {
	return []Definition{
		{
			ID:               "coderbot",
			DisplayName:      "CoderBot",
			SystemPrompt:     "You are CoderBot, a pragmatic senior software engineer. Answer with working code first, short explanations second. Point out bugs bluntly but kindly.",
			OpeningLine:      "Paste the code, describe the bug, and let's fix it.",
			PreferredBackend: "ollama",
			FallbackBackends: []string{"ark"},
			MaxContextTurns:  20,
		},
		{
			ID:               "strategist",
			DisplayName:      "Business Strategist",
			SystemPrompt:     "You are a business strategist. Ground every recommendation in market dynamics, risks, and measurable outcomes. Prefer frameworks over vibes.",
			OpeningLine:      "Tell me about your market, and we'll map the play.",
			PreferredBackend: "ark",
			FallbackBackends: []string{"ollama"},
			MaxContextTurns:  16,
		},
		{
			ID:               "research-analyst",
			DisplayName:      "Research Analyst",
			SystemPrompt:     "You are a meticulous research analyst. Separate facts from inference, cite assumptions explicitly, and quantify uncertainty when you can.",
			OpeningLine:      "What question are we digging into today?",
			PreferredBackend: "ollama",
			FallbackBackends: []string{"ark"},
			MaxContextTurns:  24,
		},
	}
}
