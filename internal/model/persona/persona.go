package persona

import "time"

// Definition is the static configuration governing one chat agent. Loaded
// once at startup; never mutated afterwards.
type Definition struct {
	ID               string   `json:"id" yaml:"id"`
	DisplayName      string   `json:"displayName" yaml:"displayName"`
	SystemPrompt     string   `json:"-" yaml:"systemPrompt"`
	OpeningLine      string   `json:"openingLine,omitempty" yaml:"openingLine"`
	PreferredBackend string   `json:"preferredBackend" yaml:"preferredBackend"`
	FallbackBackends []string `json:"fallbackBackends,omitempty" yaml:"fallbackBackends"`
	MaxContextTurns  int      `json:"maxContextTurns" yaml:"maxContextTurns"`
	TimeoutSeconds   int      `json:"generationTimeoutSeconds" yaml:"generationTimeoutSeconds"`
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens        *int     `json:"maxTokens,omitempty" yaml:"maxTokens"`
}

const (
	defaultMaxContextTurns = 20
	defaultTimeoutSeconds  = 30
)

// GenerationTimeout returns the per-persona adapter deadline.
func (d Definition) GenerationTimeout() time.Duration {
	secs := d.TimeoutSeconds
	if secs <= 0 {
		secs = defaultTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// ContextWindow returns how many stored turns are included in the prompt.
func (d Definition) ContextWindow() int {
	if d.MaxContextTurns <= 0 {
		return defaultMaxContextTurns
	}
	return d.MaxContextTurns
}

// BackendOrder returns the preferred backend followed by the declared
// fallbacks, in dispatch order.
func (d Definition) BackendOrder() []string {
	order := make([]string, 0, 1+len(d.FallbackBackends))
	if d.PreferredBackend != "" {
		order = append(order, d.PreferredBackend)
	}
	order = append(order, d.FallbackBackends...)
	return order
}
