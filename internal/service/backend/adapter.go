// Package backend defines the uniform generation contract over
// heterogeneous model backends and tracks their health.
package backend

import (
	"context"

	"github.com/knightrooks/agent-hub/internal/model/chat"
)

// Kind distinguishes local model runners from remote vendor APIs.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Prompt is the assembled input for one generation: persona system prompt,
// the bounded context window (oldest first), and the new user message.
type Prompt struct {
	System      string
	History     []chat.Turn
	UserMessage string
}

// Params carries per-persona generation parameters. Nil fields mean the
// backend's own defaults apply.
type Params struct {
	Temperature *float64
	MaxTokens   *int
}

// Adapter hides transport differences between backends. Implementations do
// not retry; the deadline on ctx is enforced by the caller and exceeding it
// yields an *Error of kind Timeout.
type Adapter interface {
	ID() string
	Kind() Kind
	Generate(ctx context.Context, prompt Prompt, params Params) (string, error)
	// Probe checks reachability for the health checker.
	Probe(ctx context.Context) error
}
