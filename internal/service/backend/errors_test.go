package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind ErrorKind
	}{
		"deadline exceeded": {context.DeadlineExceeded, KindTimeout},
		"net timeout":       {&fakeNetError{timeout: true}, KindTimeout},
		"net unreachable":   {&fakeNetError{}, KindUnreachable},
		"anything else":     {errors.New("garbled"), KindInvalidResponse},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			typed := Classify("ollama", tc.err)
			assert.Equal(t, tc.kind, typed.Kind)
			assert.Equal(t, "ollama", typed.Backend)
			assert.ErrorIs(t, typed, tc.err)
		})
	}
}

func TestClassifyPreservesTypedError(t *testing.T) {
	original := NewError("ark", KindRateLimited, errors.New("429"))
	typed := Classify("ollama", original)
	assert.Same(t, original, typed, "already-typed errors pass through unchanged")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError("ollama", KindUnreachable, cause)

	assert.ErrorIs(t, err, cause)
	var typed *Error
	require.ErrorAs(t, error(err), &typed)
	assert.Contains(t, err.Error(), "ollama")
	assert.Contains(t, err.Error(), "unreachable")
}
