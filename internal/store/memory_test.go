package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knightrooks/agent-hub/internal/model/chat"
)

func TestMemoryStoreCreateOrGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	created, err := s.CreateOrGet(ctx, "sess-1", "coderbot")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", created.ID)
	assert.Equal(t, "coderbot", created.AgentID)
	assert.Equal(t, chat.StateIdle, created.State)

	again, err := s.CreateOrGet(ctx, "sess-1", "coderbot")
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, again.CreatedAt)

	_, err = s.CreateOrGet(ctx, "sess-1", "strategist")
	assert.ErrorIs(t, err, ErrAgentMismatch)
}

func TestMemoryStoreLoadNotFound(t *testing.T) {
	s := NewMemoryStore(10)
	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAppendTurnAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	_, err := s.CreateOrGet(ctx, "sess-1", "coderbot")
	require.NoError(t, err)

	turn, err := s.AppendTurn(ctx, chat.Turn{SessionID: "sess-1", Role: chat.RoleUser, Content: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, turn.ID)
	assert.False(t, turn.CreatedAt.IsZero())

	_, err = s.AppendTurn(ctx, chat.Turn{SessionID: "missing", Role: chat.RoleUser, Content: "hello"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreEvictsOldestBeyondCap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5)
	_, err := s.CreateOrGet(ctx, "sess-1", "coderbot")
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		_, err := s.AppendTurn(ctx, chat.Turn{
			SessionID: "sess-1",
			Role:      chat.RoleUser,
			Content:   fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	turns, err := s.Turns(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 5)
	assert.Equal(t, "message 3", turns[0].Content)
	assert.Equal(t, "message 7", turns[4].Content)
}

func TestMemoryStoreCompareAndSetState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	_, err := s.CreateOrGet(ctx, "sess-1", "coderbot")
	require.NoError(t, err)

	won, err := s.CompareAndSetState(ctx, "sess-1", chat.StateIdle, chat.StateGenerating)
	require.NoError(t, err)
	assert.True(t, won)

	// A second attempt against the same expected state loses.
	won, err = s.CompareAndSetState(ctx, "sess-1", chat.StateIdle, chat.StateGenerating)
	require.NoError(t, err)
	assert.False(t, won)

	won, err = s.CompareAndSetState(ctx, "sess-1", chat.StateGenerating, chat.StateIdle)
	require.NoError(t, err)
	assert.True(t, won)

	_, err = s.CompareAndSetState(ctx, "missing", chat.StateIdle, chat.StateGenerating)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCompareAndSetStateSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	_, err := s.CreateOrGet(ctx, "sess-1", "coderbot")
	require.NoError(t, err)

	const contenders = 32
	var wg sync.WaitGroup
	wins := make(chan bool, contenders)
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			won, err := s.CompareAndSetState(ctx, "sess-1", chat.StateIdle, chat.StateGenerating)
			if err != nil {
				t.Error(err)
				return
			}
			wins <- won
		}()
	}
	close(start)
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestMemoryStoreSweepExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }

	for _, id := range []string{"stale", "fresh", "busy", "done"} {
		_, err := s.CreateOrGet(ctx, id, "coderbot")
		require.NoError(t, err)
	}

	won, err := s.CompareAndSetState(ctx, "busy", chat.StateIdle, chat.StateGenerating)
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, s.CloseSession(ctx, "done"))

	// Everything so far happened at base; "fresh" gets touched later.
	current = base.Add(40 * time.Minute)
	_, err = s.AppendTurn(ctx, chat.Turn{SessionID: "fresh", Role: chat.RoleUser, Content: "ping"})
	require.NoError(t, err)

	removed, err := s.SweepExpired(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = s.Load(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound, "idle-expired session should be swept")
	_, err = s.Load(ctx, "done")
	assert.ErrorIs(t, err, ErrNotFound, "closed session should be swept")

	_, err = s.Load(ctx, "fresh")
	assert.NoError(t, err)
	busy, err := s.Load(ctx, "busy")
	require.NoError(t, err, "generating session must survive the sweep")
	assert.Equal(t, chat.StateGenerating, busy.State)
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	_, err := s.CreateOrGet(ctx, "sess-1", "coderbot")
	require.NoError(t, err)
	_, err = s.AppendTurn(ctx, chat.Turn{SessionID: "sess-1", Role: chat.RoleUser, Content: "hi"})
	require.NoError(t, err)
	_, err = s.CreateOrGet(ctx, "sess-2", "strategist")
	require.NoError(t, err)

	summaries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byID := make(map[string]chat.Summary, len(summaries))
	for _, summary := range summaries {
		byID[summary.ID] = summary
	}
	assert.Equal(t, 1, byID["sess-1"].TurnCount)
	assert.Equal(t, 0, byID["sess-2"].TurnCount)
	assert.Equal(t, "strategist", byID["sess-2"].AgentID)
}

func TestMemoryStoreCloseSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	_, err := s.CreateOrGet(ctx, "sess-1", "coderbot")
	require.NoError(t, err)

	require.NoError(t, s.CloseSession(ctx, "sess-1"))
	session, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, chat.StateClosed, session.State)

	assert.ErrorIs(t, s.CloseSession(ctx, "missing"), ErrNotFound)
}
