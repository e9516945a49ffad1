package storage

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentcore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_ReadMissing(t *testing.T) {
	s := NewInMemory()
	sess, err := s.Read(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, sess)
}

func TestInMemory_UpsertPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	first := core.NewSession("s1", "a1", "u1")
	first.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	first.SessionData = map[string]any{"k": "v"}
	_, err := s.Upsert(ctx, first)
	require.NoError(t, err)

	second := core.NewSession("s1", "a1", "u1")
	second.SessionData = map[string]any{"k": "v2"}
	stored, err := s.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, stored.CreatedAt)
	assert.Equal(t, "v2", stored.SessionData["k"])

	stored.SessionData["k"] = "mutated"
	again, err := s.Read(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "v2", again.SessionData["k"])
}

func TestInMemory_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	_, _ = s.Upsert(ctx, core.NewSession("s1", "a", "u1"))
	_, _ = s.Upsert(ctx, core.NewSession("s2", "a", "u2"))
	_, _ = s.Upsert(ctx, core.NewSession("s3", "a", "u1"))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.ElementsMatch(t, []string{"s1", "s3"}, []string{mine[0].SessionID, mine[1].SessionID})
	assert.False(t, mine[0].UpdatedAt.Before(mine[1].UpdatedAt))

	require.NoError(t, s.Delete(ctx, "s1"))
	assert.ErrorIs(t, s.Delete(ctx, "s1"), ErrNotFound)

	_, err = s.Upsert(ctx, &core.Session{})
	assert.Error(t, err)
}
