package knowledge

import (
	"context"
	"testing"

	"github.com/hupe1980/agentcore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_Search(t *testing.T) {
	kb := NewInMemory(
		core.Document{ID: "1", Content: "Go channels and goroutines"},
		core.Document{ID: "2", Content: "Baking bread at home"},
		core.Document{ID: "3", Name: "goroutines", Content: "Scheduling in the Go runtime"},
	)
	ctx := context.Background()

	docs, err := kb.Search(ctx, "Go goroutines", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].ID)
	assert.Equal(t, "3", docs[1].ID)
	assert.InDelta(t, 1.0, docs[0].Score, 1e-9)

	docs, err = kb.Search(ctx, "bread", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2", docs[0].ID)

	docs, err = kb.Search(ctx, "go", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = kb.Search(ctx, "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestInMemory_AddReplacesByID(t *testing.T) {
	kb := NewInMemory()
	ctx := context.Background()

	require.NoError(t, kb.Add(ctx, core.Document{Content: "first"}, core.Document{ID: "x", Content: "old"}))
	require.NoError(t, kb.Add(ctx, core.Document{ID: "x", Content: "new text"}))
	assert.Equal(t, 2, kb.Len())

	docs, err := kb.Search(ctx, "old", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = kb.Search(ctx, "new", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "x", docs[0].ID)
}

func TestInMemory_CanceledContext(t *testing.T) {
	kb := NewInMemory(core.Document{Content: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := kb.Search(ctx, "a", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
