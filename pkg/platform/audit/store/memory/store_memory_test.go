package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "citadel/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Append(ctx, audit.Event{AssetID: 1, Action: "a"}))
	require.NoError(t, store.Append(ctx, audit.Event{AssetID: 2, Action: "b"}))
	require.NoError(t, store.Append(ctx, audit.Event{AssetID: 1, Action: "c"}))

	byAsset, err := store.ListByAsset(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byAsset, 2)
	assert.Equal(t, "a", byAsset[0].Action)
	assert.Equal(t, "c", byAsset[1].Action)

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Action)
	assert.Equal(t, "c", recent[1].Action)

	store.Clear()
	all, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
