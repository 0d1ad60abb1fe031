package usecases

import (
	"context"
	"errors"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/state"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRollbackState(t *testing.T, store state.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	snap := state.NewRestoreSnapshot()
	snap.Put(state.RestoreEntry{Title: "Granite Slab", RemoteID: "gid://shopify/Product/1", Status: state.RestoreCompleted, UpdatedAt: now})
	snap.Put(state.RestoreEntry{Title: "Basalt Slab", RemoteID: "gid://shopify/Product/2", Status: state.RestoreFailed, FailedStage: stageVariants, UpdatedAt: now})
	snap.Put(state.RestoreEntry{Title: "Marble Slab", RemoteID: "gid://shopify/Product/3", Status: state.RestoreDeleted, UpdatedAt: now})

	cp := state.NewCheckpoint("run-1")
	cp.Record(model.SucceededItem(0, "Granite Slab", "gid://shopify/Product/1", now))
	cp.Record(model.SucceededItem(1, "Slate Step", "gid://shopify/Product/4", now))
	require.NoError(t, store.SaveProgress(ctx, cp, snap))

	registry := state.NewRegistry()
	registry.SetDepartment("Hardscape", state.CollectionRef{ID: "gid://shopify/Collection/1", Handle: "hardscape"})
	registry.SetCategory("Pavers", state.CollectionRef{ID: "gid://shopify/Collection/2", Handle: "pavers"})
	require.NoError(t, store.SaveRegistry(ctx, registry))
}

func TestRollbackDeletesRecordedProducts(t *testing.T) {
	remote := newFakeShopify()
	store := newRecordingStore(t)
	seedRollbackState(t, store)

	report, err := NewRollback(remote, store, nil).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.ProductsDeleted)
	assert.ElementsMatch(t, []string{"gid://shopify/Product/1", "gid://shopify/Product/2", "gid://shopify/Product/4"}, remote.deleted)
	assert.Empty(t, remote.deletedCollections)

	cp, err := store.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
	snap, err := store.LoadRestore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.RemoteIDs())

	registry, err := store.LoadRegistry(context.Background())
	require.NoError(t, err)
	assert.Len(t, registry.Items(), 2)
}

func TestRollbackWithCollections(t *testing.T) {
	remote := newFakeShopify()
	store := newRecordingStore(t)
	seedRollbackState(t, store)

	report, err := NewRollback(remote, store, nil).Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CollectionsDeleted)
	assert.Equal(t, []string{"gid://shopify/Collection/1", "gid://shopify/Collection/2"}, remote.deletedCollections)

	registry, err := store.LoadRegistry(context.Background())
	require.NoError(t, err)
	assert.Empty(t, registry.Items())
}

func TestRollbackKeepsStateWhenDeleteFails(t *testing.T) {
	remote := newFakeShopify()
	remote.failDelete = errors.New("throttled")
	store := newRecordingStore(t)
	seedRollbackState(t, store)

	_, err := NewRollback(remote, store, nil).Run(context.Background(), true)
	require.Error(t, err)

	cp, err := store.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, cp)
	assert.Empty(t, remote.deletedCollections)
}
