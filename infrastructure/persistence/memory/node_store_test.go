package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danilohgds/f-system/domain/filesystem"
	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
)

func storedNode(userID, parentID, name, itemID, path string, nodeType filesystem.NodeType) *filesystem.Node {
	return &filesystem.Node{
		ParentID: parentID,
		Name:     name,
		ItemID:   itemID,
		Path:     path,
		Type:     nodeType,
		UserID:   userID,
	}
}

func TestNodeStoreSaveAndFind(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	node := storedNode("user-1", "parent", "a.txt", "item-1", "/docs/a.txt", filesystem.TypeFile)
	require.NoError(t, store.Save(ctx, node))

	byID, err := store.FindByID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "/docs/a.txt", byID.Path)

	byKey, err := store.FindByKey(ctx, "user-1", "parent", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "item-1", byKey.ItemID)

	_, err = store.FindByID(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = store.FindByKey(ctx, "user-1", "parent", "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNodeStoreSaveIfAbsent(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	node := storedNode("user-1", "parent", "docs", "item-1", "/docs", filesystem.TypeFolder)
	require.NoError(t, store.SaveIfAbsent(ctx, node))

	dup := storedNode("user-1", "parent", "docs", "item-2", "/docs", filesystem.TypeFolder)
	err := store.SaveIfAbsent(ctx, dup)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	// The first writer's record survived.
	stored, err := store.FindByKey(ctx, "user-1", "parent", "docs")
	require.NoError(t, err)
	assert.Equal(t, "item-1", stored.ItemID)
}

func TestNodeStoreFindByPathPrefix(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storedNode("user-1", "p", "docs", "i1", "/docs", filesystem.TypeFolder)))
	require.NoError(t, store.Save(ctx, storedNode("user-1", "i1", "a.txt", "i2", "/docs/a.txt", filesystem.TypeFile)))
	require.NoError(t, store.Save(ctx, storedNode("user-1", "p", "docs-old", "i3", "/docs-old", filesystem.TypeFolder)))
	require.NoError(t, store.Save(ctx, storedNode("user-2", "p", "docs", "i4", "/docs", filesystem.TypeFolder)))

	// The trailing slash scopes the scan to the subtree and excludes
	// the sibling sharing the name prefix.
	matches, err := store.FindByPathPrefix(ctx, "user-1", "/docs/")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "i2", matches[0].ItemID)

	// Without the slash the raw prefix match includes the sibling.
	matches, err = store.FindByPathPrefix(ctx, "user-1", "/docs")
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	// Other tenants never leak into the scan.
	matches, err = store.FindByPathPrefix(ctx, "user-2", "/docs")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "i4", matches[0].ItemID)
}

func TestNodeStoreUpdatePath(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	node := storedNode("user-1", "parent", "a.txt", "item-1", "/docs/a.txt", filesystem.TypeFile)
	require.NoError(t, store.Save(ctx, node))

	require.NoError(t, store.UpdatePath(ctx, node, "/documents/a.txt"))
	assert.Equal(t, "/documents/a.txt", node.Path)

	stored, err := store.FindByID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "/documents/a.txt", stored.Path)

	missing := storedNode("user-1", "parent", "ghost", "item-9", "/ghost", filesystem.TypeFile)
	err = store.UpdatePath(ctx, missing, "/nowhere")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNodeStoreDelete(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	node := storedNode("user-1", "parent", "a.txt", "item-1", "/a.txt", filesystem.TypeFile)
	require.NoError(t, store.Save(ctx, node))

	require.NoError(t, store.Delete(ctx, "user-1", node.Key()))
	_, err := store.FindByID(ctx, "item-1")
	assert.True(t, pkgerrors.IsNotFound(err))

	// Deleting a missing key is not an error.
	require.NoError(t, store.Delete(ctx, "user-1", node.Key()))
}

func TestNodeStoreDeleteBatch(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	var keys []filesystem.Key
	for _, name := range []string{"a", "b", "c"} {
		n := storedNode("user-1", "parent", name, "item-"+name, "/"+name, filesystem.TypeFile)
		require.NoError(t, store.Save(ctx, n))
		keys = append(keys, n.Key())
	}

	deleted, failed := store.DeleteBatch(ctx, "user-1", keys)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, store.Len())
}

func TestNodeStoreReadsAreCopies(t *testing.T) {
	store := NewNodeStore()
	ctx := context.Background()

	node := storedNode("user-1", "parent", "a.txt", "item-1", "/a.txt", filesystem.TypeFile)
	require.NoError(t, store.Save(ctx, node))

	read, err := store.FindByID(ctx, "item-1")
	require.NoError(t, err)
	read.Path = "/mutated"

	again, err := store.FindByID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "/a.txt", again.Path)
}
