package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/application/ports"
	"github.com/danilohgds/f-system/domain/events"
	"github.com/danilohgds/f-system/domain/filesystem"
	"github.com/danilohgds/f-system/infrastructure/persistence/memory"
	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
)

// capturePublisher records every published event for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePublisher) last() events.Event {
	all := p.all()
	if len(all) == 0 {
		return events.Event{}
	}
	return all[len(all)-1]
}

func newTestService(t *testing.T) (*TreeService, *memory.NodeStore, *capturePublisher) {
	t.Helper()
	store := memory.NewNodeStore()
	publisher := &capturePublisher{}
	svc := NewTreeService(store, publisher, zap.NewNop())
	return svc, store, publisher
}

func mustRoot(t *testing.T, svc *TreeService, userID string) *filesystem.Node {
	t.Helper()
	root, err := svc.InitializeRoot(context.Background(), userID)
	require.NoError(t, err)
	return root
}

func mustCreate(t *testing.T, svc *TreeService, parentID, name string, nodeType filesystem.NodeType, userID string) *filesystem.Node {
	t.Helper()
	node, err := svc.CreateNode(context.Background(), CreateNodeInput{
		ParentID: parentID,
		Name:     name,
		Type:     nodeType,
		UserID:   userID,
	})
	require.NoError(t, err)
	return node
}

func TestInitializeRoot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	root, err := svc.InitializeRoot(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.Equal(t, "", root.Path)
	assert.Equal(t, 0, root.Depth)

	// Idempotent: the second call returns the same stored root.
	again, err := svc.InitializeRoot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, root.ItemID, again.ItemID)
}

func TestInitializeRootRequiresUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.InitializeRoot(context.Background(), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestCreateNode(t *testing.T) {
	svc, _, publisher := newTestService(t)
	root := mustRoot(t, svc, "user-1")

	folder := mustCreate(t, svc, root.ItemID, "docs", filesystem.TypeFolder, "user-1")
	assert.Equal(t, "/docs", folder.Path)
	assert.Equal(t, 1, folder.Depth)
	assert.NotEmpty(t, folder.ItemID)

	file := mustCreate(t, svc, folder.ItemID, "a.txt", filesystem.TypeFile, "user-1")
	assert.Equal(t, "/docs/a.txt", file.Path)
	assert.Equal(t, folder.Depth, file.Depth)

	// The ADDED event is addressed to the parent folder's path.
	last := publisher.last()
	assert.Equal(t, events.EventAdded, last.Type)
	assert.Equal(t, "/docs", last.Path)
	assert.Equal(t, "user-1", last.UserID)
}

func TestCreateNodeUnderFile(t *testing.T) {
	svc, _, _ := newTestService(t)
	root := mustRoot(t, svc, "user-1")
	file := mustCreate(t, svc, root.ItemID, "a.txt", filesystem.TypeFile, "user-1")

	_, err := svc.CreateNode(context.Background(), CreateNodeInput{
		ParentID: file.ItemID,
		Name:     "b.txt",
		Type:     filesystem.TypeFile,
		UserID:   "user-1",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidOperation(err))
}

func TestCreateNodeMissingParent(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustRoot(t, svc, "user-1")

	_, err := svc.CreateNode(context.Background(), CreateNodeInput{
		ParentID: "no-such-parent",
		Name:     "docs",
		Type:     filesystem.TypeFolder,
		UserID:   "user-1",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCreateNodeDepthLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	root := mustRoot(t, svc, "user-1")

	parent := root
	for i := 0; i < filesystem.MaxDepth; i++ {
		parent = mustCreate(t, svc, parent.ItemID, "level", filesystem.TypeFolder, "user-1")
	}

	_, err := svc.CreateNode(context.Background(), CreateNodeInput{
		ParentID: parent.ItemID,
		Name:     "too-deep",
		Type:     filesystem.TypeFolder,
		UserID:   "user-1",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsDepthExceeded(err))

	// A file at the maximum folder depth is still allowed.
	file := mustCreate(t, svc, parent.ItemID, "leaf.txt", filesystem.TypeFile, "user-1")
	assert.Equal(t, filesystem.MaxDepth, file.Depth)
}

func TestListChildren(t *testing.T) {
	svc, _, _ := newTestService(t)
	root := mustRoot(t, svc, "user-1")
	mustCreate(t, svc, root.ItemID, "docs", filesystem.TypeFolder, "user-1")
	mustCreate(t, svc, root.ItemID, "b.txt", filesystem.TypeFile, "user-1")

	children, err := svc.ListChildren(context.Background(), root.ItemID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	names := []string{children[0].Name, children[1].Name}
	assert.ElementsMatch(t, []string{"docs", "b.txt"}, names)
}

func TestRenameFile(t *testing.T) {
	svc, _, publisher := newTestService(t)
	root := mustRoot(t, svc, "user-1")
	file := mustCreate(t, svc, root.ItemID, "a.txt", filesystem.TypeFile, "user-1")

	renamed, err := svc.RenameNode(context.Background(), root.ItemID, "a.txt", "b.txt")
	require.NoError(t, err)

	assert.Equal(t, "b.txt", renamed.Name)
	assert.Equal(t, "/b.txt", renamed.Path)
	assert.Equal(t, file.ItemID, renamed.ItemID)
	assert.Equal(t, file.CreatedAt, renamed.CreatedAt)

	// The old key is gone; the node is reachable under the new name.
	_, err = svc.RenameNode(context.Background(), root.ItemID, "a.txt", "c.txt")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	last := publisher.last()
	assert.Equal(t, events.EventRenamed, last.Type)
	assert.Equal(t, "/b.txt", last.Path)
}

func TestRenameFolderCascades(t *testing.T) {
	svc, store, publisher := newTestService(t)
	ctx := context.Background()
	root := mustRoot(t, svc, "user-1")
	docs := mustCreate(t, svc, root.ItemID, "docs", filesystem.TypeFolder, "user-1")
	sub := mustCreate(t, svc, docs.ItemID, "sub", filesystem.TypeFolder, "user-1")
	mustCreate(t, svc, docs.ItemID, "a.txt", filesystem.TypeFile, "user-1")
	mustCreate(t, svc, sub.ItemID, "b.txt", filesystem.TypeFile, "user-1")
	outside := mustCreate(t, svc, root.ItemID, "other.txt", filesystem.TypeFile, "user-1")

	renamed, err := svc.RenameNode(ctx, root.ItemID, "docs", "documents")
	require.NoError(t, err)
	assert.Equal(t, "/documents", renamed.Path)
	assert.Equal(t, docs.ItemID, renamed.ItemID)

	// Every descendant path carries the new prefix and nothing stale
	// remains under the old one.
	children, err := svc.ListChildren(ctx, docs.ItemID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, child := range children {
		assert.Contains(t, child.Path, "/documents/")
	}

	grandchildren, err := svc.ListChildren(ctx, sub.ItemID)
	require.NoError(t, err)
	require.Len(t, grandchildren, 1)
	assert.Equal(t, "/documents/sub/b.txt", grandchildren[0].Path)

	// Nodes outside the subtree are untouched.
	unchanged, err := store.FindByID(ctx, outside.ItemID)
	require.NoError(t, err)
	assert.Equal(t, outside, unchanged)

	last := publisher.last()
	assert.Equal(t, events.EventRenamed, last.Type)
	assert.Equal(t, "/documents", last.Path)
}

// interceptRepo runs a hook after the first successful FindByID of one
// item, then steps aside. It opens the window between a pre-lock tenant
// lookup and the locked re-read.
type interceptRepo struct {
	ports.NodeRepository
	target string
	hook   func()
	fired  bool
}

func (r *interceptRepo) FindByID(ctx context.Context, itemID string) (*filesystem.Node, error) {
	node, err := r.NodeRepository.FindByID(ctx, itemID)
	if err == nil && itemID == r.target && !r.fired {
		r.fired = true
		r.hook()
	}
	return node, err
}

func TestRenameUsesLiveParentPath(t *testing.T) {
	store := memory.NewNodeStore()
	repo := &interceptRepo{NodeRepository: store}
	svc := NewTreeService(repo, &capturePublisher{}, zap.NewNop())
	ctx := context.Background()

	root, err := svc.InitializeRoot(ctx, "user-1")
	require.NoError(t, err)
	parent := mustCreate(t, svc, root.ItemID, "p", filesystem.TypeFolder, "user-1")
	child := mustCreate(t, svc, parent.ItemID, "c", filesystem.TypeFolder, "user-1")
	file := mustCreate(t, svc, child.ItemID, "f.txt", filesystem.TypeFile, "user-1")

	// A rename of the parent completes while the child rename sits
	// between its tenant lookup and the locked re-read.
	repo.target = parent.ItemID
	repo.hook = func() {
		_, err := svc.RenameNode(ctx, root.ItemID, "p", "p2")
		require.NoError(t, err)
	}

	renamed, err := svc.RenameNode(ctx, parent.ItemID, "c", "c2")
	require.NoError(t, err)

	// The child's new path derives from the parent's live path, not the
	// snapshot taken before the competing rename.
	parentNow, err := store.FindByID(ctx, parent.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "/p2", parentNow.Path)
	assert.Equal(t, parentNow.Path+"/c2", renamed.Path)

	fileNow, err := store.FindByID(ctx, file.ItemID)
	require.NoError(t, err)
	assert.Equal(t, renamed.Path+"/f.txt", fileNow.Path)
}

func TestRenameRejectsInvalidName(t *testing.T) {
	svc, _, _ := newTestService(t)
	root := mustRoot(t, svc, "user-1")
	mustCreate(t, svc, root.ItemID, "a.txt", filesystem.TypeFile, "user-1")

	_, err := svc.RenameNode(context.Background(), root.ItemID, "a.txt", "bad/name")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestDeleteNode(t *testing.T) {
	svc, store, publisher := newTestService(t)
	ctx := context.Background()
	root := mustRoot(t, svc, "user-1")
	docs := mustCreate(t, svc, root.ItemID, "docs", filesystem.TypeFolder, "user-1")
	file := mustCreate(t, svc, docs.ItemID, "a.txt", filesystem.TypeFile, "user-1")

	require.NoError(t, svc.DeleteNode(ctx, file.ItemID))

	children, err := svc.ListChildren(ctx, docs.ItemID)
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, 2, store.Len()) // root and docs remain

	// The DELETED event is addressed to the containing folder's path.
	last := publisher.last()
	assert.Equal(t, events.EventDeleted, last.Type)
	assert.Equal(t, "/docs", last.Path)
}

func TestDeleteNodeGuards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	root := mustRoot(t, svc, "user-1")
	docs := mustCreate(t, svc, root.ItemID, "docs", filesystem.TypeFolder, "user-1")
	mustCreate(t, svc, docs.ItemID, "a.txt", filesystem.TypeFile, "user-1")

	t.Run("non-empty folder", func(t *testing.T) {
		err := svc.DeleteNode(ctx, docs.ItemID)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalidOperation(err))
	})

	t.Run("tenant root", func(t *testing.T) {
		err := svc.DeleteNode(ctx, root.ItemID)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalidOperation(err))
	})

	t.Run("missing node", func(t *testing.T) {
		err := svc.DeleteNode(ctx, "no-such-item")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestDeleteSubtree(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	root := mustRoot(t, svc, "user-1")
	docs := mustCreate(t, svc, root.ItemID, "docs", filesystem.TypeFolder, "user-1")
	sub := mustCreate(t, svc, docs.ItemID, "sub", filesystem.TypeFolder, "user-1")
	mustCreate(t, svc, docs.ItemID, "a.txt", filesystem.TypeFile, "user-1")
	mustCreate(t, svc, sub.ItemID, "b.txt", filesystem.TypeFile, "user-1")

	result, err := svc.DeleteSubtree(ctx, docs.ItemID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalFound) // docs, sub, a.txt, b.txt
	assert.Equal(t, 4, result.DeletedCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, result.TotalFound, result.DeletedCount+result.FailedCount)

	children, err := svc.ListChildren(ctx, root.ItemID)
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, 1, store.Len()) // only the root remains
}

func TestDeleteSubtreeGuards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	root := mustRoot(t, svc, "user-1")
	file := mustCreate(t, svc, root.ItemID, "a.txt", filesystem.TypeFile, "user-1")

	t.Run("not a folder", func(t *testing.T) {
		_, err := svc.DeleteSubtree(ctx, file.ItemID, "user-1")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalidOperation(err))
	})

	t.Run("tenant root", func(t *testing.T) {
		_, err := svc.DeleteSubtree(ctx, root.ItemID, "user-1")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalidOperation(err))
	})
}

func TestDeleteByPathPrefix(t *testing.T) {
	svc, _, publisher := newTestService(t)
	ctx := context.Background()
	root := mustRoot(t, svc, "user-1")
	docs := mustCreate(t, svc, root.ItemID, "docs", filesystem.TypeFolder, "user-1")
	mustCreate(t, svc, docs.ItemID, "a.txt", filesystem.TypeFile, "user-1")
	mustCreate(t, svc, root.ItemID, "docs-archive.txt", filesystem.TypeFile, "user-1")

	result, err := svc.DeleteByPathPrefix(ctx, "user-1", "/docs")
	require.NoError(t, err)

	// Raw prefix match: "/docs", "/docs/a.txt" and "/docs-archive.txt"
	// all begin with "/docs".
	assert.Equal(t, 3, result.TotalFound)
	assert.Equal(t, 3, result.DeletedCount)

	// Prefix deletes publish DELETED at the raw prefix itself.
	last := publisher.last()
	assert.Equal(t, events.EventDeleted, last.Type)
	assert.Equal(t, "/docs", last.Path)

	_, err = svc.DeleteByPathPrefix(ctx, "user-1", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeValidation))
}

func TestTenantIsolation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rootA := mustRoot(t, svc, "user-a")
	mustRoot(t, svc, "user-b")
	docs := mustCreate(t, svc, rootA.ItemID, "docs", filesystem.TypeFolder, "user-a")

	// Another tenant cannot see or mutate user-a's nodes; the node is
	// reported missing, not forbidden.
	_, err := svc.ListChildrenForTenant(ctx, "user-b", docs.ItemID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = svc.DeleteNodeForTenant(ctx, "user-b", docs.ItemID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = svc.RenameNodeForTenant(ctx, "user-b", rootA.ItemID, "docs", "stolen")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = svc.DeleteSubtree(ctx, docs.ItemID, "user-b")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	children, err := svc.ListChildrenForTenant(ctx, "user-a", docs.ItemID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

// Full lifecycle: initialize, create, rename with cascade, delete the
// subtree, observe the event stream.
func TestTreeLifecycle(t *testing.T) {
	svc, _, publisher := newTestService(t)
	ctx := context.Background()

	root := mustRoot(t, svc, "user-1")
	docs := mustCreate(t, svc, root.ItemID, "docs", filesystem.TypeFolder, "user-1")
	mustCreate(t, svc, docs.ItemID, "a.txt", filesystem.TypeFile, "user-1")

	renamed, err := svc.RenameNode(ctx, root.ItemID, "docs", "documents")
	require.NoError(t, err)
	assert.Equal(t, "/documents", renamed.Path)

	children, err := svc.ListChildren(ctx, docs.ItemID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "/documents/a.txt", children[0].Path)

	result, err := svc.DeleteSubtree(ctx, docs.ItemID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, &DeleteResult{DeletedCount: 2, FailedCount: 0, TotalFound: 2}, result)

	remaining, err := svc.ListChildren(ctx, root.ItemID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	var types []events.EventType
	for _, e := range publisher.all() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventAdded,   // docs
		events.EventAdded,   // a.txt
		events.EventRenamed, // docs -> documents
		events.EventDeleted, // subtree
	}, types)
}
