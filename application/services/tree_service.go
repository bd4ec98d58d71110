// Package services contains the tree consistency engine: the single
// writer of the per-tenant namespace. It enforces the path and depth
// invariants and orchestrates the multi-step write sequences that the
// store cannot make transactional.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/application/ports"
	"github.com/danilohgds/f-system/domain/events"
	"github.com/danilohgds/f-system/domain/filesystem"
	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
	"github.com/danilohgds/f-system/pkg/observability"
)

// CreateNodeInput carries the parameters for creating a node under an
// existing parent.
type CreateNodeInput struct {
	ParentID string
	Name     string
	Type     filesystem.NodeType
	UserID   string
	ItemID   string // optional; generated when empty
}

// DeleteResult aggregates the outcome of a batched cascade. Partial
// failures are reported here as counts, never raised as an error.
type DeleteResult struct {
	DeletedCount int `json:"deletedCount"`
	FailedCount  int `json:"failedCount"`
	TotalFound   int `json:"totalFound"`
}

// TreeService implements the tree consistency engine on top of the
// node repository. Structural mutations of one tenant are serialized
// through a per-tenant mutex; two mutations of different tenants run
// concurrently.
type TreeService struct {
	repo      ports.NodeRepository
	publisher ports.EventPublisher
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTreeService creates a new tree service
func NewTreeService(repo ports.NodeRepository, publisher ports.EventPublisher, logger *zap.Logger) *TreeService {
	return &TreeService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// tenantLock returns the mutex serializing structural mutations of one
// tenant's tree.
func (s *TreeService) tenantLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// InitializeRoot creates the tenant's root node. Idempotent: calling it
// again returns the existing root unchanged.
func (s *TreeService) InitializeRoot(ctx context.Context, userID string) (*filesystem.Node, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userId cannot be empty")
	}

	lock := s.tenantLock(userID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.FindByKey(ctx, userID, filesystem.RootParentID, filesystem.RootName)
	if err == nil {
		return existing, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	root := filesystem.NewRoot(userID, uuid.NewString())
	if err := s.repo.SaveIfAbsent(ctx, root); err != nil {
		if pkgerrors.IsConflict(err) {
			// Another process won the race; the stored root is canonical.
			return s.repo.FindByKey(ctx, userID, filesystem.RootParentID, filesystem.RootName)
		}
		observability.RecordTreeOperation("initialize_root", err)
		return nil, err
	}

	s.logger.Info("Tenant root initialized",
		zap.String("userID", userID),
		zap.String("itemID", root.ItemID),
	)
	observability.RecordTreeOperation("initialize_root", nil)

	return root, nil
}

// CreateNode creates a file or folder under an existing parent. The
// write is a single item and therefore atomic; all validation happens
// before it, so a failed create persists nothing.
func (s *TreeService) CreateNode(ctx context.Context, in CreateNodeInput) (*filesystem.Node, error) {
	if in.UserID == "" {
		return nil, pkgerrors.NewValidationError("userId cannot be empty")
	}

	lock := s.tenantLock(in.UserID)
	lock.Lock()
	defer lock.Unlock()

	parent, err := s.findTenantNode(ctx, in.ParentID, in.UserID)
	if err != nil {
		return nil, err
	}

	itemID := in.ItemID
	if itemID == "" {
		itemID = uuid.NewString()
	}

	node, err := filesystem.NewNode(parent, in.Name, in.Type, itemID, in.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, node); err != nil {
		observability.RecordTreeOperation("create", err)
		return nil, err
	}

	s.logger.Info("Node created",
		zap.String("userID", node.UserID),
		zap.String("itemID", node.ItemID),
		zap.String("path", node.Path),
		zap.String("type", string(node.Type)),
		zap.Int("depth", node.Depth),
	)
	observability.RecordTreeOperation("create", nil)

	s.publish(events.Event{
		Type:   events.EventAdded,
		Path:   parent.Path,
		Data:   node,
		UserID: node.UserID,
	})

	return node, nil
}

// ListChildren returns every node directly under the given folder.
func (s *TreeService) ListChildren(ctx context.Context, parentID string) ([]filesystem.Node, error) {
	parent, err := s.repo.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListChildren(ctx, parent.UserID, parentID)
}

// RenameNode renames a node under parentID from name to newName. The
// storage key embeds the name, so the node itself is deleted and
// reinserted; ItemID and CreatedAt survive. For folders, every
// descendant's Path is rewritten first, then the folder record is
// swapped; that order avoids a window where descendants reference a
// path with no live ancestor.
//
// The descendant rewrite is multi-write with no rollback: a store error
// mid-cascade leaves some descendants renamed and others not. Failures
// are logged and counted, never silently repaired.
func (s *TreeService) RenameNode(ctx context.Context, parentID, name, newName string) (*filesystem.Node, error) {
	if err := filesystem.ValidateName(newName); err != nil {
		return nil, err
	}

	owner, err := s.repo.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}

	lock := s.tenantLock(owner.UserID)
	lock.Lock()
	defer lock.Unlock()

	// Authoritative re-read under the tenant lock: a concurrent rename
	// of an ancestor may have moved the parent since the lookup above,
	// and newPath must derive from the live parent path.
	parent, err := s.repo.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}

	node, err := s.repo.FindByKey(ctx, parent.UserID, parentID, name)
	if err != nil {
		return nil, err
	}

	oldPath := node.Path
	newPath := filesystem.ChildPath(parent.Path, newName)

	if node.IsFolder() {
		descendants, err := s.repo.FindByPathPrefix(ctx, node.UserID, oldPath+"/")
		if err != nil {
			return nil, err
		}

		rewritten, failed := 0, 0
		for i := range descendants {
			d := &descendants[i]
			updated := filesystem.RewritePrefix(d.Path, oldPath, newPath)
			if err := s.repo.UpdatePath(ctx, d, updated); err != nil {
				failed++
				s.logger.Warn("Failed to rewrite descendant path",
					zap.String("userID", d.UserID),
					zap.String("itemID", d.ItemID),
					zap.String("path", d.Path),
					zap.Error(err),
				)
				continue
			}
			rewritten++
		}

		if failed > 0 {
			s.logger.Warn("Rename cascade partially applied",
				zap.String("userID", node.UserID),
				zap.String("oldPath", oldPath),
				zap.String("newPath", newPath),
				zap.Int("rewritten", rewritten),
				zap.Int("failed", failed),
			)
		}
	}

	if err := s.repo.Delete(ctx, node.UserID, node.Key()); err != nil {
		observability.RecordTreeOperation("rename", err)
		return nil, err
	}

	renamed := *node
	renamed.Name = newName
	renamed.Path = newPath
	renamed.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, &renamed); err != nil {
		// The old record is already gone; surface the failure rather
		// than masking the half-applied rename.
		observability.RecordTreeOperation("rename", err)
		return nil, err
	}

	s.logger.Info("Node renamed",
		zap.String("userID", renamed.UserID),
		zap.String("itemID", renamed.ItemID),
		zap.String("oldPath", oldPath),
		zap.String("newPath", newPath),
	)
	observability.RecordTreeOperation("rename", nil)

	s.publish(events.Event{
		Type: events.EventRenamed,
		Path: newPath,
		Data: map[string]interface{}{
			"node":    &renamed,
			"oldPath": oldPath,
		},
		UserID: renamed.UserID,
	})

	return &renamed, nil
}

// DeleteNode deletes a single node by its id. Folders must be empty;
// populated folders go through DeleteSubtree, so no delete can orphan
// descendants by path.
func (s *TreeService) DeleteNode(ctx context.Context, itemID string) error {
	node, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return err
	}

	lock := s.tenantLock(node.UserID)
	lock.Lock()
	defer lock.Unlock()

	// Authoritative re-read under the tenant lock.
	node, err = s.repo.FindByKey(ctx, node.UserID, node.ParentID, node.Name)
	if err != nil {
		return err
	}

	if node.IsRoot() {
		return pkgerrors.NewInvalidOperationError("cannot delete the tenant root")
	}

	if node.IsFolder() {
		children, err := s.repo.ListChildren(ctx, node.UserID, node.ItemID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return pkgerrors.NewInvalidOperationError("folder is not empty; delete its subtree instead")
		}
	}

	if err := s.repo.Delete(ctx, node.UserID, node.Key()); err != nil {
		observability.RecordTreeOperation("delete", err)
		return err
	}

	s.logger.Info("Node deleted",
		zap.String("userID", node.UserID),
		zap.String("itemID", node.ItemID),
		zap.String("path", node.Path),
	)
	observability.RecordTreeOperation("delete", nil)

	s.publish(events.Event{
		Type:   events.EventDeleted,
		Path:   containingPath(node),
		Data:   node,
		UserID: node.UserID,
	})

	return nil
}

// DeleteSubtree deletes a folder and every descendant, best effort.
// Descendants are removed in bounded batches; failed batches are
// counted, not retried, and do not abort the remaining batches. The
// folder record itself is deleted last and counted either way.
// TotalFound is the descendant count plus one for the folder, so
// DeletedCount + FailedCount == TotalFound always holds.
func (s *TreeService) DeleteSubtree(ctx context.Context, folderID, userID string) (*DeleteResult, error) {
	lock := s.tenantLock(userID)
	lock.Lock()
	defer lock.Unlock()

	folder, err := s.findTenantNode(ctx, folderID, userID)
	if err != nil {
		return nil, err
	}
	if !folder.IsFolder() {
		return nil, pkgerrors.NewInvalidOperationError("item is not a folder")
	}
	if folder.IsRoot() {
		return nil, pkgerrors.NewInvalidOperationError("cannot delete the tenant root")
	}

	descendants, err := s.repo.FindByPathPrefix(ctx, userID, folder.Path+"/")
	if err != nil {
		return nil, err
	}

	keys := make([]filesystem.Key, 0, len(descendants))
	for i := range descendants {
		keys = append(keys, descendants[i].Key())
	}

	deleted, failed := s.repo.DeleteBatch(ctx, userID, keys)

	if err := s.repo.Delete(ctx, userID, folder.Key()); err != nil {
		failed++
		s.logger.Warn("Failed to delete folder record",
			zap.String("userID", userID),
			zap.String("itemID", folder.ItemID),
			zap.Error(err),
		)
	} else {
		deleted++
	}

	result := &DeleteResult{
		DeletedCount: deleted,
		FailedCount:  failed,
		TotalFound:   len(descendants) + 1,
	}

	s.logger.Info("Subtree deleted",
		zap.String("userID", userID),
		zap.String("path", folder.Path),
		zap.Int("deleted", result.DeletedCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("totalFound", result.TotalFound),
	)
	observability.RecordTreeOperation("delete_subtree", nil)

	s.publish(events.Event{
		Type: events.EventDeleted,
		Path: containingPath(folder),
		Data: map[string]interface{}{
			"node":   folder,
			"result": result,
		},
		UserID: userID,
	})

	return result, nil
}

// DeleteByPathPrefix bulk-deletes every node of the tenant whose path
// begins with prefix. The prefix need not correspond to a node; it is a
// raw range over the path index. Same best-effort batch semantics as
// DeleteSubtree.
func (s *TreeService) DeleteByPathPrefix(ctx context.Context, userID, prefix string) (*DeleteResult, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userId cannot be empty")
	}
	if prefix == "" {
		return nil, pkgerrors.NewValidationError("path prefix cannot be empty")
	}

	lock := s.tenantLock(userID)
	lock.Lock()
	defer lock.Unlock()

	found, err := s.repo.FindByPathPrefix(ctx, userID, prefix)
	if err != nil {
		return nil, err
	}

	keys := make([]filesystem.Key, 0, len(found))
	for i := range found {
		keys = append(keys, found[i].Key())
	}

	deleted, failed := s.repo.DeleteBatch(ctx, userID, keys)

	result := &DeleteResult{
		DeletedCount: deleted,
		FailedCount:  failed,
		TotalFound:   len(found),
	}

	s.logger.Info("Path prefix deleted",
		zap.String("userID", userID),
		zap.String("prefix", prefix),
		zap.Int("deleted", result.DeletedCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("totalFound", result.TotalFound),
	)
	observability.RecordTreeOperation("delete_by_prefix", nil)

	if result.TotalFound > 0 {
		s.publish(events.Event{
			Type:   events.EventDeleted,
			Path:   prefix,
			Data:   result,
			UserID: userID,
		})
	}

	return result, nil
}

// ListChildrenForTenant is ListChildren with a tenant ownership check
// on the parent, for callers acting on behalf of an authenticated
// tenant.
func (s *TreeService) ListChildrenForTenant(ctx context.Context, userID, parentID string) ([]filesystem.Node, error) {
	parent, err := s.findTenantNode(ctx, parentID, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListChildren(ctx, parent.UserID, parentID)
}

// RenameNodeForTenant is RenameNode with a tenant ownership check on
// the parent.
func (s *TreeService) RenameNodeForTenant(ctx context.Context, userID, parentID, name, newName string) (*filesystem.Node, error) {
	if _, err := s.findTenantNode(ctx, parentID, userID); err != nil {
		return nil, err
	}
	return s.RenameNode(ctx, parentID, name, newName)
}

// DeleteNodeForTenant is DeleteNode with a tenant ownership check on
// the item.
func (s *TreeService) DeleteNodeForTenant(ctx context.Context, userID, itemID string) error {
	if _, err := s.findTenantNode(ctx, itemID, userID); err != nil {
		return err
	}
	return s.DeleteNode(ctx, itemID)
}

// findTenantNode resolves an item id and verifies it belongs to the
// tenant. Nodes of other tenants are reported as missing rather than
// leaked.
func (s *TreeService) findTenantNode(ctx context.Context, itemID, userID string) (*filesystem.Node, error) {
	node, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if node.UserID != userID {
		return nil, pkgerrors.NewNotFoundError("item")
	}
	return node, nil
}

// publish hands the event to the fan-out service. Fan-out failures
// never fail the triggering mutation.
func (s *TreeService) publish(event events.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event)
}

// containingPath returns the path of the folder a node lives in.
func containingPath(node *filesystem.Node) string {
	return strings.TrimSuffix(node.Path, "/"+node.Name)
}
