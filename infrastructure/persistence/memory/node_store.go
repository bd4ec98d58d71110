// Package memory provides an in-memory node repository used by tests
// and local development. It mirrors the DynamoDB layout: items keyed by
// (tenant, parent, name), plus an ItemId lookup and path-prefix scans.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/danilohgds/f-system/application/ports"
	"github.com/danilohgds/f-system/domain/filesystem"
	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
)

// NodeStore is an in-memory implementation of ports.NodeRepository.
type NodeStore struct {
	mu    sync.RWMutex
	items map[string]*filesystem.Node // storageKey -> node
	byID  map[string]string           // itemID -> storageKey
}

// NewNodeStore creates an empty in-memory node store
func NewNodeStore() *NodeStore {
	return &NodeStore{
		items: make(map[string]*filesystem.Node),
		byID:  make(map[string]string),
	}
}

var _ ports.NodeRepository = (*NodeStore)(nil)

func storageKey(userID string, key filesystem.Key) string {
	return userID + "|" + key.ParentID + "|" + key.Name
}

// FindByID resolves a node by its ItemId.
func (s *NodeStore) FindByID(ctx context.Context, itemID string) (*filesystem.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.byID[itemID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("item")
	}
	node := *s.items[key]
	return &node, nil
}

// FindByKey loads a node by its (ParentID, Name) storage key.
func (s *NodeStore) FindByKey(ctx context.Context, userID, parentID, name string) (*filesystem.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.items[storageKey(userID, filesystem.Key{ParentID: parentID, Name: name})]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("item")
	}
	node := *stored
	return &node, nil
}

// ListChildren returns every node whose ParentID matches.
func (s *NodeStore) ListChildren(ctx context.Context, userID, parentID string) ([]filesystem.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []filesystem.Node
	for _, node := range s.items {
		if node.UserID == userID && node.ParentID == parentID {
			children = append(children, *node)
		}
	}
	return children, nil
}

// FindByPathPrefix returns every node of the tenant whose Path begins
// with prefix.
func (s *NodeStore) FindByPathPrefix(ctx context.Context, userID, prefix string) ([]filesystem.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []filesystem.Node
	for _, node := range s.items {
		if node.UserID == userID && strings.HasPrefix(node.Path, prefix) {
			matches = append(matches, *node)
		}
	}
	return matches, nil
}

// Save persists a node, overwriting any item under the same key.
func (s *NodeStore) Save(ctx context.Context, node *filesystem.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *node
	key := storageKey(node.UserID, node.Key())
	s.items[key] = &stored
	s.byID[node.ItemID] = key
	return nil
}

// SaveIfAbsent persists a node only when its key is unoccupied.
func (s *NodeStore) SaveIfAbsent(ctx context.Context, node *filesystem.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storageKey(node.UserID, node.Key())
	if _, exists := s.items[key]; exists {
		return pkgerrors.NewConflictError("item already exists")
	}
	stored := *node
	s.items[key] = &stored
	s.byID[node.ItemID] = key
	return nil
}

// UpdatePath rewrites a node's Path and UpdatedAt in place.
func (s *NodeStore) UpdatePath(ctx context.Context, node *filesystem.Node, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.items[storageKey(node.UserID, node.Key())]
	if !ok {
		return pkgerrors.NewNotFoundError("item")
	}
	stored.Path = newPath
	stored.UpdatedAt = time.Now().UTC()
	node.Path = stored.Path
	node.UpdatedAt = stored.UpdatedAt
	return nil
}

// Delete removes the item under the key; deleting a missing item is a
// no-op.
func (s *NodeStore) Delete(ctx context.Context, userID string, key filesystem.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(userID, key)
	return nil
}

// DeleteBatch removes the keyed items; in memory every delete succeeds.
func (s *NodeStore) DeleteBatch(ctx context.Context, userID string, keys []filesystem.Key) (deleted, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		s.remove(userID, key)
		deleted++
	}
	return deleted, 0
}

func (s *NodeStore) remove(userID string, key filesystem.Key) {
	k := storageKey(userID, key)
	if stored, ok := s.items[k]; ok {
		delete(s.byID, stored.ItemID)
		delete(s.items, k)
	}
}

// Len reports the number of stored nodes across all tenants.
func (s *NodeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
