// Package ports declares the interfaces the application layer depends
// on; infrastructure provides the implementations.
package ports

import (
	"context"

	"github.com/danilohgds/f-system/domain/events"
	"github.com/danilohgds/f-system/domain/filesystem"
)

// NodeReader is the query side of the store: point lookups and
// prefix-ordered scans, no mutation. List methods page through every
// result page before returning; a truncated read silently shrinks the
// set later acted upon by rename and delete cascades.
type NodeReader interface {
	// FindByID resolves a node through the ItemId index. If the index
	// ever holds more than one match the first is returned; callers
	// must not rely on this for uniqueness enforcement.
	FindByID(ctx context.Context, itemID string) (*filesystem.Node, error)

	// FindByKey loads a node by its (ParentID, Name) storage key within
	// the tenant partition.
	FindByKey(ctx context.Context, userID, parentID, name string) (*filesystem.Node, error)

	// ListChildren returns every node whose ParentID matches, order not
	// significant.
	ListChildren(ctx context.Context, userID, parentID string) ([]filesystem.Node, error)

	// FindByPathPrefix returns every node of the tenant whose Path
	// begins with prefix. A node whose path exactly equals the prefix is
	// included only when prefix itself names it; callers scanning a
	// subtree pass folder.Path + "/".
	FindByPathPrefix(ctx context.Context, userID, prefix string) ([]filesystem.Node, error)
}

// NodeWriter is the mutation side of the store. Every write is a single
// item; multi-item sequences are orchestrated above this interface and
// are not transactional.
type NodeWriter interface {
	// Save persists the node, overwriting any item under the same key.
	Save(ctx context.Context, node *filesystem.Node) error

	// SaveIfAbsent persists the node only when no item exists under its
	// key, returning a Conflict error otherwise.
	SaveIfAbsent(ctx context.Context, node *filesystem.Node) error

	// UpdatePath rewrites a node's Path and UpdatedAt in place. The
	// node's own storage key is untouched.
	UpdatePath(ctx context.Context, node *filesystem.Node, newPath string) error

	// Delete removes the item under the key. Deleting a missing item is
	// not an error.
	Delete(ctx context.Context, userID string, key filesystem.Key) error

	// DeleteBatch removes the keyed items in bounded batches, best
	// effort: failed batches are counted, not retried, and do not abort
	// the remaining batches.
	DeleteBatch(ctx context.Context, userID string, keys []filesystem.Key) (deleted, failed int)
}

// NodeRepository is the full store contract for nodes.
type NodeRepository interface {
	NodeReader
	NodeWriter
}

// EventPublisher delivers mutation events to live connections.
// Delivery is best-effort and at-most-once; a failed delivery never
// fails the triggering mutation.
type EventPublisher interface {
	Publish(event events.Event)
}
