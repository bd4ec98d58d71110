// Package filesystem holds the core entity of the tree: a Node, one
// folder or file inside a tenant's namespace. The tree is emulated on a
// key-value store, so the hierarchy lives in two denormalized attributes
// maintained at write time: Path (full route from the tenant root) and
// Depth (folder-nesting level, bounded at MaxDepth).
package filesystem

import (
	"strings"
	"time"

	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
)

const (
	// RootParentID is the sentinel ParentID of a tenant's root node.
	RootParentID = "ROOT"

	// RootName is the display name of every tenant root.
	RootName = "Root"

	// MaxDepth bounds folder nesting. The root is depth 0; files take
	// their parent folder's depth, so only folders consume levels.
	MaxDepth = 5
)

// NodeType is the variant of a node
type NodeType string

const (
	TypeFolder NodeType = "FOLDER"
	TypeFile   NodeType = "FILE"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	return t == TypeFolder || t == TypeFile
}

// Node is the flat record exchanged with the request layer and persisted
// by the store driver. (ParentID, Name) is the storage key within a tenant
// partition; ItemID is the immutable identity that survives renames.
type Node struct {
	ParentID  string    `json:"parentId"`
	Name      string    `json:"name"`
	Depth     int       `json:"depth"`
	ItemID    string    `json:"itemId"`
	Path      string    `json:"path"`
	Type      NodeType  `json:"type"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Key identifies a node within its tenant partition.
type Key struct {
	ParentID string
	Name     string
}

// NewNode builds a child node under parent with full business rule
// validation. No write happens here; the caller persists the result.
func NewNode(parent *Node, name string, nodeType NodeType, itemID, userID string) (*Node, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !nodeType.Valid() {
		return nil, pkgerrors.NewValidationError("type must be FOLDER or FILE")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userId cannot be empty")
	}
	if !parent.IsFolder() {
		return nil, pkgerrors.NewInvalidOperationError("parent is not a folder")
	}

	depth := ChildDepth(parent.Depth, nodeType)
	if depth > MaxDepth {
		return nil, pkgerrors.NewDepthExceededError(depth, MaxDepth)
	}

	now := time.Now().UTC()
	return &Node{
		ParentID:  parent.ItemID,
		Name:      name,
		Depth:     depth,
		ItemID:    itemID,
		Path:      ChildPath(parent.Path, name),
		Type:      nodeType,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewRoot builds a tenant's root node. The root is created once per
// tenant and never deleted by normal operations.
func NewRoot(userID, itemID string) *Node {
	now := time.Now().UTC()
	return &Node{
		ParentID:  RootParentID,
		Name:      RootName,
		Depth:     0,
		ItemID:    itemID,
		Path:      "",
		Type:      TypeFolder,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateName rejects names that cannot form a storage key or a path
// segment.
func ValidateName(name string) error {
	if name == "" {
		return pkgerrors.NewValidationError("name cannot be empty")
	}
	if strings.Contains(name, "/") {
		return pkgerrors.NewValidationError("name cannot contain '/'")
	}
	return nil
}

// IsFolder reports whether the node is a folder
func (n *Node) IsFolder() bool {
	return n.Type == TypeFolder
}

// IsRoot reports whether the node is a tenant root
func (n *Node) IsRoot() bool {
	return n.ParentID == RootParentID
}

// Key returns the node's storage key within its tenant partition
func (n *Node) Key() Key {
	return Key{ParentID: n.ParentID, Name: n.Name}
}

// ChildPath derives a child's path from its parent's path and its name.
// Invariant: node.Path == parent.Path + "/" + node.Name.
func ChildPath(parentPath, name string) string {
	return parentPath + "/" + name
}

// ChildDepth derives a child's depth. Folders go one level deeper than
// their parent; files stay on their parent folder's level.
func ChildDepth(parentDepth int, nodeType NodeType) int {
	if nodeType == TypeFolder {
		return parentDepth + 1
	}
	return parentDepth
}

// RewritePrefix replaces the leading oldPrefix of path with newPrefix,
// leaving the suffix untouched. Used when a folder rename cascades to
// descendant paths.
func RewritePrefix(path, oldPrefix, newPrefix string) string {
	if !strings.HasPrefix(path, oldPrefix) {
		return path
	}
	return newPrefix + path[len(oldPrefix):]
}
