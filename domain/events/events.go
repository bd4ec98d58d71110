// Package events defines the mutation events emitted by the tree engine
// and fanned out to live connections.
package events

// EventType identifies the kind of structural mutation
type EventType string

const (
	EventAdded   EventType = "ADDED"
	EventDeleted EventType = "DELETED"
	EventRenamed EventType = "RENAMED"
)

// Event is the wire shape delivered to subscribed connections.
// Path is the location the event is published at: the containing folder
// for ADDED and DELETED, the node's new path for RENAMED. Bulk deletes
// driven by a raw path prefix publish DELETED at the prefix itself,
// which need not name a live node.
type Event struct {
	Type   EventType   `json:"type"`
	Path   string      `json:"path"`
	Data   interface{} `json:"data"`
	UserID string      `json:"userId"`
}
