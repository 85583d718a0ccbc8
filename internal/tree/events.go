package tree

import "context"

// ChangeKind names a committed tree change.
type ChangeKind string

const (
	ChangeEdgeMoved       ChangeKind = "edge.moved"
	ChangeParentReordered ChangeKind = "parent.reordered"
)

// Change describes a committed move for live subscribers.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	EdgeID   string     `json:"note_tree_id,omitempty"`
	ParentID string     `json:"parent_id"`
	Position int        `json:"position"`
}

// Publisher receives changes after their transaction has committed.
// Implementations must not block the caller for long.
type Publisher interface {
	PublishChange(ctx context.Context, c Change)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, c Change)

// PublishChange calls f.
func (f PublisherFunc) PublishChange(ctx context.Context, c Change) { f(ctx, c) }
