package tree

import (
	"context"
	"time"

	"github.com/starford/outline/internal/models"
)

// Range selects the active (non-deleted) children of ParentID positioned
// after From, or at From and after when Inclusive is set.
type Range struct {
	ParentID  string
	From      int
	Inclusive bool
}

// Contains reports whether an edge falls inside the range.
func (r Range) Contains(e models.TreeEdge) bool {
	if e.IsDeleted || e.ParentID != r.ParentID {
		return false
	}
	if r.Inclusive {
		return e.Position >= r.From
	}
	return e.Position > r.From
}

// Edges is the edge table as seen from inside one atomic unit.
// Soft-deleted edges never take part in position arithmetic.
type Edges interface {
	// Edge returns the edge with the given id or apperr.ErrNotFound.
	Edge(ctx context.Context, id string) (models.TreeEdge, error)
	// MaxPosition returns the highest position among active children of
	// parentID; ok is false when there are none.
	MaxPosition(ctx context.Context, parentID string) (pos int, ok bool, err error)
	// ShiftPositions adds delta to the position of every edge in r and
	// returns how many edges moved.
	ShiftPositions(ctx context.Context, r Range, delta int) (int64, error)
	// SetPlacement moves edge id under parentID at position. A nil
	// modified leaves date_modified untouched.
	SetPlacement(ctx context.Context, id, parentID string, position int, modified *time.Time) error
	// SetExpanded sets the display flag of edge id.
	SetExpanded(ctx context.Context, id string, expanded bool) error
}

// SyncNotifier records changes for the external reconciliation process.
type SyncNotifier interface {
	NotifyEdgeChanged(ctx context.Context, edgeID string, at time.Time) error
	NotifyReorderUnderParent(ctx context.Context, parentID string, at time.Time) error
}

// AuditRecorder appends entries to the audit log.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, entry models.AuditEntry) error
}

// Tx bundles everything an operation may touch inside its atomic unit.
type Tx interface {
	Edges
	SyncNotifier
	AuditRecorder
}

// Reader serves committed state outside of any mutation.
type Reader interface {
	Edge(ctx context.Context, id string) (models.TreeEdge, error)
	Children(ctx context.Context, parentID string) ([]models.TreeEdge, error)
	SyncSince(ctx context.Context, afterID int64, limit int) ([]models.SyncRecord, error)
	AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// Store is a transactional edge store.
//
// RunAtomic runs fn in a single transaction that is isolated from other
// writers for its whole span. It commits when fn returns nil and rolls back
// every write otherwise, returning fn's error.
type Store interface {
	Reader
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
