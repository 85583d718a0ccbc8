// Package tree implements the reorder engine for the outline: moving a note
// placement under a new parent or next to a sibling, and toggling its
// expanded flag. Every operation runs as one atomic unit against a Store and
// records sync and audit metadata inside that same unit.
package tree

import (
	"context"
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/outline/internal/apperr"
	"github.com/starford/outline/internal/metrics"
	"github.com/starford/outline/internal/models"
)

// Operation names, used for logs and metrics.
const (
	OpMoveTo      = "move_to"
	OpMoveBefore  = "move_before"
	OpMoveAfter   = "move_after"
	OpSetExpanded = "set_expanded"
)

// Engine applies tree mutations.
type Engine struct {
	store      Store
	now        func() time.Time
	logger     *slog.Logger
	publishers []Publisher
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for modification and audit stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPublisher adds a receiver for committed changes.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publishers = append(e.publishers, p) }
}

// New creates an Engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MoveTo places edgeID as the last active child of parentID and stamps its
// date_modified. The parent is not checked for existence; an unknown parent
// simply has no children, so the edge lands at position 0.
func (e *Engine) MoveTo(ctx context.Context, edgeID, parentID string) error {
	if err := validateIDs("parent_id", edgeID, parentID); err != nil {
		return err
	}
	start := time.Now()

	var change Change
	err := e.store.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		max, ok, err := tx.MaxPosition(ctx, parentID)
		if err != nil {
			return err
		}
		pos := appendPosition(max, ok)
		now := e.now()

		if err := tx.SetPlacement(ctx, edgeID, parentID, pos, &now); err != nil {
			return err
		}
		if err := tx.NotifyEdgeChanged(ctx, edgeID, now); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, models.AuditEntry{
			DateModified: now,
			Category:     models.AuditChangeParent,
			OriginID:     OriginFrom(ctx),
			EdgeID:       edgeID,
			NewParentID:  parentID,
		}); err != nil {
			return err
		}
		change = Change{Kind: ChangeEdgeMoved, EdgeID: edgeID, ParentID: parentID, Position: pos}
		return nil
	})
	e.observe(OpMoveTo, edgeID, start, err)
	if err != nil {
		return err
	}
	e.publish(ctx, change)
	return nil
}

// MoveBefore places edgeID directly before anchorID, shifting the anchor and
// every later active sibling up by one.
func (e *Engine) MoveBefore(ctx context.Context, edgeID, anchorID string) error {
	return e.moveBeside(ctx, OpMoveBefore, edgeID, anchorID, beforeSlot)
}

// MoveAfter places edgeID directly after anchorID, shifting every active
// sibling positioned after the anchor up by one.
func (e *Engine) MoveAfter(ctx context.Context, edgeID, anchorID string) error {
	return e.moveBeside(ctx, OpMoveAfter, edgeID, anchorID, afterSlot)
}

// moveBeside is a pure reorder: date_modified of the moved edge is left as
// is so that concurrent content edits win during conflict reconciliation.
func (e *Engine) moveBeside(ctx context.Context, op, edgeID, anchorID string, slot func(models.TreeEdge) (Range, int)) error {
	if err := validateIDs("anchor_id", edgeID, anchorID); err != nil {
		return err
	}
	start := time.Now()

	var (
		change  Change
		shifted int64
	)
	err := e.store.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		anchor, err := tx.Edge(ctx, anchorID)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.NotFound("anchor note", anchorID)
		}
		if err != nil {
			return err
		}
		r, pos := slot(anchor)

		n, err := tx.ShiftPositions(ctx, r, 1)
		if err != nil {
			return err
		}
		if err := tx.SetPlacement(ctx, edgeID, anchor.ParentID, pos, nil); err != nil {
			return err
		}

		now := e.now()
		if err := tx.NotifyEdgeChanged(ctx, edgeID, now); err != nil {
			return err
		}
		if err := tx.NotifyReorderUnderParent(ctx, anchor.ParentID, now); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, models.AuditEntry{
			DateModified: now,
			Category:     models.AuditChangePosition,
			OriginID:     OriginFrom(ctx),
			EdgeID:       edgeID,
			NewParentID:  anchor.ParentID,
		}); err != nil {
			return err
		}

		shifted = n
		change = Change{Kind: ChangeEdgeMoved, EdgeID: edgeID, ParentID: anchor.ParentID, Position: pos}
		return nil
	})
	e.observe(op, edgeID, start, err)
	if err != nil {
		return err
	}
	metrics.SiblingsShiftedTotal.Add(float64(shifted))
	e.publish(ctx, change)
	e.publish(ctx, Change{Kind: ChangeParentReordered, ParentID: change.ParentID})
	return nil
}

// SetExpanded sets the display-only expanded flag. It is local state: no
// sync record, audit entry or change event is produced.
func (e *Engine) SetExpanded(ctx context.Context, edgeID string, expanded bool) error {
	if err := validation.Validate(edgeID, validation.Required); err != nil {
		return errors.Join(apperr.ErrInvalidInput, validation.Errors{"edge_id": err})
	}
	start := time.Now()
	err := e.store.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SetExpanded(ctx, edgeID, expanded)
	})
	e.observe(OpSetExpanded, edgeID, start, err)
	return err
}

// Edge returns a single committed edge.
func (e *Engine) Edge(ctx context.Context, id string) (models.TreeEdge, error) {
	return e.store.Edge(ctx, id)
}

// Children returns the active children of parentID in display order.
func (e *Engine) Children(ctx context.Context, parentID string) ([]models.TreeEdge, error) {
	return e.store.Children(ctx, parentID)
}

// SyncSince returns sync records with an id greater than afterID.
func (e *Engine) SyncSince(ctx context.Context, afterID int64, limit int) ([]models.SyncRecord, error) {
	return e.store.SyncSince(ctx, afterID, limit)
}

// AuditLog returns the most recent audit entries, newest first.
func (e *Engine) AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return e.store.AuditLog(ctx, limit)
}

func validateIDs(refName, edgeID, refID string) error {
	err := validation.Errors{
		"edge_id": validation.Validate(edgeID, validation.Required),
		refName:   validation.Validate(refID, validation.Required),
	}.Filter()
	if err != nil {
		return errors.Join(apperr.ErrInvalidInput, err)
	}
	return nil
}

func (e *Engine) observe(op, edgeID string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.TreeOperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	metrics.TreeOperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()

	if err != nil {
		e.logger.Warn("tree: operation failed",
			slog.String("op", op),
			slog.String("edge_id", edgeID),
			slog.String("error", err.Error()))
		return
	}
	e.logger.Debug("tree: operation committed",
		slog.String("op", op),
		slog.String("edge_id", edgeID),
		slog.Duration("elapsed", elapsed))
}

func (e *Engine) publish(ctx context.Context, c Change) {
	for _, p := range e.publishers {
		p.PublishChange(ctx, c)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
