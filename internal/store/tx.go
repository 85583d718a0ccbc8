package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/outline/internal/apperr"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/tree"
)

// activeChildren is the one filter every position computation goes through.
const activeChildren = `note_pid = ? AND is_deleted = 0`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunAtomic runs fn inside one transaction; see tree.Store.
func (db *DB) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx tree.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(ctx, &sqlTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

type sqlTx struct {
	q queryer
}

func (t *sqlTx) Edge(ctx context.Context, id string) (models.TreeEdge, error) {
	return getEdge(ctx, t.q, id)
}

func (t *sqlTx) MaxPosition(ctx context.Context, parentID string) (int, bool, error) {
	var max sql.NullInt64
	err := t.q.QueryRowContext(ctx,
		`SELECT MAX(note_pos) FROM notes_tree WHERE `+activeChildren, parentID).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("store: max position: %w", err)
	}
	return int(max.Int64), max.Valid, nil
}

func (t *sqlTx) ShiftPositions(ctx context.Context, r tree.Range, delta int) (int64, error) {
	cmp := ">"
	if r.Inclusive {
		cmp = ">="
	}
	res, err := t.q.ExecContext(ctx,
		`UPDATE notes_tree SET note_pos = note_pos + ? WHERE `+activeChildren+` AND note_pos `+cmp+` ?`,
		delta, r.ParentID, r.From)
	if err != nil {
		return 0, fmt.Errorf("store: shift positions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: shift positions: %w", err)
	}
	return n, nil
}

func (t *sqlTx) SetPlacement(ctx context.Context, id, parentID string, position int, modified *time.Time) error {
	var (
		res sql.Result
		err error
	)
	if modified != nil {
		res, err = t.q.ExecContext(ctx,
			`UPDATE notes_tree SET note_pid = ?, note_pos = ?, date_modified = ? WHERE note_tree_id = ?`,
			parentID, position, modified.UTC(), id)
	} else {
		res, err = t.q.ExecContext(ctx,
			`UPDATE notes_tree SET note_pid = ?, note_pos = ? WHERE note_tree_id = ?`,
			parentID, position, id)
	}
	if err != nil {
		return fmt.Errorf("store: set placement: %w", err)
	}
	return mustAffect(res, id)
}

func (t *sqlTx) SetExpanded(ctx context.Context, id string, expanded bool) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE notes_tree SET is_expanded = ? WHERE note_tree_id = ?`, boolToInt(expanded), id)
	if err != nil {
		return fmt.Errorf("store: set expanded: %w", err)
	}
	return mustAffect(res, id)
}

func (t *sqlTx) NotifyEdgeChanged(ctx context.Context, edgeID string, at time.Time) error {
	return t.addSync(ctx, models.SyncEntityTree, edgeID, at)
}

func (t *sqlTx) NotifyReorderUnderParent(ctx context.Context, parentID string, at time.Time) error {
	return t.addSync(ctx, models.SyncEntityReordering, parentID, at)
}

func (t *sqlTx) addSync(ctx context.Context, entity, id string, at time.Time) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO sync (entity_name, entity_id, sync_date) VALUES (?, ?, ?)`, entity, id, at.UTC())
	if err != nil {
		return fmt.Errorf("store: add sync: %w", err)
	}
	return nil
}

func (t *sqlTx) RecordAudit(ctx context.Context, e models.AuditEntry) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO audit_log (date_modified, category, browser_id, note_tree_id, change_from, change_to)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.DateModified.UTC(), string(e.Category), e.OriginID, e.EdgeID, e.OldParentID, e.NewParentID)
	if err != nil {
		return fmt.Errorf("store: add audit: %w", err)
	}
	return nil
}

func getEdge(ctx context.Context, q queryer, id string) (models.TreeEdge, error) {
	var e models.TreeEdge
	err := q.QueryRowContext(ctx, `
		SELECT note_tree_id, note_id, note_pid, note_pos, is_expanded, is_deleted, date_modified
		FROM notes_tree WHERE note_tree_id = ?
	`, id).Scan(&e.ID, &e.NoteID, &e.ParentID, &e.Position, &e.IsExpanded, &e.IsDeleted, &e.DateModified)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TreeEdge{}, apperr.NotFound("note", id)
	}
	if err != nil {
		return models.TreeEdge{}, fmt.Errorf("store: get edge: %w", err)
	}
	return e, nil
}

func mustAffect(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("note", id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
