package store

import (
	"context"
	"fmt"

	"github.com/starford/outline/internal/models"
)

const defaultLimit = 100

// Edge returns a committed edge or apperr.ErrNotFound.
func (db *DB) Edge(ctx context.Context, id string) (models.TreeEdge, error) {
	return getEdge(ctx, db.conn, id)
}

// Children returns the active children of parentID ordered by position.
func (db *DB) Children(ctx context.Context, parentID string) ([]models.TreeEdge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT note_tree_id, note_id, note_pid, note_pos, is_expanded, is_deleted, date_modified
		FROM notes_tree WHERE `+activeChildren+`
		ORDER BY note_pos, note_tree_id
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("store: children: %w", err)
	}
	defer rows.Close()

	out := []models.TreeEdge{}
	for rows.Next() {
		var e models.TreeEdge
		if err := rows.Scan(&e.ID, &e.NoteID, &e.ParentID, &e.Position, &e.IsExpanded, &e.IsDeleted, &e.DateModified); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SyncSince returns sync records with id > afterID in insertion order.
func (db *DB) SyncSince(ctx context.Context, afterID int64, limit int) ([]models.SyncRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, entity_name, entity_id, sync_date FROM sync
		WHERE id > ? ORDER BY id LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: sync since: %w", err)
	}
	defer rows.Close()

	out := []models.SyncRecord{}
	for rows.Next() {
		var r models.SyncRecord
		if err := rows.Scan(&r.ID, &r.EntityName, &r.EntityID, &r.SyncDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AuditLog returns the newest audit entries first.
func (db *DB) AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, date_modified, category, browser_id, note_tree_id, change_from, change_to
		FROM audit_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: audit log: %w", err)
	}
	defer rows.Close()

	out := []models.AuditEntry{}
	for rows.Next() {
		var (
			a   models.AuditEntry
			cat string
		)
		if err := rows.Scan(&a.ID, &a.DateModified, &cat, &a.OriginID, &a.EdgeID, &a.OldParentID, &a.NewParentID); err != nil {
			return nil, err
		}
		a.Category = models.AuditCategory(cat)
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertEdges adds all placement rows in one transaction, or none.
// Placement creation belongs to the note lifecycle, not to the reorder
// engine; seeding and tests use it.
func (db *DB) InsertEdges(ctx context.Context, edges []models.TreeEdge) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notes_tree (note_tree_id, note_id, note_pid, note_pos, is_expanded, is_deleted, date_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: insert edge: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		_, err := stmt.ExecContext(ctx,
			e.ID, e.NoteID, e.ParentID, e.Position, boolToInt(e.IsExpanded), boolToInt(e.IsDeleted), e.DateModified.UTC())
		if err != nil {
			return fmt.Errorf("store: insert edge %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// CountEdges returns the number of placement rows, deleted ones included.
func (db *DB) CountEdges(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes_tree`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count edges: %w", err)
	}
	return n, nil
}
