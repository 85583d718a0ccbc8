// Package models defines the domain types for the outline tree.
package models

import "time"

// TreeEdge is one note's placement in the outline: its parent and its
// position among that parent's children.
type TreeEdge struct {
	ID           string    `json:"note_tree_id" yaml:"id" toml:"id"`
	NoteID       string    `json:"note_id" yaml:"note_id" toml:"note_id"`
	ParentID     string    `json:"parent_id" yaml:"parent_id" toml:"parent_id"`
	Position     int       `json:"position" yaml:"position" toml:"position"`
	IsExpanded   bool      `json:"is_expanded" yaml:"expanded" toml:"expanded"`
	IsDeleted    bool      `json:"is_deleted" yaml:"deleted" toml:"deleted"`
	DateModified time.Time `json:"date_modified" yaml:"-" toml:"-"`
}

// Sync entity names recorded for the reconciliation process.
const (
	SyncEntityTree       = "notes_tree"
	SyncEntityReordering = "notes_reordering"
)

// SyncRecord marks an entity as changed so replicas pick it up.
type SyncRecord struct {
	ID         int64     `json:"id"`
	EntityName string    `json:"entity_name"`
	EntityID   string    `json:"entity_id"`
	SyncDate   time.Time `json:"sync_date"`
}

// AuditCategory classifies a structural change in the audit log.
type AuditCategory string

// Audit categories emitted by tree moves.
const (
	AuditChangeParent   AuditCategory = "PARENT"
	AuditChangePosition AuditCategory = "POSIT"
)

// AuditEntry records who changed which structural relationship.
// OldParentID is empty when the previous parent was not captured.
type AuditEntry struct {
	ID           int64         `json:"id"`
	DateModified time.Time     `json:"date_modified"`
	Category     AuditCategory `json:"category"`
	OriginID     string        `json:"browser_id,omitempty"`
	EdgeID       string        `json:"note_tree_id,omitempty"`
	OldParentID  string        `json:"change_from,omitempty"`
	NewParentID  string        `json:"change_to,omitempty"`
}
