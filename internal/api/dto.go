package api

import "github.com/starford/outline/internal/models"

// Ack is the empty acknowledgement returned by mutations.
type Ack struct{}

// TreeEdge is a placement in API responses (aliased from the domain layer).
type TreeEdge = models.TreeEdge

// ChildrenResponse lists the active children of a parent in display order.
type ChildrenResponse struct {
	ParentID string     `json:"parent_id" example:"root" validate:"required"`
	Children []TreeEdge `json:"children" validate:"required"`
}

// SyncResponse is a page of sync records for reconciliation consumers.
type SyncResponse struct {
	Records []models.SyncRecord `json:"records" validate:"required"`
}

// AuditResponse is a page of audit entries, newest first.
type AuditResponse struct {
	Entries []models.AuditEntry `json:"entries" validate:"required"`
}
