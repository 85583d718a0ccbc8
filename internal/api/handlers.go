package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/outline/internal/tree"
)

// OriginHeader carries the caller's browser/session id, stored on audit entries.
const OriginHeader = "X-Browser-Id"

// Handler holds API route handlers.
type Handler struct {
	engine *tree.Engine
}

// NewHandler creates a new Handler.
func NewHandler(engine *tree.Engine) *Handler {
	return &Handler{engine: engine}
}

func withOrigin(r *http.Request) *http.Request {
	return r.WithContext(tree.WithOrigin(r.Context(), r.Header.Get(OriginHeader)))
}

// MoveTo handles PUT /api/tree/{edgeID}/moveTo/{parentID}.
//
//	@Summary		Move a note to the end of another parent's children
//	@Tags			tree
//	@Produce		json
//	@Param			edgeID		path		string	true	"Tree edge id"
//	@Param			parentID	path		string	true	"New parent note id"
//	@Param			X-Browser-Id	header	string	false	"Origin recorded in the audit log"
//	@Success		200			{object}	Ack
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{edgeID}/moveTo/{parentID} [put]
func (h *Handler) MoveTo(w http.ResponseWriter, r *http.Request) {
	r = withOrigin(r)
	err := h.engine.MoveTo(r.Context(), chi.URLParam(r, "edgeID"), chi.URLParam(r, "parentID"))
	if err != nil {
		writeError(w, "move to", err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{})
}

// MoveBefore handles PUT /api/tree/{edgeID}/moveBefore/{anchorID}.
//
//	@Summary		Move a note directly before a sibling
//	@Tags			tree
//	@Produce		json
//	@Param			edgeID		path		string	true	"Tree edge id"
//	@Param			anchorID	path		string	true	"Edge to precede"
//	@Success		200			{object}	Ack
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{edgeID}/moveBefore/{anchorID} [put]
func (h *Handler) MoveBefore(w http.ResponseWriter, r *http.Request) {
	r = withOrigin(r)
	err := h.engine.MoveBefore(r.Context(), chi.URLParam(r, "edgeID"), chi.URLParam(r, "anchorID"))
	if err != nil {
		writeError(w, "move before", err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{})
}

// MoveAfter handles PUT /api/tree/{edgeID}/moveAfter/{anchorID}.
//
//	@Summary		Move a note directly after a sibling
//	@Tags			tree
//	@Produce		json
//	@Param			edgeID		path		string	true	"Tree edge id"
//	@Param			anchorID	path		string	true	"Edge to follow"
//	@Success		200			{object}	Ack
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{edgeID}/moveAfter/{anchorID} [put]
func (h *Handler) MoveAfter(w http.ResponseWriter, r *http.Request) {
	r = withOrigin(r)
	err := h.engine.MoveAfter(r.Context(), chi.URLParam(r, "edgeID"), chi.URLParam(r, "anchorID"))
	if err != nil {
		writeError(w, "move after", err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{})
}

// SetExpanded handles PUT /api/tree/{edgeID}/expanded/{expanded}.
//
//	@Summary		Expand or collapse a note in the tree
//	@Tags			tree
//	@Produce		json
//	@Param			edgeID		path		string	true	"Tree edge id"
//	@Param			expanded	path		bool	true	"Expanded flag (true/false/1/0)"
//	@Success		200			{object}	Ack
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{edgeID}/expanded/{expanded} [put]
func (h *Handler) SetExpanded(w http.ResponseWriter, r *http.Request) {
	expanded, err := strconv.ParseBool(chi.URLParam(r, "expanded"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("expanded must be a boolean"))
		return
	}
	if err := h.engine.SetExpanded(r.Context(), chi.URLParam(r, "edgeID"), expanded); err != nil {
		writeError(w, "set expanded", err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{})
}

// Children handles GET /api/tree/{parentID}/children.
//
//	@Summary		List the active children of a note
//	@Tags			tree
//	@Produce		json
//	@Param			parentID	path		string	true	"Parent note id"
//	@Success		200			{object}	ChildrenResponse
//	@Security		BearerAuth
//	@Router			/tree/{parentID}/children [get]
func (h *Handler) Children(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "parentID")
	children, err := h.engine.Children(r.Context(), parentID)
	if err != nil {
		writeError(w, "children", err)
		return
	}
	writeJSON(w, http.StatusOK, ChildrenResponse{ParentID: parentID, Children: children})
}

// GetEdge handles GET /api/edges/{edgeID}.
func (h *Handler) GetEdge(w http.ResponseWriter, r *http.Request) {
	edge, err := h.engine.Edge(r.Context(), chi.URLParam(r, "edgeID"))
	if err != nil {
		writeError(w, "get edge", err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

// Sync handles GET /api/sync?after=&limit=.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var after int64
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("after must be a non-negative integer"))
			return
		}
		after = n
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	records, err := h.engine.SyncSince(r.Context(), after, limit)
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Records: records})
}

// Audit handles GET /api/audit?limit=.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := h.engine.AuditLog(r.Context(), limit)
	if err != nil {
		writeError(w, "audit", err)
		return
	}
	writeJSON(w, http.StatusOK, AuditResponse{Entries: entries})
}

// maxLimit caps page sizes of the read endpoints.
const maxLimit = 1000

// parseLimit reads ?limit=, capped at maxLimit. 0 means the store default.
// It writes a 400 and returns false when the value is malformed.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
		return 0, false
	}
	return min(n, maxLimit), true
}
