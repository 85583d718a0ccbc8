// Package memstore is an in-memory tree.Store backed by ordered B-trees.
//
// All operations are serialized by one mutex. RunAtomic snapshots the trees
// (copy-on-write) before running the unit of work and restores the snapshot
// when it fails, so a failed move leaves no trace.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/starford/outline/internal/apperr"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/tree"
)

const defaultLimit = 100

// Store holds edges indexed by id and by (parent, position, id).
type Store struct {
	mu     sync.Mutex
	byID   *btree.BTreeG[models.TreeEdge]
	bySlot *btree.BTreeG[models.TreeEdge]
	sync   []models.SyncRecord
	audit  []models.AuditEntry
}

var _ tree.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:   btree.NewBTreeG(idLess),
		bySlot: btree.NewBTreeG(slotLess),
	}
}

func idLess(a, b models.TreeEdge) bool { return a.ID < b.ID }

func slotLess(a, b models.TreeEdge) bool {
	if a.ParentID != b.ParentID {
		return a.ParentID < b.ParentID
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.ID < b.ID
}

// RunAtomic runs fn with exclusive access and rolls back on error or panic.
func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx tree.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, bySlot := s.byID.Copy(), s.bySlot.Copy()
	nSync, nAudit := len(s.sync), len(s.audit)
	restore := func() {
		s.byID, s.bySlot = byID, bySlot
		s.sync, s.audit = s.sync[:nSync], s.audit[:nAudit]
	}

	defer func() {
		if r := recover(); r != nil {
			restore()
			panic(r)
		}
	}()

	if err := fn(ctx, (*memTx)(s)); err != nil {
		restore()
		return err
	}
	return nil
}

// Edge returns a committed edge or apperr.ErrNotFound.
func (s *Store) Edge(_ context.Context, id string) (models.TreeEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// Children returns the active children of parentID ordered by position.
func (s *Store) Children(_ context.Context, parentID string) ([]models.TreeEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.TreeEdge{}
	s.activeChildren(tree.Range{ParentID: parentID, From: math.MinInt, Inclusive: true}, func(e models.TreeEdge) {
		out = append(out, e)
	})
	return out, nil
}

// SyncSince returns sync records with id > afterID.
func (s *Store) SyncSince(_ context.Context, afterID int64, limit int) ([]models.SyncRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.sync), func(i int) bool { return s.sync[i].ID > afterID })
	end := len(s.sync)
	if limit < end-i {
		end = i + limit
	}
	return append([]models.SyncRecord{}, s.sync[i:end]...), nil
}

// AuditLog returns the newest audit entries first.
func (s *Store) AuditLog(_ context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AuditEntry, 0, min(limit, len(s.audit)))
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

// InsertEdges adds all placements or none of them. Ids must be new.
func (s *Store) InsertEdges(_ context.Context, edges []models.TreeEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("memstore: duplicate edge id %q", e.ID)
		}
		if _, ok := s.byID.Get(e); ok {
			return fmt.Errorf("memstore: edge %q already exists", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	for _, e := range edges {
		e.DateModified = e.DateModified.UTC()
		s.put(e)
	}
	return nil
}

// CountEdges returns the number of placements, deleted ones included.
func (s *Store) CountEdges(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID.Len(), nil
}

func (s *Store) get(id string) (models.TreeEdge, error) {
	e, ok := s.byID.Get(models.TreeEdge{ID: id})
	if !ok {
		return models.TreeEdge{}, apperr.NotFound("note", id)
	}
	return e, nil
}

// put stores e, keeping the slot index in step with the id index.
func (s *Store) put(e models.TreeEdge) {
	if old, ok := s.byID.Get(e); ok {
		s.bySlot.Delete(old)
	}
	s.byID.Set(e)
	s.bySlot.Set(e)
}

// activeChildren visits the edges in r in position order.
func (s *Store) activeChildren(r tree.Range, visit func(models.TreeEdge)) {
	s.bySlot.Ascend(models.TreeEdge{ParentID: r.ParentID, Position: r.From}, func(e models.TreeEdge) bool {
		if e.ParentID != r.ParentID {
			return false
		}
		if r.Contains(e) {
			visit(e)
		}
		return true
	})
}

// memTx is the Store seen from inside RunAtomic; the lock is already held.
type memTx Store

func (t *memTx) store() *Store { return (*Store)(t) }

func (t *memTx) Edge(_ context.Context, id string) (models.TreeEdge, error) {
	return t.store().get(id)
}

func (t *memTx) MaxPosition(_ context.Context, parentID string) (int, bool, error) {
	var (
		max int
		ok  bool
	)
	t.store().activeChildren(tree.Range{ParentID: parentID, From: math.MinInt, Inclusive: true}, func(e models.TreeEdge) {
		max, ok = e.Position, true
	})
	return max, ok, nil
}

func (t *memTx) ShiftPositions(_ context.Context, r tree.Range, delta int) (int64, error) {
	var hit []models.TreeEdge
	t.store().activeChildren(r, func(e models.TreeEdge) {
		hit = append(hit, e)
	})
	for _, e := range hit {
		e.Position += delta
		t.store().put(e)
	}
	return int64(len(hit)), nil
}

func (t *memTx) SetPlacement(_ context.Context, id, parentID string, position int, modified *time.Time) error {
	e, err := t.store().get(id)
	if err != nil {
		return err
	}
	e.ParentID, e.Position = parentID, position
	if modified != nil {
		e.DateModified = modified.UTC()
	}
	t.store().put(e)
	return nil
}

func (t *memTx) SetExpanded(_ context.Context, id string, expanded bool) error {
	e, err := t.store().get(id)
	if err != nil {
		return err
	}
	e.IsExpanded = expanded
	t.store().put(e)
	return nil
}

func (t *memTx) NotifyEdgeChanged(_ context.Context, edgeID string, at time.Time) error {
	t.addSync(models.SyncEntityTree, edgeID, at)
	return nil
}

func (t *memTx) NotifyReorderUnderParent(_ context.Context, parentID string, at time.Time) error {
	t.addSync(models.SyncEntityReordering, parentID, at)
	return nil
}

func (t *memTx) addSync(entity, id string, at time.Time) {
	t.sync = append(t.sync, models.SyncRecord{
		ID:         int64(len(t.sync)) + 1,
		EntityName: entity,
		EntityID:   id,
		SyncDate:   at.UTC(),
	})
}

func (t *memTx) RecordAudit(_ context.Context, e models.AuditEntry) error {
	e.ID = int64(len(t.audit)) + 1
	e.DateModified = e.DateModified.UTC()
	t.audit = append(t.audit, e)
	return nil
}
