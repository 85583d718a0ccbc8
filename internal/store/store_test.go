package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/outline/internal/apperr"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/store"
	"github.com/starford/outline/internal/testutil"
	"github.com/starford/outline/internal/tree"
)

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outline.db")

	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.Insert(t, db, testutil.Edge("a", "root", 0))
	db.Close()

	db, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	n, err := db.CountEdges(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count after reopen = %d, want 1", n)
	}
}

func TestInsertEdges_DuplicateRollsBack(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Insert(t, db, testutil.Edge("a", "root", 0))
	ctx := context.Background()

	err := db.InsertEdges(ctx, []models.TreeEdge{
		testutil.Edge("b", "root", 1),
		testutil.Edge("a", "root", 2),
	})
	if err == nil {
		t.Fatal("duplicate id should fail")
	}
	if n, _ := db.CountEdges(ctx); n != 1 {
		t.Errorf("count = %d, want 1 (batch rolled back)", n)
	}
}

func TestEdge_RoundTrip(t *testing.T) {
	db := testutil.TestDB(t)
	in := testutil.Edge("a", "root", 7)
	in.IsExpanded = true
	testutil.Insert(t, db, in)

	got, err := db.Edge(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.NoteID != in.NoteID || got.ParentID != "root" || got.Position != 7 || !got.IsExpanded || got.IsDeleted {
		t.Errorf("edge = %+v", got)
	}
	if !got.DateModified.Equal(testutil.Epoch) {
		t.Errorf("date_modified = %v, want %v", got.DateModified, testutil.Epoch)
	}

	_, err = db.Edge(context.Background(), "missing")
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "missing" {
		t.Errorf("missing edge err = %v", err)
	}
}

func TestChildren_SkipsDeleted(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Insert(t, db,
		testutil.Edge("b", "root", 5),
		testutil.Edge("a", "root", 1),
		testutil.Deleted("gone", "root", 3),
		testutil.Edge("x", "other", 0),
	)

	children, err := db.Children(context.Background(), "root")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 || children[0].ID != "a" || children[1].ID != "b" {
		t.Errorf("children = %+v", children)
	}

	empty, err := db.Children(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("no children = %#v, want empty slice", empty)
	}
}

func TestTx_MaxAndShiftIgnoreDeleted(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Insert(t, db,
		testutil.Edge("a", "root", 0),
		testutil.Edge("b", "root", 2),
		testutil.Deleted("gone", "root", 9),
		testutil.Edge("x", "other", 2),
	)
	ctx := context.Background()

	err := db.RunAtomic(ctx, func(ctx context.Context, tx tree.Tx) error {
		max, ok, err := tx.MaxPosition(ctx, "root")
		if err != nil {
			return err
		}
		if !ok || max != 2 {
			t.Errorf("max = %d, %v; want 2, true", max, ok)
		}
		if _, ok, _ := tx.MaxPosition(ctx, "empty"); ok {
			t.Error("empty parent should report ok=false")
		}

		n, err := tx.ShiftPositions(ctx, tree.Range{ParentID: "root", From: 0}, 1)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("shifted = %d, want 1", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for id, want := range map[string]int{"a": 0, "b": 3, "gone": 9, "x": 2} {
		e, _ := db.Edge(ctx, id)
		if e.Position != want {
			t.Errorf("%s.position = %d, want %d", id, e.Position, want)
		}
	}
}

func TestRunAtomic_Rollback(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Insert(t, db,
		testutil.Edge("a", "root", 0),
		testutil.Edge("b", "root", 1),
	)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.RunAtomic(ctx, func(ctx context.Context, tx tree.Tx) error {
		if _, err := tx.ShiftPositions(ctx, tree.Range{ParentID: "root", From: 0, Inclusive: true}, 1); err != nil {
			return err
		}
		if err := tx.SetPlacement(ctx, "a", "elsewhere", 0, nil); err != nil {
			return err
		}
		if err := tx.NotifyEdgeChanged(ctx, "a", time.Now()); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, models.AuditEntry{Category: models.AuditChangePosition, EdgeID: "a"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	a, _ := db.Edge(ctx, "a")
	b, _ := db.Edge(ctx, "b")
	if a.ParentID != "root" || a.Position != 0 || b.Position != 1 {
		t.Errorf("rollback left a=%+v b=%+v", a, b)
	}
	if recs, _ := db.SyncSince(ctx, 0, 0); len(recs) != 0 {
		t.Errorf("sync rows survived rollback: %+v", recs)
	}
	if entries, _ := db.AuditLog(ctx, 0); len(entries) != 0 {
		t.Errorf("audit rows survived rollback: %+v", entries)
	}
}

func TestTx_SetPlacementMissing(t *testing.T) {
	db := testutil.TestDB(t)
	err := db.RunAtomic(context.Background(), func(ctx context.Context, tx tree.Tx) error {
		return tx.SetPlacement(ctx, "ghost", "root", 0, nil)
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSyncAndAuditReads(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	err := db.RunAtomic(ctx, func(ctx context.Context, tx tree.Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := tx.NotifyEdgeChanged(ctx, id, at); err != nil {
				return err
			}
		}
		if err := tx.NotifyReorderUnderParent(ctx, "root", at); err != nil {
			return err
		}
		for _, id := range []string{"a", "b"} {
			if err := tx.RecordAudit(ctx, models.AuditEntry{
				DateModified: at,
				Category:     models.AuditChangeParent,
				OriginID:     "tab",
				EdgeID:       id,
				NewParentID:  "root",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	recs, err := db.SyncSince(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].EntityID != "a" || recs[1].EntityID != "b" {
		t.Fatalf("first page = %+v", recs)
	}
	if !recs[0].SyncDate.Equal(at) {
		t.Errorf("sync_date = %v, want %v", recs[0].SyncDate, at)
	}

	recs, _ = db.SyncSince(ctx, recs[1].ID, 0)
	if len(recs) != 2 || recs[1].EntityName != models.SyncEntityReordering || recs[1].EntityID != "root" {
		t.Errorf("second page = %+v", recs)
	}

	entries, err := db.AuditLog(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].EdgeID != "b" || entries[0].Category != models.AuditChangeParent {
		t.Errorf("latest audit = %+v", entries)
	}
}
