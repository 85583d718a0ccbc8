// Package testutil provides shared test helpers for setting up tree stores.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/seed"
	"github.com/starford/outline/internal/store"
)

// Epoch is the date_modified given to edges created with Edge.
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "outline-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Edge returns an active, collapsed edge stamped with Epoch.
func Edge(id, parentID string, position int) models.TreeEdge {
	return models.TreeEdge{
		ID:           id,
		NoteID:       "note-" + id,
		ParentID:     parentID,
		Position:     position,
		DateModified: Epoch,
	}
}

// Deleted returns a soft-deleted edge stamped with Epoch.
func Deleted(id, parentID string, position int) models.TreeEdge {
	e := Edge(id, parentID, position)
	e.IsDeleted = true
	return e
}

// Insert writes edges into s, failing the test on error.
func Insert(t *testing.T, s seed.Inserter, edges ...models.TreeEdge) {
	t.Helper()
	if err := s.InsertEdges(context.Background(), edges); err != nil {
		t.Fatalf("InsertEdges: %v", err)
	}
}
