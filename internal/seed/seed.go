// Package seed imports an initial outline tree from a YAML or TOML file.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/outline/internal/models"
	pkgconfig "github.com/starford/outline/pkg/config"
)

// Inserter is the part of a store the importer writes through.
type Inserter interface {
	// InsertEdges writes all edges in one atomic unit, or none of them.
	InsertEdges(ctx context.Context, edges []models.TreeEdge) error
	CountEdges(ctx context.Context) (int, error)
}

// File is the on-disk seed format.
type File struct {
	Edges []models.TreeEdge `yaml:"edges" toml:"edges"`
}

// Validate checks that every edge names a parent, that explicit ids are
// unique and that no two active edges share a slot under the same parent.
func (f *File) Validate() error {
	for i := range f.Edges {
		e := &f.Edges[i]
		if err := validation.ValidateStruct(e,
			validation.Field(&e.ParentID, validation.Required),
			validation.Field(&e.Position, validation.Min(0)),
		); err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return validation.ValidateStruct(f,
		validation.Field(&f.Edges, validation.By(uniqueEdges)),
	)
}

type slot struct {
	parentID string
	position int
}

func uniqueEdges(value any) error {
	edges, _ := value.([]models.TreeEdge)
	ids := make(map[string]int, len(edges))
	slots := make(map[slot]int, len(edges))
	for i, e := range edges {
		if e.ID != "" {
			if prev, dup := ids[e.ID]; dup {
				return fmt.Errorf("edges %d and %d share id %q", prev, i, e.ID)
			}
			ids[e.ID] = i
		}
		if e.IsDeleted {
			continue
		}
		k := slot{e.ParentID, e.Position}
		if prev, dup := slots[k]; dup {
			return fmt.Errorf("edges %d and %d share position %d under %q", prev, i, e.Position, e.ParentID)
		}
		slots[k] = i
	}
	return nil
}

// Import loads path into store when the store holds no edges yet and
// returns how many edges were written. Edges without an id get a UUID.
func Import(ctx context.Context, store Inserter, path string, logger *slog.Logger) (int, error) {
	n, err := store.CountEdges(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Debug("seed: store not empty, skipping", slog.Int("edges", n))
		return 0, nil
	}

	var f File
	if err := pkgconfig.Load(path, &f); err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}

	now := time.Now().UTC()
	edges := make([]models.TreeEdge, len(f.Edges))
	for i, e := range f.Edges {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.NoteID == "" {
			e.NoteID = e.ID
		}
		e.DateModified = now
		edges[i] = e
	}
	if err := store.InsertEdges(ctx, edges); err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	logger.Info("seed: imported", slog.String("path", path), slog.Int("edges", len(edges)))
	return len(edges), nil
}
