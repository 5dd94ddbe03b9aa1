package ops

import (
	"context"
	"database/sql"

	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/scene"
)

// LoadInput contains parameters for the Load operation.
type LoadInput struct {
	ID             string
	IncludeDeleted bool
}

// LoadOutput contains a stored drawing, its decoded scene and shape statistics.
type LoadOutput struct {
	drawing.Summary
	Document scene.Document `json:"scene"`
	Stats    drawing.Stats  `json:"stats"`

	Scene *scene.Scene `json:"-"`
}

// Load retrieves a drawing and decodes its scene.
func Load(ctx context.Context, database *sql.DB, input LoadInput) (*LoadOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	d, err := db.GetDrawing(ctx, database, id, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	sc, err := d.Scene()
	if err != nil {
		return nil, err
	}

	return &LoadOutput{
		Summary:  d.ToSummary(),
		Document: scene.Encode(sc),
		Stats:    drawing.ComputeStats(sc),
		Scene:    sc,
	}, nil
}
