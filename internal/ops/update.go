package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/errors"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	ID string

	// Editable fields (nil = don't change)
	Name   *string
	Rating *int
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	ID        string `json:"id"`
	UpdatedAt int64  `json:"updated_at"`
}

// Update changes the label or rating of a stored drawing without touching its scene.
// An empty name clears the label.
func Update(ctx context.Context, database *sql.DB, input UpdateInput) (*UpdateOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	if input.Name == nil && input.Rating == nil {
		return nil, errors.NewInvalidRequest("at least one editable field must be provided")
	}
	if input.Rating != nil {
		if err := drawing.ValidateRating(*input.Rating); err != nil {
			return nil, err
		}
	}

	d, err := db.GetDrawing(ctx, database, id, false)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		d.Name = cleanOptionalString(input.Name)
		d.NameNorm = drawing.NormalizeName(d.Name)
	}
	if input.Rating != nil {
		d.Rating = input.Rating
	}
	d.UpdatedAt = time.Now().Unix()

	if err := db.UpsertDrawing(ctx, database, d); err != nil {
		return nil, err
	}

	return &UpdateOutput{ID: d.ID, UpdatedAt: d.UpdatedAt}, nil
}
