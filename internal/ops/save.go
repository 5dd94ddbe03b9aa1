package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/scene"
)

// SaveInput contains parameters for the Save operation.
type SaveInput struct {
	ID        string  // optional; empty creates a new drawing
	Name      *string // optional label
	SessionID string  // required
	Task      string  // default: free
	Condition string  // default: H_PLUS_IA
	Scene     *scene.Scene
	Rating    *int // optional, 1..5
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	ID         string `json:"id"`
	ShapeCount int    `json:"shape_count"`
	Created    bool   `json:"created"`
	UpdatedAt  int64  `json:"updated_at"`
}

// Save stores a scene with its session context. Saving with an existing id
// replaces that drawing and revives it if it was deleted.
func Save(ctx context.Context, database *sql.DB, input SaveInput) (*SaveOutput, error) {
	if input.Scene == nil {
		return nil, errors.NewInvalidRequest("scene is required")
	}
	if input.SessionID == "" {
		return nil, errors.NewInvalidRequest("session_id is required")
	}
	task, err := drawing.ValidateTask(input.Task)
	if err != nil {
		return nil, err
	}
	condition, err := drawing.ValidateCondition(input.Condition)
	if err != nil {
		return nil, err
	}
	if input.Rating != nil {
		if err := drawing.ValidateRating(*input.Rating); err != nil {
			return nil, err
		}
	}

	now := time.Now().Unix()
	created := input.ID == ""
	id := input.ID
	if created {
		id, err = generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	name := cleanOptionalString(input.Name)
	d := &drawing.Drawing{
		ID:        id,
		Name:      name,
		NameNorm:  drawing.NormalizeName(name),
		SessionID: input.SessionID,
		Task:      task,
		Condition: condition,
		Rating:    input.Rating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.SetScene(input.Scene); err != nil {
		return nil, err
	}

	if err := db.UpsertDrawing(ctx, database, d); err != nil {
		return nil, err
	}

	return &SaveOutput{
		ID:         id,
		ShapeCount: d.ShapeCount,
		Created:    created,
		UpdatedAt:  now,
	}, nil
}
