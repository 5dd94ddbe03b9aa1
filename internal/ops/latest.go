package ops

import (
	"context"
	"database/sql"

	"github.com/haiilab/sketchlab/internal/db"
)

// LatestInput contains parameters for the Latest operation.
type LatestInput struct {
	SessionID string // optional filter
	Task      string // optional filter
	Condition string // optional filter
}

// LatestOutput contains the most recently updated drawing, or nil when none match.
type LatestOutput struct {
	Item *LoadOutput `json:"item"`
}

// Latest loads the most recently updated matching drawing.
func Latest(ctx context.Context, database *sql.DB, input LatestInput) (*LatestOutput, error) {
	filter := db.DrawingFilter{
		SessionID: input.SessionID,
		Task:      input.Task,
		Condition: input.Condition,
	}
	items, _, err := db.ListDrawings(ctx, database, filter, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &LatestOutput{Item: nil}, nil
	}

	out, err := Load(ctx, database, LoadInput{ID: items[0].ID})
	if err != nil {
		return nil, err
	}
	return &LatestOutput{Item: out}, nil
}
