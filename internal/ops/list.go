package ops

import (
	"context"
	"database/sql"

	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/drawing"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Task           string // optional filter
	Condition      string // optional filter
	SessionID      string // optional filter
	Limit          int    // default: 20, max: 100
	Offset         int    // default: 0
	IncludeDeleted bool
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []drawing.Summary `json:"items"`
	Pagination Pagination        `json:"pagination"`
	Sort       string            `json:"sort"`
}

// List retrieves drawing summaries with pagination.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	if input.Task != "" {
		if _, err := drawing.ValidateTask(input.Task); err != nil {
			return nil, err
		}
	}
	if input.Condition != "" {
		if _, err := drawing.ValidateCondition(input.Condition); err != nil {
			return nil, err
		}
	}

	limit := clampLimit(input.Limit, DefaultListLimit, MaxListLimit)
	offset := max(input.Offset, 0)

	filter := db.DrawingFilter{
		Task:           input.Task,
		Condition:      input.Condition,
		SessionID:      input.SessionID,
		IncludeDeleted: input.IncludeDeleted,
	}
	summaries, total, err := db.ListDrawings(ctx, database, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if summaries == nil {
		summaries = []drawing.Summary{}
	}

	return &ListOutput{
		Items: summaries,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(summaries) < total,
			Total:   total,
		},
		Sort: "updated_at_desc",
	}, nil
}
