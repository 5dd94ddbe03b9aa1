package ops

import (
	"context"
	"database/sql"

	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/events"
)

// EventsInput contains parameters for the Events operation.
type EventsInput struct {
	SessionID string   // optional filter
	Types     []string // optional filter
	AfterSeq  int64    // resume after this sequence number
	Limit     int      // default: 200, max: 5000
}

// EventsOutput contains one page of the journal.
type EventsOutput struct {
	Items   []events.Event `json:"items"`
	NextSeq int64          `json:"next_seq"`
	HasMore bool           `json:"has_more"`
}

// Events pages through the event journal in sequence order. Pass NextSeq as
// AfterSeq to continue.
func Events(ctx context.Context, database *sql.DB, input EventsInput) (*EventsOutput, error) {
	limit := clampLimit(input.Limit, DefaultEventsLimit, MaxEventsLimit)

	items, err := db.ListEvents(ctx, database, db.EventFilter{
		SessionID: input.SessionID,
		Types:     toEventTypes(input.Types),
		AfterSeq:  max(input.AfterSeq, 0),
		Limit:     limit + 1,
	})
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	if items == nil {
		items = []events.Event{}
	}

	next := input.AfterSeq
	if len(items) > 0 {
		next = items[len(items)-1].Seq
	}

	return &EventsOutput{Items: items, NextSeq: next, HasMore: hasMore}, nil
}
