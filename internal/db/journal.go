package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/events"
	"github.com/haiilab/sketchlab/internal/scene"
)

// InsertEvent appends e to the journal and returns its sequence number.
func InsertEvent(ctx context.Context, db *sql.DB, e events.Event) (int64, error) {
	var payload sql.NullString
	if len(e.Payload) > 0 {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return 0, errors.NewInternal(err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	var provenance sql.NullString
	if e.Provenance != "" {
		provenance = sql.NullString{String: string(e.Provenance), Valid: true}
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO events (session_id, at_ms, type, provenance, condition, task, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.At.UnixMilli(), string(e.Type), provenance, e.Condition, e.Task, payload)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return seq, nil
}

// EventFilter narrows ListEvents. Empty fields match everything.
type EventFilter struct {
	SessionID string
	Types     []events.Type
	AfterSeq  int64
	Limit     int // 0 = no limit
}

// ListEvents returns journal entries in sequence order.
func ListEvents(ctx context.Context, db *sql.DB, f EventFilter) ([]events.Event, error) {
	var out []events.Event
	err := StreamEvents(ctx, db, f, func(e events.Event) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

// StreamEvents calls fn for each matching event in sequence order, stopping
// at the first error fn returns.
func StreamEvents(ctx context.Context, db *sql.DB, f EventFilter, fn func(events.Event) error) error {
	clauses := []string{"seq > ?"}
	args := []any{f.AfterSeq}
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		clauses = append(clauses, "type IN ("+strings.Join(marks, ", ")+")")
	}
	query := `SELECT seq, session_id, at_ms, type, provenance, condition, task, payload_json
		FROM events WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY seq`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e          events.Event
			atMS       int64
			typ        string
			provenance sql.NullString
			payload    sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.SessionID, &atMS, &typ, &provenance, &e.Condition, &e.Task, &payload); err != nil {
			return errors.NewInternal(err)
		}
		e.At = time.UnixMilli(atMS).UTC()
		e.Type = events.Type(typ)
		e.Provenance = scene.Provenance(provenance.String)
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return errors.NewInternal(err)
			}
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// CountEvents returns the number of journal entries for a session
// (all sessions when sessionID is empty).
func CountEvents(ctx context.Context, db *sql.DB, sessionID string) (int, error) {
	query := "SELECT COUNT(*) FROM events"
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// Journal is an events.Sink persisting every event.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) Write(e events.Event) error {
	_, err := InsertEvent(context.Background(), j.db, e)
	return err
}
