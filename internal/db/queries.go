package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/errors"
)

const drawingColumns = `id, name, name_norm, session_id, task, condition,
	scene_json, shape_count, rating, created_at, updated_at, deleted_at`

// UpsertDrawing inserts d, or replaces the stored drawing with the same id.
// Replacing keeps created_at and clears a soft delete.
func UpsertDrawing(ctx context.Context, db *sql.DB, d *drawing.Drawing) error {
	query := `
		INSERT INTO drawings (` + drawingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_norm = excluded.name_norm,
			session_id = excluded.session_id,
			task = excluded.task,
			condition = excluded.condition,
			scene_json = excluded.scene_json,
			shape_count = excluded.shape_count,
			rating = excluded.rating,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`
	_, err := db.ExecContext(ctx, query,
		d.ID, toNullString(d.Name), toNullString(d.NameNorm), d.SessionID, d.Task, d.Condition,
		d.SceneJSON, d.ShapeCount, toNullInt(d.Rating), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetDrawing retrieves a drawing by its ULID.
// If includeDeleted is false, soft-deleted drawings are excluded.
func GetDrawing(ctx context.Context, db *sql.DB, id string, includeDeleted bool) (*drawing.Drawing, error) {
	query := `SELECT ` + drawingColumns + ` FROM drawings WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	d, err := scanDrawing(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("drawing", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return d, nil
}

// DrawingFilter narrows ListDrawings. Empty fields match everything.
type DrawingFilter struct {
	Task           string
	Condition      string
	SessionID      string
	IncludeDeleted bool
}

func (f DrawingFilter) where() (string, []any) {
	var clauses []string
	var args []any
	if !f.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if f.Task != "" {
		clauses = append(clauses, "task = ?")
		args = append(args, f.Task)
	}
	if f.Condition != "" {
		clauses = append(clauses, "condition = ?")
		args = append(args, f.Condition)
	}
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListDrawings returns one page of summaries, most recently updated first,
// and the total number of matching drawings.
func ListDrawings(ctx context.Context, db *sql.DB, f DrawingFilter, limit, offset int) ([]drawing.Summary, int, error) {
	where, args := f.where()

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM drawings"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + drawingColumns + ` FROM drawings` + where +
		` ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []drawing.Summary
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, d.ToSummary())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// SoftDeleteDrawing marks a drawing as deleted by setting deleted_at.
func SoftDeleteDrawing(ctx context.Context, db *sql.DB, id string) error {
	now := time.Now().Unix()

	result, err := db.ExecContext(ctx, `
		UPDATE drawings
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("drawing", id)
	}
	return nil
}

// PurgeDeleted permanently removes soft-deleted drawings, optionally only
// those deleted more than olderThanDays ago.
func PurgeDeleted(ctx context.Context, db *sql.DB, olderThanDays *int) (int, error) {
	query := "DELETE FROM drawings WHERE deleted_at IS NOT NULL"
	var args []any
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		query += " AND deleted_at < ?"
		args = append(args, cutoff)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDrawing(row scanner) (*drawing.Drawing, error) {
	var (
		d         drawing.Drawing
		name      sql.NullString
		nameNorm  sql.NullString
		rating    sql.NullInt64
		deletedAt sql.NullInt64
	)

	err := row.Scan(
		&d.ID, &name, &nameNorm, &d.SessionID, &d.Task, &d.Condition,
		&d.SceneJSON, &d.ShapeCount, &rating, &d.CreatedAt, &d.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Name = fromNullString(name)
	d.NameNorm = fromNullString(nameNorm)
	if rating.Valid {
		r := int(rating.Int64)
		d.Rating = &r
	}
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Int64
	}
	return &d, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
