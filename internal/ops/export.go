package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"time"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/events"
	"github.com/haiilab/sketchlab/internal/export"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/scene"
)

// FileSchemaVersion versions the drawing file and the events export.
const FileSchemaVersion = "1.0"

// DrawingFile is the JSON export of one drawing. ImportDrawing reads it back.
type DrawingFile struct {
	SketchlabDrawing bool   `json:"_sketchlab_drawing"`
	SchemaVersion    string `json:"schema_version"`
	drawing.Summary
	Scene scene.Document `json:"scene"`
}

// ExportDrawingInput contains parameters for the ExportDrawing operation.
type ExportDrawingInput struct {
	ID             string // required
	Path           string // optional, default: ~/.sketchlab/exports/<name-or-id>-<timestamp>.<format>
	Format         string // json (default), svg, pdf, png
	IncludeDeleted bool
}

// ExportDrawingOutput contains the result of the ExportDrawing operation.
type ExportDrawingOutput struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Bytes      int64  `json:"bytes"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportDrawing writes one drawing to a file.
func ExportDrawing(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportDrawingInput) (*ExportDrawingOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(input.Format)
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

	now := time.Now()
	path := input.Path
	if path == "" {
		stem := d.ID
		if d.Name != nil {
			stem = *d.Name
		}
		path, err = defaultExportPath(stem, format.Ext(), now)
		if err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(path, PathCheckWrite, cfg, format.Ext()); err != nil {
		return nil, err
	}

	n, err := writeAtomic(path, func(w io.Writer) error {
		if format == export.JSON {
			return json.NewEncoder(w).Encode(DrawingFile{
				SketchlabDrawing: true,
				SchemaVersion:    FileSchemaVersion,
				Summary:          d.ToSummary(),
				Scene:            scene.Encode(sc),
			})
		}
		return export.Write(w, sc, format, ExportOptions(cfg))
	})
	if err != nil {
		return nil, err
	}

	return &ExportDrawingOutput{
		Path:       path,
		Format:     string(format),
		Bytes:      n,
		ExportedAt: now.Unix(),
	}, nil
}

// ExportOptions sizes the export canvas from the configuration.
func ExportOptions(cfg *config.Config) export.Options {
	opts := export.DefaultOptions()
	if cfg != nil && cfg.CanvasWidth > 0 && cfg.CanvasHeight > 0 {
		opts.Canvas = geometry.Rect{Width: float64(cfg.CanvasWidth), Height: float64(cfg.CanvasHeight)}
	}
	return opts
}

// ExportHeader is the first line of an events export.
type ExportHeader struct {
	SketchlabExport bool   `json:"_sketchlab_export"`
	SchemaVersion   string `json:"schema_version"`
	ExportedAt      int64  `json:"exported_at"`
	SessionID       string `json:"session_id,omitempty"`
}

// ExportEventsInput contains parameters for the ExportEvents operation.
type ExportEventsInput struct {
	Path      string   // optional, default: ~/.sketchlab/exports/<session-or-all>-<timestamp>.jsonl
	SessionID string   // optional filter
	Types     []string // optional filter
}

// ExportEventsOutput contains the result of the ExportEvents operation.
type ExportEventsOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportEvents streams the event journal to a JSONL file, one event per line
// after a header line.
func ExportEvents(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportEventsInput) (*ExportEventsOutput, error) {
	now := time.Now()
	path := input.Path
	if path == "" {
		stem := "all"
		if input.SessionID != "" {
			stem = input.SessionID
		}
		var err error
		path, err = defaultExportPath(stem, ".jsonl", now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too: the session id ends up in the file name.
	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	filter := db.EventFilter{SessionID: input.SessionID, Types: toEventTypes(input.Types)}
	count := 0
	_, err := writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		header := ExportHeader{
			SketchlabExport: true,
			SchemaVersion:   FileSchemaVersion,
			ExportedAt:      now.Unix(),
			SessionID:       input.SessionID,
		}
		if err := enc.Encode(header); err != nil {
			return err
		}
		return db.StreamEvents(ctx, database, filter, func(e events.Event) error {
			select {
			case <-ctx.Done():
				return errors.NewCancelled("export")
			default:
			}
			count++
			return enc.Encode(e)
		})
	})
	if err != nil {
		return nil, err
	}

	return &ExportEventsOutput{
		Path:       path,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

func toEventTypes(types []string) []events.Type {
	if len(types) == 0 {
		return nil
	}
	out := make([]events.Type, len(types))
	for i, t := range types {
		out[i] = events.Type(t)
	}
	return out
}
