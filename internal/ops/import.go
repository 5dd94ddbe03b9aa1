package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/scene"
)

// MaxImportBytes bounds the size of an imported drawing file.
const MaxImportBytes = 16 << 20

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail when the id exists
	ImportModeReplace ImportMode = "replace" // overwrite the existing drawing
	ImportModeRename  ImportMode = "rename"  // import under a new id
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required, .json
	Mode ImportMode // default: error

	// Used when the file is a bare scene document without drawing metadata.
	SessionID string // default: "imported"
	Task      string // default: free
	Condition string // default: H_PLUS_IA
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	ID         string `json:"id"`
	ShapeCount int    `json:"shape_count"`
	Replaced   bool   `json:"replaced"`
	Renamed    bool   `json:"renamed"`
}

// Import reads a drawing file written by ExportDrawing, or a bare scene
// document, and stores it.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeRename {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, rename")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg, ".json"); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.SketchError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}

	d, err := parseDrawingFile(data, input)
	if err != nil {
		return nil, err
	}

	existing, err := db.GetDrawing(ctx, database, d.ID, true)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	out := &ImportOutput{}
	if existing != nil {
		switch input.Mode {
		case ImportModeError:
			return nil, errors.NewConflict(fmt.Sprintf("drawing %q already exists", d.ID))
		case ImportModeReplace:
			out.Replaced = true
		case ImportModeRename:
			d.ID, err = generateULID()
			if err != nil {
				return nil, errors.NewInternal(err)
			}
			out.Renamed = true
		}
	}

	if err := db.UpsertDrawing(ctx, database, d); err != nil {
		return nil, err
	}
	out.ID = d.ID
	out.ShapeCount = d.ShapeCount
	return out, nil
}

// parseDrawingFile accepts a DrawingFile or a bare scene document. The scene
// is decoded and re-encoded so malformed geometry is refused up front.
func parseDrawingFile(data []byte, input ImportInput) (*drawing.Drawing, error) {
	var file DrawingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid JSON: %v", err))
	}

	now := time.Now().Unix()
	d := &drawing.Drawing{CreatedAt: now, UpdatedAt: now}
	doc := file.Scene

	if file.SketchlabDrawing {
		if file.ID == "" {
			return nil, errors.NewInvalidRequest("drawing file is missing its id")
		}
		d.ID = file.ID
		d.Name = file.Name
		d.SessionID = file.SessionID
		d.Task = file.Task
		d.Condition = file.Condition
		d.Rating = file.Rating
		if file.CreatedAt > 0 {
			d.CreatedAt = file.CreatedAt
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid scene document: %v", err))
		}
		if doc.Version == 0 {
			return nil, errors.NewInvalidRequest("file is neither a drawing export nor a scene document")
		}
		id, err := generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		d.ID = id
		d.SessionID = input.SessionID
		d.Task = input.Task
		d.Condition = input.Condition
	}

	if d.SessionID == "" {
		d.SessionID = "imported"
	}
	var err error
	if d.Task, err = drawing.ValidateTask(d.Task); err != nil {
		return nil, err
	}
	if d.Condition, err = drawing.ValidateCondition(d.Condition); err != nil {
		return nil, err
	}
	if d.Rating != nil {
		if err := drawing.ValidateRating(*d.Rating); err != nil {
			return nil, err
		}
	}
	d.NameNorm = drawing.NormalizeName(d.Name)

	sc, err := scene.Decode(doc)
	if err != nil {
		return nil, err
	}
	if err := d.SetScene(sc); err != nil {
		return nil, err
	}
	return d, nil
}
