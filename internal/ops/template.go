package ops

import (
	"context"
	"database/sql"
	"io"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/suggest"
)

// AddTemplateInput contains parameters for the AddTemplate operation.
type AddTemplateInput struct {
	DrawingID string // required
	ID        string // required, template id
	Category  string // required
	Label     string // default: derived from ID

	// Path is the catalog file. Default: catalog_path from config. An
	// explicit path must pass ValidatePath like any other write.
	Path    string
	Replace bool
}

// AddTemplateOutput contains the result of the AddTemplate operation.
type AddTemplateOutput struct {
	Path      string `json:"path"`
	ID        string `json:"id"`
	Category  string `json:"category"`
	Shapes    int    `json:"shapes"`
	Templates int    `json:"templates"`
	Replaced  bool   `json:"replaced"`
}

// AddTemplate turns a stored drawing into a panel template and writes it to
// the catalog file. A missing catalog file starts from the built-in catalog,
// since a configured catalog_path replaces it.
func AddTemplate(ctx context.Context, database *sql.DB, cfg *config.Config, input AddTemplateInput) (*AddTemplateOutput, error) {
	path := input.Path
	if path != "" {
		if err := ValidatePath(path, PathCheckWrite, cfg, ".yaml", ".yml"); err != nil {
			return nil, err
		}
	} else if cfg != nil {
		path = cfg.CatalogPath
	}
	if path == "" {
		return nil, errors.NewInvalidRequest("catalog path is required (pass a path or set catalog_path)")
	}

	drawn, err := Load(ctx, database, LoadInput{ID: input.DrawingID})
	if err != nil {
		return nil, err
	}
	t, err := suggest.TemplateFromScene(drawn.Scene, input.ID, input.Category, input.Label)
	if err != nil {
		return nil, err
	}

	catalog, err := suggest.LoadCatalog(path)
	if errors.Is(err, errors.ErrFileNotFound) {
		catalog, err = suggest.DefaultCatalog(), nil
	}
	if err != nil {
		return nil, err
	}
	replaced, err := catalog.Add(t, input.Replace)
	if err != nil {
		return nil, err
	}
	data, err := catalog.Marshal()
	if err != nil {
		return nil, err
	}
	if _, err := suggest.ParseCatalog(data); err != nil {
		return nil, errors.NewInternal(err)
	}

	if _, err := writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return nil, err
	}

	return &AddTemplateOutput{
		Path:      path,
		ID:        t.ID,
		Category:  t.Category,
		Shapes:    len(t.Shapes),
		Templates: len(catalog.Templates),
		Replaced:  replaced,
	}, nil
}
