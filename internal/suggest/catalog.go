package suggest

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/scene"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Template is one pre-made element of the panel catalog.
type Template struct {
	ID       string          `yaml:"id"`
	Category string          `yaml:"category"`
	Label    string          `yaml:"label"`
	Grouped  bool            `yaml:"grouped"`
	Shapes   []TemplateShape `yaml:"shapes"`
}

type TemplateShape struct {
	Kind   scene.Kind       `yaml:"kind"`
	Points []geometry.Point `yaml:"points"`
	Style  *scene.Style     `yaml:"style,omitempty"`
}

// Catalog holds templates by category.
type Catalog struct {
	Templates []Template `yaml:"templates"`
}

// taskCategories orders the panel when no category is asked for.
var taskCategories = map[string][]string{
	"cat":    {"ears"},
	"castle": {"roof", "door"},
	"car":    {"wheel", "body", "door"},
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic("suggest: embedded catalog: " + err.Error())
	}
	return c
}

// LoadCatalog reads a YAML catalog file. An empty path yields the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.NewInvalidRequest("invalid catalog yaml: " + err.Error())
	}
	seen := make(map[string]bool)
	for _, t := range c.Templates {
		if t.ID == "" || t.Category == "" {
			return nil, errors.NewInvalidRequest("template needs id and category")
		}
		if seen[t.ID] {
			return nil, errors.NewInvalidRequest("duplicate template id: " + t.ID)
		}
		seen[t.ID] = true
		if len(t.Shapes) == 0 {
			return nil, errors.NewInvalidRequest("template has no shapes: " + t.ID)
		}
		for _, sh := range t.shapes() {
			if err := sh.Validate(); err != nil {
				return nil, fmt.Errorf("template %s: %w", t.ID, err)
			}
		}
	}
	return &c, nil
}

// Categories lists the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	set := make(map[string]bool)
	for _, t := range c.Templates {
		set[t.Category] = true
	}
	out := make([]string, 0, len(set))
	for cat := range set {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the templates of one category in file order.
func (c *Catalog) ByCategory(category string) []Template {
	var out []Template
	for _, t := range c.Templates {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Lookup finds a template by id.
func (c *Catalog) Lookup(id string) (Template, bool) {
	for _, t := range c.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

func (t Template) shapes() []scene.Shape {
	out := make([]scene.Shape, len(t.Shapes))
	for i, ts := range t.Shapes {
		st := scene.DefaultStyle()
		if ts.Style != nil {
			st = *ts.Style
		}
		out[i] = scene.Shape{
			Kind:   ts.Kind,
			Points: append([]geometry.Point(nil), ts.Points...),
			Style:  st,
			Tag:    "template:" + t.ID,
		}
	}
	return out
}

// Place returns the template's shapes with their joint bounding box centred
// on anchor.
func (t Template) Place(anchor geometry.Point) []scene.Shape {
	shapes := t.shapes()
	var pts []geometry.Point
	for _, sh := range shapes {
		pts = append(pts, sh.Points...)
	}
	off := anchor.Sub(geometry.BoundingBox(pts).Center())
	for i := range shapes {
		for j := range shapes[i].Points {
			shapes[i].Points[j] = shapes[i].Points[j].Add(off)
		}
	}
	return shapes
}

// CatalogSource serves panel requests from a Catalog.
type CatalogSource struct {
	catalog *Catalog
}

func NewCatalogSource(c *Catalog) *CatalogSource {
	if c == nil {
		c = DefaultCatalog()
	}
	return &CatalogSource{catalog: c}
}

func (s *CatalogSource) Name() string { return "catalog" }

// Catalog exposes the underlying templates.
func (s *CatalogSource) Catalog() *Catalog { return s.catalog }

// Generate proposes every template of the requested category, or of the
// task's categories when none is given.
func (s *CatalogSource) Generate(ctx context.Context, c Context) ([]Proposal, error) {
	categories := []string{c.Category}
	if c.Category == "" {
		categories = taskCategories[c.Task]
		if len(categories) == 0 {
			categories = s.catalog.Categories()
		}
	}

	var out []Proposal
	for _, cat := range categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, t := range s.catalog.ByCategory(cat) {
			if c.IsSuppressed(t.ID) {
				continue
			}
			out = append(out, Proposal{
				TemplateID:  t.ID,
				Label:       t.Label,
				Shapes:      t.Place(c.Anchor),
				Grouped:     t.Grouped,
				Score:       1 - 0.1*float64(i),
				Explanation: []string{"catalog element: " + cat},
			})
		}
	}
	return out, nil
}
