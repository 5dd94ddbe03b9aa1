package suggest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/scene"
)

// TemplateFromScene turns a drawing into a catalog template. Groups are
// flattened with their transforms applied, and the result is moved so its
// bounding box starts at the origin. Rotated rectangles and ellipses become
// closed strokes along their outline.
func TemplateFromScene(sc *scene.Scene, id, category, label string) (Template, error) {
	id = strings.TrimSpace(id)
	category = strings.TrimSpace(category)
	if id == "" || category == "" {
		return Template{}, errors.NewInvalidRequest("template needs id and category")
	}
	if label == "" {
		label = strings.ReplaceAll(id, "_", " ")
	}

	var shapes []TemplateShape
	for _, sh := range sc.Shapes() {
		shapes = appendTemplateShapes(shapes, sh, nil)
	}
	if len(shapes) == 0 {
		return Template{}, errors.NewInvalidRequest("drawing has no shapes to turn into a template")
	}

	var pts []geometry.Point
	for _, ts := range shapes {
		pts = append(pts, ts.Points...)
	}
	box := geometry.BoundingBox(pts)
	origin := geometry.Pt(box.X, box.Y)
	for i := range shapes {
		for j := range shapes[i].Points {
			shapes[i].Points[j] = shapes[i].Points[j].Sub(origin)
		}
	}

	t := Template{
		ID:       id,
		Category: category,
		Label:    label,
		Grouped:  len(shapes) > 1,
		Shapes:   shapes,
	}
	for _, sh := range t.shapes() {
		if err := sh.Validate(); err != nil {
			return Template{}, fmt.Errorf("template %s: %w", id, err)
		}
	}
	return t, nil
}

type placement struct {
	t     geometry.Transform
	pivot geometry.Point
}

func appendTemplateShapes(out []TemplateShape, sh scene.Shape, outer []placement) []TemplateShape {
	if sh.Kind == scene.KindGroup {
		next := append([]placement{{t: sh.Transform, pivot: sh.Pivot()}}, outer...)
		for _, c := range sh.Children {
			out = appendTemplateShapes(out, c, next)
		}
		return out
	}

	kind := sh.Kind
	rotated := sh.Transform.Rotation != 0
	for _, o := range outer {
		rotated = rotated || o.t.Rotation != 0
	}
	pts := sh.WorldPoints()
	if rotated && (kind == scene.KindRectangle || kind == scene.KindEllipse) {
		pts = sh.WorldOutline()
		pts = append(pts, pts[0])
		kind = scene.KindStroke
	}
	for _, o := range outer {
		pts = o.t.ApplyAll(pts, o.pivot)
	}
	style := sh.Style
	return append(out, TemplateShape{Kind: kind, Points: pts, Style: &style})
}

// Add inserts t. An existing template with the same id is a conflict unless
// replace is set, in which case it is overwritten in place.
func (c *Catalog) Add(t Template, replace bool) (bool, error) {
	for i := range c.Templates {
		if c.Templates[i].ID != t.ID {
			continue
		}
		if !replace {
			return false, errors.NewConflict("template already in catalog: " + t.ID)
		}
		c.Templates[i] = t
		return true, nil
	}
	c.Templates = append(c.Templates, t)
	return false, nil
}

// Marshal encodes the catalog as YAML that ParseCatalog accepts.
func (c *Catalog) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("encode catalog: %w", err))
	}
	return data, nil
}
