package tool

import (
	"math"

	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/scene"
)

// penTool records a freehand stroke.
type penTool struct{}

func (penTool) down(c *Controller, p Pointer) {
	c.state = Drawing
	c.start = p.At
	c.preview.Shape = &scene.Shape{
		Kind:       scene.KindStroke,
		Points:     []geometry.Point{p.At},
		Style:      c.style,
		Provenance: scene.Manual,
	}
}

func (penTool) move(c *Controller, p Pointer) {
	pts := c.preview.Shape.Points
	if pts[len(pts)-1] != p.At {
		c.preview.Shape.Points = append(pts, p.At)
	}
}

func (t penTool) up(c *Controller, p Pointer) history.Command {
	t.move(c, p)
	return commitPreview(c)
}

// shapeTool drags out a line, rectangle, ellipse or triangle from the
// press point to the current point.
type shapeTool struct {
	kind scene.Kind
}

func (t shapeTool) down(c *Controller, p Pointer) {
	c.state = Drawing
	c.start = p.At
	c.preview.Shape = &scene.Shape{
		Kind:       t.kind,
		Points:     t.points(p.At, p.At),
		Style:      c.style,
		Provenance: scene.Manual,
	}
}

func (t shapeTool) move(c *Controller, p Pointer) {
	c.preview.Shape.Points = t.points(c.start, p.At)
}

func (t shapeTool) up(c *Controller, p Pointer) history.Command {
	t.move(c, p)
	return commitPreview(c)
}

// points maps a drag to the kind's defining points. Triangles are isosceles
// with the apex centred on the top edge of the dragged box.
func (t shapeTool) points(a, b geometry.Point) []geometry.Point {
	if t.kind != scene.KindTriangle {
		return []geometry.Point{a, b}
	}
	r := geometry.RectFromCorners(a, b)
	return []geometry.Point{
		{X: r.X + r.Width/2, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X, Y: r.Y + r.Height},
	}
}

// commitPreview turns the preview into an AddShape command, or cancels a
// capture that never left its starting point.
func commitPreview(c *Controller) history.Command {
	sh := c.preview.Shape
	if sh == nil {
		return nil
	}
	b := geometry.BoundingBox(sh.Points)
	if b.Width == 0 && b.Height == 0 {
		c.note(ActivityCaptureCancelled)
		return nil
	}
	return history.NewAddShape(*sh)
}

// eraserTool hides every shape it touches during one drag and removes them
// all in a single composite on release.
type eraserTool struct{}

func (t eraserTool) down(c *Controller, p Pointer) {
	c.state = Drawing
	c.pending = make(map[string]bool)
	t.eraseAt(c, p.At)
}

func (t eraserTool) move(c *Controller, p Pointer) {
	t.eraseAt(c, p.At)
}

func (t eraserTool) up(c *Controller, p Pointer) history.Command {
	t.eraseAt(c, p.At)
	if len(c.preview.Hidden) == 0 {
		return nil
	}
	children := make([]history.Command, 0, len(c.preview.Hidden))
	for _, id := range c.preview.Hidden {
		children = append(children, history.NewRemoveShape(id, scene.Manual))
	}
	return history.NewComposite("erase", scene.Manual, children...)
}

func (eraserTool) eraseAt(c *Controller, at geometry.Point) {
	id, ok := c.hitLocked(at, func(id string) bool { return !c.pending[id] })
	if !ok {
		return
	}
	c.pending[id] = true
	c.preview.Hidden = append(c.preview.Hidden, id)
}

// selectTool picks shapes and drags them.
type selectTool struct{}

func (selectTool) down(c *Controller, p Pointer) {
	id, hit := c.hitLocked(p.At, nil)
	before := len(c.selection)
	switch {
	case !hit:
		if !p.Shift {
			c.selection = nil
		}
	case p.Shift:
		c.selection = toggle(c.selection, id)
	case !contains(c.selection, id):
		c.selection = []string{id}
	}
	if hit || before != len(c.selection) {
		c.note(ActivitySelectionChange, c.selection...)
	}
	if hit && contains(c.selection, id) {
		c.state = Drawing
		c.drag = true
		c.start = p.At
		c.preview.Moving = append([]string(nil), c.selection...)
	}
}

func (selectTool) move(c *Controller, p Pointer) {
	if c.drag {
		c.preview.Offset = p.At.Sub(c.start)
	}
}

func (t selectTool) up(c *Controller, p Pointer) history.Command {
	if !c.drag {
		return nil
	}
	t.move(c, p)
	off := c.preview.Offset
	if math.Hypot(off.X, off.Y) < c.opts.MoveThreshold {
		return nil
	}
	return transformAll(c.preview.Moving, geometry.Translate(off.X, off.Y), "move selection")
}

// transformAll builds one command moving every id by t.
func transformAll(ids []string, t geometry.Transform, label string) history.Command {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return history.NewTransformShape(ids[0], t, scene.Manual)
	}
	children := make([]history.Command, len(ids))
	for i, id := range ids {
		children[i] = history.NewTransformShape(id, t, scene.Manual)
	}
	return history.NewComposite(label, scene.Manual, children...)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func toggle(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(append([]string(nil), ids[:i]...), ids[i+1:]...)
		}
	}
	return append(append([]string(nil), ids...), id)
}
