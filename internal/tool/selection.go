package tool

import (
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/scene"
)

// Selection returns the selected ids that still exist in the scene.
func (c *Controller) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveSelectionLocked()
}

// SelectIDs replaces the selection. Unknown ids fail with NOT_FOUND.
func (c *Controller) SelectIDs(ids ...string) error {
	c.mu.Lock()
	var missing string
	c.engine.View(func(s *scene.Scene) {
		for _, id := range ids {
			if !s.Has(id) {
				missing = id
				return
			}
		}
	})
	if missing != "" {
		c.mu.Unlock()
		return errors.NewNotFound("shape", missing)
	}
	c.selection = append([]string(nil), ids...)
	tool := c.tool
	c.mu.Unlock()

	c.emit(Activity{Name: ActivitySelectionChange, Tool: tool, ShapeIDs: ids})
	return nil
}

// ClearSelection deselects everything.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.selection = nil
	c.mu.Unlock()
}

// Duplicate adds copies of the selected shapes with fresh ids, the same
// geometry and style, and the source provenance, offset by the configured
// duplicate offset. The copies become the selection.
func (c *Controller) Duplicate() ([]string, error) {
	c.mu.Lock()
	shapes := c.selectedShapesLocked()
	c.mu.Unlock()
	if len(shapes) == 0 {
		return nil, errors.NewInvalidRequest("nothing selected")
	}
	return c.addCopies("duplicate", shapes)
}

// DeleteSelection removes the selected shapes as one undo step.
func (c *Controller) DeleteSelection() error {
	c.mu.Lock()
	ids := c.liveSelectionLocked()
	c.selection = nil
	c.mu.Unlock()
	if len(ids) == 0 {
		return errors.NewInvalidRequest("nothing selected")
	}
	return c.engine.Execute(removeAll(ids, "delete selection"))
}

// Copy places deep copies of the selection on the clipboard and returns
// how many shapes were copied.
func (c *Controller) Copy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	shapes := c.selectedShapesLocked()
	if len(shapes) > 0 {
		c.clipboard = shapes
	}
	return len(shapes)
}

// Cut copies the selection and removes it as one undo step.
func (c *Controller) Cut() error {
	if c.Copy() == 0 {
		return errors.NewInvalidRequest("nothing selected")
	}
	return c.DeleteSelection()
}

// Paste adds the clipboard with fresh ids, offset from the copied
// position. Repeated pastes cascade.
func (c *Controller) Paste() ([]string, error) {
	c.mu.Lock()
	shapes := make([]scene.Shape, len(c.clipboard))
	for i, sh := range c.clipboard {
		shapes[i] = sh.Clone()
	}
	c.mu.Unlock()
	if len(shapes) == 0 {
		return nil, errors.NewInvalidRequest("clipboard is empty")
	}

	ids, err := c.addCopies("paste", shapes)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	off := geometry.Translate(c.opts.DuplicateOffset, c.opts.DuplicateOffset)
	for i := range c.clipboard {
		c.clipboard[i].Transform = c.clipboard[i].Transform.Then(off)
	}
	c.mu.Unlock()
	return ids, nil
}

// TransformSelection rotates, scales or moves the selection as one step.
func (c *Controller) TransformSelection(t geometry.Transform) error {
	c.mu.Lock()
	ids := c.liveSelectionLocked()
	c.mu.Unlock()
	cmd := transformAll(ids, t, "transform selection")
	if cmd == nil {
		return errors.NewInvalidRequest("nothing selected")
	}
	return c.engine.Execute(cmd)
}

// RestyleSelection applies st to every selected shape.
func (c *Controller) RestyleSelection(st scene.Style) error {
	c.mu.Lock()
	ids := c.liveSelectionLocked()
	c.mu.Unlock()
	if len(ids) == 0 {
		return errors.NewInvalidRequest("nothing selected")
	}
	children := make([]history.Command, len(ids))
	for i, id := range ids {
		children[i] = history.NewRestyle(id, st, scene.Manual)
	}
	return c.engine.Execute(history.NewComposite("restyle selection", scene.Manual, children...))
}

func (c *Controller) addCopies(label string, shapes []scene.Shape) ([]string, error) {
	c.mu.Lock()
	off := geometry.Translate(c.opts.DuplicateOffset, c.opts.DuplicateOffset)
	c.mu.Unlock()

	children := make([]history.Command, len(shapes))
	ids := make([]string, len(shapes))
	for i, sh := range shapes {
		cp := sh.Fresh()
		cp.Transform = cp.Transform.Then(off)
		add := history.NewAddShape(cp)
		children[i] = add
		ids[i] = add.ShapeIDs()[0]
	}
	// Copies keep the provenance of their sources, so the composite itself
	// is a manual action.
	if err := c.engine.Execute(history.NewComposite(label, scene.Manual, children...)); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.selection = ids
	tool := c.tool
	c.mu.Unlock()
	c.emit(Activity{Name: ActivitySelectionChange, Tool: tool, ShapeIDs: ids})
	return ids, nil
}

func (c *Controller) liveSelectionLocked() []string {
	var live []string
	c.engine.View(func(s *scene.Scene) {
		for _, id := range c.selection {
			if s.Has(id) {
				live = append(live, id)
			}
		}
	})
	c.selection = live
	return append([]string(nil), live...)
}

func (c *Controller) selectedShapesLocked() []scene.Shape {
	var shapes []scene.Shape
	c.engine.View(func(s *scene.Scene) {
		for _, id := range c.selection {
			if sh, ok := s.Get(id); ok {
				shapes = append(shapes, sh)
			}
		}
	})
	return shapes
}

func removeAll(ids []string, label string) history.Command {
	children := make([]history.Command, len(ids))
	for i, id := range ids {
		children[i] = history.NewRemoveShape(id, scene.Manual)
	}
	return history.NewComposite(label, scene.Manual, children...)
}
