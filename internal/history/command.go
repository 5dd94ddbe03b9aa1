package history

import (
	"fmt"

	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/scene"
)

// Command is one reversible scene edit. Apply followed by Revert leaves the
// scene observationally equal to its prior state. Commands hold ids and
// copies, never pointers into the scene.
type Command interface {
	Apply(s *scene.Scene) error
	Revert(s *scene.Scene) error
	Label() string
	Provenance() scene.Provenance
	ShapeIDs() []string
}

// AddShape adds one shape at the top of the paint order.
type AddShape struct {
	shape scene.Shape
}

// NewAddShape assigns the id up front so redo recreates the same shape.
func NewAddShape(shape scene.Shape) *AddShape {
	sh := shape.Clone()
	sh.AssignIDs()
	return &AddShape{shape: sh}
}

func (c *AddShape) Apply(s *scene.Scene) error {
	_, err := s.Add(c.shape)
	return err
}

func (c *AddShape) Revert(s *scene.Scene) error {
	_, _, err := s.Remove(c.shape.ID)
	return err
}

func (c *AddShape) Label() string                { return "add " + string(c.shape.Kind) }
func (c *AddShape) Provenance() scene.Provenance { return provenanceOr(c.shape.Provenance) }
func (c *AddShape) ShapeIDs() []string           { return []string{c.shape.ID} }

// Shape returns a copy of the shape this command adds.
func (c *AddShape) Shape() scene.Shape { return c.shape.Clone() }

// RemoveShape removes one shape and remembers where it was painted.
type RemoveShape struct {
	id         string
	provenance scene.Provenance
	removed    scene.Shape
	index      int
}

// NewRemoveShape removes id on behalf of an actor with the given provenance.
func NewRemoveShape(id string, provenance scene.Provenance) *RemoveShape {
	return &RemoveShape{id: id, provenance: provenance, index: -1}
}

func (c *RemoveShape) Apply(s *scene.Scene) error {
	sh, idx, err := s.Remove(c.id)
	if err != nil {
		return err
	}
	c.removed, c.index = sh, idx
	return nil
}

func (c *RemoveShape) Revert(s *scene.Scene) error {
	_, err := s.Insert(c.removed, c.index)
	return err
}

func (c *RemoveShape) Label() string                { return "remove shape" }
func (c *RemoveShape) Provenance() scene.Provenance { return provenanceOr(c.provenance) }
func (c *RemoveShape) ShapeIDs() []string           { return []string{c.id} }

// TransformShape composes a transform onto one shape.
type TransformShape struct {
	id         string
	delta      geometry.Transform
	provenance scene.Provenance
	prev       geometry.Transform
}

// NewTransformShape moves, scales or rotates id by delta.
func NewTransformShape(id string, delta geometry.Transform, provenance scene.Provenance) *TransformShape {
	return &TransformShape{id: id, delta: delta.Normalized(), provenance: provenance}
}

func (c *TransformShape) Apply(s *scene.Scene) error {
	prev, err := s.Transform(c.id, c.delta)
	if err != nil {
		return err
	}
	c.prev = prev
	return nil
}

func (c *TransformShape) Revert(s *scene.Scene) error {
	return s.SetTransform(c.id, c.prev)
}

func (c *TransformShape) Label() string                { return "transform shape" }
func (c *TransformShape) Provenance() scene.Provenance { return provenanceOr(c.provenance) }
func (c *TransformShape) ShapeIDs() []string           { return []string{c.id} }

// Restyle replaces the style of one shape.
type Restyle struct {
	id         string
	style      scene.Style
	provenance scene.Provenance
	prev       scene.Style
}

// NewRestyle sets the stroke, width and fill of id.
func NewRestyle(id string, style scene.Style, provenance scene.Provenance) *Restyle {
	return &Restyle{id: id, style: style, provenance: provenance}
}

func (c *Restyle) Apply(s *scene.Scene) error {
	prev, err := s.SetStyle(c.id, c.style)
	if err != nil {
		return err
	}
	c.prev = prev
	return nil
}

func (c *Restyle) Revert(s *scene.Scene) error {
	_, err := s.SetStyle(c.id, c.prev)
	return err
}

func (c *Restyle) Label() string                { return "restyle shape" }
func (c *Restyle) Provenance() scene.Provenance { return provenanceOr(c.provenance) }
func (c *Restyle) ShapeIDs() []string           { return []string{c.id} }

// Composite applies its children in order as one undo step.
type Composite struct {
	label      string
	provenance scene.Provenance
	children   []Command
}

// NewComposite groups children under a single label.
func NewComposite(label string, provenance scene.Provenance, children ...Command) *Composite {
	return &Composite{label: label, provenance: provenance, children: children}
}

// Apply is atomic: if a child fails, the children already applied are
// reverted before the error is returned.
func (c *Composite) Apply(s *scene.Scene) error {
	for i, child := range c.children {
		if err := child.Apply(s); err != nil {
			for j := i - 1; j >= 0; j-- {
				if rerr := c.children[j].Revert(s); rerr != nil {
					return fmt.Errorf("%s: rollback after %w failed: %v", c.label, err, rerr)
				}
			}
			return err
		}
	}
	return nil
}

func (c *Composite) Revert(s *scene.Scene) error {
	for i := len(c.children) - 1; i >= 0; i-- {
		if err := c.children[i].Revert(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) Label() string                { return c.label }
func (c *Composite) Provenance() scene.Provenance { return provenanceOr(c.provenance) }

func (c *Composite) ShapeIDs() []string {
	var ids []string
	for _, child := range c.children {
		ids = append(ids, child.ShapeIDs()...)
	}
	return ids
}

// Len returns the number of children.
func (c *Composite) Len() int { return len(c.children) }

// SnapshotCommand runs an arbitrary bulk mutation and restores full scene
// snapshots to undo and redo it.
type SnapshotCommand struct {
	label      string
	provenance scene.Provenance
	mutate     func(s *scene.Scene) error
	before     *scene.Snapshot
	after      *scene.Snapshot
	ids        []string
}

// NewSnapshotCommand wraps mutate; it runs once, later redos restore its result.
func NewSnapshotCommand(label string, provenance scene.Provenance, mutate func(s *scene.Scene) error) *SnapshotCommand {
	return &SnapshotCommand{label: label, provenance: provenance, mutate: mutate}
}

// NewClear removes every shape.
func NewClear(provenance scene.Provenance) *SnapshotCommand {
	return NewSnapshotCommand("clear scene", provenance, func(s *scene.Scene) error {
		s.Restore(scene.Snapshot{})
		return nil
	})
}

func (c *SnapshotCommand) Apply(s *scene.Scene) error {
	before := s.Snapshot()
	if c.after != nil {
		s.Restore(*c.after)
		c.before = &before
		return nil
	}
	if err := c.mutate(s); err != nil {
		s.Restore(before)
		return err
	}
	after := s.Snapshot()
	c.before, c.after = &before, &after
	for _, sh := range before.Shapes() {
		c.ids = append(c.ids, sh.ID)
	}
	return nil
}

func (c *SnapshotCommand) Revert(s *scene.Scene) error {
	if c.before == nil {
		return fmt.Errorf("%s: revert before apply", c.label)
	}
	s.Restore(*c.before)
	return nil
}

func (c *SnapshotCommand) Label() string                { return c.label }
func (c *SnapshotCommand) Provenance() scene.Provenance { return provenanceOr(c.provenance) }
func (c *SnapshotCommand) ShapeIDs() []string           { return c.ids }

func provenanceOr(p scene.Provenance) scene.Provenance {
	if p == "" {
		return scene.Manual
	}
	return p
}
