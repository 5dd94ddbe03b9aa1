// Package scene holds the authoritative, ordered set of shapes of a drawing.
//
// A Scene is not safe for concurrent use; the history engine serialises
// every mutation and read.
package scene

import (
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
)

// Scene is an arena of shapes keyed by id plus their paint order.
// Index 0 is painted first; hit-testing walks the order in reverse.
type Scene struct {
	shapes  map[string]*Shape
	order   []string
	version uint64
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{shapes: make(map[string]*Shape)}
}

// Version increases on every mutation. Suggestion requests use it to detect
// that the scene changed while they were in flight.
func (s *Scene) Version() uint64 {
	return s.version
}

// Len returns the number of top-level shapes.
func (s *Scene) Len() int {
	return len(s.order)
}

// Has reports whether id is in the scene.
func (s *Scene) Has(id string) bool {
	_, ok := s.shapes[id]
	return ok
}

// Add appends shape at the top of the paint order and returns its id.
func (s *Scene) Add(shape Shape) (string, error) {
	return s.Insert(shape, len(s.order))
}

// Insert places shape at index (clamped to the valid range). Reverting a
// removal uses it to restore the original paint position.
func (s *Scene) Insert(shape Shape, index int) (string, error) {
	sh := shape.Clone()
	if err := sh.Validate(); err != nil {
		return "", err
	}
	sh.normalize()
	if err := s.checkIDs(&sh); err != nil {
		return "", err
	}

	if index < 0 {
		index = 0
	}
	if index > len(s.order) {
		index = len(s.order)
	}
	s.order = append(s.order, "")
	copy(s.order[index+1:], s.order[index:])
	s.order[index] = sh.ID
	s.shapes[sh.ID] = &sh
	s.version++
	return sh.ID, nil
}

// checkIDs rejects sh when any id in its tree repeats within the tree or is
// already used by a shape or group child in the scene.
func (s *Scene) checkIDs(sh *Shape) error {
	taken := make(map[string]bool)
	for _, other := range s.shapes {
		for _, c := range other.Children {
			collectIDs(c, taken)
		}
	}
	seen := make(map[string]bool)
	var walk func(x *Shape) error
	walk = func(x *Shape) error {
		if _, top := s.shapes[x.ID]; top || taken[x.ID] || seen[x.ID] {
			return errors.NewConflict("shape id already in scene: " + x.ID)
		}
		seen[x.ID] = true
		for i := range x.Children {
			if err := walk(&x.Children[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(sh)
}

func collectIDs(sh Shape, into map[string]bool) {
	into[sh.ID] = true
	for _, c := range sh.Children {
		collectIDs(c, into)
	}
}

// Remove deletes id and returns the removed shape with its former index.
func (s *Scene) Remove(id string) (Shape, int, error) {
	sh, ok := s.shapes[id]
	if !ok {
		return Shape{}, -1, errors.NewNotFound("shape", id)
	}
	idx := s.IndexOf(id)
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	delete(s.shapes, id)
	s.version++
	return *sh, idx, nil
}

// Get returns a copy of the shape with the given id.
func (s *Scene) Get(id string) (Shape, bool) {
	sh, ok := s.shapes[id]
	if !ok {
		return Shape{}, false
	}
	return sh.Clone(), true
}

// IndexOf returns the paint index of id, or -1.
func (s *Scene) IndexOf(id string) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}

// Transform composes t onto the shape's current transform and returns the
// previous one.
func (s *Scene) Transform(id string, t geometry.Transform) (geometry.Transform, error) {
	sh, ok := s.shapes[id]
	if !ok {
		return geometry.Transform{}, errors.NewNotFound("shape", id)
	}
	if !t.Valid() {
		return geometry.Transform{}, errors.NewInvalidGeometry(string(sh.Kind), "transform must be finite with positive scale")
	}
	prev := sh.Transform
	sh.Transform = prev.Then(t)
	s.version++
	return prev, nil
}

// SetTransform replaces the shape's transform outright.
func (s *Scene) SetTransform(id string, t geometry.Transform) error {
	sh, ok := s.shapes[id]
	if !ok {
		return errors.NewNotFound("shape", id)
	}
	if !t.Valid() {
		return errors.NewInvalidGeometry(string(sh.Kind), "transform must be finite with positive scale")
	}
	sh.Transform = t.Normalized()
	s.version++
	return nil
}

// SetStyle replaces the shape's style and returns the previous one.
func (s *Scene) SetStyle(id string, st Style) (Style, error) {
	sh, ok := s.shapes[id]
	if !ok {
		return Style{}, errors.NewNotFound("shape", id)
	}
	prev := sh.Style
	sh.Style = st.normalized()
	s.version++
	return prev, nil
}

// HitTest returns the topmost shape under p.
func (s *Scene) HitTest(p geometry.Point, tolerance float64) (string, bool) {
	return s.HitTestFunc(p, tolerance, nil)
}

// HitTestFunc is HitTest restricted to ids accepted by keep (nil keeps all).
func (s *Scene) HitTestFunc(p geometry.Point, tolerance float64, keep func(id string) bool) (string, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		if keep != nil && !keep(id) {
			continue
		}
		if s.shapes[id].Contains(p, tolerance) {
			return id, true
		}
	}
	return "", false
}

// IDs returns shape ids in paint order.
func (s *Scene) IDs() []string {
	return append([]string(nil), s.order...)
}

// Shapes returns copies of all shapes in paint order.
func (s *Scene) Shapes() []Shape {
	out := make([]Shape, len(s.order))
	for i, id := range s.order {
		out[i] = s.shapes[id].Clone()
	}
	return out
}

// Bounds is the union of all shape bounds.
func (s *Scene) Bounds() geometry.Rect {
	var r geometry.Rect
	for i, id := range s.order {
		b := s.shapes[id].Bounds()
		if i == 0 {
			r = b
			continue
		}
		r = r.Union(b)
	}
	return r
}

// Snapshot is an immutable deep copy of a scene.
type Snapshot struct {
	shapes []Shape
}

// Snapshot copies the whole scene.
func (s *Scene) Snapshot() Snapshot {
	return Snapshot{shapes: s.Shapes()}
}

// Restore replaces the scene contents with a snapshot.
func (s *Scene) Restore(snap Snapshot) {
	s.shapes = make(map[string]*Shape, len(snap.shapes))
	s.order = make([]string, 0, len(snap.shapes))
	for _, sh := range snap.shapes {
		c := sh.Clone()
		s.shapes[c.ID] = &c
		s.order = append(s.order, c.ID)
	}
	s.version++
}

// Shapes returns copies of the snapshot's shapes in paint order.
func (snap Snapshot) Shapes() []Shape {
	out := make([]Shape, len(snap.shapes))
	for i, sh := range snap.shapes {
		out[i] = sh.Clone()
	}
	return out
}

// Len returns the number of shapes in the snapshot.
func (snap Snapshot) Len() int {
	return len(snap.shapes)
}
