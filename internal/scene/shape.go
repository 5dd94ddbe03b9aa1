package scene

import (
	"fmt"
	"math"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
)

// Kind identifies the geometry variant of a shape.
type Kind string

const (
	KindStroke    Kind = "stroke"
	KindLine      Kind = "line"
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindTriangle  Kind = "triangle"
	KindGroup     Kind = "group" // a suggested multi-shape element
)

// Kinds lists every known shape kind.
var Kinds = []Kind{KindStroke, KindLine, KindRectangle, KindEllipse, KindTriangle, KindGroup}

// Provenance records who produced a shape.
type Provenance string

const (
	Manual      Provenance = "manual"
	AIGenerated Provenance = "ai_generated" // proposed, not yet part of the scene
	AIAccepted  Provenance = "ai_accepted"
)

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	switch p {
	case Manual, AIGenerated, AIAccepted:
		return true
	}
	return false
}

// NoFill marks an unfilled closed shape.
const NoFill = "none"

// Style is the paint of a shape.
type Style struct {
	Stroke string  `json:"stroke"`
	Width  float64 `json:"width"`
	Fill   string  `json:"fill"`
}

// DefaultStyle is a 3px black outline without fill.
func DefaultStyle() Style {
	return Style{Stroke: "#000000", Width: 3, Fill: NoFill}
}

func (st Style) normalized() Style {
	if st.Stroke == "" {
		st.Stroke = "#000000"
	}
	if st.Fill == "" {
		st.Fill = NoFill
	}
	return st
}

// Filled reports whether the style paints the interior.
func (st Style) Filled() bool {
	return st.Fill != "" && st.Fill != NoFill
}

// Shape is one element of a scene.
//
// Points are in local coordinates and depend on Kind: a stroke path, two line
// endpoints, two opposite corners of a rectangle or of an ellipse's bounding
// box, or three triangle vertices. Groups carry Children instead of Points.
type Shape struct {
	ID         string             `json:"id"`
	Kind       Kind               `json:"kind"`
	Points     []geometry.Point   `json:"points,omitempty"`
	Children   []Shape            `json:"children,omitempty"`
	Style      Style              `json:"style"`
	Provenance Provenance         `json:"provenance"`
	Transform  geometry.Transform `json:"transform"`
	Tag        string             `json:"tag,omitempty"`
	Degenerate bool               `json:"degenerate,omitempty"`
}

// Clone returns a deep copy.
func (s Shape) Clone() Shape {
	out := s
	if s.Points != nil {
		out.Points = append([]geometry.Point(nil), s.Points...)
	}
	if s.Children != nil {
		out.Children = make([]Shape, len(s.Children))
		for i, c := range s.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Fresh returns a deep copy with every id cleared, ready to be added as a
// new shape.
func (s Shape) Fresh() Shape {
	out := s.Clone()
	out.clearIDs()
	return out
}

func (s *Shape) clearIDs() {
	s.ID = ""
	for i := range s.Children {
		s.Children[i].clearIDs()
	}
}

// AssignIDs gives the shape and its children ids where they have none.
func (s *Shape) AssignIDs() {
	if s.ID == "" {
		s.ID = NewID()
	}
	for i := range s.Children {
		s.Children[i].AssignIDs()
	}
}

// Closed reports whether the shape encloses an area.
func (s *Shape) Closed() bool {
	switch s.Kind {
	case KindRectangle, KindEllipse, KindTriangle:
		return true
	}
	return false
}

// LocalBounds is the untransformed bounding box.
func (s *Shape) LocalBounds() geometry.Rect {
	if s.Kind == KindGroup {
		var r geometry.Rect
		for i := range s.Children {
			b := s.Children[i].Bounds()
			if i == 0 {
				r = b
				continue
			}
			r = r.Union(b)
		}
		return r
	}
	return geometry.BoundingBox(s.Points)
}

// Pivot is the centre the transform rotates and scales around.
func (s *Shape) Pivot() geometry.Point {
	return s.LocalBounds().Center()
}

// Outline returns the local outline used for hit-testing and export.
func (s *Shape) Outline() []geometry.Point {
	switch s.Kind {
	case KindRectangle:
		if len(s.Points) != 2 {
			return nil
		}
		return geometry.RectFromCorners(s.Points[0], s.Points[1]).Corners()
	case KindEllipse:
		if len(s.Points) != 2 {
			return nil
		}
		return geometry.EllipseOutline(geometry.RectFromCorners(s.Points[0], s.Points[1]), 48)
	case KindGroup:
		return s.LocalBounds().Corners()
	default:
		return s.Points
	}
}

// WorldOutline returns the outline in canvas coordinates.
func (s *Shape) WorldOutline() []geometry.Point {
	return s.Transform.ApplyAll(s.Outline(), s.Pivot())
}

// WorldPoints returns the defining points in canvas coordinates.
func (s *Shape) WorldPoints() []geometry.Point {
	return s.Transform.ApplyAll(s.Points, s.Pivot())
}

// Bounds is the canvas-space bounding box.
func (s *Shape) Bounds() geometry.Rect {
	return geometry.BoundingBox(s.WorldOutline())
}

// Contains reports whether p (canvas space) hits the shape. Open shapes and
// outlines are hit within tolerance plus half the stroke width.
func (s *Shape) Contains(p geometry.Point, tolerance float64) bool {
	pivot := s.Pivot()
	local, ok := s.Transform.Unapply(p, pivot)
	if !ok {
		return false
	}
	scale := s.Transform.Normalized().Scale
	localTol := tolerance / scale
	radius := localTol + s.Style.Width/2

	switch s.Kind {
	case KindStroke, KindLine:
		return geometry.DistanceToPolyline(local, s.Points) <= radius
	case KindRectangle, KindTriangle:
		outline := s.Outline()
		return geometry.PointInPolygon(local, outline) || geometry.DistanceToPolygon(local, outline) <= radius
	case KindEllipse:
		if len(s.Points) != 2 {
			return false
		}
		r := geometry.RectFromCorners(s.Points[0], s.Points[1])
		return geometry.EllipseDistance(local, r) <= 1 || geometry.DistanceToPolygon(local, s.Outline()) <= radius
	case KindGroup:
		for i := len(s.Children) - 1; i >= 0; i-- {
			if s.Children[i].Contains(local, localTol) {
				return true
			}
		}
	}
	return false
}

// IsDegenerate reports zero-extent geometry: a stroke that never moved, a
// line with equal endpoints, a flat rectangle or ellipse, a collinear triangle.
func (s *Shape) IsDegenerate() bool {
	switch s.Kind {
	case KindStroke, KindLine:
		b := geometry.BoundingBox(s.Points)
		return b.Width == 0 && b.Height == 0
	case KindRectangle, KindEllipse:
		b := geometry.BoundingBox(s.Points)
		return b.Width == 0 || b.Height == 0
	case KindTriangle:
		if len(s.Points) != 3 {
			return true
		}
		a, b, c := s.Points[0], s.Points[1], s.Points[2]
		area := (b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)
		return area == 0
	case KindGroup:
		for i := range s.Children {
			if !s.Children[i].IsDegenerate() {
				return false
			}
		}
		return true
	}
	return false
}

// wantPoints returns the exact point count for a kind, or -1 for "at least one".
func wantPoints(k Kind) (int, bool) {
	switch k {
	case KindStroke:
		return -1, true
	case KindLine, KindRectangle, KindEllipse:
		return 2, true
	case KindTriangle:
		return 3, true
	case KindGroup:
		return 0, true
	}
	return 0, false
}

// Validate checks that the geometry is well formed. Zero-extent geometry is
// well formed; it is flagged by normalize instead.
func (s *Shape) Validate() error {
	n, ok := wantPoints(s.Kind)
	if !ok {
		return errors.NewInvalidGeometry(string(s.Kind), "unknown shape kind")
	}
	switch {
	case n == -1 && len(s.Points) == 0:
		return errors.NewInvalidGeometry(string(s.Kind), "needs at least 1 point")
	case n >= 0 && len(s.Points) != n:
		return errors.NewInvalidGeometry(string(s.Kind), fmt.Sprintf("needs %d points, got %d", n, len(s.Points)))
	}
	for _, p := range s.Points {
		if !p.Finite() {
			return errors.NewInvalidGeometry(string(s.Kind), "non-finite coordinate")
		}
	}
	if math.IsNaN(s.Style.Width) || math.IsInf(s.Style.Width, 0) || s.Style.Width < 0 {
		return errors.NewInvalidGeometry(string(s.Kind), "stroke width must be a non-negative number")
	}
	if !s.Transform.Valid() {
		return errors.NewInvalidGeometry(string(s.Kind), "transform must be finite with positive scale")
	}
	if s.Kind == KindGroup {
		if len(s.Children) == 0 {
			return errors.NewInvalidGeometry(string(s.Kind), "group needs at least 1 child")
		}
		for i := range s.Children {
			if err := s.Children[i].Validate(); err != nil {
				return err
			}
		}
	} else if len(s.Children) > 0 {
		return errors.NewInvalidGeometry(string(s.Kind), "only groups may have children")
	}
	if s.Provenance != "" && !s.Provenance.Valid() {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown provenance %q", s.Provenance))
	}
	return nil
}

// normalize fills defaults, assigns missing ids and sets the degenerate flag.
func (s *Shape) normalize() {
	if s.ID == "" {
		s.ID = NewID()
	}
	if s.Provenance == "" {
		s.Provenance = Manual
	}
	s.Style = s.Style.normalized()
	s.Transform = s.Transform.Normalized()
	for i := range s.Children {
		if s.Children[i].Provenance == "" {
			s.Children[i].Provenance = s.Provenance
		}
		s.Children[i].normalize()
	}
	s.Degenerate = s.IsDegenerate()
}
