package scene

import (
	"encoding/json"
	"fmt"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
)

// DocumentVersion is the current scene document format.
const DocumentVersion = 1

// Record is the serialized form of a shape. Record order is paint order.
type Record struct {
	ID         string             `json:"id"`
	Type       Kind               `json:"type"`
	Points     []geometry.Point   `json:"points,omitempty"`
	Children   []Record           `json:"children,omitempty"`
	Style      Style              `json:"style"`
	Provenance Provenance         `json:"provenance"`
	Transform  geometry.Transform `json:"transform"`
	Tag        string             `json:"tag,omitempty"`
	Degenerate bool               `json:"degenerate,omitempty"` // recomputed on decode
}

// Document is a serialized scene.
type Document struct {
	Version int      `json:"version"`
	Shapes  []Record `json:"shapes"`
}

// ToRecord converts a shape to its record.
func ToRecord(sh Shape) Record {
	r := Record{
		ID:         sh.ID,
		Type:       sh.Kind,
		Style:      sh.Style,
		Provenance: sh.Provenance,
		Transform:  sh.Transform,
		Tag:        sh.Tag,
		Degenerate: sh.Degenerate,
	}
	if sh.Points != nil {
		r.Points = append([]geometry.Point(nil), sh.Points...)
	}
	for _, c := range sh.Children {
		r.Children = append(r.Children, ToRecord(c))
	}
	return r
}

// ToShape converts a record back to a shape.
func (r Record) ToShape() Shape {
	sh := Shape{
		ID:         r.ID,
		Kind:       r.Type,
		Style:      r.Style,
		Provenance: r.Provenance,
		Transform:  r.Transform,
		Tag:        r.Tag,
	}
	if r.Points != nil {
		sh.Points = append([]geometry.Point(nil), r.Points...)
	}
	for _, c := range r.Children {
		sh.Children = append(sh.Children, c.ToShape())
	}
	return sh
}

// Encode converts the scene to a document.
func Encode(s *Scene) Document {
	doc := Document{Version: DocumentVersion, Shapes: make([]Record, 0, s.Len())}
	for _, sh := range s.Shapes() {
		doc.Shapes = append(doc.Shapes, ToRecord(sh))
	}
	return doc
}

// Decode rebuilds a scene from a document, keeping ids, order and provenance.
func Decode(doc Document) (*Scene, error) {
	if doc.Version > DocumentVersion {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unsupported scene document version %d", doc.Version))
	}
	s := New()
	for i, r := range doc.Shapes {
		if _, err := s.Add(r.ToShape()); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return s, nil
}

// Marshal encodes the scene as JSON.
func Marshal(s *Scene) ([]byte, error) {
	return json.Marshal(Encode(s))
}

// Unmarshal decodes a JSON scene document.
func Unmarshal(data []byte) (*Scene, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewInvalidRequest("invalid scene document: " + err.Error())
	}
	return Decode(doc)
}
