package scene

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
)

func TestMarshalUnmarshal_PreservesOrderAndAttributes(t *testing.T) {
	s := New()
	_, err := s.Add(rect(0, 0, 40, 20))
	require.NoError(t, err)
	_, err = s.Add(Shape{
		Kind:       KindTriangle,
		Points:     []geometry.Point{{X: 0, Y: 10}, {X: 10, Y: 10}, {X: 5, Y: 0}},
		Style:      Style{Stroke: "#333333", Width: 2, Fill: "#ffcc00"},
		Provenance: AIAccepted,
		Tag:        "assistant:cat_ear",
	})
	require.NoError(t, err)
	id3, err := s.Add(stroke(geometry.Pt(1, 1), geometry.Pt(2, 3), geometry.Pt(4, 4)))
	require.NoError(t, err)
	_, err = s.Transform(id3, geometry.Transform{DX: 3, DY: 4, Scale: 1.5, Rotation: 0.25})
	require.NoError(t, err)

	data, err := Marshal(s)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, s.Shapes(), decoded.Shapes())
}

func TestDecode_RecomputesDegenerate(t *testing.T) {
	doc := Document{Version: 1, Shapes: []Record{
		{ID: "a", Type: KindRectangle, Points: []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, Degenerate: false},
	}}

	s, err := Decode(doc)
	require.NoError(t, err)
	sh, ok := s.Get("a")
	require.True(t, ok)
	require.True(t, sh.Degenerate)
	require.Equal(t, 1.0, sh.Transform.Scale)
}

func TestDecode_RejectsMalformedRecord(t *testing.T) {
	doc := Document{Version: 1, Shapes: []Record{
		{ID: "a", Type: KindLine, Points: []geometry.Point{{X: 0, Y: 0}}},
	}}

	_, err := Decode(doc)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidGeometry))
}

func TestDecode_RejectsSharedChildID(t *testing.T) {
	doc := Document{Version: 1, Shapes: []Record{
		{ID: "a", Type: KindStroke, Points: []geometry.Point{{X: 1, Y: 1}}},
		{ID: "g", Type: KindGroup, Children: []Record{
			{ID: "a", Type: KindStroke, Points: []geometry.Point{{X: 2, Y: 2}}},
		}},
	}}

	_, err := Decode(doc)
	require.True(t, errors.Is(err, errors.ErrConflict))
}

func TestDecode_RejectsFutureVersion(t *testing.T) {
	_, err := Decode(Document{Version: DocumentVersion + 1})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestUnmarshal_InvalidJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`{"shapes": [`))
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
