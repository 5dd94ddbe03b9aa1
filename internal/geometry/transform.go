package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Transform is a uniform similarity applied about a pivot (the centre of a
// shape's local bounds): scale and rotate around the pivot, then translate.
//
// Uniform scale and rotation commute, so composing two transforms about the
// same moving pivot is component-wise: offsets add, scales multiply,
// rotations add.
type Transform struct {
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"` // radians, clockwise in screen space
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Translate returns a pure offset.
func Translate(dx, dy float64) Transform {
	return Transform{DX: dx, DY: dy, Scale: 1}
}

// Normalized treats a zero scale as 1 so zero-valued records decode sanely.
func (t Transform) Normalized() Transform {
	if t.Scale == 0 {
		t.Scale = 1
	}
	return t
}

// IsIdentity reports whether t has no effect.
func (t Transform) IsIdentity() bool {
	t = t.Normalized()
	return t.DX == 0 && t.DY == 0 && t.Scale == 1 && math.Mod(t.Rotation, 2*math.Pi) == 0
}

// Then returns t followed by next.
func (t Transform) Then(next Transform) Transform {
	t = t.Normalized()
	next = next.Normalized()
	return Transform{
		DX:       t.DX + next.DX,
		DY:       t.DY + next.DY,
		Scale:    t.Scale * next.Scale,
		Rotation: t.Rotation + next.Rotation,
	}
}

// Valid rejects non-finite components and non-positive scales.
func (t Transform) Valid() bool {
	t = t.Normalized()
	for _, v := range []float64{t.DX, t.DY, t.Scale, t.Rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return t.Scale > 0
}

// Matrix returns the 3x3 homogeneous matrix of t about pivot.
func (t Transform) Matrix(pivot Point) *mat.Dense {
	t = t.Normalized()
	cos := math.Cos(t.Rotation) * t.Scale
	sin := math.Sin(t.Rotation) * t.Scale
	// p' = pivot + offset + R*S*(p - pivot)
	tx := pivot.X + t.DX - (cos*pivot.X - sin*pivot.Y)
	ty := pivot.Y + t.DY - (sin*pivot.X + cos*pivot.Y)
	return mat.NewDense(3, 3, []float64{
		cos, -sin, tx,
		sin, cos, ty,
		0, 0, 1,
	})
}

// Apply maps a local point into canvas space.
func (t Transform) Apply(p, pivot Point) Point {
	return applyMatrix(t.Matrix(pivot), p)
}

// ApplyAll maps every point into canvas space.
func (t Transform) ApplyAll(points []Point, pivot Point) []Point {
	m := t.Matrix(pivot)
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = applyMatrix(m, p)
	}
	return out
}

// Unapply maps a canvas point back into local space. It fails only when the
// matrix is singular, which a Valid transform never is.
func (t Transform) Unapply(p, pivot Point) (Point, bool) {
	var inv mat.Dense
	if err := inv.Inverse(t.Matrix(pivot)); err != nil {
		return Point{}, false
	}
	return applyMatrix(&inv, p), true
}

func applyMatrix(m mat.Matrix, p Point) Point {
	v := mat.NewVecDense(3, []float64{p.X, p.Y, 1})
	var out mat.VecDense
	out.MulVec(m, v)
	return Point{X: out.AtVec(0), Y: out.AtVec(1)}
}
