package drawing

import "github.com/haiilab/sketchlab/internal/scene"

// Stats counts the top-level shapes of a scene by kind and provenance.
type Stats struct {
	Shapes       int                      `json:"shapes"`
	ByKind       map[scene.Kind]int       `json:"by_kind"`
	ByProvenance map[scene.Provenance]int `json:"by_provenance"`
	Degenerate   int                      `json:"degenerate"`
}

// AcceptedShare is the fraction of shapes that came from accepted
// suggestions.
func (s Stats) AcceptedShare() float64 {
	if s.Shapes == 0 {
		return 0
	}
	return float64(s.ByProvenance[scene.AIAccepted]) / float64(s.Shapes)
}

// ComputeStats summarises the shapes of sc.
func ComputeStats(sc *scene.Scene) Stats {
	st := Stats{
		ByKind:       make(map[scene.Kind]int),
		ByProvenance: make(map[scene.Provenance]int),
	}
	for _, sh := range sc.Shapes() {
		st.Shapes++
		st.ByKind[sh.Kind]++
		st.ByProvenance[sh.Provenance]++
		if sh.Degenerate {
			st.Degenerate++
		}
	}
	return st
}
