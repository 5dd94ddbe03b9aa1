package suggest

import (
	"context"

	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/scene"
)

// Tags carried by wizard shapes, used to avoid proposing an element twice.
const (
	TagCatEar = "assistant:cat_ear"
	TagRoof   = "assistant:roof"
	TagWheel  = "assistant:wheel"
)

// WizardSource proposes contextual completions from simple heuristics on
// the current drawing. It abstains (returns nothing) when no rule applies.
type WizardSource struct{}

func NewWizardSource() *WizardSource { return &WizardSource{} }

func (w *WizardSource) Name() string { return "wizard" }

type rule struct {
	id    string
	tasks []string // empty matches any task
	tag   string
	apply func(c Context) (Proposal, bool)
}

var wizardRules = []rule{
	{id: "cat_ears", tasks: []string{"cat", "free"}, tag: TagCatEar, apply: catEars},
	{id: "roof", tasks: []string{"castle"}, tag: TagRoof, apply: roof},
	{id: "wheels", tasks: []string{"car"}, tag: TagWheel, apply: wheels},
}

func (w *WizardSource) Generate(ctx context.Context, c Context) ([]Proposal, error) {
	var out []Proposal
	for _, r := range wizardRules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.matchesTask(c.Task) || c.IsSuppressed(r.id) || hasTag(c.Shapes, r.tag) {
			continue
		}
		p, ok := r.apply(c)
		if !ok {
			continue
		}
		p.TemplateID = r.id
		out = append(out, p)
	}
	return out, nil
}

func (r rule) matchesTask(task string) bool {
	if len(r.tasks) == 0 || task == "" {
		return true
	}
	for _, t := range r.tasks {
		if t == task {
			return true
		}
	}
	return false
}

// catEars places two ears on top of the first ellipse.
func catEars(c Context) (Proposal, bool) {
	head, ok := first(c.Shapes, func(sh scene.Shape) bool { return sh.Kind == scene.KindEllipse })
	if !ok {
		return Proposal{}, false
	}
	r := head.Bounds()
	at := func(fx, fy float64) geometry.Point {
		return geometry.Pt(r.X+r.Width*fx, r.Y-r.Height*fy)
	}
	ear := func(base, tip, base2 geometry.Point) scene.Shape {
		return scene.Shape{
			Kind:   scene.KindTriangle,
			Points: []geometry.Point{base, tip, base2},
			Style:  scene.Style{Stroke: "#000000", Width: 2, Fill: scene.NoFill},
			Tag:    TagCatEar,
		}
	}
	return Proposal{
		Label: "Add cat ears",
		Shapes: []scene.Shape{
			ear(at(0.25, 0), at(0.15, 0.35), at(0.35, 0)),
			ear(at(0.75, 0), at(0.85, 0.35), at(0.65, 0)),
		},
		Grouped:     true,
		Score:       0.7,
		Uncertainty: 70,
		Explanation: []string{
			"An ellipse was detected (possible head).",
			"Adds symmetric elements above it.",
			"Optional suggestion, adjust as needed.",
		},
		Advice: "Apply if you are drawing a cat, otherwise ignore.",
	}, true
}

// roof puts a pointed roof on the first rectangle.
func roof(c Context) (Proposal, bool) {
	base, ok := first(c.Shapes, func(sh scene.Shape) bool { return sh.Kind == scene.KindRectangle })
	if !ok {
		return Proposal{}, false
	}
	r := base.Bounds()
	h := r.Width * 0.5
	return Proposal{
		Label: "Add a pointed roof",
		Shapes: []scene.Shape{{
			Kind: scene.KindTriangle,
			Points: []geometry.Point{
				geometry.Pt(r.X, r.Y),
				geometry.Pt(r.X+r.Width/2, r.Y-h),
				geometry.Pt(r.X+r.Width, r.Y),
			},
			Style: scene.DefaultStyle(),
			Tag:   TagRoof,
		}},
		Score:       0.6,
		Uncertainty: 60,
		Explanation: []string{
			"A rectangle was detected (possible tower or wall).",
			"Castle towers usually end in a pointed roof.",
		},
		Advice: "Apply to cap the tower, otherwise ignore.",
	}, true
}

// wheels puts two wheels under the widest landscape rectangle.
func wheels(c Context) (Proposal, bool) {
	var body geometry.Rect
	found := false
	for _, sh := range c.Shapes {
		if sh.Kind != scene.KindRectangle {
			continue
		}
		r := sh.Bounds()
		if r.Width >= 1.5*r.Height && r.Width > body.Width {
			body, found = r, true
		}
	}
	if !found {
		return Proposal{}, false
	}
	d := body.Width * 0.25
	bottom := body.Y + body.Height
	wheel := func(cx float64) scene.Shape {
		return scene.Shape{
			Kind:   scene.KindEllipse,
			Points: []geometry.Point{geometry.Pt(cx-d/2, bottom-d/2), geometry.Pt(cx+d/2, bottom+d/2)},
			Style:  scene.DefaultStyle(),
			Tag:    TagWheel,
		}
	}
	return Proposal{
		Label:       "Add wheels",
		Shapes:      []scene.Shape{wheel(body.X + body.Width*0.2), wheel(body.X + body.Width*0.8)},
		Grouped:     true,
		Score:       0.65,
		Uncertainty: 50,
		Explanation: []string{
			"A wide rectangle was detected (possible car body).",
			"Wheels sit on the lower edge, near each end.",
		},
		Advice: "Apply if this is the car body.",
	}, true
}

func first(shapes []scene.Shape, match func(scene.Shape) bool) (scene.Shape, bool) {
	for _, sh := range shapes {
		if match(sh) {
			return sh, true
		}
	}
	return scene.Shape{}, false
}

func hasTag(shapes []scene.Shape, tag string) bool {
	for _, sh := range shapes {
		if sh.Tag == tag {
			return true
		}
		if hasTag(sh.Children, tag) {
			return true
		}
	}
	return false
}
