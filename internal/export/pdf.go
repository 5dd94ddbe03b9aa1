package export

import (
	"io"

	"github.com/jung-kurt/gofpdf"
)

// writePDF draws one landscape page sized to the canvas, in points.
func writePDF(w io.Writer, paths []Path, opts Options) error {
	c := opts.Canvas
	orientation := "L"
	if c.Height > c.Width {
		orientation = "P"
	}
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: c.Width, Ht: c.Height},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	if r, g, b, ok := parseHex(opts.Background); ok {
		p.SetFillColor(r, g, b)
		p.Rect(0, 0, c.Width, c.Height, "F")
	}

	for _, path := range paths {
		r, g, b, ok := parseHex(path.Style.Stroke)
		if !ok {
			r, g, b = 0, 0, 0
		}
		p.SetDrawColor(r, g, b)
		p.SetLineWidth(path.Style.Width)

		pts := make([]gofpdf.PointType, len(path.Points))
		for i, pt := range path.Points {
			pts[i] = gofpdf.PointType{X: pt.X - c.X, Y: pt.Y - c.Y}
		}

		if path.Closed {
			style := "D"
			if fr, fg, fb, ok := parseHex(path.Style.Fill); ok {
				p.SetFillColor(fr, fg, fb)
				style = "DF"
			}
			p.Polygon(pts, style)
			continue
		}
		if len(pts) == 1 {
			p.Circle(pts[0].X, pts[0].Y, path.Style.Width/2, "F")
			continue
		}
		for i := 1; i < len(pts); i++ {
			p.Line(pts[i-1].X, pts[i-1].Y, pts[i].X, pts[i].Y)
		}
	}
	if err := p.Error(); err != nil {
		return err
	}
	return p.Output(w)
}
