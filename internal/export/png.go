package export

import (
	"io"
	"math"

	"github.com/fogleman/gg"
)

func writePNG(w io.Writer, paths []Path, opts Options) error {
	c := opts.Canvas
	dc := gg.NewContext(int(math.Ceil(c.Width)), int(math.Ceil(c.Height)))
	if paintable(opts.Background) {
		dc.SetHexColor(opts.Background)
		dc.Clear()
	}
	dc.Translate(-c.X, -c.Y)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	for _, p := range paths {
		dc.NewSubPath()
		for i, pt := range p.Points {
			if i == 0 {
				dc.MoveTo(pt.X, pt.Y)
				continue
			}
			dc.LineTo(pt.X, pt.Y)
		}
		if p.Closed {
			dc.ClosePath()
			if paintable(p.Style.Fill) {
				dc.SetHexColor(p.Style.Fill)
				dc.FillPreserve()
			}
		} else if len(p.Points) == 1 {
			dc.DrawPoint(p.Points[0].X, p.Points[0].Y, p.Style.Width/2)
		}
		stroke := p.Style.Stroke
		if !paintable(stroke) {
			stroke = "#000000"
		}
		dc.SetHexColor(stroke)
		dc.SetLineWidth(p.Style.Width)
		dc.Stroke()
	}
	return dc.EncodePNG(w)
}
