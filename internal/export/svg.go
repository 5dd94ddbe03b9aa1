package export

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"math"
	"strconv"

	svg "github.com/ajstarks/svgo"
)

// svgUnit is the number of SVG user units per canvas pixel. svgo takes
// integer coordinates, so the viewBox is scaled to keep a tenth of a pixel.
const svgUnit = 10

func writeSVG(w io.Writer, paths []Path, opts Options) error {
	bw := bufio.NewWriter(w)
	canvas := svg.New(bw)
	c := opts.Canvas
	canvas.Startview(px(c.Width), px(c.Height), units(c.X), units(c.Y), units(c.Width), units(c.Height))
	if paintable(opts.Background) {
		canvas.Rect(units(c.X), units(c.Y), units(c.Width), units(c.Height), attr("fill", opts.Background))
	}
	for _, p := range paths {
		fill := "none"
		if p.Closed && paintable(p.Style.Fill) {
			fill = p.Style.Fill
		}
		stroke := p.Style.Stroke
		if !paintable(stroke) {
			stroke = "#000000"
		}
		xs, ys := coords(p)
		style := []string{
			attr("data-id", p.ID),
			attr("stroke", stroke),
			attr("stroke-width", strconv.FormatFloat(p.Style.Width*svgUnit, 'f', -1, 64)),
			attr("fill", fill),
			`stroke-linecap="round" stroke-linejoin="round"`,
		}
		if p.Closed {
			canvas.Polygon(xs, ys, style...)
		} else {
			canvas.Polyline(xs, ys, style...)
		}
	}
	canvas.End()
	return bw.Flush()
}

func coords(p Path) ([]int, []int) {
	xs := make([]int, len(p.Points))
	ys := make([]int, len(p.Points))
	for i, pt := range p.Points {
		xs[i] = units(pt.X)
		ys[i] = units(pt.Y)
	}
	return xs, ys
}

// attr renders name="value"; svgo passes strings containing '=' through as
// raw attributes.
func attr(name, value string) string {
	return fmt.Sprintf(`%s="%s"`, name, html.EscapeString(value))
}

func units(v float64) int {
	return int(math.Round(v * svgUnit))
}

func px(v float64) int {
	return int(math.Round(v))
}
