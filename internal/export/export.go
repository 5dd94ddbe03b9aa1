// Package export renders a scene into file formats for offline review.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/scene"
)

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	SVG  Format = "svg"
	PDF  Format = "pdf"
	PNG  Format = "png"
)

// Formats lists the supported formats.
var Formats = []Format{JSON, SVG, PDF, PNG}

// ParseFormat validates a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return JSON, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (want one of %v)", s, Formats))
}

// Ext returns the file extension, with the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Options control raster and page output.
type Options struct {
	// Canvas is the visible area. Shapes outside it are clipped.
	Canvas geometry.Rect

	// Background is painted under the shapes; empty or "none" leaves it transparent
	// (white for PDF).
	Background string
}

// DefaultOptions is a 1280x720 canvas on white.
func DefaultOptions() Options {
	return Options{
		Canvas:     geometry.Rect{Width: 1280, Height: 720},
		Background: "#ffffff",
	}
}

func (o Options) normalized() Options {
	if o.Canvas.Width <= 0 || o.Canvas.Height <= 0 {
		o.Canvas = DefaultOptions().Canvas
	}
	return o
}

// Write encodes s in the given format.
func Write(w io.Writer, s *scene.Scene, f Format, opts Options) error {
	opts = opts.normalized()
	switch f {
	case JSON, "":
		data, err := scene.Marshal(s)
		if err != nil {
			return errors.NewInternal(err)
		}
		_, err = w.Write(data)
		return err
	case SVG:
		return writeSVG(w, Paths(s), opts)
	case PDF:
		return writePDF(w, Paths(s), opts)
	case PNG:
		return writePNG(w, Paths(s), opts)
	}
	return errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q", f))
}

// Path is one leaf shape flattened to canvas coordinates.
type Path struct {
	ID     string
	Points []geometry.Point
	Closed bool
	Style  scene.Style
}

// Paths flattens the scene in paint order. Groups contribute their children,
// with the group transform applied on top of each child's.
func Paths(s *scene.Scene) []Path {
	var out []Path
	for _, sh := range s.Shapes() {
		out = flatten(out, sh, nil)
	}
	return out
}

type outerTransform struct {
	t     geometry.Transform
	pivot geometry.Point
}

func flatten(out []Path, sh scene.Shape, outer []outerTransform) []Path {
	if sh.Kind == scene.KindGroup {
		next := append([]outerTransform{{t: sh.Transform, pivot: sh.Pivot()}}, outer...)
		for _, c := range sh.Children {
			out = flatten(out, c, next)
		}
		return out
	}
	pts := sh.WorldOutline()
	for _, o := range outer {
		pts = o.t.ApplyAll(pts, o.pivot)
	}
	if len(pts) == 0 {
		return out
	}
	return append(out, Path{ID: sh.ID, Points: pts, Closed: sh.Closed(), Style: sh.Style})
}

// parseHex reads #rgb or #rrggbb.
func parseHex(s string) (r, g, b int, ok bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

func paintable(c string) bool {
	_, _, _, ok := parseHex(c)
	return ok
}
