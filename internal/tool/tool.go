// Package tool turns pointer input into scene commands.
//
// Each tool is a variant behind the handler interface. Captures in progress
// live only in the preview; the scene changes once, through the history
// engine, when a gesture completes.
package tool

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/scene"
)

// Kind names a tool.
type Kind string

const (
	Select    Kind = "select"
	Pen       Kind = "pen"
	Eraser    Kind = "eraser"
	Line      Kind = "line"
	Rectangle Kind = "rectangle"
	Ellipse   Kind = "ellipse"
	Triangle  Kind = "triangle"
)

// Kinds lists every tool.
var Kinds = []Kind{Select, Pen, Eraser, Line, Rectangle, Ellipse, Triangle}

// ParseKind validates a tool name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown tool %q", s))
}

// State is the capture state of the controller.
type State string

const (
	Idle    State = "idle"
	Drawing State = "drawing"
)

// Phase is the stage of a pointer gesture.
type Phase string

const (
	Down Phase = "down"
	Move Phase = "move"
	Up   Phase = "up"
)

// Pointer is one pointer event in canvas coordinates.
type Pointer struct {
	Phase Phase          `json:"phase"`
	At    geometry.Point `json:"at"`
	Shift bool           `json:"shift,omitempty"`
}

// Preview is the ephemeral, non-recorded state a renderer draws on top of
// the scene while a gesture is in progress.
type Preview struct {
	Shape  *scene.Shape   `json:"shape,omitempty"`  // shape being drawn
	Hidden []string       `json:"hidden,omitempty"` // shapes pending erasure
	Moving []string       `json:"moving,omitempty"` // shapes being dragged
	Offset geometry.Point `json:"offset"`           // drag offset of Moving
}

// Activity is a non-command event worth logging (tool switches, cancelled
// captures, selection changes).
type Activity struct {
	Name     string
	Tool     Kind
	ShapeIDs []string
}

const (
	ActivityToolChange       = "tool_change"
	ActivityCaptureCancelled = "capture_cancelled"
	ActivitySelectionChange  = "selection_change"
)

// Options tunes hit-testing and selection actions.
type Options struct {
	HitTolerance    float64
	MoveThreshold   float64
	DuplicateOffset float64
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{HitTolerance: 6, MoveThreshold: 2, DuplicateOffset: 16}
}

type handler interface {
	down(c *Controller, p Pointer)
	move(c *Controller, p Pointer)
	// up ends the gesture and returns the command to execute, if any.
	up(c *Controller, p Pointer) history.Command
}

// Controller routes pointer events to the active tool.
type Controller struct {
	mu        sync.Mutex
	engine    *history.Engine
	opts      Options
	tool      Kind
	handlers  map[Kind]handler
	state     State
	style     scene.Style
	preview   Preview
	selection []string
	clipboard []scene.Shape
	onEvent   func(Activity)
	logger    *slog.Logger

	// gesture scratch shared by the variants
	start   geometry.Point
	pending map[string]bool
	drag    bool
	outbox  []Activity
}

type Option func(*Controller)

func WithOptions(o Options) Option {
	return func(c *Controller) {
		c.opts = o
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivity registers a callback for Activity events. It is called
// without the controller lock held.
func WithActivity(fn func(Activity)) Option {
	return func(c *Controller) {
		c.onEvent = fn
	}
}

// New creates a controller with the pen selected.
func New(engine *history.Engine, opts ...Option) *Controller {
	c := &Controller{
		engine: engine,
		opts:   DefaultOptions(),
		tool:   Pen,
		state:  Idle,
		style:  scene.DefaultStyle(),
		handlers: map[Kind]handler{
			Select:    selectTool{},
			Pen:       penTool{},
			Eraser:    eraserTool{},
			Line:      shapeTool{kind: scene.KindLine},
			Rectangle: shapeTool{kind: scene.KindRectangle},
			Ellipse:   shapeTool{kind: scene.KindEllipse},
			Triangle:  shapeTool{kind: scene.KindTriangle},
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tool returns the active tool.
func (c *Controller) Tool() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

// SetTool switches tools, abandoning any capture in progress.
func (c *Controller) SetTool(k Kind) error {
	if _, ok := c.handlers[k]; !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown tool %q", k))
	}
	c.mu.Lock()
	changed := c.tool != k
	c.resetLocked()
	c.tool = k
	c.mu.Unlock()

	if changed {
		c.emit(Activity{Name: ActivityToolChange, Tool: k})
	}
	return nil
}

// State returns Idle or Drawing.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Style returns the style applied to new shapes.
func (c *Controller) Style() scene.Style {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.style
}

// SetStyle changes the style applied to new shapes.
func (c *Controller) SetStyle(st scene.Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.Stroke == "" {
		st.Stroke = c.style.Stroke
	}
	if st.Fill == "" {
		st.Fill = c.style.Fill
	}
	c.style = st
}

// Preview returns a copy of the in-progress gesture state.
func (c *Controller) Preview() Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := Preview{
		Hidden: append([]string(nil), c.preview.Hidden...),
		Moving: append([]string(nil), c.preview.Moving...),
		Offset: c.preview.Offset,
	}
	if c.preview.Shape != nil {
		sh := c.preview.Shape.Clone()
		p.Shape = &sh
	}
	return p
}

// Handle feeds one pointer event to the active tool. Completed gestures
// are executed through the history engine; the error is the engine's.
func (c *Controller) Handle(p Pointer) error {
	c.mu.Lock()
	h := c.handlers[c.tool]
	tool := c.tool
	var cmd history.Command
	switch p.Phase {
	case Down:
		c.resetLocked()
		h.down(c, p)
	case Move:
		if c.state == Drawing {
			h.move(c, p)
		}
	case Up:
		if c.state == Drawing {
			cmd = h.up(c, p)
		}
		c.resetLocked()
	default:
		c.mu.Unlock()
		return errors.NewInvalidRequest(fmt.Sprintf("unknown pointer phase %q", p.Phase))
	}
	outbox := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, a := range outbox {
		c.emit(a)
	}
	if cmd == nil {
		return nil
	}
	if err := c.engine.Execute(cmd); err != nil {
		c.logger.Warn("tool.commit_failed", "tool", tool, "error", err)
		return err
	}
	return nil
}

// Cancel abandons the capture in progress without touching the scene.
func (c *Controller) Cancel() {
	c.mu.Lock()
	wasDrawing := c.state == Drawing
	tool := c.tool
	c.resetLocked()
	c.mu.Unlock()
	if wasDrawing {
		c.emit(Activity{Name: ActivityCaptureCancelled, Tool: tool})
	}
}

func (c *Controller) resetLocked() {
	c.state = Idle
	c.preview = Preview{}
	c.pending = nil
	c.drag = false
}

// hitLocked hit-tests the scene, skipping ids rejected by keep.
func (c *Controller) hitLocked(p geometry.Point, keep func(string) bool) (string, bool) {
	var id string
	var ok bool
	c.engine.View(func(s *scene.Scene) {
		id, ok = s.HitTestFunc(p, c.opts.HitTolerance, keep)
	})
	return id, ok
}

// note queues an activity for delivery once the lock is released.
func (c *Controller) note(name string, ids ...string) {
	c.outbox = append(c.outbox, Activity{Name: name, Tool: c.tool, ShapeIDs: ids})
}

func (c *Controller) emit(a Activity) {
	if c.onEvent != nil {
		c.onEvent(a)
	}
}
