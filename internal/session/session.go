// Package session wires one editing session: the scene and its history,
// the tool controller, the suggestion layer and the event stream.
package session

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/events"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/ops"
	"github.com/haiilab/sketchlab/internal/scene"
	"github.com/haiilab/sketchlab/internal/suggest"
	"github.com/haiilab/sketchlab/internal/tool"
)

// Session is a single subject's drawing session. All mutation goes through
// its history engine.
type Session struct {
	id     string
	engine *history.Engine
	tools  *tool.Controller
	layer  *suggest.Layer
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	task      string
	condition string
	rating    *int
	drawingID string
	name      *string
}

type settings struct {
	id      string
	cfg     *config.Config
	logger  *slog.Logger
	sinks   []events.Sink
	sources map[suggest.Mode]suggest.Source
	now     func() time.Time
}

type Option func(*settings)

// WithID fixes the session id instead of generating a UUID.
func WithID(id string) Option {
	return func(s *settings) { s.id = id }
}

// WithConfig applies editor and suggestion tuning from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSink attaches an event sink for the lifetime of the session.
func WithSink(sink events.Sink) Option {
	return func(s *settings) { s.sinks = append(s.sinks, sink) }
}

// WithSource routes a suggestion mode to src.
func WithSource(mode suggest.Mode, src suggest.Source) Option {
	return func(s *settings) {
		if src != nil {
			s.sources[mode] = src
		}
	}
}

// WithSources routes several modes at once.
func WithSources(sources map[suggest.Mode]suggest.Source) Option {
	return func(s *settings) {
		for mode, src := range sources {
			if src != nil {
				s.sources[mode] = src
			}
		}
	}
}

// WithClock replaces time.Now for event timestamps and suggestion expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// New starts a free-drawing session under H_PLUS_IA.
func New(opts ...Option) *Session {
	st := &settings{
		cfg:     config.DefaultConfig(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		sources: make(map[suggest.Mode]suggest.Source),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(st)
	}
	if st.id == "" {
		st.id = uuid.NewString()
	}

	s := &Session{
		id:        st.id,
		logger:    st.logger.With("component", "session", "session_id", st.id),
		now:       st.now,
		task:      drawing.TaskFree,
		condition: drawing.HumanPlusAI,
	}
	s.bus = events.NewBus(st.logger.With("component", "events"), st.sinks...)

	cfg := st.cfg
	s.engine = history.New(nil,
		history.WithMaxUndoEntries(cfg.HistoryLimit),
		history.WithLogger(st.logger.With("component", "history")),
		history.WithObserver(s.onChange),
	)
	s.tools = tool.New(s.engine,
		tool.WithOptions(tool.Options{
			HitTolerance:    cfg.HitTolerance,
			MoveThreshold:   cfg.MoveThreshold,
			DuplicateOffset: cfg.DuplicateOffset,
		}),
		tool.WithLogger(st.logger.With("component", "tool")),
		tool.WithActivity(s.onActivity),
	)

	layerOpts := []suggest.Option{
		suggest.WithOptions(suggest.Options{
			Timeout:       cfg.SuggestionTimeout(),
			TTL:           cfg.SuggestionTTL(),
			Debounce:      cfg.Debounce(),
			RecentActions: cfg.RecentActions,
			Canvas:        geometry.Rect{Width: float64(cfg.CanvasWidth), Height: float64(cfg.CanvasHeight)},
		}),
		suggest.WithEvents(s.onTransition),
		suggest.WithLogger(st.logger.With("component", "suggest")),
		suggest.WithClock(st.now),
	}
	for mode, src := range st.sources {
		layerOpts = append(layerOpts, suggest.WithSource(mode, src))
	}
	s.layer = suggest.New(s.engine, layerOpts...)
	s.layer.SetTask(s.task)
	return s
}

// Close stops background suggestion work.
func (s *Session) Close() {
	s.layer.Close()
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) Engine() *history.Engine     { return s.engine }
func (s *Session) Tools() *tool.Controller     { return s.tools }
func (s *Session) Suggestions() *suggest.Layer { return s.layer }
func (s *Session) Bus() *events.Bus            { return s.bus }

// Task returns the current reference task.
func (s *Session) Task() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// Condition returns the current experimental condition.
func (s *Session) Condition() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.condition
}

// Rating returns the recorded similarity score, if any.
func (s *Session) Rating() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rating == nil {
		return nil
	}
	r := *s.rating
	return &r
}

// Configure selects the reference task and the condition. H_ONLY disables
// the suggestion layer; the scene and history are left as they are.
func (s *Session) Configure(task, condition string) error {
	task, err := drawing.ValidateTask(task)
	if err != nil {
		return err
	}
	condition, err = drawing.ValidateCondition(condition)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.task = task
	s.condition = condition
	s.rating = nil
	s.mu.Unlock()

	assist := condition == drawing.HumanPlusAI
	s.layer.SetTask(task)
	s.layer.SetEnabled(assist)

	s.publish(events.SessionConfigured, "", map[string]any{"assist_enabled": assist})
	s.logger.Info("session configured", "task", task, "condition", condition)
	return nil
}

// RecordRating stores the subject's self-rated similarity to the reference.
func (s *Session) RecordRating(score int) error {
	if err := drawing.ValidateRating(score); err != nil {
		return err
	}
	s.mu.Lock()
	s.rating = &score
	s.mu.Unlock()

	s.publish(events.RatingRecorded, "", map[string]any{"score": score})
	return nil
}

// Document returns the serialized scene.
func (s *Session) Document() scene.Document {
	var doc scene.Document
	s.engine.View(func(sc *scene.Scene) {
		doc = scene.Encode(sc)
	})
	return doc
}

// Undo reverts the last command.
func (s *Session) Undo() (history.Command, error) {
	s.tools.Cancel()
	return s.engine.Undo()
}

// Redo reapplies the last undone command.
func (s *Session) Redo() (history.Command, error) {
	s.tools.Cancel()
	return s.engine.Redo()
}

// Clear removes every shape as one undoable command.
func (s *Session) Clear() error {
	s.tools.Cancel()
	s.tools.ClearSelection()
	return s.engine.Execute(history.NewClear(scene.Manual))
}

// Request forwards a suggestion request to the layer.
func (s *Session) Request(ctx context.Context, req suggest.Request) suggest.Result {
	s.publish(events.SuggestionRequested, "", map[string]any{
		"mode":     string(req.Mode),
		"category": req.Category,
	})
	return s.layer.Request(ctx, req)
}

// Accept realises a suggestion.
func (s *Session) Accept(id string) (suggest.Suggestion, error) {
	return s.layer.Accept(id)
}

// Reject discards a suggestion.
func (s *Session) Reject(id string, reason suggest.RejectReason) (suggest.Suggestion, error) {
	return s.layer.Reject(id, reason)
}

// Save stores the current scene with the session context. Saving again
// replaces the same drawing until another one is loaded.
func (s *Session) Save(ctx context.Context, database *sql.DB, name *string) (*ops.SaveOutput, error) {
	var snap *scene.Scene
	s.engine.View(func(sc *scene.Scene) {
		snap = scene.New()
		snap.Restore(sc.Snapshot())
	})

	s.mu.Lock()
	input := ops.SaveInput{
		ID:        s.drawingID,
		Name:      name,
		SessionID: s.id,
		Task:      s.task,
		Condition: s.condition,
		Scene:     snap,
		Rating:    s.rating,
	}
	if name == nil {
		input.Name = s.name
	}
	s.mu.Unlock()

	out, err := ops.Save(ctx, database, input)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.drawingID = out.ID
	s.name = input.Name
	s.mu.Unlock()

	s.publish(events.DrawingSaved, "", map[string]any{"drawing_id": out.ID, "shape_count": out.ShapeCount})
	return out, nil
}

// Load replaces the scene with a stored drawing. History restarts empty and
// open suggestions expire; the session's task and condition are kept.
func (s *Session) Load(ctx context.Context, database *sql.DB, id string) (*ops.LoadOutput, error) {
	out, err := ops.Load(ctx, database, ops.LoadInput{ID: id})
	if err != nil {
		return nil, err
	}

	s.tools.Cancel()
	s.tools.ClearSelection()
	s.layer.ExpireAll()
	s.engine.Reset(out.Scene)

	s.mu.Lock()
	s.drawingID = out.ID
	s.name = out.Name
	s.mu.Unlock()

	s.publish(events.DrawingLoaded, "", map[string]any{
		"drawing_id":  out.ID,
		"shape_count": out.ShapeCount,
		"task":        out.Task,
	})
	return out, nil
}
