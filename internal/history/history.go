// Package history applies commands to a scene with linear undo and redo.
package history

import (
	"io"
	"log/slog"
	"sync"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/scene"
)

// Action is what happened to a command.
type Action string

const (
	Executed Action = "executed"
	Undone   Action = "undone"
	Redone   Action = "redone"
)

// Change is delivered to observers after every successful action.
type Change struct {
	Action  Action
	Command Command
	Version uint64 // scene version after the change
}

// Observer receives changes outside the engine lock, so it may call back
// into the engine.
type Observer func(Change)

// Engine owns a scene and is its only mutator. One command applies or
// reverts at any instant.
type Engine struct {
	mu        sync.Mutex
	scene     *scene.Scene
	undo      []Command
	redo      []Command
	limit     int
	observers []Observer
	logger    *slog.Logger
}

type Option func(*Engine)

// WithMaxUndoEntries drops the oldest undo entries beyond n (0 = unbounded).
func WithMaxUndoEntries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// New wraps s (a fresh scene when nil).
func New(s *scene.Scene, opts ...Option) *Engine {
	if s == nil {
		s = scene.New()
	}
	e := &Engine{scene: s, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe adds an observer.
func (e *Engine) Subscribe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Execute applies cmd, pushes it onto the undo stack and clears redo.
// A failed apply leaves scene and stacks untouched.
func (e *Engine) Execute(cmd Command) error {
	e.mu.Lock()
	if err := cmd.Apply(e.scene); err != nil {
		e.mu.Unlock()
		e.logger.Debug("history.execute_failed", "label", cmd.Label(), "error", err)
		return err
	}
	e.undo = append(e.undo, cmd)
	if e.limit > 0 && len(e.undo) > e.limit {
		e.undo = append([]Command(nil), e.undo[len(e.undo)-e.limit:]...)
	}
	e.redo = nil
	change, observers := Change{Action: Executed, Command: cmd, Version: e.scene.Version()}, e.observersLocked()
	e.mu.Unlock()

	e.logger.Debug("history.executed", "label", cmd.Label(), "provenance", cmd.Provenance())
	notify(observers, change)
	return nil
}

// Undo reverts the most recent command. An empty stack is a benign
// HISTORY_EMPTY error.
func (e *Engine) Undo() (Command, error) {
	e.mu.Lock()
	if len(e.undo) == 0 {
		e.mu.Unlock()
		return nil, errors.NewNothingToUndo()
	}
	cmd := e.undo[len(e.undo)-1]
	if err := cmd.Revert(e.scene); err != nil {
		e.mu.Unlock()
		return nil, errors.NewInternal(err)
	}
	e.undo = e.undo[:len(e.undo)-1]
	e.redo = append(e.redo, cmd)
	change, observers := Change{Action: Undone, Command: cmd, Version: e.scene.Version()}, e.observersLocked()
	e.mu.Unlock()

	e.logger.Debug("history.undone", "label", cmd.Label())
	notify(observers, change)
	return cmd, nil
}

// Redo re-applies the most recently undone command.
func (e *Engine) Redo() (Command, error) {
	e.mu.Lock()
	if len(e.redo) == 0 {
		e.mu.Unlock()
		return nil, errors.NewNothingToRedo()
	}
	cmd := e.redo[len(e.redo)-1]
	if err := cmd.Apply(e.scene); err != nil {
		e.mu.Unlock()
		return nil, errors.NewInternal(err)
	}
	e.redo = e.redo[:len(e.redo)-1]
	e.undo = append(e.undo, cmd)
	change, observers := Change{Action: Redone, Command: cmd, Version: e.scene.Version()}, e.observersLocked()
	e.mu.Unlock()

	e.logger.Debug("history.redone", "label", cmd.Label())
	notify(observers, change)
	return cmd, nil
}

// View runs fn with read access to the scene. fn must not retain s.
func (e *Engine) View(fn func(s *scene.Scene)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.scene)
}

// Snapshot returns a deep copy of the current scene.
func (e *Engine) Snapshot() scene.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene.Snapshot()
}

// Version returns the scene version.
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene.Version()
}

// Depth returns the sizes of the undo and redo stacks.
func (e *Engine) Depth() (undo, redo int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undo), len(e.redo)
}

// CanUndo reports whether Undo would do anything.
func (e *Engine) CanUndo() bool {
	u, _ := e.Depth()
	return u > 0
}

// CanRedo reports whether Redo would do anything.
func (e *Engine) CanRedo() bool {
	_, r := e.Depth()
	return r > 0
}

// Reset swaps in a new scene (a loaded drawing) and clears both stacks.
func (e *Engine) Reset(s *scene.Scene) {
	if s == nil {
		s = scene.New()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene = s
	e.undo, e.redo = nil, nil
}

func (e *Engine) observersLocked() []Observer {
	return append([]Observer(nil), e.observers...)
}

func notify(observers []Observer, change Change) {
	for _, o := range observers {
		o(change)
	}
}
