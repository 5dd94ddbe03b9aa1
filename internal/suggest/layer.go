package suggest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	serrors "github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/scene"
)

// Transition names reported to the event callback.
const (
	EventProposed    = "suggestion_proposed"
	EventAccepted    = "suggestion_accepted"
	EventRejected    = "suggestion_rejected"
	EventExpired     = "suggestion_expired"
	EventUnavailable = "suggestion_unavailable"
	EventDiscarded   = "suggestion_discarded" // stale result dropped
	EventAutoToggled = "suggestion_auto_toggled"
)

// Transition is one lifecycle event.
type Transition struct {
	Name       string
	Mode       Mode
	Suggestion Suggestion // zero for unavailable/discarded/toggled
	Notice     string
}

// Options configures a Layer.
type Options struct {
	Timeout       time.Duration // per source call
	TTL           time.Duration // proposed suggestions expire after this
	Debounce      time.Duration // auto-trigger quiescence period
	RecentActions int
	Canvas        geometry.Rect
	// Sweep is the background expiry interval. Zero derives it from the
	// TTL; negative disables the sweeper.
	Sweep time.Duration
}

// DefaultOptions matches the config defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:       4 * time.Second,
		TTL:           90 * time.Second,
		Debounce:      800 * time.Millisecond,
		RecentActions: 8,
		Canvas:        geometry.Rect{Width: 1280, Height: 720},
	}
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

// Layer mediates between suggestion sources and the history engine.
type Layer struct {
	mu         sync.Mutex
	engine     *history.Engine
	sources    map[Mode]Source
	opts       Options
	enabled    bool
	auto       bool
	task       string
	items      map[string]*record
	order      []string
	suppressed map[string]bool
	inflight   map[Mode]*inflight
	seq        uint64
	recent     []string
	debounce   *debouncer
	onEvent    func(Transition)
	now        func() time.Time
	logger     *slog.Logger

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type record struct {
	Suggestion
	accepting bool
}

type Option func(*Layer)

func WithOptions(o Options) Option {
	return func(l *Layer) {
		l.opts = o
	}
}

// WithSource routes requests of mode to src.
func WithSource(mode Mode, src Source) Option {
	return func(l *Layer) {
		if src != nil {
			l.sources[mode] = src
		}
	}
}

func WithEvents(fn func(Transition)) Option {
	return func(l *Layer) {
		l.onEvent = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Layer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Layer) {
		l.now = now
	}
}

// New creates an enabled layer and subscribes it to engine changes for the
// auto trigger.
func New(engine *history.Engine, opts ...Option) *Layer {
	base, stop := context.WithCancel(context.Background())
	l := &Layer{
		engine:     engine,
		sources:    make(map[Mode]Source),
		opts:       DefaultOptions(),
		enabled:    true,
		items:      make(map[string]*record),
		suppressed: make(map[string]bool),
		inflight:   make(map[Mode]*inflight),
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		base:       base,
		stop:       stop,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.debounce = newDebouncer(l.opts.Debounce, l.fireAuto)
	engine.Subscribe(l.observe)
	if every := sweepInterval(l.opts); every > 0 {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.Run(base, every)
		}()
	}
	return l
}

// sweepInterval keeps expiry within a quarter of the TTL, capped at a second.
func sweepInterval(o Options) time.Duration {
	if o.TTL <= 0 || o.Sweep < 0 {
		return 0
	}
	if o.Sweep > 0 {
		return o.Sweep
	}
	every := o.TTL / 4
	if every > time.Second {
		every = time.Second
	}
	if every < 10*time.Millisecond {
		every = 10 * time.Millisecond
	}
	return every
}

// Close cancels in-flight requests, stops the sweeper and waits for both.
func (l *Layer) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.debounce.stop()
	l.stop()
	l.wg.Wait()
}

// SetEnabled turns the whole layer on or off. Disabling cancels pending
// work and expires open suggestions; the scene is never touched.
func (l *Layer) SetEnabled(on bool) {
	l.mu.Lock()
	l.enabled = on
	var out []Transition
	if !on {
		l.cancelAllLocked()
		out = l.expireLocked(func(*record) bool { return true })
	}
	l.mu.Unlock()
	if !on {
		l.debounce.stop()
	}
	l.emit(out...)
}

// Enabled reports whether suggestions are available.
func (l *Layer) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// SetAuto toggles the reactive mode.
func (l *Layer) SetAuto(on bool) {
	l.mu.Lock()
	changed := l.auto != on
	l.auto = on
	if !on {
		l.cancelLocked(Auto)
	}
	l.mu.Unlock()
	if !on {
		l.debounce.stop()
	}
	if changed {
		l.emit(Transition{Name: EventAutoToggled, Mode: Auto, Notice: fmt.Sprintf("auto=%t", on)})
	}
}

// Auto reports whether the reactive mode is on.
func (l *Layer) Auto() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.auto
}

// SetTask records the reference drawing sources should aim for.
func (l *Layer) SetTask(task string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.task = task
}

// Request asks the mode's source for suggestions. It blocks for at most the
// configured timeout and never fails: errors, timeouts and panics in the
// source produce an empty Result with a Notice. A newer request of the same
// mode supersedes this one; auto and floating results computed for a scene
// that changed meanwhile are discarded as stale. Floating mode shows one
// suggestion at a time: only the best scored proposal is kept.
func (l *Layer) Request(ctx context.Context, req Request) Result {
	res := Result{Mode: req.Mode}

	l.mu.Lock()
	if !l.enabled {
		l.mu.Unlock()
		res.Notice = "suggestions are disabled for this condition"
		return res
	}
	src := l.sources[req.Mode]
	if src == nil {
		l.mu.Unlock()
		res.Notice = fmt.Sprintf("no suggestion source for %s mode", req.Mode)
		return res
	}
	l.cancelLocked(req.Mode)
	l.seq++
	seq := l.seq
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()
	l.inflight[req.Mode] = &inflight{seq: seq, cancel: cancel}
	sctx := l.contextLocked(req)
	l.mu.Unlock()

	proposals, err := generate(ctx, src, sctx)

	l.mu.Lock()
	cur := l.inflight[req.Mode]
	superseded := cur == nil || cur.seq != seq
	if !superseded {
		delete(l.inflight, req.Mode)
	}
	var out []Transition
	switch {
	case superseded:
		res.Stale = true
		res.Notice = "request cancelled"
		if cur != nil {
			res.Notice = "superseded by a newer request"
		}
		out = append(out, Transition{Name: EventDiscarded, Mode: req.Mode, Notice: res.Notice})
	case err != nil:
		res.Notice = l.noticeFor(src, err)
		out = append(out, Transition{Name: EventUnavailable, Mode: req.Mode, Notice: res.Notice})
		l.logger.Warn("suggest.source_failed", "source", src.Name(), "mode", req.Mode, "error", err)
	case req.Mode != Panel && l.engine.Version() != sctx.Version:
		res.Stale = true
		res.Notice = "scene changed while suggestions were computed"
		out = append(out, Transition{Name: EventDiscarded, Mode: req.Mode, Notice: res.Notice})
	default:
		if req.Mode == Auto || req.Mode == Floating {
			out = append(out, l.expireLocked(func(r *record) bool { return r.Mode == req.Mode })...)
		}
		kept := l.usableLocked(proposals)
		if req.Mode == Floating && len(kept) > 1 {
			kept = []Proposal{best(kept)}
		}
		for _, p := range kept {
			s := l.registerLocked(p, req.Mode, src.Name(), sctx.Version)
			res.Suggestions = append(res.Suggestions, s)
			out = append(out, Transition{Name: EventProposed, Mode: req.Mode, Suggestion: s})
		}
		if len(res.Suggestions) == 0 {
			res.Notice = "no suggestion for the current drawing"
		}
	}
	l.mu.Unlock()

	l.emit(out...)
	return res
}

// RequestAsync runs Request on its own goroutine. The channel receives
// exactly one Result and is then closed.
func (l *Layer) RequestAsync(ctx context.Context, req Request) <-chan Result {
	ch := make(chan Result, 1)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		ch <- Result{Mode: req.Mode, Notice: "suggestions are closed"}
		close(ch)
		return ch
	}
	// Add under mu so it cannot race Close's Wait.
	l.wg.Add(1)
	l.mu.Unlock()
	go func() {
		defer l.wg.Done()
		defer close(ch)
		ch <- l.Request(ctx, req)
	}()
	return ch
}

// Accept realises a proposed suggestion as one composite command with
// ai_accepted provenance.
func (l *Layer) Accept(id string) (Suggestion, error) {
	l.mu.Lock()
	if !l.enabled {
		l.mu.Unlock()
		return Suggestion{}, serrors.NewAssistDisabled()
	}
	r, err := l.openLocked(id)
	if err != nil {
		l.mu.Unlock()
		return Suggestion{}, err
	}
	if l.expiredLocked(r) {
		out := l.resolveLocked(r, Expired, "")
		l.mu.Unlock()
		l.emit(out)
		return Suggestion{}, serrors.NewConflict("suggestion expired: " + id)
	}
	r.accepting = true
	cmd, ids := acceptCommand(r.Suggestion)
	l.mu.Unlock()

	// Execute outside the lock: engine observers call back into the layer.
	execErr := l.engine.Execute(cmd)

	l.mu.Lock()
	r.accepting = false
	if execErr != nil {
		l.mu.Unlock()
		return Suggestion{}, execErr
	}
	r.AcceptedIDs = ids
	tr := l.resolveLocked(r, Accepted, "")
	s := r.Suggestion.clone()
	l.mu.Unlock()

	l.emit(tr)
	return s, nil
}

// Reject discards a proposed suggestion without touching the scene.
// Rejected auto suggestions are not proposed again this session.
func (l *Layer) Reject(id string, reason RejectReason) (Suggestion, error) {
	if reason == "" {
		reason = Ignore
	}
	l.mu.Lock()
	r, err := l.openLocked(id)
	if err != nil {
		l.mu.Unlock()
		return Suggestion{}, err
	}
	if r.Mode == Auto && r.TemplateID != "" {
		l.suppressed[r.TemplateID] = true
	}
	tr := l.resolveLocked(r, Rejected, reason)
	s := r.Suggestion.clone()
	l.mu.Unlock()

	l.emit(tr)
	return s, nil
}

// Sweep expires proposed suggestions older than the TTL and returns them.
func (l *Layer) Sweep() []Suggestion {
	l.mu.Lock()
	out := l.expireLocked(l.expiredLocked)
	l.mu.Unlock()

	l.emit(out...)
	expired := make([]Suggestion, len(out))
	for i, tr := range out {
		expired[i] = tr.Suggestion
	}
	return expired
}

// ExpireAll expires every open suggestion, e.g. when a drawing is loaded.
func (l *Layer) ExpireAll() {
	l.mu.Lock()
	l.cancelAllLocked()
	out := l.expireLocked(func(*record) bool { return true })
	l.mu.Unlock()
	l.emit(out...)
}

// Run sweeps expired suggestions every interval until ctx is done.
func (l *Layer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Get returns a suggestion by id.
func (l *Layer) Get(id string) (Suggestion, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.items[id]
	if !ok {
		return Suggestion{}, false
	}
	return r.Suggestion.clone(), true
}

// Pending returns the proposed suggestions still within their TTL, oldest
// first.
func (l *Layer) Pending() []Suggestion {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Suggestion
	for _, id := range l.order {
		if r := l.items[id]; r.State == Proposed && !l.expiredLocked(r) {
			out = append(out, r.Suggestion.clone())
		}
	}
	return out
}

// All returns every suggestion of the session, oldest first.
func (l *Layer) All() []Suggestion {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Suggestion, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.items[id].Suggestion.clone())
	}
	return out
}

// Suppressed returns the template ids suppressed for this session.
func (l *Layer) Suppressed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.suppressedLocked()
}

// observe is the history observer driving the auto trigger.
func (l *Layer) observe(c history.Change) {
	l.mu.Lock()
	if c.Command.Provenance() == scene.Manual {
		l.recent = append(l.recent, string(c.Action)+": "+c.Command.Label())
		if n := l.opts.RecentActions; n > 0 && len(l.recent) > n {
			l.recent = append([]string(nil), l.recent[len(l.recent)-n:]...)
		}
	}
	// Any change makes an in-flight auto request stale.
	l.cancelLocked(Auto)
	schedule := l.enabled && l.auto && !l.closed && c.Action == history.Executed && c.Command.Provenance() == scene.Manual
	l.mu.Unlock()

	if schedule {
		l.debounce.trigger()
	}
}

func (l *Layer) fireAuto() {
	l.mu.Lock()
	ok := l.enabled && l.auto && !l.closed
	base := l.base
	l.mu.Unlock()
	if ok {
		l.RequestAsync(base, Request{Mode: Auto})
	}
}

func (l *Layer) contextLocked(req Request) Context {
	anchor := l.opts.Canvas.Center()
	if req.Anchor != nil {
		anchor = *req.Anchor
	}
	c := Context{
		Mode:          req.Mode,
		Task:          l.task,
		Category:      req.Category,
		Prompt:        req.Prompt,
		Anchor:        anchor,
		Canvas:        l.opts.Canvas,
		RecentActions: append([]string(nil), l.recent...),
		Suppressed:    l.suppressedLocked(),
	}
	l.engine.View(func(s *scene.Scene) {
		c.Shapes = s.Shapes()
		c.Version = s.Version()
	})
	return c
}

func (l *Layer) registerLocked(p Proposal, mode Mode, source string, version uint64) Suggestion {
	p.Shapes = withProvenance(p.Shapes, scene.AIGenerated)
	if len(p.Explanation) > MaxExplanation {
		p.Explanation = p.Explanation[:MaxExplanation]
	}
	r := &record{Suggestion: Suggestion{
		Proposal:       p,
		ID:             scene.NewID(),
		Mode:           mode,
		Source:         source,
		State:          Proposed,
		ContextVersion: version,
		CreatedAt:      l.now(),
	}}
	l.items[r.ID] = r
	l.order = append(l.order, r.ID)
	return r.Suggestion.clone()
}

// usableLocked drops empty and suppressed proposals.
func (l *Layer) usableLocked(ps []Proposal) []Proposal {
	var out []Proposal
	for _, p := range ps {
		if len(p.Shapes) == 0 || (p.TemplateID != "" && l.suppressed[p.TemplateID]) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// best returns the highest scored proposal; ties keep source order.
func best(ps []Proposal) Proposal {
	top := ps[0]
	for _, p := range ps[1:] {
		if p.Score > top.Score {
			top = p
		}
	}
	return top
}

func (l *Layer) openLocked(id string) (*record, error) {
	r, ok := l.items[id]
	if !ok {
		return nil, serrors.NewNotFound("suggestion", id)
	}
	if r.State != Proposed || r.accepting {
		return nil, serrors.NewConflict(fmt.Sprintf("suggestion %s is already %s", id, r.State))
	}
	return r, nil
}

func (l *Layer) expiredLocked(r *record) bool {
	return l.opts.TTL > 0 && l.now().Sub(r.CreatedAt) >= l.opts.TTL
}

func (l *Layer) expireLocked(match func(*record) bool) []Transition {
	var out []Transition
	for _, id := range l.order {
		r := l.items[id]
		if r.State == Proposed && !r.accepting && match(r) {
			out = append(out, l.resolveLocked(r, Expired, ""))
		}
	}
	return out
}

func (l *Layer) resolveLocked(r *record, to State, reason RejectReason) Transition {
	r.ResolvedAt = l.now()
	if to == Expired && l.expiredLocked(r) {
		// Lapsed suggestions resolve at their deadline, not when noticed.
		r.ResolvedAt = r.CreatedAt.Add(l.opts.TTL)
	}
	r.State = to
	r.Reason = reason
	name := map[State]string{Accepted: EventAccepted, Rejected: EventRejected, Expired: EventExpired}[to]
	return Transition{Name: name, Mode: r.Mode, Suggestion: r.Suggestion.clone()}
}

func (l *Layer) cancelLocked(mode Mode) {
	if f := l.inflight[mode]; f != nil {
		f.cancel()
		delete(l.inflight, mode)
	}
}

func (l *Layer) cancelAllLocked() {
	for mode := range l.inflight {
		l.cancelLocked(mode)
	}
}

func (l *Layer) suppressedLocked() []string {
	out := make([]string, 0, len(l.suppressed))
	for id := range l.suppressed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *Layer) noticeFor(src Source, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("suggestion source %s timed out", src.Name())
	}
	return serrors.NewSourceUnavailable(src.Name(), err).Message
}

func (l *Layer) emit(trs ...Transition) {
	if l.onEvent == nil {
		return
	}
	for _, tr := range trs {
		l.onEvent(tr)
	}
}

// acceptCommand builds the composite that realises s and returns the ids
// it will create.
func acceptCommand(s Suggestion) (history.Command, []string) {
	shapes := withProvenance(s.Shapes, scene.AIAccepted)
	if s.Grouped && len(shapes) > 1 {
		shapes = []scene.Shape{{
			Kind:       scene.KindGroup,
			Children:   shapes,
			Style:      shapes[0].Style,
			Provenance: scene.AIAccepted,
			Tag:        s.TemplateID,
		}}
	}
	children := make([]history.Command, len(shapes))
	ids := make([]string, len(shapes))
	for i, sh := range shapes {
		add := history.NewAddShape(sh)
		children[i] = add
		ids[i] = add.ShapeIDs()[0]
	}
	label := "accept suggestion"
	if s.Label != "" {
		label += ": " + s.Label
	}
	return history.NewComposite(label, scene.AIAccepted, children...), ids
}

// generate calls src, enforcing ctx even if the source ignores it and
// converting panics into errors.
func generate(ctx context.Context, src Source, c Context) ([]Proposal, error) {
	type outcome struct {
		proposals []Proposal
		err       error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("source panicked: %v", r)}
			}
		}()
		ps, err := src.Generate(ctx, c)
		ch <- outcome{proposals: ps, err: err}
	}()
	select {
	case o := <-ch:
		return o.proposals, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
