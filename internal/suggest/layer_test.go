package suggest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/scene"
)

type recorder struct {
	mu  sync.Mutex
	trs []Transition
}

func (r *recorder) add(tr Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trs = append(r.trs, tr)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.trs))
	for i, tr := range r.trs {
		out[i] = tr.Name
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// funcSource adapts a function to Source.
type funcSource struct {
	name string
	fn   func(ctx context.Context, c Context) ([]Proposal, error)
}

func (f funcSource) Name() string { return f.name }
func (f funcSource) Generate(ctx context.Context, c Context) ([]Proposal, error) {
	return f.fn(ctx, c)
}

func ellipse(x, y, w, h float64) scene.Shape {
	return scene.Shape{Kind: scene.KindEllipse, Points: []geometry.Point{geometry.Pt(x, y), geometry.Pt(x+w, y+h)}}
}

func newLayer(t *testing.T, opts ...Option) (*Layer, *history.Engine, *recorder, *clock) {
	t.Helper()
	rec := &recorder{}
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	e := history.New(nil)
	o := DefaultOptions()
	o.Debounce = 10 * time.Millisecond
	o.Timeout = 200 * time.Millisecond
	o.Sweep = -1
	all := append([]Option{
		WithOptions(o),
		WithSource(Panel, NewCatalogSource(nil)),
		WithSource(Floating, NewWizardSource()),
		WithSource(Auto, NewWizardSource()),
		WithEvents(rec.add),
		WithClock(clk.Now),
	}, opts...)
	l := New(e, all...)
	t.Cleanup(l.Close)
	return l, e, rec, clk
}

func TestRequest_ProposesWithoutTouchingScene(t *testing.T) {
	l, e, rec, _ := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(100, 100, 200, 160))))
	version := e.Version()

	res := l.Request(context.Background(), Request{Mode: Floating})

	require.Len(t, res.Suggestions, 1)
	s := res.Suggestions[0]
	require.Equal(t, Proposed, s.State)
	require.Equal(t, "cat_ears", s.TemplateID)
	require.Equal(t, 70, s.Uncertainty)
	require.LessOrEqual(t, len(s.Explanation), MaxExplanation)
	for _, sh := range s.Shapes {
		require.Equal(t, scene.AIGenerated, sh.Provenance)
		require.Empty(t, sh.ID)
	}
	require.Equal(t, version, e.Version())
	require.Equal(t, 1, e.Snapshot().Len())
	undo, _ := e.Depth()
	require.Equal(t, 1, undo)
	require.Equal(t, []string{EventProposed}, rec.names())
}

func TestRequest_AbstainsWithNotice(t *testing.T) {
	l, _, _, _ := newLayer(t)

	res := l.Request(context.Background(), Request{Mode: Floating})

	require.Empty(t, res.Suggestions)
	require.NotEmpty(t, res.Notice)
	require.False(t, res.Stale)
}

func TestAccept_OneUndoStep(t *testing.T) {
	l, e, rec, clk := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(100, 100, 200, 160))))
	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)

	clk.Advance(2 * time.Second)
	got, err := l.Accept(res.Suggestions[0].ID)
	require.NoError(t, err)

	require.Equal(t, Accepted, got.State)
	require.Equal(t, 2*time.Second, got.DecisionLatency())
	require.Len(t, got.AcceptedIDs, 1)

	shapes := e.Snapshot().Shapes()
	require.Len(t, shapes, 2)
	group := shapes[1]
	require.Equal(t, got.AcceptedIDs[0], group.ID)
	require.Equal(t, scene.KindGroup, group.Kind)
	require.Equal(t, scene.AIAccepted, group.Provenance)
	require.Len(t, group.Children, 2)
	for _, c := range group.Children {
		require.Equal(t, scene.AIAccepted, c.Provenance)
		require.Equal(t, TagCatEar, c.Tag)
	}

	undo, _ := e.Depth()
	require.Equal(t, 2, undo)
	_, err = e.Undo()
	require.NoError(t, err)
	require.Equal(t, 1, e.Snapshot().Len())

	require.Equal(t, []string{EventProposed, EventAccepted}, rec.names())
}

func TestAccept_Twice(t *testing.T) {
	l, e, _, _ := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)
	id := res.Suggestions[0].ID

	_, err := l.Accept(id)
	require.NoError(t, err)
	_, err = l.Accept(id)
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("second accept err = %v, want CONFLICT", err)
	}
	require.Equal(t, 2, e.Snapshot().Len())
}

func TestAccept_Unknown(t *testing.T) {
	l, _, _, _ := newLayer(t)

	_, err := l.Accept("nope")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Accept err = %v, want NOT_FOUND", err)
	}
	_, err = l.Reject("nope", Ignore)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Reject err = %v, want NOT_FOUND", err)
	}
}

func TestAccept_ConcurrentOnlyOnce(t *testing.T) {
	l, e, _, _ := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)
	id := res.Suggestions[0].ID

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Accept(id); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, 2, e.Snapshot().Len())
}

func TestReject_LeavesSceneAndSuppressesAuto(t *testing.T) {
	l, e, rec, _ := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	version := e.Version()

	res := l.Request(context.Background(), Request{Mode: Auto})
	require.Len(t, res.Suggestions, 1)

	got, err := l.Reject(res.Suggestions[0].ID, Override)
	require.NoError(t, err)
	require.Equal(t, Rejected, got.State)
	require.Equal(t, Override, got.Reason)
	require.Equal(t, version, e.Version())
	require.Equal(t, []string{"cat_ears"}, l.Suppressed())

	res = l.Request(context.Background(), Request{Mode: Auto})
	require.Empty(t, res.Suggestions)

	res = l.Request(context.Background(), Request{Mode: Floating})
	require.Empty(t, res.Suggestions, "wizard honours suppressed ids in every mode")

	require.Equal(t, []string{EventProposed, EventRejected}, rec.names())
}

func TestReject_PanelDoesNotSuppress(t *testing.T) {
	l, _, _, _ := newLayer(t)

	res := l.Request(context.Background(), Request{Mode: Panel, Category: "door"})
	require.Len(t, res.Suggestions, 3)

	_, err := l.Reject(res.Suggestions[0].ID, "")
	require.NoError(t, err)
	require.Empty(t, l.Suppressed())
}

func TestDisabled(t *testing.T) {
	l, e, rec, _ := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)

	l.SetEnabled(false)
	require.False(t, l.Enabled())

	got, ok := l.Get(res.Suggestions[0].ID)
	require.True(t, ok)
	require.Equal(t, Expired, got.State)

	res = l.Request(context.Background(), Request{Mode: Floating})
	require.Empty(t, res.Suggestions)
	require.Contains(t, res.Notice, "disabled")

	_, err := l.Accept(got.ID)
	if !errors.Is(err, errors.ErrAssistDisabled) {
		t.Errorf("Accept err = %v, want ASSIST_DISABLED", err)
	}
	require.Equal(t, 1, e.Snapshot().Len())
	require.Equal(t, []string{EventProposed, EventExpired}, rec.names())
}

func TestRequest_SourceFailures(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(ctx context.Context, c Context) ([]Proposal, error)
		notice string
	}{
		{
			name:   "error",
			fn:     func(context.Context, Context) ([]Proposal, error) { return nil, fmt.Errorf("boom") },
			notice: "unavailable",
		},
		{
			name:   "panic",
			fn:     func(context.Context, Context) ([]Proposal, error) { panic("bad source") },
			notice: "panicked",
		},
		{
			name: "ignores context",
			fn: func(context.Context, Context) ([]Proposal, error) {
				time.Sleep(2 * time.Second)
				return nil, nil
			},
			notice: "timed out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, e, rec, _ := newLayer(t, WithSource(Floating, funcSource{name: "flaky", fn: tt.fn}))
			version := e.Version()

			start := time.Now()
			res := l.Request(context.Background(), Request{Mode: Floating})

			require.Less(t, time.Since(start), time.Second)
			require.Empty(t, res.Suggestions)
			require.Contains(t, res.Notice, tt.notice)
			require.Equal(t, version, e.Version())
			require.Equal(t, []string{EventUnavailable}, rec.names())
		})
	}
}

func TestRequest_StaleResultDiscarded(t *testing.T) {
	var e *history.Engine
	src := funcSource{name: "slow", fn: func(ctx context.Context, c Context) ([]Proposal, error) {
		// The subject keeps drawing while the source thinks.
		if err := e.Execute(history.NewAddShape(ellipse(0, 0, 10, 10))); err != nil {
			return nil, err
		}
		return []Proposal{{Label: "x", Shapes: []scene.Shape{ellipse(0, 0, 5, 5)}}}, nil
	}}
	l, eng, rec, _ := newLayer(t, WithSource(Floating, src), WithSource(Panel, src))
	e = eng

	res := l.Request(context.Background(), Request{Mode: Floating})
	require.True(t, res.Stale)
	require.Empty(t, res.Suggestions)
	require.Empty(t, l.Pending())
	require.Equal(t, []string{EventDiscarded}, rec.names())

	// Panel results do not depend on the drawing.
	res = l.Request(context.Background(), Request{Mode: Panel})
	require.False(t, res.Stale)
	require.Len(t, res.Suggestions, 1)
}

func TestRequest_Superseded(t *testing.T) {
	started := make(chan struct{}, 1)
	src := funcSource{name: "gate", fn: func(ctx context.Context, c Context) ([]Proposal, error) {
		if c.Prompt == "slow" {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []Proposal{{Label: c.Prompt, Shapes: []scene.Shape{ellipse(0, 0, 5, 5)}}}, nil
	}}
	l, _, _, _ := newLayer(t, WithSource(Floating, src))

	first := l.RequestAsync(context.Background(), Request{Mode: Floating, Prompt: "slow"})
	<-started
	second := l.Request(context.Background(), Request{Mode: Floating, Prompt: "fast"})

	old := <-first
	require.True(t, old.Stale)
	require.Empty(t, old.Suggestions)
	require.Len(t, second.Suggestions, 1)
	require.Equal(t, "fast", second.Suggestions[0].Label)
}

func TestSweep_ExpiresAfterTTL(t *testing.T) {
	l, e, rec, clk := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)

	require.Empty(t, l.Sweep())
	clk.Advance(DefaultOptions().TTL)
	expired := l.Sweep()
	require.Len(t, expired, 1)
	require.Equal(t, Expired, expired[0].State)
	require.Equal(t, DefaultOptions().TTL, expired[0].DecisionLatency())
	require.Empty(t, l.Pending())

	_, err := l.Accept(res.Suggestions[0].ID)
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("Accept err = %v, want CONFLICT", err)
	}
	require.Equal(t, 1, e.Snapshot().Len())
	require.Equal(t, []string{EventProposed, EventExpired}, rec.names())
}

func TestPending_HidesLapsedBeforeSweep(t *testing.T) {
	l, e, rec, clk := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)

	clk.Advance(DefaultOptions().TTL + time.Minute)
	require.Empty(t, l.Pending())
	require.Equal(t, []string{EventProposed}, rec.names())

	expired := l.Sweep()
	require.Len(t, expired, 1)
	require.Equal(t, DefaultOptions().TTL, expired[0].DecisionLatency())
}

func TestSweeper_ExpiresInBackground(t *testing.T) {
	o := DefaultOptions()
	o.TTL = 100 * time.Millisecond
	o.Sweep = 10 * time.Millisecond
	l, e, rec, _ := newLayer(t, WithOptions(o), WithClock(time.Now))
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))

	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)

	require.Eventually(t, func() bool {
		return len(rec.names()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{EventProposed, EventExpired}, rec.names())
	require.Empty(t, l.Pending())

	got, _ := l.Get(res.Suggestions[0].ID)
	require.Equal(t, Expired, got.State)
	require.Equal(t, o.TTL, got.DecisionLatency())
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want time.Duration
	}{
		{"default ttl capped", Options{TTL: 90 * time.Second}, time.Second},
		{"quarter of ttl", Options{TTL: 400 * time.Millisecond}, 100 * time.Millisecond},
		{"floor", Options{TTL: 8 * time.Millisecond}, 10 * time.Millisecond},
		{"explicit", Options{TTL: time.Minute, Sweep: 5 * time.Second}, 5 * time.Second},
		{"disabled", Options{TTL: time.Minute, Sweep: -1}, 0},
		{"no ttl", Options{}, 0},
	}
	for _, tt := range tests {
		if got := sweepInterval(tt.opts); got != tt.want {
			t.Errorf("%s: sweepInterval = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRequest_FloatingShowsOne(t *testing.T) {
	l, e, rec, _ := newLayer(t)
	l.SetTask("castle")
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(100, 100, 80, 80))))
	require.NoError(t, e.Execute(history.NewAddShape(scene.Shape{
		Kind:   scene.KindRectangle,
		Points: []geometry.Point{geometry.Pt(300, 200), geometry.Pt(360, 400)},
	})))

	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)
	require.Equal(t, "roof", res.Suggestions[0].TemplateID)
	require.Len(t, l.Pending(), 1)
	require.Equal(t, []string{EventProposed}, rec.names())
}

func TestRequest_FloatingKeepsBestScore(t *testing.T) {
	src := funcSource{name: "many", fn: func(ctx context.Context, c Context) ([]Proposal, error) {
		return []Proposal{
			{Label: "low", Score: 0.2, Shapes: []scene.Shape{ellipse(0, 0, 5, 5)}},
			{Label: "high", Score: 0.9, Shapes: []scene.Shape{ellipse(0, 0, 5, 5)}},
			{Label: "suppressed", TemplateID: "gone", Score: 1, Shapes: []scene.Shape{ellipse(0, 0, 5, 5)}},
			{Label: "tie", Score: 0.9, Shapes: []scene.Shape{ellipse(0, 0, 5, 5)}},
		}, nil
	}}
	l, _, rec, _ := newLayer(t, WithSource(Floating, src), WithSource(Panel, src))
	l.mu.Lock()
	l.suppressed["gone"] = true
	l.mu.Unlock()

	first := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, first.Suggestions, 1)
	require.Equal(t, "high", first.Suggestions[0].Label)

	second := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, second.Suggestions, 1)
	got, _ := l.Get(first.Suggestions[0].ID)
	require.Equal(t, Expired, got.State)
	require.Equal(t, []string{EventProposed, EventExpired, EventProposed}, rec.names())

	panel := l.Request(context.Background(), Request{Mode: Panel})
	require.Len(t, panel.Suggestions, 3, "panel keeps the whole batch")
	require.Len(t, l.Pending(), 4)
}

func TestRequestAsync_AfterClose(t *testing.T) {
	l, _, _, _ := newLayer(t)
	l.Close()

	res, ok := <-l.RequestAsync(context.Background(), Request{Mode: Floating})
	require.True(t, ok)
	require.Empty(t, res.Suggestions)
	require.Contains(t, res.Notice, "closed")
}

func TestAccept_ExpiredByClock(t *testing.T) {
	l, e, _, clk := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)

	clk.Advance(time.Hour)
	_, err := l.Accept(res.Suggestions[0].ID)
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("Accept err = %v, want CONFLICT", err)
	}
	got, _ := l.Get(res.Suggestions[0].ID)
	require.Equal(t, Expired, got.State)
}

func TestAuto_TriggersAfterManualAction(t *testing.T) {
	l, e, _, _ := newLayer(t)
	require.False(t, l.Auto())

	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, l.Pending(), "auto is off by default")

	l.SetAuto(true)
	require.NoError(t, e.Execute(history.NewAddShape(scene.Shape{
		Kind:   scene.KindLine,
		Points: []geometry.Point{geometry.Pt(0, 200), geometry.Pt(50, 200)},
	})))

	require.Eventually(t, func() bool {
		return len(l.Pending()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	p := l.Pending()[0]
	require.Equal(t, Auto, p.Mode)
	require.Equal(t, "cat_ears", p.TemplateID)
}

func TestAuto_NewResultExpiresOlder(t *testing.T) {
	l, e, _, _ := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))

	first := l.Request(context.Background(), Request{Mode: Auto})
	require.Len(t, first.Suggestions, 1)
	second := l.Request(context.Background(), Request{Mode: Auto})
	require.Len(t, second.Suggestions, 1)

	got, _ := l.Get(first.Suggestions[0].ID)
	require.Equal(t, Expired, got.State)
	require.Len(t, l.Pending(), 1)
}

func TestAuto_AcceptDoesNotRetrigger(t *testing.T) {
	l, e, _, _ := newLayer(t)
	require.NoError(t, e.Execute(history.NewAddShape(ellipse(0, 0, 100, 80))))
	res := l.Request(context.Background(), Request{Mode: Floating})
	require.Len(t, res.Suggestions, 1)

	l.SetAuto(true)
	_, err := l.Accept(res.Suggestions[0].ID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	require.Empty(t, l.Pending())
}

func TestExpireAll(t *testing.T) {
	l, _, _, _ := newLayer(t)
	res := l.Request(context.Background(), Request{Mode: Panel, Category: "wheel"})
	require.Len(t, res.Suggestions, 3)

	l.ExpireAll()

	require.Empty(t, l.Pending())
	for _, s := range l.All() {
		require.Equal(t, Expired, s.State)
	}
}

func TestRequest_NoSource(t *testing.T) {
	e := history.New(nil)
	l := New(e)
	defer l.Close()

	res := l.Request(context.Background(), Request{Mode: Panel})
	require.Empty(t, res.Suggestions)
	require.True(t, strings.Contains(res.Notice, "no suggestion source"))
}
