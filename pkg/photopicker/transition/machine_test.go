package transition

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/dispatch"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
)

const frame = 16 * time.Millisecond

type fakeView struct {
	frame   geom.Rect
	scale   float64
	mode    ContentMode
	removed bool
}

func (v *fakeView) Frame() geom.Rect             { return v.frame }
func (v *fakeView) SetFrame(r geom.Rect)         { v.frame = r }
func (v *fakeView) SetScale(s float64)           { v.scale = s }
func (v *fakeView) SetContentMode(m ContentMode) { v.mode = m }
func (v *fakeView) Remove()                      { v.removed = true }

type fakeVideoView struct {
	fakeView
	gravity    Gravity
	gravitySet int
}

func (v *fakeVideoView) SetVideoGravity(g Gravity) {
	v.gravity = g
	v.gravitySet++
}

type fakeSurface struct {
	alpha  float64
	hidden bool
}

func (s *fakeSurface) SetAlpha(a float64) { s.alpha = a }
func (s *fakeSurface) SetHidden(h bool)   { s.hidden = h }

type fakeScroll struct{ offset geom.Point }

func (s *fakeScroll) ContentOffset() geom.Point { return s.offset }

type fakeSource struct {
	view     View
	original geom.Rect
	final    geom.Rect
	scroll   *fakeScroll
	extra    []float64
}

func (d *fakeSource) RepresentativeView(deliver func(View)) { deliver(d.view) }
func (d *fakeSource) OriginalFrame() geom.Rect              { return d.original }
func (d *fakeSource) FinalFrame() geom.Rect                 { return d.final }

func (d *fakeSource) ScrollSurface() ScrollSurface {
	if d.scroll == nil {
		return nil
	}
	return d.scroll
}

func (d *fakeSource) AdditionalAnimation() func(float64) {
	return func(t float64) { d.extra = append(d.extra, t) }
}

type recorder struct {
	events []string
}

func (r *recorder) WillStart() { r.events = append(r.events, "will-start") }

func (r *recorder) WillEnd(completed bool) {
	if completed {
		r.events = append(r.events, "will-end:true")
	} else {
		r.events = append(r.events, "will-end:false")
	}
}

func (r *recorder) DidComplete() { r.events = append(r.events, "did-complete") }

func (r *recorder) String() string { return strings.Join(r.events, ",") }

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type harness struct {
	m      *Machine
	driver *ManualDriver
	source *fakeSource
	view   *fakeView
	rec    *recorder
	from   *fakeSurface
	to     *fakeSurface
	ctx    *Context
}

func newHarness() *harness {
	view := &fakeView{}
	source := &fakeSource{
		view:     view,
		original: geom.Rect{X: 100, Y: 200, Width: 100, Height: 100},
		final:    geom.Rect{X: 0, Y: 0, Width: 400, Height: 800},
	}
	driver := &ManualDriver{}
	rec := &recorder{}
	h := &harness{
		m:      New(source, rec, Options{Driver: driver}),
		driver: driver,
		source: source,
		view:   view,
		rec:    rec,
		from:   &fakeSurface{alpha: 1, hidden: true},
		to:     &fakeSurface{},
	}
	h.ctx = &Context{From: h.from, To: h.to, Screen: geom.Size{Width: 400, Height: 800}}
	return h
}

func (h *harness) settle(t *testing.T) {
	t.Helper()
	if n := h.driver.Settle(frame, 1000); n >= 1000 {
		t.Fatal("animation never settled")
	}
}

func drag(phase PanPhase, dy float64) Pan {
	return Pan{Phase: phase, Translation: geom.Point{Y: dy}}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func approxRect(a, b geom.Rect) bool {
	return approx(a.X, b.X) && approx(a.Y, b.Y) && approx(a.Width, b.Width) && approx(a.Height, b.Height)
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected a panic", name)
		}
	}()
	fn()
}

func TestPushCompletes(t *testing.T) {
	h := newHarness()

	h.m.Push(h.ctx)
	if h.m.State() != AnimatingPush {
		t.Fatalf("Expected %s, got %s", AnimatingPush, h.m.State())
	}

	h.settle(t)

	if h.m.State() != Idle {
		t.Errorf("Expected idle, got %s", h.m.State())
	}
	if got := h.rec.String(); got != "will-start,did-complete" {
		t.Errorf("Unexpected notifications: %s", got)
	}
	if completed, done := h.ctx.Result(); !completed || !done {
		t.Errorf("Expected a completed transition, got completed=%v done=%v", completed, done)
	}
	if !approxRect(h.view.frame, h.source.final) || !h.view.removed {
		t.Errorf("Expected the view at the final frame and removed, got %+v removed=%v", h.view.frame, h.view.removed)
	}
	if h.view.mode != ContentFill {
		t.Errorf("Expected fill content mode, got %v", h.view.mode)
	}
	if h.from.alpha != 0 || h.to.alpha != 1 {
		t.Errorf("Expected cross-fade to the destination, got from=%v to=%v", h.from.alpha, h.to.alpha)
	}
	if len(h.source.extra) == 0 {
		t.Error("Expected the additional animation to run")
	}
}

func TestDefaultDriverStepsOnPrivateQueue(t *testing.T) {
	view := &fakeView{}
	source := &fakeSource{
		view:     view,
		original: geom.Rect{X: 100, Y: 200, Width: 100, Height: 100},
		final:    geom.Rect{X: 0, Y: 0, Width: 400, Height: 800},
	}
	rec := &recorder{}
	m := New(source, rec, Options{Duration: 50 * time.Millisecond})
	defer m.Close()

	q, ok := m.UI().(*dispatch.Queue)
	if !ok {
		t.Fatalf("Expected a private queue, got %T", m.UI())
	}

	from, to := &fakeSurface{alpha: 1}, &fakeSurface{}
	ctx := &Context{From: from, To: to, Screen: geom.Size{Width: 400, Height: 800}}
	q.Sync(func() { m.Push(ctx) })

	// State is polled off the queue while frames step on it.
	deadline := time.Now().Add(2 * time.Second)
	for m.State() != Idle {
		if time.Now().After(deadline) {
			t.Fatalf("Expected the push to finish, still %s", m.State())
		}
		time.Sleep(2 * time.Millisecond)
	}

	var events string
	var alpha float64
	q.Sync(func() {
		events = rec.String()
		alpha = to.alpha
	})
	if events != "will-start,did-complete" {
		t.Errorf("Unexpected notifications: %s", events)
	}
	if alpha != 1 {
		t.Errorf("Expected the destination faded in, got %v", alpha)
	}
}

func TestPopCompletes(t *testing.T) {
	h := newHarness()

	h.m.Pop(h.ctx)
	h.settle(t)

	if got := h.rec.String(); got != "will-start,will-end:true,did-complete" {
		t.Errorf("Unexpected notifications: %s", got)
	}
	if h.from.alpha != 0 || h.to.alpha != 1 {
		t.Errorf("Expected alpha cross-fade, got from=%v to=%v", h.from.alpha, h.to.alpha)
	}
}

func TestPopCancelledSkipsDidComplete(t *testing.T) {
	h := newHarness()

	h.m.Pop(h.ctx)
	h.driver.Advance(frame)
	h.ctx.Cancel()
	h.settle(t)

	if got := h.rec.String(); got != "will-start,will-end:false" {
		t.Errorf("Unexpected notifications: %s", got)
	}
	if completed, done := h.ctx.Result(); completed || !done {
		t.Errorf("Expected a cancelled transition, got completed=%v done=%v", completed, done)
	}
}

func TestStartingWhileActivePanics(t *testing.T) {
	h := newHarness()
	h.m.Push(h.ctx)

	expectPanic(t, "push", func() { h.m.Push(&Context{}) })
	expectPanic(t, "pop", func() { h.m.Pop(&Context{}) })
	expectPanic(t, "interactive", func() { h.m.BeginInteractive(&Context{}, drag(PanBegan, 0)) })

	if h.m.State() != AnimatingPush {
		t.Errorf("Expected the running push to be unaffected, got %s", h.m.State())
	}
}

func TestDragBeganWhileTrackingPanics(t *testing.T) {
	h := newHarness()
	h.m.BeginInteractive(h.ctx, drag(PanBegan, 0))

	expectPanic(t, "began", func() { h.m.HandlePan(drag(PanBegan, 0)) })
}

func TestInteractiveRevert(t *testing.T) {
	h := newHarness()

	h.m.BeginInteractive(h.ctx, drag(PanBegan, 0))
	h.m.HandlePan(drag(PanChanged, 80))
	h.m.HandlePan(drag(PanEnded, 80))

	if h.m.State() != InteractiveSettling {
		t.Fatalf("Expected %s, got %s", InteractiveSettling, h.m.State())
	}

	h.settle(t)

	if h.m.State() != Idle {
		t.Errorf("Expected idle, got %s", h.m.State())
	}
	if h.rec.count("did-complete") != 0 {
		t.Errorf("Expected no completion notification, got %s", h.rec)
	}
	if got := h.rec.String(); got != "will-start,will-end:false" {
		t.Errorf("Unexpected notifications: %s", got)
	}
	if !approxRect(h.view.frame, h.source.original) || !approx(h.view.scale, 1) {
		t.Errorf("Expected the original frame restored, got %+v scale %v", h.view.frame, h.view.scale)
	}
	if completed, done := h.ctx.Result(); completed || !done {
		t.Errorf("Expected a cancelled transition, got completed=%v done=%v", completed, done)
	}
	if h.from.hidden {
		t.Error("Expected the source surface to be unhidden")
	}
	if h.from.alpha != 1 || h.to.alpha != 0 {
		t.Errorf("Expected background reset, got from=%v to=%v", h.from.alpha, h.to.alpha)
	}
}

func TestInteractiveCommit(t *testing.T) {
	h := newHarness()

	h.m.BeginInteractive(h.ctx, drag(PanBegan, 0))
	h.m.HandlePan(drag(PanChanged, 150))
	h.m.HandlePan(drag(PanEnded, 150))
	h.settle(t)

	if n := h.rec.count("did-complete"); n != 1 {
		t.Errorf("Expected exactly one completion, got %d (%s)", n, h.rec)
	}
	if got := h.rec.String(); got != "will-start,will-end:true,did-complete" {
		t.Errorf("Unexpected notifications: %s", got)
	}
	if completed, done := h.ctx.Result(); !completed || !done {
		t.Errorf("Expected a completed transition, got completed=%v done=%v", completed, done)
	}
	if !approxRect(h.view.frame, h.source.final) {
		t.Errorf("Expected the view at the final frame, got %+v", h.view.frame)
	}
	if h.from.alpha != 0 || h.to.alpha != 1 {
		t.Errorf("Expected background to run to the end, got from=%v to=%v", h.from.alpha, h.to.alpha)
	}
}

func TestChangedScrubsTransition(t *testing.T) {
	h := newHarness()

	h.m.BeginInteractive(h.ctx, drag(PanBegan, 0))
	h.m.HandlePan(Pan{Phase: PanChanged, Translation: geom.Point{X: 10, Y: 150}})

	// 150 / (800/2 - 100)
	if got := h.ctx.Fraction(); !approx(got, 0.5) {
		t.Errorf("Expected fraction 0.5, got %v", got)
	}
	if !approx(h.from.alpha, 0.5) || !approx(h.to.alpha, 0.5) {
		t.Errorf("Expected the paused background scrubbed to 0.5, got from=%v to=%v", h.from.alpha, h.to.alpha)
	}
	// View shorter than the screen, so the screen height is the reference.
	if !approx(h.view.scale, (800.0-150)/800) {
		t.Errorf("Expected scale %v, got %v", (800.0-150)/800, h.view.scale)
	}
	if c := h.view.frame.Center(); !approx(c.X, 160) || !approx(c.Y, 400) {
		t.Errorf("Expected the view translated to (160, 400), got %+v", c)
	}
	if h.driver.Running() {
		t.Error("Expected no frames while only scrubbing")
	}
}

func TestEscapeHatch(t *testing.T) {
	h := newHarness()
	h.source.scroll = &fakeScroll{offset: geom.Point{Y: 12}}
	h.m.SetSimultaneousGestures(true)

	h.m.BeginInteractive(h.ctx, drag(PanBegan, 0))
	h.m.HandlePan(drag(PanChanged, 300))

	if h.m.State() != Idle {
		t.Fatalf("Expected an immediate cancel, got %s", h.m.State())
	}
	if completed, done := h.ctx.Result(); completed || !done || !h.ctx.Cancelled() {
		t.Errorf("Expected a cancelled transition, got completed=%v done=%v", completed, done)
	}
	if !h.view.removed || h.from.hidden || h.to.alpha != 0 {
		t.Errorf("Expected cleanup, got removed=%v hidden=%v to=%v", h.view.removed, h.from.hidden, h.to.alpha)
	}

	before := h.rec.String()
	h.source.scroll.offset = geom.Point{}
	h.m.HandlePan(drag(PanChanged, 400))
	h.m.HandlePan(drag(PanEnded, 400))

	if h.m.State() != Idle {
		t.Errorf("Expected the rest of the drag to be ignored, got %s", h.m.State())
	}
	if got := h.rec.String(); got != before || got != "will-start,will-end:false" {
		t.Errorf("Unexpected notifications: %s", got)
	}
}

func TestScrollAtTopDoesNotEscape(t *testing.T) {
	h := newHarness()
	h.source.scroll = &fakeScroll{}
	h.m.SetSimultaneousGestures(true)

	h.m.BeginInteractive(h.ctx, drag(PanBegan, 0))
	h.m.HandlePan(drag(PanChanged, 50))

	if h.m.State() != InteractiveTracking {
		t.Errorf("Expected tracking to continue, got %s", h.m.State())
	}
}

func TestCancelledDrag(t *testing.T) {
	for _, phase := range []PanPhase{PanCancelled, PanFailed} {
		t.Run(phase.String(), func(t *testing.T) {
			h := newHarness()

			h.m.BeginInteractive(h.ctx, drag(PanBegan, 0))
			h.m.HandlePan(drag(PanChanged, 200))
			h.m.HandlePan(drag(phase, 200))

			if h.m.State() != Idle {
				t.Errorf("Expected idle, got %s", h.m.State())
			}
			if got := h.rec.String(); got != "will-start" {
				t.Errorf("Expected no end notifications, got %s", got)
			}
			if h.from.hidden {
				t.Error("Expected the source surface to be unhidden")
			}
			if completed, _ := h.ctx.Result(); completed {
				t.Error("Expected the transition to be cancelled")
			}
		})
	}
}

func TestVideoViewUsesGravity(t *testing.T) {
	h := newHarness()
	video := &fakeVideoView{}
	h.source.view = video

	h.m.Pop(h.ctx)
	if video.gravity != GravityAspect {
		t.Errorf("Expected aspect gravity at the start, got %v", video.gravity)
	}
	h.settle(t)

	if video.gravity != GravityAspectFill || video.gravitySet < 2 {
		t.Errorf("Expected aspect-fill gravity at every step, got %v after %d sets", video.gravity, video.gravitySet)
	}
	if video.mode != ContentFit {
		t.Errorf("Expected content mode untouched on a video view, got %v", video.mode)
	}
}

func TestShouldBegin(t *testing.T) {
	tests := []struct {
		name     string
		velocity geom.Point
		want     bool
	}{
		{"down", geom.Point{X: 10, Y: 300}, true},
		{"up", geom.Point{X: 0, Y: -300}, true},
		{"sideways", geom.Point{X: 300, Y: 10}, false},
		{"diagonal", geom.Point{X: 200, Y: 200}, false},
		{"still", geom.Point{}, false},
	}

	h := newHarness()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.m.ShouldBegin(tt.velocity); got != tt.want {
				t.Errorf("ShouldBegin(%+v) = %v, want %v", tt.velocity, got, tt.want)
			}
		})
	}

	h.m.Push(h.ctx)
	if h.m.ShouldBegin(geom.Point{Y: 500}) {
		t.Error("Expected no drag to begin during a push")
	}
}

func TestDragScale(t *testing.T) {
	tests := []struct {
		h, dy, want float64
	}{
		{800, 0, 1},
		{800, -100, 1},
		{800, 200, 0.75},
		{800, 400, 0.5},
		{800, 700, 0.5},
		{0, 100, 1},
	}
	for _, tt := range tests {
		if got := DragScale(tt.h, tt.dy, 0.5); !approx(got, tt.want) {
			t.Errorf("DragScale(%v, %v) = %v, want %v", tt.h, tt.dy, got, tt.want)
		}
	}
}

func TestDragFraction(t *testing.T) {
	tests := []struct {
		screen, dy, want float64
	}{
		{800, 0, 0},
		{800, -50, 0},
		{800, 150, 0.5},
		{800, 600, 2},
		{150, 10, 1},
	}
	for _, tt := range tests {
		if got := DragFraction(tt.screen, 100, tt.dy); !approx(got, tt.want) {
			t.Errorf("DragFraction(%v, %v) = %v, want %v", tt.screen, tt.dy, got, tt.want)
		}
	}
}
