// Package transition animates navigation between the grid and the preview
// with a representative view that flies between the two layouts.
//
// A Machine runs at most one transition at a time: an animated push, an
// animated pop, or an interactive pop driven by a vertical drag. Its state is
// an explicit State value; asking it to start a transition while another is
// active is a caller bug and panics. All methods must be called from the
// executor that owns the machine, which is also where its Driver steps.
package transition

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.uber.org/atomic"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/dispatch"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
)

// State is the machine's current phase.
type State int

const (
	Idle State = iota
	AnimatingPush
	AnimatingPop
	InteractiveTracking
	InteractiveSettling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AnimatingPush:
		return "animating-push"
	case AnimatingPop:
		return "animating-pop"
	case InteractiveTracking:
		return "interactive-tracking"
	case InteractiveSettling:
		return "interactive-settling"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var legal = map[State][]State{
	Idle:                {AnimatingPush, AnimatingPop, InteractiveTracking},
	AnimatingPush:       {Idle},
	AnimatingPop:        {Idle},
	InteractiveTracking: {InteractiveSettling, Idle},
	InteractiveSettling: {Idle},
}

// Operation is the kind of navigation a transition performs.
type Operation int

const (
	OperationNone Operation = iota
	OperationPush
	OperationPop
	OperationInteractivePop
)

func (o Operation) String() string {
	switch o {
	case OperationPush:
		return "push"
	case OperationPop:
		return "pop"
	case OperationInteractivePop:
		return "interactive-pop"
	default:
		return "none"
	}
}

// PanPhase is the phase of a drag gesture.
type PanPhase int

const (
	PanBegan PanPhase = iota
	PanChanged
	PanEnded
	PanCancelled
	PanFailed
)

func (p PanPhase) String() string {
	switch p {
	case PanBegan:
		return "began"
	case PanChanged:
		return "changed"
	case PanEnded:
		return "ended"
	case PanCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Pan is one drag gesture event. Translation is measured from where the drag
// began; positive Y points down.
type Pan struct {
	Phase       PanPhase
	Translation geom.Point
	Velocity    geom.Point // Points per second
}

// Options configures a Machine. Zero values select defaults.
type Options struct {
	Driver             Driver            // Advances animations (default: a FrameDriver on UI)
	UI                 dispatch.Executor // Executor that owns the machine (default: a private serial queue when Driver is nil)
	Duration           time.Duration     // Push, pop and settle duration (default: 500ms)
	BackgroundDuration time.Duration     // Background fade during interactive pops (default: 400ms)
	CommitThreshold    float64           // Downward drag in points that commits a pop (default: 100)
	FadeMargin         float64           // Subtracted from half the screen height when normalising drag (default: 100)
	MinimumScale       float64           // Smallest scale while dragging (default: 0.5)
	Logger             *slog.Logger
}

// Machine is the interactive push/pop transition state machine.
type Machine struct {
	ds       DataSource
	delegate Delegate
	driver   Driver
	ui       dispatch.Executor
	ownUI    *dispatch.Queue
	logger   *slog.Logger

	duration     time.Duration
	bgDuration   time.Duration
	threshold    float64
	fadeMargin   float64
	minimumScale float64

	simultaneous bool

	state      State
	published  atomic.Int32 // copy of state readable from any goroutine
	ctx        *Context
	view       View
	animators  []*Animator
	background *Animator
	origin     geom.Point
	scale      float64
}

// New creates an idle machine.
func New(ds DataSource, delegate Delegate, opts Options) *Machine {
	if delegate == nil {
		delegate = DelegateFuncs{}
	}

	m := &Machine{
		ds:           ds,
		delegate:     delegate,
		driver:       opts.Driver,
		ui:           opts.UI,
		logger:       opts.Logger,
		duration:     opts.Duration,
		bgDuration:   opts.BackgroundDuration,
		threshold:    opts.CommitThreshold,
		fadeMargin:   opts.FadeMargin,
		minimumScale: opts.MinimumScale,
		scale:        1,
	}

	if m.driver == nil {
		// Frames arrive on a ticker goroutine, so they need a serial owner.
		if m.ui == nil {
			m.ownUI = dispatch.NewQueue("transition.ui")
			m.ui = m.ownUI
		}
		m.driver = NewFrameDriver(m.ui, constants.DefaultFrameInterval)
	}
	if m.ui == nil {
		m.ui = dispatch.Inline
	}
	if m.logger == nil {
		m.logger = internal.ComponentLogger("transition")
	}
	if m.duration <= 0 {
		m.duration = constants.DefaultTransitionDuration
	}
	if m.bgDuration <= 0 {
		m.bgDuration = constants.DefaultBackgroundFadeDuration
	}
	if m.threshold <= 0 {
		m.threshold = constants.DefaultCommitThreshold
	}
	if m.fadeMargin <= 0 {
		m.fadeMargin = constants.DefaultFadeMargin
	}
	if m.minimumScale <= 0 {
		m.minimumScale = constants.MinimumDragScale
	}

	return m
}

// State returns the current phase. Unlike the other methods it may be called
// from any goroutine.
func (m *Machine) State() State {
	return State(m.published.Load())
}

// UI returns the executor that owns the machine. When Options left both UI
// and Driver unset this is the machine's private queue, and callers dispatch
// Push, Pop and drag events onto it.
func (m *Machine) UI() dispatch.Executor {
	return m.ui
}

// Close stops the driver and the private queue, if any. A running
// transition is left where it is. Close must not run on the private queue.
func (m *Machine) Close() {
	m.driver.Stop()
	if m.ownUI != nil {
		m.ownUI.Close()
	}
}

// Context returns the active transition, or nil when idle.
func (m *Machine) Context() *Context {
	return m.ctx
}

// SetSimultaneousGestures records that the drag is being recognised together
// with the data source's scroll surface. While set, a drag that starts with
// the scroll surface away from its top hands control back to the scroll
// surface.
func (m *Machine) SetSimultaneousGestures(on bool) {
	m.simultaneous = on
}

// ShouldBegin decides whether a drag starting with velocity may drive an
// interactive pop. Only drags that are more vertical than horizontal win.
func (m *Machine) ShouldBegin(velocity geom.Point) bool {
	if m.state != Idle {
		return false
	}
	return internal.DirectionOf(velocity.X, velocity.Y).IsVertical()
}

// Push animates the representative view from the original frame to the
// final frame and cross-fades to ctx.To.
func (m *Machine) Push(ctx *Context) {
	m.begin(AnimatingPush, ctx)
	m.delegate.WillStart()
	m.loadView(ctx)

	setAlpha(ctx.From, 0)
	setAlpha(ctx.To, 1)

	from, to := m.ds.OriginalFrame(), m.ds.FinalFrame()
	a := NewAnimator(m.duration, func(t float64) {
		if m.view == nil {
			return
		}
		m.present(m.view, ContentFill)
		m.view.SetFrame(geom.Lerp(from, to, t))
	})
	if extra := m.ds.AdditionalAnimation(); extra != nil {
		a.AddAnimation(extra)
	}
	a.AddCompletion(func(Position) {
		completed := !ctx.Cancelled()
		m.dropView()
		ctx.complete(completed)
		m.end()
		if completed {
			m.delegate.DidComplete()
		}
	})
	m.run(a)
}

// Pop is the non-interactive reverse of Push. WillEnd fires before cleanup
// and DidComplete only when the transition was not cancelled.
func (m *Machine) Pop(ctx *Context) {
	m.begin(AnimatingPop, ctx)
	m.delegate.WillStart()
	m.loadView(ctx)

	setAlpha(ctx.To, 0)
	setAlpha(ctx.From, 1)

	from, to := m.ds.OriginalFrame(), m.ds.FinalFrame()
	a := NewAnimator(m.duration, func(t float64) {
		setAlpha(ctx.To, t)
		setAlpha(ctx.From, 1-t)
		if m.view == nil {
			return
		}
		m.present(m.view, ContentFill)
		m.view.SetFrame(geom.Lerp(from, to, t))
	})
	if extra := m.ds.AdditionalAnimation(); extra != nil {
		a.AddAnimation(extra)
	}
	a.AddCompletion(func(Position) {
		completed := !ctx.Cancelled()
		m.delegate.WillEnd(completed)
		m.dropView()
		ctx.complete(completed)
		m.end()
		if completed {
			m.delegate.DidComplete()
		}
	})
	m.run(a)
}

// BeginInteractive starts an interactive pop for a drag that has just begun.
// The background cross-fade is created paused so the drag can scrub it.
func (m *Machine) BeginInteractive(ctx *Context, pan Pan) {
	if pan.Phase != PanBegan {
		panic(fmt.Sprintf("transition: interactive pop must begin with a began pan, got %s", pan.Phase))
	}

	m.begin(InteractiveTracking, ctx)
	ctx.interactive = true
	m.delegate.WillStart()
	setAlpha(ctx.From, 1)
	m.loadView(ctx)

	bg := NewAnimator(m.bgDuration, func(t float64) {
		setAlpha(ctx.From, 1-t)
		setAlpha(ctx.To, t)
	})
	if extra := m.ds.AdditionalAnimation(); extra != nil {
		bg.AddAnimation(extra)
	}
	bg.Pause()
	m.background = bg
	m.animators = append(m.animators, bg)

	original := m.ds.OriginalFrame()
	if m.view != nil {
		m.view.SetFrame(original)
	}
	m.origin = original.Center()
	m.scale = 1
}

// HandlePan feeds a drag event to the interactive pop. Events arriving while
// no interactive pop is tracking are ignored, which also discards the rest of
// a drag after it handed control back to the scroll surface.
func (m *Machine) HandlePan(pan Pan) {
	switch pan.Phase {
	case PanBegan:
		if m.state == InteractiveTracking || m.state == InteractiveSettling {
			panic(fmt.Sprintf("transition: drag began while %s", m.state))
		}
	case PanChanged:
		if m.state == InteractiveTracking {
			m.changed(pan)
		}
	case PanEnded:
		if m.state == InteractiveTracking {
			m.ended(pan)
		}
	case PanCancelled, PanFailed:
		if m.state == InteractiveTracking {
			m.abandon()
		}
	}
}

func (m *Machine) changed(pan Pan) {
	ctx := m.ctx

	if m.simultaneous && ctx.Interactive() {
		if s := m.ds.ScrollSurface(); s != nil && s.ContentOffset().Y > 0 {
			m.escape()
			return
		}
	}

	dy := pan.Translation.Y
	if m.view != nil {
		height := ctx.Screen.Height
		if m.view.Frame().Height >= ctx.Screen.Height {
			height = m.ds.OriginalFrame().Height
		}

		m.view.SetFrame(m.view.Frame().WithCenter(m.origin.Add(pan.Translation)))
		m.scale = DragScale(height, dy, m.minimumScale)
		m.view.SetScale(m.scale)
	}

	fraction := DragFraction(ctx.Screen.Height, m.fadeMargin, dy)
	ctx.updateInteractive(fraction)
	m.background.SetFraction(fraction)
}

// escape cancels the pop mid-drag because the scroll surface owns the drag.
func (m *Machine) escape() {
	ctx := m.ctx
	m.logger.Debug("Drag handed back to scroll surface")

	setAlpha(ctx.To, 0)
	m.background.Stop()
	m.background.FinishAt(PositionStart)
	m.dropView()
	ctx.cancelInteractive()
	ctx.complete(false)
	setHidden(ctx.From, false)
	m.end()
	m.delegate.WillEnd(false)
}

func (m *Machine) ended(pan Pan) {
	ctx := m.ctx
	commit := pan.Translation.Y > m.threshold
	m.transition(InteractiveSettling)

	if commit {
		m.background.Continue()
	} else {
		m.background.Stop()
		m.background.FinishAt(PositionStart)
	}

	v := m.view
	var startVisual geom.Rect
	var startCenter geom.Point
	startScale := m.scale
	if v != nil {
		startVisual = v.Frame().ScaledAboutCenter(m.scale)
		startCenter = v.Frame().Center()
	}
	final, origin := m.ds.FinalFrame(), m.origin

	pos := NewAnimator(m.duration, func(t float64) {
		if v == nil || v != m.view {
			return
		}
		m.present(v, ContentFill)
		if commit {
			v.SetScale(1)
			v.SetFrame(geom.Lerp(startVisual, final, t))
			return
		}
		v.SetFrame(v.Frame().WithCenter(geom.LerpPoint(startCenter, origin, t)))
		m.scale = geom.LerpValue(startScale, 1, t)
		v.SetScale(m.scale)
	})
	pos.AddCompletion(func(Position) {
		m.delegate.WillEnd(commit)
		m.dropView()
		if commit {
			setAlpha(ctx.To, 1)
			ctx.finishInteractive()
			ctx.complete(true)
			m.end()
			m.delegate.DidComplete()
			return
		}
		setAlpha(ctx.To, 0)
		ctx.cancelInteractive()
		ctx.complete(false)
		setHidden(ctx.From, false)
		m.end()
	})
	m.run(pos)
}

// abandon handles a cancelled or failed drag: the pop is cancelled at once
// with no completion notification.
func (m *Machine) abandon() {
	ctx := m.ctx
	m.background.Stop()
	m.background.FinishAt(PositionStart)
	m.dropView()
	ctx.cancelInteractive()
	ctx.complete(false)
	setHidden(ctx.From, false)
	m.end()
}

func (m *Machine) begin(next State, ctx *Context) {
	if m.state != Idle {
		panic(fmt.Sprintf("transition: cannot start %s while %s", next, m.state))
	}
	if ctx == nil {
		panic("transition: nil context")
	}
	m.ctx = ctx
	m.transition(next)
}

func (m *Machine) transition(next State) {
	ok := false
	for _, s := range legal[m.state] {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		panic(fmt.Sprintf("transition: illegal transition %s -> %s", m.state, next))
	}
	m.logger.Debug("Transition state changed", "from", m.state.String(), "to", next.String())
	m.state = next
	m.published.Store(int32(next))
}

func (m *Machine) end() {
	m.transition(Idle)
	m.driver.Stop()

	leftover := m.animators
	m.animators = nil
	m.background = nil
	m.ctx = nil
	m.scale = 1

	for _, a := range leftover {
		a.FinishAt(PositionEnd)
	}
}

func (m *Machine) run(a *Animator) {
	m.animators = append(m.animators, a)
	a.Start()
	m.driver.Start(m.step)
}

func (m *Machine) step(dt time.Duration) {
	for _, a := range append([]*Animator(nil), m.animators...) {
		a.Step(dt)
	}

	kept := m.animators[:0]
	for _, a := range m.animators {
		if !a.Finished() {
			kept = append(kept, a)
		}
	}
	m.animators = kept
}

func (m *Machine) loadView(ctx *Context) {
	interactive := ctx.Interactive()
	m.ds.RepresentativeView(func(v View) {
		if m.ctx != ctx || v == nil {
			return
		}
		if m.view != nil && m.view != v {
			m.view.Remove()
		}
		m.view = v
		m.present(v, ContentFit)

		original := m.ds.OriginalFrame()
		v.SetFrame(original)
		if interactive {
			m.origin = original.Center()
		}
	})
}

func (m *Machine) dropView() {
	if m.view != nil {
		m.view.Remove()
		m.view = nil
	}
}

// present applies the content mode, or the matching gravity for video views.
func (m *Machine) present(v View, mode ContentMode) {
	if layer, ok := v.(VideoLayer); ok {
		if mode == ContentFill {
			layer.SetVideoGravity(GravityAspectFill)
		} else {
			layer.SetVideoGravity(GravityAspect)
		}
		return
	}
	v.SetContentMode(mode)
}

// DragScale shrinks a view of height h as it is dragged dy points down. The
// result is clamped to [minimum, 1].
func DragScale(h, dy, minimum float64) float64 {
	if h <= 0 {
		return 1
	}
	return geom.Clamp((h-dy)/h, minimum, 1)
}

// DragFraction normalises a downward drag against half the screen height less
// margin. It is never negative.
func DragFraction(screenHeight, margin, dy float64) float64 {
	span := screenHeight/2 - margin
	if span <= 0 {
		if dy > 0 {
			return 1
		}
		return 0
	}
	return math.Max(0, dy/span)
}

func setAlpha(s Surface, a float64) {
	if s != nil {
		s.SetAlpha(a)
	}
}

func setHidden(s Surface, hidden bool) {
	if s != nil {
		s.SetHidden(hidden)
	}
}
