package transition

import (
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
)

// ContentMode is how a view fits its content into its frame.
type ContentMode int

const (
	ContentFit ContentMode = iota
	ContentFill
)

// Gravity is the ContentMode equivalent for video layers.
type Gravity int

const (
	GravityAspect Gravity = iota
	GravityAspectFill
)

// View is the representative view animated in place of the real content.
// The machine treats it as an opaque surface with a frame; its frame is the
// untransformed one, and SetScale applies a uniform scale about its center.
type View interface {
	Frame() geom.Rect
	SetFrame(geom.Rect)
	SetScale(float64)
	SetContentMode(ContentMode)
	Remove()
}

// VideoLayer is implemented by views that proxy a playing video. The machine
// sets the gravity instead of the content mode on those.
type VideoLayer interface {
	SetVideoGravity(Gravity)
}

// Surface is one of the two full-screen surfaces being transitioned between.
type Surface interface {
	SetAlpha(float64)
	SetHidden(bool)
}

// ScrollSurface is a scrollable surface whose gestures may compete with an
// interactive transition.
type ScrollSurface interface {
	ContentOffset() geom.Point
}

// DataSource supplies the representative view and its geometry. It is queried
// on demand, so frames may change between transitions.
type DataSource interface {
	// RepresentativeView hands over the view to animate. deliver may run
	// later than the call.
	RepresentativeView(deliver func(View))
	OriginalFrame() geom.Rect
	FinalFrame() geom.Rect
	// ScrollSurface returns the surface to coordinate gesture priority with,
	// or nil.
	ScrollSurface() ScrollSurface
	// AdditionalAnimation returns an animation to run alongside the
	// transition, or nil.
	AdditionalAnimation() func(t float64)
}

// Delegate receives lifecycle notifications, typically to hide and show the
// real content around the proxy phase.
type Delegate interface {
	WillStart()
	WillEnd(completed bool)
	DidComplete()
}

// DelegateFuncs adapts optional functions to Delegate.
type DelegateFuncs struct {
	OnWillStart   func()
	OnWillEnd     func(completed bool)
	OnDidComplete func()
}

func (d DelegateFuncs) WillStart() {
	if d.OnWillStart != nil {
		d.OnWillStart()
	}
}

func (d DelegateFuncs) WillEnd(completed bool) {
	if d.OnWillEnd != nil {
		d.OnWillEnd(completed)
	}
}

func (d DelegateFuncs) DidComplete() {
	if d.OnDidComplete != nil {
		d.OnDidComplete()
	}
}

// Context is one navigation transition between two surfaces. The host
// creates it, the machine drives it, and OnComplete reports the outcome.
type Context struct {
	From   Surface   // Surface being left
	To     Surface   // Surface being shown
	Screen geom.Size // Screen bounds, in points

	OnComplete func(completed bool)

	fraction    float64
	interactive bool
	cancelled   bool
	completed   bool
	done        bool
}

// Cancel marks a running transition as cancelled. Non-interactive
// transitions finish their animation and then report the cancellation.
func (c *Context) Cancel() {
	c.cancelled = true
}

func (c *Context) Cancelled() bool {
	return c.cancelled
}

// Interactive reports whether a gesture is driving the transition.
func (c *Context) Interactive() bool {
	return c.interactive
}

// Fraction is the last reported interactive completion fraction.
func (c *Context) Fraction() float64 {
	return c.fraction
}

// Result returns the outcome and whether the transition has completed.
func (c *Context) Result() (completed, done bool) {
	return c.completed, c.done
}

func (c *Context) updateInteractive(f float64) {
	c.fraction = f
}

func (c *Context) finishInteractive() {
	c.interactive = false
}

func (c *Context) cancelInteractive() {
	c.interactive = false
	c.cancelled = true
}

func (c *Context) complete(completed bool) {
	if c.done {
		return
	}
	c.done = true
	c.completed = completed
	if c.OnComplete != nil {
		c.OnComplete(completed)
	}
}
