// Package input turns raw touch samples into drag gestures for the
// transition machine.
package input

import (
	"math"
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/transition"
)

const (
	// DefaultSlop is how far a touch must travel, in points, before it is a drag.
	DefaultSlop = 10.0
	// minSampleGap drops velocity samples from coalesced events.
	minSampleGap = 4 * time.Millisecond
)

// PanRecognizer assembles touch samples into Pan events. A touch becomes a
// drag once it moves further than the slop; a touch released before that
// produces nothing.
type PanRecognizer struct {
	slop    float64
	tracker internal.DragTracker
	began   bool
}

// NewPanRecognizer creates a recognizer. A non-positive slop selects
// DefaultSlop.
func NewPanRecognizer(slop float64) *PanRecognizer {
	if slop <= 0 {
		slop = DefaultSlop
	}
	return &PanRecognizer{slop: slop, tracker: internal.NewDragTracker(minSampleGap)}
}

// Down starts tracking a touch at p.
func (r *PanRecognizer) Down(p geom.Point, at time.Time) {
	r.tracker.Begin(p.X, p.Y, at)
	r.began = false
}

// Move records the touch at p and returns the resulting event, if any.
func (r *PanRecognizer) Move(p geom.Point, at time.Time) (transition.Pan, bool) {
	if !r.tracker.Move(p.X, p.Y, at) {
		return transition.Pan{}, false
	}

	pan := r.pan(transition.PanChanged)
	if !r.began {
		if math.Hypot(pan.Translation.X, pan.Translation.Y) < r.slop {
			return transition.Pan{}, false
		}
		r.began = true
		pan.Phase = transition.PanBegan
	}
	return pan, true
}

// Up ends the touch. It returns PanEnded when the touch had become a drag.
func (r *PanRecognizer) Up(at time.Time) (transition.Pan, bool) {
	if !r.tracker.Active() {
		return transition.Pan{}, false
	}
	pan := r.pan(transition.PanEnded)
	r.tracker.End()

	if !r.began {
		return transition.Pan{}, false
	}
	r.began = false
	return pan, true
}

// Cancel abandons the touch, returning PanCancelled when a drag was in
// progress.
func (r *PanRecognizer) Cancel() (transition.Pan, bool) {
	if !r.tracker.Active() {
		return transition.Pan{}, false
	}
	pan := r.pan(transition.PanCancelled)
	r.tracker.End()

	if !r.began {
		return transition.Pan{}, false
	}
	r.began = false
	return pan, true
}

// Dragging reports whether a drag is in progress.
func (r *PanRecognizer) Dragging() bool {
	return r.began && r.tracker.Active()
}

func (r *PanRecognizer) pan(phase transition.PanPhase) transition.Pan {
	dx, dy := r.tracker.Translation()
	vx, vy := r.tracker.Velocity()
	return transition.Pan{
		Phase:       phase,
		Translation: geom.Point{X: dx, Y: dy},
		Velocity:    geom.Point{X: vx, Y: vy},
	}
}
