package transition

import (
	"time"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
)

// Position is where an animator came to rest.
type Position int

const (
	PositionEnd Position = iota
	PositionStart
	PositionCurrent
)

func (p Position) String() string {
	switch p {
	case PositionStart:
		return "start"
	case PositionCurrent:
		return "current"
	default:
		return "end"
	}
}

// Animator interpolates a set of property animations over a duration.
// Animations receive the progress in [0, 1] and set their properties from it.
// Progress is linear.
//
// An animator is created inactive. It can be started, paused and scrubbed with
// SetFraction, continued to its end, or stopped and finished at a position.
// Completions run once, when the animator finishes.
type Animator struct {
	duration    time.Duration
	animations  []func(t float64)
	completions []func(Position)

	fraction float64
	running  bool
	finished bool
}

// NewAnimator creates an inactive animator.
func NewAnimator(duration time.Duration, animations ...func(t float64)) *Animator {
	return &Animator{duration: duration, animations: animations}
}

func (a *Animator) AddAnimation(fn func(t float64)) {
	a.animations = append(a.animations, fn)
}

func (a *Animator) AddCompletion(fn func(Position)) {
	a.completions = append(a.completions, fn)
}

// Start runs the animator from its current fraction.
func (a *Animator) Start() {
	if a.finished {
		return
	}
	a.running = true
}

// Pause stops advancing without finishing.
func (a *Animator) Pause() {
	a.running = false
}

// Continue resumes a paused animator and runs it to the end over the
// remaining share of its duration.
func (a *Animator) Continue() {
	a.Start()
}

// Stop halts the animator where it is. Follow with FinishAt.
func (a *Animator) Stop() {
	a.running = false
}

// SetFraction scrubs a paused animator to f.
func (a *Animator) SetFraction(f float64) {
	if a.finished {
		return
	}
	a.fraction = geom.Clamp(f, 0, 1)
	a.apply()
}

func (a *Animator) Fraction() float64 {
	return a.fraction
}

func (a *Animator) Running() bool {
	return a.running
}

func (a *Animator) Finished() bool {
	return a.finished
}

// FinishAt jumps to pos and runs the completions.
func (a *Animator) FinishAt(pos Position) {
	if a.finished {
		return
	}
	switch pos {
	case PositionEnd:
		a.fraction = 1
	case PositionStart:
		a.fraction = 0
	}
	a.apply()
	a.running = false
	a.finished = true

	for _, c := range a.completions {
		c(pos)
	}
}

// Step advances a running animator by dt and reports whether it is still
// active afterwards.
func (a *Animator) Step(dt time.Duration) bool {
	if a.finished {
		return false
	}
	if !a.running {
		return true
	}

	if a.duration <= 0 {
		a.FinishAt(PositionEnd)
		return false
	}

	a.fraction += float64(dt) / float64(a.duration)
	if a.fraction >= 1 {
		a.FinishAt(PositionEnd)
		return false
	}
	a.apply()
	return true
}

func (a *Animator) apply() {
	for _, fn := range a.animations {
		fn(a.fraction)
	}
}
