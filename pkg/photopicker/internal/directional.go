package internal

import (
	"math"
	"time"
)

// Direction represents the dominant direction of a drag.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
	DirectionLeft
	DirectionRight
)

// DirectionOf returns the dominant direction of the vector (dx, dy) in screen
// coordinates, where positive dy points down. Vertical wins only when it is
// strictly larger than horizontal; a zero vector has no direction.
func DirectionOf(dx, dy float64) Direction {
	ax, ay := math.Abs(dx), math.Abs(dy)
	switch {
	case ax == 0 && ay == 0:
		return DirectionNone
	case ay > ax:
		if dy > 0 {
			return DirectionDown
		}
		return DirectionUp
	default:
		if dx > 0 {
			return DirectionRight
		}
		return DirectionLeft
	}
}

// IsVertical reports whether the direction is up or down.
func (d Direction) IsVertical() bool {
	return d == DirectionUp || d == DirectionDown
}

// String returns a string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return ""
	}
}

// DragTracker accumulates touch samples for one physical drag and derives the
// translation from the first sample and the instantaneous velocity.
// Embed this in gesture sources to get consistent pan semantics.
type DragTracker struct {
	active       bool
	startX       float64
	startY       float64
	lastX        float64
	lastY        float64
	lastTime     time.Time
	velocityX    float64
	velocityY    float64
	minSampleGap time.Duration
}

// NewDragTracker creates a DragTracker that ignores velocity samples closer
// together than minSampleGap to avoid spikes from coalesced events.
func NewDragTracker(minSampleGap time.Duration) DragTracker {
	return DragTracker{minSampleGap: minSampleGap}
}

// Begin starts a new drag at (x, y).
func (d *DragTracker) Begin(x, y float64, at time.Time) {
	d.active = true
	d.startX, d.startY = x, y
	d.lastX, d.lastY = x, y
	d.lastTime = at
	d.velocityX, d.velocityY = 0, 0
}

// Move records a sample. It returns false when no drag is active.
func (d *DragTracker) Move(x, y float64, at time.Time) bool {
	if !d.active {
		return false
	}

	dt := at.Sub(d.lastTime)
	if dt > 0 && dt >= d.minSampleGap {
		secs := dt.Seconds()
		d.velocityX = (x - d.lastX) / secs
		d.velocityY = (y - d.lastY) / secs
	}
	d.lastX, d.lastY = x, y
	d.lastTime = at
	return true
}

// End finishes the drag.
func (d *DragTracker) End() {
	d.active = false
}

// Active reports whether a drag is in progress.
func (d *DragTracker) Active() bool {
	return d.active
}

// Translation returns the offset of the latest sample from the first one.
func (d *DragTracker) Translation() (float64, float64) {
	return d.lastX - d.startX, d.lastY - d.startY
}

// Velocity returns the latest velocity in points per second.
func (d *DragTracker) Velocity() (float64, float64) {
	return d.velocityX, d.velocityY
}
