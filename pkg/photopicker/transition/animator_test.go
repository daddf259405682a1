package transition

import (
	"testing"
	"time"
)

func TestAnimatorRunsToEnd(t *testing.T) {
	var last float64
	var finished []Position
	a := NewAnimator(100*time.Millisecond, func(f float64) { last = f })
	a.AddCompletion(func(p Position) { finished = append(finished, p) })

	a.Start()
	a.Step(50 * time.Millisecond)
	if !approx(last, 0.5) {
		t.Errorf("Expected half way, got %v", last)
	}

	if a.Step(60 * time.Millisecond) {
		t.Error("Expected the animator to finish")
	}
	if last != 1 || len(finished) != 1 || finished[0] != PositionEnd {
		t.Errorf("Expected to end at 1 once, got %v %v", last, finished)
	}

	a.FinishAt(PositionStart)
	if len(finished) != 1 {
		t.Error("Expected completions to run once")
	}
}

func TestAnimatorPausedScrub(t *testing.T) {
	var last float64
	a := NewAnimator(time.Second, func(f float64) { last = f })
	a.Pause()

	a.SetFraction(0.3)
	a.Step(500 * time.Millisecond)
	if !approx(last, 0.3) || !approx(a.Fraction(), 0.3) {
		t.Errorf("Expected a paused animator to hold at 0.3, got %v", last)
	}

	a.SetFraction(2)
	if a.Fraction() != 1 {
		t.Errorf("Expected the fraction clamped, got %v", a.Fraction())
	}

	a.SetFraction(0.5)
	a.Continue()
	a.Step(250 * time.Millisecond)
	if !approx(last, 0.75) {
		t.Errorf("Expected to continue from the scrubbed fraction, got %v", last)
	}

	a.Stop()
	a.FinishAt(PositionStart)
	if last != 0 || !a.Finished() {
		t.Errorf("Expected to finish at the start, got %v", last)
	}
}

func TestAnimatorZeroDuration(t *testing.T) {
	done := false
	a := NewAnimator(0)
	a.AddCompletion(func(Position) { done = true })
	a.Start()
	a.Step(time.Millisecond)
	if !done {
		t.Error("Expected a zero-length animator to finish on the first step")
	}
}
