package router

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/transition"
)

// Screen identifies a picker screen.
type Screen int

const (
	ScreenAlbums Screen = iota
	ScreenGrid
	ScreenPreview
	ScreenSelectionPreview
)

// ScreenExit signals the router to stop.
const ScreenExit Screen = -1

func (s Screen) String() string {
	switch s {
	case ScreenAlbums:
		return "albums"
	case ScreenGrid:
		return "grid"
	case ScreenPreview:
		return "preview"
	case ScreenSelectionPreview:
		return "selection-preview"
	case ScreenExit:
		return "exit"
	default:
		return fmt.Sprintf("Screen(%d)", int(s))
	}
}

var ErrNotStarted = errors.New("router: not started")

// ScreenFunc runs a screen to completion and returns its result.
type ScreenFunc func(input any) (result any, err error)

// TransitionFunc decides the next screen from the result of the current one.
// Push the current screen onto the stack to navigate forward and pop it to go
// back; the router infers the navigation operation from the stack depth.
type TransitionFunc func(from Screen, result any, stack *Stack) (next Screen, input any)

// NavigateFunc is told how the visible screen changed so the host can run
// the matching transition.
type NavigateFunc func(op transition.Operation, from, to Screen)

// Router moves between picker screens. Routing decisions live in one
// TransitionFunc; the router keeps the back stack and reports each change of
// screen as a push, a pop, or an interactive pop.
type Router struct {
	screens    map[Screen]ScreenFunc
	transition TransitionFunc
	navigate   NavigateFunc
	tracking   func() bool
	stack      *Stack
	logger     *slog.Logger

	started bool
	current Screen
	input   any
}

func New() *Router {
	return &Router{
		screens: make(map[Screen]ScreenFunc),
		stack:   NewStack(),
		logger:  internal.ComponentLogger("router"),
	}
}

// Register sets the function Run uses for screen.
func (r *Router) Register(screen Screen, fn ScreenFunc) *Router {
	r.screens[screen] = fn
	return r
}

func (r *Router) OnTransition(fn TransitionFunc) *Router {
	r.transition = fn
	return r
}

func (r *Router) OnNavigate(fn NavigateFunc) *Router {
	r.navigate = fn
	return r
}

// TrackGesture installs the check that turns a pop into an interactive pop
// while a drag is tracking.
func (r *Router) TrackGesture(tracking func() bool) *Router {
	r.tracking = tracking
	return r
}

// Start shows the first screen without a transition.
func (r *Router) Start(screen Screen, input any) error {
	if r.transition == nil {
		return fmt.Errorf("router: no transition function set")
	}
	r.started = true
	r.current = screen
	r.input = input
	return nil
}

// Current returns the visible screen and its input.
func (r *Router) Current() (Screen, any) {
	return r.current, r.input
}

// Advance hands the current screen's result to the transition function and
// moves to the screen it picks. It returns ScreenExit when routing is over.
func (r *Router) Advance(result any) (Screen, error) {
	if !r.started {
		return ScreenExit, ErrNotStarted
	}

	from := r.current
	before := r.stack.Len()
	next, input := r.transition(from, result, r.stack)

	if next == ScreenExit {
		r.started = false
		r.logger.Debug("Router exited", "from", from.String())
		return ScreenExit, nil
	}

	op := r.operation(before, r.stack.Len())
	r.logger.Debug("Navigating", "from", from.String(), "to", next.String(), "op", op.String())

	r.current = next
	r.input = input
	if op != transition.OperationNone && r.navigate != nil {
		r.navigate(op, from, next)
	}
	return next, nil
}

// Run drives registered screens until the transition function returns
// ScreenExit or a screen fails.
func (r *Router) Run(start Screen, input any) error {
	if err := r.Start(start, input); err != nil {
		return err
	}

	for {
		fn, ok := r.screens[r.current]
		if !ok {
			return fmt.Errorf("router: screen %s not registered", r.current)
		}

		result, err := fn(r.input)
		if err != nil {
			return fmt.Errorf("router: screen %s error: %w", r.current, err)
		}

		next, err := r.Advance(result)
		if err != nil {
			return err
		}
		if next == ScreenExit {
			return nil
		}
	}
}

// Stack returns the back stack.
func (r *Router) Stack() *Stack {
	return r.stack
}

func (r *Router) operation(before, after int) transition.Operation {
	switch {
	case after > before:
		return transition.OperationPush
	case after < before:
		if r.tracking != nil && r.tracking() {
			return transition.OperationInteractivePop
		}
		return transition.OperationPop
	default:
		return transition.OperationNone
	}
}
