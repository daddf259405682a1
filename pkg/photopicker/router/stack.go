package router

import "github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"

// Resume is the position a screen returns to when navigated back to.
type Resume struct {
	OffsetIndex  int        // Index of the asset that was opened
	ResultOffset int        // First asset index of the loaded page
	ScrollOffset geom.Point // Content offset of the scroll surface
	AssetID      string     // Asset that was current when leaving, if any
}

// StackEntry is a screen left behind by forward navigation, with the input
// it was shown with and where it was scrolled to.
type StackEntry struct {
	Screen Screen
	Input  any
	Resume *Resume // nil for screens without position state
}

// Stack is the back-navigation history.
type Stack struct {
	entries []StackEntry
}

func NewStack() *Stack {
	return &Stack{}
}

// Push records screen before navigating forward from it.
func (s *Stack) Push(screen Screen, input any, resume *Resume) {
	s.entries = append(s.entries, StackEntry{Screen: screen, Input: input, Resume: resume})
}

// Pop removes and returns the top entry, or nil when the stack is empty.
func (s *Stack) Pop() *StackEntry {
	if len(s.entries) == 0 {
		return nil
	}
	entry := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return &entry
}

// Peek returns the top entry without removing it, or nil.
func (s *Stack) Peek() *StackEntry {
	if len(s.entries) == 0 {
		return nil
	}
	return &s.entries[len(s.entries)-1]
}

func (s *Stack) IsEmpty() bool {
	return len(s.entries) == 0
}

func (s *Stack) Len() int {
	return len(s.entries)
}

// Screens lists the stacked screens from bottom to top.
func (s *Stack) Screens() []Screen {
	out := make([]Screen, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Screen
	}
	return out
}

func (s *Stack) Clear() {
	s.entries = s.entries[:0]
}
