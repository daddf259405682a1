// Package router moves between the picker's screens with explicit data flow.
//
// Each screen receives an input and produces a result. A single transition
// function turns a result into the next screen, pushing the current screen on
// the back stack when navigating forward and popping it when going back.
// The router compares the stack depth before and after to classify the
// change, and reports it through OnNavigate so the host can run the matching
// transition.Machine operation.
//
// # Basic Usage
//
//	r := router.New()
//
//	r.OnTransition(func(from router.Screen, result any, stack *router.Stack) (router.Screen, any) {
//	    switch from {
//	    case router.ScreenGrid:
//	        res := result.(GridResult)
//	        if res.Opened != nil {
//	            stack.Push(from, res.Input, res.Resume)
//	            return router.ScreenPreview, PreviewInput{Asset: *res.Opened}
//	        }
//	        return router.ScreenExit, nil
//	    case router.ScreenPreview:
//	        entry := stack.Pop()
//	        in := entry.Input.(GridInput)
//	        in.Resume = entry.Resume
//	        return entry.Screen, in
//	    }
//	    return router.ScreenExit, nil
//	})
//
//	r.OnNavigate(func(op transition.Operation, from, to router.Screen) {
//	    switch op {
//	    case transition.OperationPush:
//	        machine.Push(ctx)
//	    case transition.OperationPop:
//	        machine.Pop(ctx)
//	    case transition.OperationInteractivePop:
//	        machine.BeginInteractive(ctx, pan)
//	    }
//	})
//
//	r.TrackGesture(func() bool { return dragging })
//
// Event-driven hosts call Start once and Advance with each screen result.
// Hosts with blocking screen functions Register them and call Run.
//
// # Resume State
//
// A screen left by forward navigation is stored with its Resume, the grid
// position to restore (opened asset index, loaded page offset and scroll
// offset). Going back hands it to the screen again through its input.
package router
