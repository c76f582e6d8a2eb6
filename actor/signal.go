package actor

import "fmt"

// Signal is the closed set of things a mailbox carries for an actor of state
// type A: user messages, user queries, and the control signals interpreted by
// the loop (startup barrier, link death, stop request). The interface is
// sealed by the unexported marker method so the variant set cannot grow
// outside this package.
type Signal[A any] interface {
	isSignal()
}

// startupFinishedSignal is enqueued by Spawn into the fresh mailbox before the
// loop goroutine starts, and the loop processes it after the start hook
// completes. Processing it releases WaitStartup observers; because it is the
// first signal enqueued, it doubles as a barrier ordered before any user
// message.
type startupFinishedSignal[A any] struct{}

func (*startupFinishedSignal[A]) isSignal() {}

// stopSignal requests a graceful stop. It travels the ordinary mailbox so
// messages enqueued before it drain first.
type stopSignal[A any] struct{}

func (*stopSignal[A]) isSignal() {}

// linkDiedSignal notifies the actor that a linked peer terminated.
type linkDiedSignal[A any] struct {
	id     ActorID
	reason StopReason
}

func (*linkDiedSignal[A]) isSignal() {}

// messageSignal carries a user message plus its reply correlation state.
type messageSignal[A any] struct {
	msg   Message[A]
	reply *replyPromise

	// withinActor is set when the message was sent through a handler
	// context's self-reference. Unobserved error replies on such sends
	// are logged instead of re-raised, avoiding panic loops.
	withinActor bool
}

func (*messageSignal[A]) isSignal() {}

// querySignal carries a user query plus its reply correlation state.
type querySignal[A any] struct {
	query Query[A]
	reply *replyPromise
}

func (*querySignal[A]) isSignal() {}

// queryFinishedSignal is an internal wake-up the query goroutines enqueue
// after reporting their outcome, so an otherwise idle loop reaps completions
// (and observes query panics) promptly instead of at the next user signal.
type queryFinishedSignal[A any] struct{}

func (*queryFinishedSignal[A]) isSignal() {}

// signalName returns a short tag for logging.
func signalName[A any](sig Signal[A]) string {
	switch s := sig.(type) {
	case *startupFinishedSignal[A]:
		return "startup_finished"
	case *stopSignal[A]:
		return "stop"
	case *linkDiedSignal[A]:
		return "link_died"
	case *messageSignal[A]:
		return fmt.Sprintf("message:%T", s.msg)
	case *querySignal[A]:
		return fmt.Sprintf("query:%T", s.query)
	default:
		return fmt.Sprintf("%T", sig)
	}
}
