package actor

import (
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Context is passed to every message and query handler. It exposes the
// actor's own reference (so handlers can message themselves or hand a
// self-reference out) and the takeable reply sender used for delegated
// replies.
type Context[A any] struct {
	self  *ActorRef[A]
	reply *replyPromise
	taken bool
}

func newHandlerContext[A any](self *ActorRef[A],
	reply *replyPromise) *Context[A] {

	return &Context[A]{
		self:  self,
		reply: reply,
	}
}

// ActorRef returns the reference of the actor currently processing the
// signal. Sends issued through it are flagged as originating from within the
// actor, which suppresses the error-reply re-raise on self-directed tells.
func (c *Context[A]) ActorRef() *ActorRef[A] {
	return c.self
}

// ReplySender takes the reply sender out of the context. The returned
// DelegatedReply marker must be returned from the handler to tell the loop
// that auto-reply is suppressed and the taken sender is now responsible for
// resolving the reply.
//
// The sender is None when the caller used Tell and no reply is expected. The
// marker must be returned either way so the handler's control flow does not
// depend on how it was invoked.
func (c *Context[A]) ReplySender() (DelegatedReply, fn.Option[*ReplySender]) {
	if c.reply == nil || c.taken {
		return DelegatedReply{}, fn.None[*ReplySender]()
	}

	c.taken = true

	return DelegatedReply{}, fn.Some(&ReplySender{p: c.reply})
}

// replyTaken reports whether the handler assumed responsibility for the
// reply.
func (c *Context[A]) replyTaken() bool {
	return c.taken
}
