package actor

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// queryOutcome is what a query goroutine reports back to the loop when it
// finishes. A nil panicked means the query completed (successfully or with an
// error reply that was delivered to a waiting caller).
type queryOutcome struct {
	panicked *PanicError
}

// runner is the per-actor task body. It owns the actor state exclusively: no
// other goroutine ever touches it, except query goroutines which the loop
// only runs while no message handler is active.
//
// The central invariant is enforced with plain counters, never locks: a
// message handler has the state to itself for its entire execution, and at
// most maxQueries read-only queries are in flight at once, never while a
// message runs.
type runner[A any] struct {
	state A
	st    *actorState[A]

	// self is the loop's alias of the actor's reference, handed to
	// handlers through their Context. It is not refcounted, so handlers
	// holding it cannot keep the mailbox open.
	self *ActorRef[A]
	weak *WeakActorRef[A]

	// ctx is the actor's lifecycle context; Kill cancels it.
	ctx context.Context

	maxQueries int
	pending    int
	queryDone  chan queryOutcome

	stopReason fn.Option[StopReason]

	cleanupTimeout time.Duration
}

// run drives the full actor lifecycle: start hook, dispatch loop, stop hook,
// link propagation, and reply resolution.
func (r *runner[A]) run() {
	reason := r.mainLoop()
	r.shutdown(reason)
}

// mainLoop runs the start hook and then pumps signals until a stop reason is
// determined. It returns the reason the actor is stopping for.
func (r *runner[A]) mainLoop() StopReason {
	// The start hook runs inside the loop task, before any signal is
	// processed. A failure here is fatal; dispatch never begins.
	if startable, ok := any(&r.state).(Startable[A]); ok {
		perr := r.runHook(func() error {
			return startable.OnStart(r.ctx, r.weak)
		})
		if perr != nil {
			log.ErrorS(r.ctx, "Actor start hook failed", perr,
				"actor_id", r.st.id, "actor", r.st.name)

			return PanickedReason{Err: perr}
		}
	}

	// The startup barrier was enqueued at spawn time, before any caller
	// could send: it is the first signal the loop processes, so
	// WaitStartup observers are released after the start hook and before
	// any user message.
	for sig := range r.st.mbox.Receive(r.ctx) {
		r.dispatch(sig)

		if r.stopReason.IsSome() {
			break
		}
	}

	// Drain already-dispatched queries before exiting; their panics may
	// still determine the stop reason.
	r.collectQueries(0, true)

	if reason := r.stopReason.UnwrapOr(nil); reason != nil {
		return reason
	}
	if r.st.killed.Load() {
		return KilledReason{}
	}

	// End-of-stream with no explicit reason: the last strong reference
	// was released, or a graceful close raced the receive loop.
	return NormalReason{}
}

// dispatch routes one signal by tag.
func (r *runner[A]) dispatch(sig Signal[A]) {
	log.TraceS(r.ctx, "Actor dispatching signal",
		"actor_id", r.st.id, "signal", signalName(sig))

	switch s := sig.(type) {
	case *startupFinishedSignal[A]:
		r.st.startedOnce.Do(func() {
			close(r.st.started)
		})

	case *messageSignal[A]:
		r.handleMessage(s)

	case *querySignal[A]:
		r.dispatchQuery(s)

	case *linkDiedSignal[A]:
		r.handleLinkDied(s)

	case *queryFinishedSignal[A]:
		r.collectQueries(0, false)

	case *stopSignal[A]:
		if r.stopReason.IsNone() {
			r.stopReason = fn.Some[StopReason](NormalReason{})
		}
	}
}

// handleMessage runs a message handler with exclusive access to the state.
func (r *runner[A]) handleMessage(s *messageSignal[A]) {
	// Exclusive access: no query may be in flight while the handler runs.
	r.collectQueries(0, true)

	// A query panic during the drain may have stopped the actor; this
	// message will never run, so resolve its reply.
	if r.stopReason.IsSome() {
		if s.reply != nil {
			s.reply.complete(nil, ErrActorStopped)
		}
		return
	}

	if s.reply != nil {
		s.reply.attach(r.st.tracker)
	}

	mctx := newHandlerContext(r.self, s.reply)

	start := time.Now()
	reply, perr := r.invokeMessage(s.msg, mctx)

	messagesProcessed.WithLabelValues(r.st.name).Inc()
	processingSeconds.WithLabelValues(r.st.name).Observe(
		time.Since(start).Seconds(),
	)

	if perr != nil {
		// The waiting caller observes the panic regardless of what the
		// panic hook decides about the actor's fate.
		if s.reply != nil && !mctx.replyTaken() {
			s.reply.complete(nil, perr)
		}

		r.handlePanic(perr)

		return
	}

	r.routeReply(reply, mctx, s.reply, s.withinActor)
}

// invokeMessage calls the handler inside a panic-catching scope.
func (r *runner[A]) invokeMessage(msg Message[A],
	mctx *Context[A]) (reply Reply, perr *PanicError) {

	defer func() {
		if v := recover(); v != nil {
			perr = newPanicError(v, debug.Stack())
		}
	}()

	reply = msg.Handle(r.ctx, &r.state, mctx)
	if reply == nil {
		reply = Value[any](nil)
	}

	return reply, nil
}

// routeReply applies the auto-reply rule: if the handler still holds the
// reply sender in its context, the return value is the reply. An error reply
// with nobody waiting is re-raised through the panic path so supervision sees
// it, unless the message originated from the actor itself.
func (r *runner[A]) routeReply(reply Reply, hctx *Context[A],
	promise *replyPromise, withinActor bool) {

	// The handler took the sender: replying is its responsibility now.
	if hctx.replyTaken() {
		return
	}

	if _, delegated := reply.(DelegatedReply); delegated {
		// Returned the marker without taking the sender. Nothing can
		// be sent; the reply resolves with ErrActorStopped at exit.
		log.WarnS(r.ctx, "Handler returned DelegatedReply without "+
			"taking the reply sender", nil,
			"actor_id", r.st.id, "actor", r.st.name)

		return
	}

	if promise != nil {
		promise.complete(reply.ReplyValue(), reply.ReplyErr())
		return
	}

	if err := reply.ReplyErr(); err != nil {
		if withinActor {
			log.WarnS(r.ctx, "Discarding error reply from "+
				"self-directed tell", err,
				"actor_id", r.st.id, "actor", r.st.name)

			return
		}

		r.handlePanic(panicErrorFromErr(err))
	}
}

// dispatchQuery launches a query goroutine once the concurrency bound allows
// it.
func (r *runner[A]) dispatchQuery(s *querySignal[A]) {
	// Reap whatever has already finished, then block until a slot frees
	// up.
	r.collectQueries(r.maxQueries-1, true)

	if r.stopReason.IsSome() {
		if s.reply != nil {
			s.reply.complete(nil, ErrActorStopped)
		}
		return
	}

	if s.reply != nil {
		s.reply.attach(r.st.tracker)
	}

	r.pending++
	queriesProcessed.WithLabelValues(r.st.name).Inc()

	go r.runQuery(s)
}

// runQuery is the query goroutine body. Queries share read-only access to the
// state, so the loop may run several at once; the completion report is what
// lets the loop keep its phase counters accurate.
func (r *runner[A]) runQuery(s *querySignal[A]) {
	out := queryOutcome{}
	defer func() {
		r.queryDone <- out

		// Nudge the loop so an idle actor reaps the completion now
		// rather than at the next user signal. Best-effort: a full or
		// closed mailbox means the loop is busy or exiting, and will
		// reap through its ordinary paths.
		_ = r.st.mbox.TrySend(&queryFinishedSignal[A]{})
	}()

	qctx := newHandlerContext(r.self, s.reply)

	reply, perr := r.invokeQuery(s.query, qctx)
	if perr != nil {
		if s.reply != nil && !qctx.replyTaken() {
			s.reply.complete(nil, perr)
		}
		out.panicked = perr

		return
	}

	if qctx.replyTaken() {
		return
	}
	if _, delegated := reply.(DelegatedReply); delegated {
		return
	}

	if s.reply != nil {
		s.reply.complete(reply.ReplyValue(), reply.ReplyErr())
		return
	}

	// Fire-and-forget query with an error reply: surface through the
	// panic path like a tell.
	if err := reply.ReplyErr(); err != nil {
		out.panicked = panicErrorFromErr(err)
	}
}

// invokeQuery calls the query handler inside a panic-catching scope.
func (r *runner[A]) invokeQuery(q Query[A],
	qctx *Context[A]) (reply Reply, perr *PanicError) {

	defer func() {
		if v := recover(); v != nil {
			perr = newPanicError(v, debug.Stack())
		}
	}()

	reply = q.Query(r.ctx, &r.state, qctx)
	if reply == nil {
		reply = Value[any](nil)
	}

	return reply, nil
}

// collectQueries reaps completed queries until at most target remain in
// flight. With block set it waits for completions; otherwise it only drains
// what is already available. A panic observed in any query escalates the
// target to zero — the panic hook needs exclusive state access, so every
// other in-flight query drains first — and the collected panics are then fed
// to the hook in completion order until one of them stops the actor.
func (r *runner[A]) collectQueries(target int, block bool) {
	var panics []*PanicError

	for {
		effTarget := target
		if len(panics) > 0 {
			effTarget = 0
		}
		if r.pending <= effTarget {
			break
		}

		if block || len(panics) > 0 {
			out := <-r.queryDone
			r.pending--
			if out.panicked != nil {
				panics = append(panics, out.panicked)
			}

			continue
		}

		select {
		case out := <-r.queryDone:
			r.pending--
			if out.panicked != nil {
				panics = append(panics, out.panicked)
			}

		default:
			return
		}
	}

	for _, perr := range panics {
		if r.stopReason.IsSome() {
			break
		}
		r.handlePanic(perr)
	}
}

// handlePanic converts a caught panic into a supervision decision via the
// OnPanic hook (or the fail-fast default). A failure inside the hook itself
// is fatal and bypasses further panic handling, preventing loops.
func (r *runner[A]) handlePanic(perr *PanicError) {
	log.ErrorS(r.ctx, "Actor handler panicked", perr,
		"actor_id", r.st.id, "actor", r.st.name)

	handlerPanics.WithLabelValues(r.st.name).Inc()

	recoverer, ok := any(&r.state).(PanicRecoverer[A])
	if !ok {
		r.stopReason = fn.Some[StopReason](PanickedReason{Err: perr})
		return
	}

	var (
		decision fn.Option[StopReason]
		hookErr  error
	)
	hookPanic := r.runHook(func() error {
		var err error
		decision, err = recoverer.OnPanic(r.ctx, r.weak, perr)
		hookErr = err

		return err
	})
	if hookPanic != nil || hookErr != nil {
		if hookPanic == nil {
			hookPanic = panicErrorFromErr(hookErr)
		}

		r.stopReason = fn.Some[StopReason](
			PanickedReason{Err: hookPanic},
		)

		return
	}

	decision.WhenSome(func(reason StopReason) {
		r.stopReason = fn.Some(reason)
	})
}

// handleLinkDied applies the link-death policy for a dead peer.
func (r *runner[A]) handleLinkDied(s *linkDiedSignal[A]) {
	log.DebugS(r.ctx, "Linked actor died",
		"actor_id", r.st.id, "actor", r.st.name,
		"peer_id", s.id, "reason", s.reason.String())

	// The peer is gone; drop our half of the link.
	r.st.links.remove(s.id)

	observer, ok := any(&r.state).(LinkObserver[A])
	if !ok {
		defaultOnLinkDied(s.id, s.reason).WhenSome(
			func(reason StopReason) {
				r.stopReason = fn.Some(reason)
			},
		)

		return
	}

	var (
		decision fn.Option[StopReason]
		hookErr  error
	)
	hookPanic := r.runHook(func() error {
		var err error
		decision, err = observer.OnLinkDied(
			r.ctx, r.weak, s.id, s.reason,
		)
		hookErr = err

		return err
	})
	if hookPanic != nil || hookErr != nil {
		if hookPanic == nil {
			hookPanic = panicErrorFromErr(hookErr)
		}

		r.stopReason = fn.Some[StopReason](
			PanickedReason{Err: hookPanic},
		)

		return
	}

	decision.WhenSome(func(reason StopReason) {
		r.stopReason = fn.Some(reason)
	})
}

// runHook invokes a lifecycle hook inside a panic-catching scope, folding a
// returned error or a panic into a single PanicError.
func (r *runner[A]) runHook(hook func() error) (perr *PanicError) {
	defer func() {
		if v := recover(); v != nil {
			perr = newPanicError(v, debug.Stack())
		}
	}()

	if err := hook(); err != nil {
		return panicErrorFromErr(err)
	}

	return nil
}

// shutdown is the tail of the actor lifecycle once the stop reason is known:
// close the mailbox, run the stop hook, propagate link deaths, and make sure
// no reply channel is left dangling.
func (r *runner[A]) shutdown(reason StopReason) {
	// Refuse further senders. Idempotent with Kill and last-ref closes.
	r.st.mbox.Close()

	// The stop hook consumes the state; the runtime never touches it
	// again afterwards. The hook gets a bounded context so a stuck
	// cleanup cannot wedge shutdown indefinitely.
	if stoppable, ok := any(&r.state).(Stoppable[A]); ok {
		hookCtx, cancel := context.WithTimeout(
			context.Background(), r.cleanupTimeout,
		)

		perr := r.runHook(func() error {
			return stoppable.OnStop(hookCtx, r.weak, reason)
		})
		cancel()

		if perr != nil {
			log.ErrorS(r.ctx, "Actor stop hook failed", perr,
				"actor_id", r.st.id, "actor", r.st.name)
		}
	}

	// Propagate the death to every linked peer, strictly after the stop
	// hook. Each peer removes its own half of the link when it processes
	// the signal; peers that already stopped simply fail the send.
	peers := r.st.links.drain()
	for id, sm := range peers {
		if err := sm.SignalLinkDied(r.st.id, reason); err != nil {
			log.TraceS(r.ctx, "Link death propagation skipped, "+
				"peer gone",
				"actor_id", r.st.id, "peer_id", id)
		}
	}

	// Resolve signals that were enqueued but never dispatched.
	dropped := 0
	for sig := range r.st.mbox.Drain() {
		dropped++

		switch s := sig.(type) {
		case *messageSignal[A]:
			if s.reply != nil {
				s.reply.complete(nil, ErrActorStopped)
			}

		case *querySignal[A]:
			if s.reply != nil {
				s.reply.complete(nil, ErrActorStopped)
			}
		}
	}

	// Resolve reply senders still in flight: delegated senders that were
	// never used, and replies owned by cancelled handlers.
	r.st.tracker.failAll(ErrActorStopped)

	// Release stop observers. The reason must be visible before the
	// channel closes.
	r.st.stopReason = reason
	close(r.st.stopped)

	actorsStopped.WithLabelValues(reasonLabel(reason)).Inc()
	actorsAlive.Dec()

	log.InfoS(r.ctx, "Actor stopped",
		"actor_id", r.st.id, "actor", r.st.name,
		"reason", reason.String(), "dropped_signals", dropped)
}
