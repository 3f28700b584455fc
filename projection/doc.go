// Package projection turns the raw ACP event stream of an agent turn into the
// bounded, de-duplicated messages a user actually sees.
//
// Each frame flows through a fixed pipeline:
//
//	frame -> Classify -> Decide (DedupMemory, Budget) -> outbound lane
//	                                                       |-> TextStream (append/drain)
//	                                                       |-> Sender (send/edit)
//
// A [Turn] owns the per-turn state (dedup memory, budgets, tool handles,
// typing loop) and discards it when the turn ends. A [Router] keeps at most
// one active Turn per session key and bridges abort triggers ("stop",
// "wait", ...) to the external [Canceler].
//
// Collaborators are injected as small interfaces: [TextStream], [Sender],
// [TypingSignaler], [Canceler], [ConfigResolver] and [RawLog]. The engine
// never reads the raw log and never mutates frames.
//
// # Example
//
//	router := projection.NewRouter(resolver, bind,
//	    projection.WithCanceler(agentCanceler),
//	    projection.WithRawLog(rawLog),
//	    projection.WithLogger(logger),
//	)
//	turn, err := router.Begin(ctx, sessionKey)
//	if err != nil {
//	    return err
//	}
//	for frame := range frames {
//	    router.Dispatch(ctx, sessionKey, frame)
//	}
//	<-turn.Done()
package projection
