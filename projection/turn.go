package projection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bazelment/yoloswe/acprelay/acp"
)

// TurnState is the macro state of a turn.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnActive
	TurnTerminal
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnActive:
		return "active"
	case TurnTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// TurnResult describes how a turn ended.
type TurnResult struct {
	Err          *acp.RPCError
	StopReason   string
	CancelReason string
	Cancelled    bool
}

// TurnStats are the final counters of a turn.
type TurnStats struct {
	TextChars  int
	MetaEvents int
	NoticeSent bool
}

// Turn projects the frames of one agent prompt turn. Frames are evaluated
// one at a time under the turn mutex; all delivery I/O happens on the
// turn's lane goroutine.
type Turn struct {
	startedAt time.Time
	ctx       context.Context
	mem       *DedupMemory
	budget    *Budget
	lane      *lane
	scheduler *Scheduler
	tools     *ToolDeliverer
	typing    *typingLoop
	sender    Sender
	logger    *slog.Logger
	onDone    func(*Turn)
	done      chan struct{}
	opts      options
	dest      Destination
	key       string
	result    TurnResult
	stats     TurnStats
	cfg       Config
	state     TurnState
	mu        sync.Mutex
	cleanup   sync.Once
}

// NewTurn starts a turn for sessionKey. ctx scopes delivery and typing
// calls; its cancellation does not end the turn (use Cancel or Consume).
func NewTurn(ctx context.Context, sessionKey string, cfg Config, b Binding, opts ...Option) *Turn {
	return newTurn(ctx, sessionKey, cfg, b, buildOptions(opts), nil)
}

func newTurn(ctx context.Context, sessionKey string, cfg Config, b Binding, o options, onDone func(*Turn)) *Turn {
	cfg = cfg.WithDefaults()
	logger := o.logger.With("session", sessionKey)
	stream := b.Stream
	if stream == nil {
		stream = nopStream{}
	}
	base := context.WithoutCancel(ctx)

	t := &Turn{
		startedAt: o.now(),
		ctx:       base,
		key:       sessionKey,
		cfg:       cfg,
		opts:      o,
		logger:    logger,
		dest:      b.Destination,
		sender:    b.Sender,
		mem:       NewDedupMemory(),
		budget:    NewBudget(cfg),
		lane:      newLane(base),
		scheduler: NewScheduler(cfg.DeliveryMode, stream),
		typing:    newTypingLoop(b.Typing, cfg.TypingInterval, logger),
		onDone:    onDone,
		done:      make(chan struct{}),
	}
	if b.Sender != nil {
		t.tools = NewToolDeliverer(b.Sender, b.Destination, logger)
	}
	logger.Debug("turn started", "delivery_mode", cfg.DeliveryMode, "meta_mode", cfg.MetaMode)
	return t
}

// SessionKey returns the session the turn belongs to.
func (t *Turn) SessionKey() string { return t.key }

// StartedAt returns when the turn was created.
func (t *Turn) StartedAt() time.Time { return t.startedAt }

// Config returns the snapshot the turn runs with.
func (t *Turn) Config() Config { return t.cfg }

// State returns the current macro state.
func (t *Turn) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed once the turn is terminal and fully cleaned up.
func (t *Turn) Done() <-chan struct{} { return t.done }

// Result returns how the turn ended. Valid after Done is closed.
func (t *Turn) Result() TurnResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Stats returns the turn's counters.
func (t *Turn) Stats() TurnStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked()
}

func (t *Turn) statsLocked() TurnStats {
	if t.budget == nil {
		return t.stats
	}
	return TurnStats{
		TextChars:  t.budget.TextUsed(),
		MetaEvents: t.budget.MetaUsed(),
		NoticeSent: t.budget.NoticeSent(),
	}
}

// Handle appends frame to the raw log and projects it. Frames after the
// turn is terminal are logged and otherwise ignored. A terminal frame blocks
// until pending delivery has drained and the turn is cleaned up.
func (t *Turn) Handle(frame acp.Frame) {
	if t.opts.rawLog != nil {
		if err := t.opts.rawLog.Append(t.key, frame.Raw); err != nil {
			t.logger.Warn("raw log append failed", "err", err)
		}
	}
	ev := Classify(frame)

	t.mu.Lock()
	if t.state == TurnTerminal {
		t.mu.Unlock()
		t.logger.Debug("frame after terminal ignored", "category", ev.Category)
		return
	}
	t.state = TurnActive

	if ev.Category == CategoryTerminal {
		t.sealLocked(TurnResult{StopReason: ev.StopReason, Err: ev.Err})
		t.mu.Unlock()
		t.finish()
		return
	}

	dec := Decide(&t.cfg, ev, t.mem, t.budget)
	commit(ev, dec, t.mem, t.budget)
	if dec.Action == ActionSuppress {
		t.mu.Unlock()
		t.logger.Debug("event suppressed", "category", ev.Category, "tool_call_id", ev.ToolCallID, "reason", dec.Reason)
		return
	}
	t.dispatchLocked(ev, dec)
	t.mu.Unlock()
}

// dispatchLocked queues the outbound work for an accepted event.
func (t *Turn) dispatchLocked(ev ClassifiedEvent, dec Decision) {
	switch {
	case ev.Category.IsText():
		text := dec.Text
		if dec.Action == ActionTruncationNotice {
			text += t.cfg.TruncationNotice
			t.logger.Info("turn text budget reached", "max_turn_chars", t.cfg.MaxTurnChars)
		}
		t.lane.enqueue(&laneOp{content: text, run: t.deliverText})
		if t.cfg.TypingTrigger != TypingOnNever {
			t.typing.start(t.ctx)
		}

	case ev.Category == CategoryToolStart:
		id := ev.ToolCallID
		t.lane.enqueue(&laneOp{content: dec.Text, run: func(ctx context.Context, content string) {
			t.beforeDiscrete(ctx)
			if t.tools != nil {
				t.tools.Start(ctx, id, content)
			}
		}})
		if t.cfg.TypingTrigger == TypingOnAny {
			t.typing.start(t.ctx)
		}

	case ev.Category == CategoryToolUpdate:
		id := ev.ToolCallID
		t.lane.enqueue(&laneOp{slot: "tool:" + id, content: dec.Text, run: func(ctx context.Context, content string) {
			t.beforeDiscrete(ctx)
			if t.tools != nil {
				t.tools.Update(ctx, id, content)
			}
		}})

	default:
		category := ev.Category
		t.lane.enqueue(&laneOp{content: dec.Text, run: func(ctx context.Context, content string) {
			t.beforeDiscrete(ctx)
			if t.sender == nil {
				return
			}
			if _, err := t.sender.Send(ctx, t.dest, content); err != nil {
				t.logger.Warn("status message send failed", "category", category, "err", err)
			}
		}})
	}
}

func (t *Turn) deliverText(ctx context.Context, text string) {
	if err := t.scheduler.Text(ctx, text); err != nil {
		t.logger.Warn("text drain failed", "err", err)
	}
}

func (t *Turn) beforeDiscrete(ctx context.Context) {
	if err := t.scheduler.BeforeDiscrete(ctx); err != nil {
		t.logger.Warn("text drain before tool message failed", "err", err)
	}
}

// Cancel ends the turn early. The first call asks the Canceler to stop the
// agent, then cleans up locally whatever the Canceler returned. Later calls,
// and calls on a terminal turn, return ErrTurnClosed.
func (t *Turn) Cancel(ctx context.Context, reason string) error {
	t.mu.Lock()
	if t.state == TurnTerminal {
		t.mu.Unlock()
		return ErrTurnClosed
	}
	t.sealLocked(TurnResult{Cancelled: true, CancelReason: reason})
	t.mu.Unlock()

	if t.opts.canceler != nil {
		if err := t.opts.canceler.Cancel(ctx, t.key, reason); err != nil {
			t.logger.Warn("agent cancel failed, cleaning up anyway", "reason", reason, "err", err)
		}
	}
	t.finish()
	return nil
}

// Consume handles frames until the turn is terminal. It returns nil when
// the turn ended, ctx.Err() after cancelling the turn on ctx cancellation,
// and ErrStreamEnded if frames closes first.
func (t *Turn) Consume(ctx context.Context, frames <-chan acp.Frame) error {
	for {
		select {
		case <-t.done:
			return nil
		case <-ctx.Done():
			if err := t.Cancel(context.WithoutCancel(ctx), CancelReasonContext); err != nil {
				<-t.done
			}
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				if t.State() == TurnTerminal {
					<-t.done
					return nil
				}
				return ErrStreamEnded
			}
			t.Handle(frame)
		}
	}
}

// sealLocked moves the turn to terminal and queues the final drain behind
// any outbound work already queued. No further ops are accepted.
func (t *Turn) sealLocked(res TurnResult) {
	t.state = TurnTerminal
	t.result = res
	t.lane.enqueue(&laneOp{run: func(ctx context.Context, _ string) {
		if err := t.scheduler.Final(ctx); err != nil {
			t.logger.Warn("final text drain failed", "err", err)
		}
	}})
	t.lane.close()
}

// finish waits for the lane, stops typing, drops projection memory and
// unregisters. It runs once per turn.
func (t *Turn) finish() {
	t.cleanup.Do(func() {
		t.lane.wait()
		t.typing.stop()

		t.mu.Lock()
		t.stats = t.statsLocked()
		t.mem = nil
		t.budget = nil
		res := t.result
		stats := t.stats
		t.mu.Unlock()

		if t.onDone != nil {
			t.onDone(t)
		}
		t.logger.Info("turn finished",
			"stop_reason", res.StopReason,
			"cancelled", res.Cancelled,
			"text_chars", stats.TextChars,
			"meta_events", stats.MetaEvents,
			"duration", t.opts.now().Sub(t.startedAt))
		close(t.done)
	})
}
