package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bazelment/yoloswe/acprelay/acp"
	"github.com/bazelment/yoloswe/acprelay/projection"
)

// feeder turns a stream of raw frames into routed turns. A turn begins at
// the first frame a session sends while idle and ends with the prompt
// result. Frames a cancelled turn's agent sends before its prompt result
// are dropped. It is not safe for concurrent use.
type feeder struct {
	router  *projection.Router
	logger  *slog.Logger
	current map[string]*projection.Turn
	last    string
	frames  int
	skipped int
	turns   int
}

func newFeeder(router *projection.Router, logger *slog.Logger) *feeder {
	return &feeder{router: router, logger: logger, current: make(map[string]*projection.Turn)}
}

// feed routes one raw frame. session overrides the frame's own session id
// when the source already knows it.
func (f *feeder) feed(ctx context.Context, session string, raw []byte) error {
	frame, err := acp.ParseFrame(raw)
	if err != nil {
		if errors.Is(err, acp.ErrEmptyFrame) {
			return nil
		}
		f.skipped++
		f.logger.Warn("skipping frame", "err", err)
		// The raw log stays lossless: an unparseable line is recorded
		// against the session that was streaming.
		key := session
		if key == "" {
			key = f.last
		}
		return f.unrouted(key, frame)
	}
	f.frames++
	if frame.Update != nil && len(frame.Update.Malformed) > 0 {
		f.logger.Debug("dropped malformed update fields", "session", frame.SessionID, "fields", frame.Update.Malformed)
	}

	// Prompt results carry no session id; they belong to the session that
	// was streaming.
	key := session
	if key == "" {
		key = frame.SessionID
	}
	if key == "" {
		key = f.last
	}
	if key == "" {
		f.skipped++
		f.logger.Debug("frame without session", "kind", frame.Kind)
		return f.unrouted("", frame)
	}
	f.last = key

	if prev, ok := f.current[key]; ok && prev.State() == projection.TurnTerminal {
		<-prev.Done()
		if !frame.IsTerminal() && prev.Result().Cancelled {
			f.logger.Debug("dropping frame of cancelled turn", "session", key, "kind", frame.Kind)
			return f.unrouted(key, frame)
		}
		delete(f.current, key)
		if frame.IsTerminal() {
			return f.unrouted(key, frame)
		}
	}

	turn, ok := f.router.Turn(key)
	if !ok {
		if frame.IsTerminal() {
			f.logger.Debug("prompt result without turn", "session", key)
			return f.unrouted(key, frame)
		}
		turn, err = f.router.Begin(ctx, key)
		if err != nil {
			return fmt.Errorf("starting turn for %s: %w", key, err)
		}
		f.current[key] = turn
		f.turns++
	}
	turn.Handle(frame)
	if frame.IsTerminal() {
		<-turn.Done()
		delete(f.current, key)
	}
	return nil
}

// unrouted hands a frame outside the turn lifecycle to the router. The
// session's active turn records it if there is one; otherwise the router
// appends it to the raw log.
func (f *feeder) unrouted(key string, frame acp.Frame) error {
	if err := f.router.Dispatch(key, frame); err != nil && !errors.Is(err, projection.ErrNoActiveTurn) {
		return err
	}
	return nil
}
