package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bazelment/yoloswe/acprelay/acp"
)

// Router owns the table of active turns, one per session key.
type Router struct {
	resolver ConfigResolver
	bind     BindFunc
	turns    map[string]*Turn
	opts     options
	mu       sync.Mutex
	closed   bool
}

// NewRouter creates a router. resolver supplies each new turn's config;
// bind supplies its delivery collaborators.
func NewRouter(resolver ConfigResolver, bind BindFunc, opts ...Option) *Router {
	return &Router{
		resolver: resolver,
		bind:     bind,
		turns:    make(map[string]*Turn),
		opts:     buildOptions(opts),
	}
}

// Begin starts a turn for sessionKey. It returns ErrTurnInProgress while the
// session's previous turn is not terminal.
func (r *Router) Begin(ctx context.Context, sessionKey string) (*Turn, error) {
	if err := r.checkFree(sessionKey); err != nil {
		return nil, err
	}
	binding, err := r.bind(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to bind session %s: %w", sessionKey, err)
	}
	cfg := DefaultConfig()
	if r.resolver != nil {
		cfg = r.resolver.Resolve(sessionKey)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRouterClosed
	}
	if _, ok := r.turns[sessionKey]; ok {
		return nil, ErrTurnInProgress
	}
	turn := newTurn(ctx, sessionKey, cfg, binding, r.opts, r.release)
	r.turns[sessionKey] = turn
	return turn, nil
}

func (r *Router) checkFree(sessionKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRouterClosed
	}
	if _, ok := r.turns[sessionKey]; ok {
		return ErrTurnInProgress
	}
	return nil
}

// release drops a finished turn from the table.
func (r *Router) release(t *Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.turns[t.key] == t {
		delete(r.turns, t.key)
	}
}

// Turn returns the active turn for sessionKey.
func (r *Router) Turn(sessionKey string) (*Turn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.turns[sessionKey]
	return t, ok
}

// Dispatch routes frame to the session's active turn. Frames with no active
// turn still reach the raw log, and ErrNoActiveTurn is returned.
func (r *Router) Dispatch(sessionKey string, frame acp.Frame) error {
	turn, ok := r.Turn(sessionKey)
	if !ok {
		if r.opts.rawLog != nil {
			if err := r.opts.rawLog.Append(sessionKey, frame.Raw); err != nil {
				r.opts.logger.Warn("raw log append failed", "session", sessionKey, "err", err)
			}
		}
		return ErrNoActiveTurn
	}
	turn.Handle(frame)
	return nil
}

// Reset forcibly cancels the session's active turn and waits for cleanup.
func (r *Router) Reset(ctx context.Context, sessionKey string) error {
	turn, ok := r.Turn(sessionKey)
	if !ok {
		return ErrNoActiveTurn
	}
	if err := turn.Cancel(ctx, CancelReasonReset); err != nil && !errors.Is(err, ErrTurnClosed) {
		return err
	}
	<-turn.Done()
	return nil
}

// Active returns the session keys with an active turn, sorted.
func (r *Router) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.turns))
	for k := range r.turns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close cancels every active turn and refuses new ones.
func (r *Router) Close(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	turns := make([]*Turn, 0, len(r.turns))
	for _, t := range r.turns {
		turns = append(turns, t)
	}
	r.mu.Unlock()

	for _, t := range turns {
		_ = t.Cancel(ctx, CancelReasonShutdown)
		<-t.Done()
	}
}
