package sink

import (
	"context"
	"log/slog"
	"sync"
)

// LogTyping is a TypingSignaler that reports typing state to a logger.
// Repeated Start or Stop calls are no-ops.
type LogTyping struct {
	logger  *slog.Logger
	session string
	mu      sync.Mutex
	active  bool
}

// NewLogTyping returns a LogTyping for session.
func NewLogTyping(logger *slog.Logger, session string) *LogTyping {
	return &LogTyping{logger: logger, session: session}
}

func (l *LogTyping) Start(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return nil
	}
	l.active = true
	l.logger.Debug("typing started", "session", l.session)
	return nil
}

func (l *LogTyping) Refresh(context.Context) error {
	l.logger.Debug("typing refreshed", "session", l.session)
	return nil
}

func (l *LogTyping) Stop(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return nil
	}
	l.active = false
	l.logger.Debug("typing stopped", "session", l.session)
	return nil
}

// Active reports whether typing is currently shown.
func (l *LogTyping) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// NopCanceler accepts every cancel and does nothing. Replay uses it since
// there is no live agent to stop.
type NopCanceler struct{}

func (NopCanceler) Cancel(context.Context, string, string) error { return nil }
