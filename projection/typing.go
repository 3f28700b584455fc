package projection

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// typingLoop keeps a typing indicator alive while a turn works. Start and
// stop are idempotent; Stop on the signaler is called only if Start was.
type typingLoop struct {
	signaler TypingSignaler
	logger   *slog.Logger
	stopCh   chan struct{}
	done     chan struct{}
	interval time.Duration
	mu       sync.Mutex
	started  bool
	stopped  bool
}

func newTypingLoop(signaler TypingSignaler, interval time.Duration, logger *slog.Logger) *typingLoop {
	return &typingLoop{
		signaler: signaler,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// start launches the keepalive goroutine on first call.
func (t *typingLoop) start(ctx context.Context) {
	if t.signaler == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return
	}
	t.started = true
	go t.run(ctx)
}

func (t *typingLoop) run(ctx context.Context) {
	defer close(t.done)
	if err := t.signaler.Start(ctx); err != nil {
		t.logger.Debug("typing start failed", "err", err)
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			if err := t.signaler.Stop(ctx); err != nil {
				t.logger.Debug("typing stop failed", "err", err)
			}
			return
		case <-ticker.C:
			if err := t.signaler.Refresh(ctx); err != nil {
				t.logger.Debug("typing refresh failed", "err", err)
			}
		}
	}
}

// stop ends the loop and waits for the signaler's Stop to return.
func (t *typingLoop) stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	started := t.started
	t.mu.Unlock()

	if !started {
		return
	}
	close(t.stopCh)
	<-t.done
}
