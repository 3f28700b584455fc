package projection

import (
	"context"
	"sync"
)

// Scheduler decides when accepted text is drained from the TextStream. Its
// methods run on the outbound lane, so appends and drains keep arrival order
// relative to tool and status sends.
type Scheduler struct {
	stream   TextStream
	finalErr error
	mode     DeliveryMode
	final    sync.Once
}

// NewScheduler returns a scheduler feeding stream in the given mode.
func NewScheduler(mode DeliveryMode, stream TextStream) *Scheduler {
	return &Scheduler{mode: mode, stream: stream}
}

// Text appends an accepted delta. In live mode it is drained right away.
func (s *Scheduler) Text(ctx context.Context, text string) error {
	s.stream.Append(text)
	if s.mode == DeliveryLive {
		return s.stream.Drain(ctx, false)
	}
	return nil
}

// BeforeDiscrete flushes pending live text so a following tool or status
// message lands after it. final_only text stays held until Final.
func (s *Scheduler) BeforeDiscrete(ctx context.Context) error {
	if s.mode == DeliveryLive {
		return s.stream.Drain(ctx, true)
	}
	return nil
}

// Final force-drains whatever is pending. Only the first call drains; later
// calls return the first result.
func (s *Scheduler) Final(ctx context.Context) error {
	s.final.Do(func() {
		s.finalErr = s.stream.Drain(ctx, true)
	})
	return s.finalErr
}
