package projection

import (
	"context"
	"sync"
)

// laneOp is one unit of outbound work. Ops with a non-empty slot share a
// single pending slot: enqueuing while the queued op for that slot is still
// the tail of the queue replaces its content instead of adding a second op.
// Once any other op is queued behind it, a new op is appended so delivery
// keeps arrival order.
type laneOp struct {
	run     func(ctx context.Context, content string)
	slot    string
	content string
}

// lane executes a turn's outbound ops in FIFO order on one goroutine.
type lane struct {
	ctx     context.Context
	pending map[string]*laneOp
	wake    chan struct{}
	done    chan struct{}
	queue   []*laneOp
	mu      sync.Mutex
	closed  bool
}

func newLane(ctx context.Context) *lane {
	l := &lane{
		ctx:     ctx,
		pending: make(map[string]*laneOp),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go l.loop()
	return l
}

// enqueue adds op to the queue. It reports false once the lane is closed.
func (l *lane) enqueue(op *laneOp) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	if op.slot != "" {
		if queued, ok := l.pending[op.slot]; ok && l.queue[len(l.queue)-1] == queued {
			queued.content = op.content
			l.mu.Unlock()
			return true
		}
		l.pending[op.slot] = op
	}
	l.queue = append(l.queue, op)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// close stops accepting ops. Already queued ops still run.
func (l *lane) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// wait blocks until the lane has run every queued op after close.
func (l *lane) wait() {
	<-l.done
}

func (l *lane) loop() {
	defer close(l.done)
	for {
		op, closed := l.next()
		if op == nil {
			if closed {
				return
			}
			<-l.wake
			continue
		}
		op.run(l.ctx, op.content)
	}
}

// next pops the head of the queue. The slot is released before the op
// runs so that content arriving during the run queues a fresh op.
func (l *lane) next() (*laneOp, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, l.closed
	}
	op := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	if op.slot != "" && l.pending[op.slot] == op {
		delete(l.pending, op.slot)
	}
	return op, false
}
