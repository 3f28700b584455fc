// Package coalesce buffers streamed assistant text and releases it in
// phrase-sized segments so that transports do not receive a message per
// token.
package coalesce

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// Default segment sizes, in runes.
const (
	DefaultMinChars = 80
	DefaultMaxChars = 1200
)

// SegmentSink receives coalesced segments in order.
type SegmentSink interface {
	WriteSegment(ctx context.Context, segment string) error
}

// SinkFunc adapts a function to SegmentSink.
type SinkFunc func(ctx context.Context, segment string) error

// WriteSegment implements SegmentSink.
func (f SinkFunc) WriteSegment(ctx context.Context, segment string) error { return f(ctx, segment) }

// Option configures a Buffer.
type Option func(*Buffer)

// WithMinChars sets the preferred minimum segment size. The first segment
// of a buffer uses a quarter of it so output starts quickly.
func WithMinChars(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.minChars = n
		}
	}
}

// WithMaxChars sets the size at which pending text is cut even without a
// natural break.
func WithMaxChars(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxChars = n
		}
	}
}

// Buffer accumulates text and drains it to a SegmentSink at paragraph,
// line or sentence breaks.
type Buffer struct {
	sink      SegmentSink
	pending   string
	minChars  int
	firstMin  int
	maxChars  int
	segments  int
	delivered int
	mu        sync.Mutex
}

// New returns a Buffer writing to sink.
func New(sink SegmentSink, opts ...Option) *Buffer {
	b := &Buffer{
		sink:     sink,
		minChars: DefaultMinChars,
		maxChars: DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxChars < b.minChars {
		b.maxChars = b.minChars
	}
	b.firstMin = b.minChars / 4
	if b.firstMin < 2 {
		b.firstMin = 2
	}
	if b.firstMin > b.minChars {
		b.firstMin = b.minChars
	}
	return b
}

// Append buffers text without delivering it.
func (b *Buffer) Append(text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending += text
}

// Drain delivers every segment that is ready. With force set, all pending
// text is delivered. Segments that fail to deliver are put back in front
// of the pending text.
func (b *Buffer) Drain(ctx context.Context, force bool) error {
	b.mu.Lock()
	segments := b.cutLocked(force)
	b.mu.Unlock()

	for i, seg := range segments {
		if err := b.sink.WriteSegment(ctx, seg); err != nil {
			b.mu.Lock()
			b.pending = strings.Join(segments[i:], "") + b.pending
			b.mu.Unlock()
			return fmt.Errorf("failed to deliver text segment: %w", err)
		}
		b.mu.Lock()
		b.segments++
		b.delivered += utf8.RuneCountInString(seg)
		b.mu.Unlock()
	}
	return nil
}

// Pending returns the number of buffered runes.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return utf8.RuneCountInString(b.pending)
}

// Stats returns the number of segments and runes delivered.
func (b *Buffer) Stats() (segments, runes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.segments, b.delivered
}

func (b *Buffer) cutLocked(force bool) []string {
	var out []string
	for b.pending != "" {
		threshold := b.minChars
		if b.segments == 0 && len(out) == 0 {
			threshold = b.firstMin
		}
		seg, rest, ok := nextSegment(b.pending, threshold, b.maxChars, force)
		if !ok {
			break
		}
		b.pending = rest
		out = append(out, seg)
	}
	return out
}

// nextSegment returns the first segment of s that is at least min runes
// and ends at a break, or the first max runes when s has grown past max.
// When force is set the whole of s is returned.
func nextSegment(s string, min, max int, force bool) (string, string, bool) {
	if force {
		return s, "", true
	}
	n := utf8.RuneCountInString(s)
	if n < min {
		return "", "", false
	}
	if cut := breakAfter(s, min); cut > 0 {
		return s[:cut], s[cut:], true
	}
	if n >= max {
		cut := runeOffset(s, max)
		return s[:cut], s[cut:], true
	}
	return "", "", false
}

// breakAfter returns the byte offset just past the last break that leaves
// at least min runes before it, or 0.
func breakAfter(s string, min int) int {
	best := 0
	for _, sep := range []string{"\n\n", "\n", ". ", "! ", "? ", "; "} {
		idx := strings.LastIndex(s, sep)
		if idx < 0 {
			continue
		}
		end := idx + len(sep)
		if utf8.RuneCountInString(s[:end]) < min {
			continue
		}
		if end > best {
			best = end
		}
		if sep == "\n\n" {
			return end
		}
	}
	return best
}

func runeOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
