package projection

import (
	"context"
	"log/slog"
	"time"
)

// nopHandler is a slog.Handler that discards all output.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

// nopLogger is used when no logger is configured.
var nopLogger = slog.New(nopHandler{})

// options holds settings shared by Router and Turn.
type options struct {
	canceler Canceler
	rawLog   RawLog
	logger   *slog.Logger
	now      func() time.Time
}

func defaultOptions() options {
	return options{
		logger: nopLogger,
		now:    time.Now,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option is a functional option for configuring a Router or Turn.
type Option func(*options)

// WithCanceler sets the collaborator that cancels the agent's prompt on abort.
func WithCanceler(c Canceler) Option {
	return func(o *options) { o.canceler = c }
}

// WithRawLog sets the lossless log every frame is appended to.
func WithRawLog(l RawLog) Option {
	return func(o *options) { o.rawLog = l }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = nopLogger
		}
		o.logger = l
	}
}

// WithClock overrides time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// nopStream is used when a binding has no text stream.
type nopStream struct{}

func (nopStream) Append(string)                     {}
func (nopStream) Drain(context.Context, bool) error { return nil }
