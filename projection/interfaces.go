package projection

import (
	"context"
	"encoding/json"
)

// Destination identifies where a session's messages are delivered.
type Destination struct {
	Channel string
	Account string
	Target  string
	Thread  string
}

// Handle references a delivered message. MessageID is empty when the
// transport cannot address individual messages.
type Handle struct {
	Destination
	MessageID string
}

// Editable reports whether the handle carries enough to address an edit.
func (h Handle) Editable() bool { return h.MessageID != "" }

// TextStream is the chunk coalescer that delivers assistant text. Append
// only buffers; Drain delivers what is ready, or everything when force is set.
type TextStream interface {
	Append(text string)
	Drain(ctx context.Context, force bool) error
}

// Sender delivers discrete (non-stream) messages such as tool and status
// lines.
type Sender interface {
	Send(ctx context.Context, dest Destination, content string) (Handle, error)
	Edit(ctx context.Context, h Handle, content string) error
	CanEdit(dest Destination) bool
}

// TypingSignaler drives a typing indicator. All methods are idempotent.
type TypingSignaler interface {
	Start(ctx context.Context) error
	Refresh(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Canceler asks the agent to stop working on a session's current prompt.
type Canceler interface {
	Cancel(ctx context.Context, sessionKey, reason string) error
}

// ConfigResolver supplies the configuration snapshot for a session.
type ConfigResolver interface {
	Resolve(sessionKey string) Config
}

// RawLog receives every frame unmodified. It is write-only from the
// engine's point of view.
type RawLog interface {
	Append(sessionKey string, raw json.RawMessage) error
}

// StaticConfig is a ConfigResolver that returns the same snapshot for every
// session.
type StaticConfig Config

// Resolve implements ConfigResolver.
func (s StaticConfig) Resolve(string) Config { return Config(s).WithDefaults() }

// Binding is the set of per-session collaborators a turn delivers to.
type Binding struct {
	Stream      TextStream
	Sender      Sender
	Typing      TypingSignaler
	Destination Destination
}

// BindFunc resolves the collaborators for a session key when a turn begins.
type BindFunc func(sessionKey string) (Binding, error)
