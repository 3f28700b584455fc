package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bazelment/yoloswe/acprelay/acp"
)

// call is one observed collaborator interaction.
type call struct {
	Op      string
	Target  string
	Content string
}

// recorder collects calls from every fake of a test in one ordered log.
type recorder struct {
	calls []call
	mu    sync.Mutex
}

func (r *recorder) add(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) all() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

// only returns the calls whose Op is one of ops, in order.
func (r *recorder) only(ops ...string) []call {
	var out []call
	for _, c := range r.all() {
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (r *recorder) count(op string) int {
	return len(r.only(op))
}

// fakeStream records a "flush" for every drain that delivers text.
type fakeStream struct {
	rec     *recorder
	pending strings.Builder
	mu      sync.Mutex
}

func (s *fakeStream) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.WriteString(text)
}

func (s *fakeStream) Drain(_ context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Len() == 0 {
		return nil
	}
	s.rec.add(call{Op: "flush", Content: s.pending.String()})
	s.pending.Reset()
	return nil
}

// fakeSender records sends and edits. When gate is set, every Send waits
// for it to be closed.
type fakeSender struct {
	rec      *recorder
	editErr  error
	gate     chan struct{}
	sendErrs []error
	canEdit  bool
	nextID   int
	mu       sync.Mutex
}

func (s *fakeSender) Send(_ context.Context, dest Destination, content string) (Handle, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sendErrs) > 0 {
		err := s.sendErrs[0]
		s.sendErrs = s.sendErrs[1:]
		if err != nil {
			s.rec.add(call{Op: "send_failed", Content: content})
			return Handle{}, err
		}
	}
	s.nextID++
	id := fmt.Sprintf("m%d", s.nextID)
	s.rec.add(call{Op: "send", Target: id, Content: content})
	return Handle{Destination: dest, MessageID: id}, nil
}

func (s *fakeSender) Edit(_ context.Context, h Handle, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editErr != nil {
		s.rec.add(call{Op: "edit_failed", Target: h.MessageID, Content: content})
		return s.editErr
	}
	s.rec.add(call{Op: "edit", Target: h.MessageID, Content: content})
	return nil
}

func (s *fakeSender) CanEdit(Destination) bool { return s.canEdit }

type fakeTyping struct {
	rec *recorder
}

func (f *fakeTyping) Start(context.Context) error {
	f.rec.add(call{Op: "typing_start"})
	return nil
}

func (f *fakeTyping) Refresh(context.Context) error {
	f.rec.add(call{Op: "typing_refresh"})
	return nil
}

func (f *fakeTyping) Stop(context.Context) error {
	f.rec.add(call{Op: "typing_stop"})
	return nil
}

type fakeCanceler struct {
	rec *recorder
	err error
}

func (f *fakeCanceler) Cancel(_ context.Context, sessionKey, reason string) error {
	f.rec.add(call{Op: "cancel", Target: sessionKey, Content: reason})
	return f.err
}

type fakeRawLog struct {
	lines []string
	mu    sync.Mutex
}

func (l *fakeRawLog) Append(sessionKey string, raw json.RawMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, sessionKey+" "+string(raw))
	return nil
}

func (l *fakeRawLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// harness bundles one session's fakes.
type harness struct {
	rec    *recorder
	stream *fakeStream
	sender *fakeSender
	typing *fakeTyping
}

func newHarness() *harness {
	rec := &recorder{}
	return &harness{
		rec:    rec,
		stream: &fakeStream{rec: rec},
		sender: &fakeSender{rec: rec, canEdit: true},
		typing: &fakeTyping{rec: rec},
	}
}

func (h *harness) binding() Binding {
	return Binding{
		Stream:      h.stream,
		Sender:      h.sender,
		Typing:      h.typing,
		Destination: Destination{Channel: "test", Target: "room"},
	}
}

// testConfig is DefaultConfig with a long typing interval so refreshes do
// not show up in call logs.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TypingInterval = time.Hour
	return cfg
}

func mustFrame(t testing.TB, line string) acp.Frame {
	t.Helper()
	frame, err := acp.ParseFrame([]byte(line))
	require.NoError(t, err)
	return frame
}

func updateLine(sessionID string, update map[string]any) string {
	params := map[string]any{"sessionId": sessionID, "update": update}
	data, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  acp.MethodSessionUpdate,
		"params":  params,
	})
	if err != nil {
		panic(err)
	}
	return string(data)
}

func textFrame(t testing.TB, text string) acp.Frame {
	return mustFrame(t, updateLine("s1", map[string]any{
		"sessionUpdate": acp.UpdateTypeAgentMessage,
		"content":       map[string]any{"type": "text", "text": text},
	}))
}

func thoughtFrame(t testing.TB, text string) acp.Frame {
	return mustFrame(t, updateLine("s1", map[string]any{
		"sessionUpdate": acp.UpdateTypeAgentThought,
		"content":       map[string]any{"type": "text", "text": text},
	}))
}

func toolFrame(t testing.TB, kind, id, title, status string) acp.Frame {
	u := map[string]any{"sessionUpdate": kind, "toolCallId": id}
	if title != "" {
		u["title"] = title
	}
	if status != "" {
		u["status"] = status
	}
	return mustFrame(t, updateLine("s1", u))
}

func toolStart(t testing.TB, id, title string) acp.Frame {
	return toolFrame(t, acp.UpdateTypeToolCall, id, title, ToolStatusPending)
}

func toolUpdate(t testing.TB, id, status string) acp.Frame {
	return toolFrame(t, acp.UpdateTypeToolCallUpdate, id, "", status)
}

func usageFrame(t testing.TB, used, size int64) acp.Frame {
	return mustFrame(t, updateLine("s1", map[string]any{
		"sessionUpdate": acp.UpdateTypeUsage,
		"used":          used,
		"size":          size,
	}))
}

func modeFrame(t testing.TB, mode string) acp.Frame {
	return mustFrame(t, updateLine("s1", map[string]any{
		"sessionUpdate": acp.UpdateTypeCurrentMode,
		"currentModeId": mode,
	}))
}

func planFrame(t testing.TB, steps ...string) acp.Frame {
	entries := make([]map[string]any, 0, len(steps))
	for _, s := range steps {
		entries = append(entries, map[string]any{"content": s, "status": "pending"})
	}
	return mustFrame(t, updateLine("s1", map[string]any{
		"sessionUpdate": acp.UpdateTypePlan,
		"entries":       entries,
	}))
}

func doneFrame(t testing.TB) acp.Frame {
	return mustFrame(t, `{"jsonrpc":"2.0","id":2,"result":{"stopReason":"end_turn"}}`)
}

func errorFrame(t testing.TB) acp.Frame {
	return mustFrame(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32603,"message":"agent crashed"}}`)
}
