package projection

import "github.com/zeebo/blake3"

// ToolState is the lifecycle position of a tool call.
type ToolState int

const (
	ToolStarted ToolState = iota
	ToolUpdated
	ToolFinished
)

func (s ToolState) String() string {
	switch s {
	case ToolStarted:
		return "started"
	case ToolUpdated:
		return "updated"
	case ToolFinished:
		return "terminal"
	default:
		return "unknown"
	}
}

type contentHash [32]byte

func hashText(s string) contentHash {
	return blake3.Sum256([]byte(s))
}

// ToolCallRecord is the policy-side memory of one tool call. The delivery
// handle lives with the outbound lane, which is the only goroutine that
// touches it.
type ToolCallRecord struct {
	ID              string
	Label           string
	LastHash        contentHash
	State           ToolState
	StartEmitted    bool
	TerminalEmitted bool
}

// DedupMemory remembers what a turn last emitted per key.
type DedupMemory struct {
	hashes map[string]contentHash
	tools  map[string]*ToolCallRecord
	usage  *Usage
}

// NewDedupMemory returns empty memory for a new turn.
func NewDedupMemory() *DedupMemory {
	return &DedupMemory{
		hashes: make(map[string]contentHash),
		tools:  make(map[string]*ToolCallRecord),
	}
}

// Same reports whether text equals the last emission recorded for key.
func (m *DedupMemory) Same(key, text string) bool {
	h, ok := m.hashes[key]
	return ok && h == hashText(text)
}

// Tool returns the record for id, or nil if none was committed.
func (m *DedupMemory) Tool(id string) *ToolCallRecord {
	return m.tools[id]
}

// LastUsage returns the last emitted usage tuple.
func (m *DedupMemory) LastUsage() (Usage, bool) {
	if m.usage == nil {
		return Usage{}, false
	}
	return *m.usage, true
}

func (m *DedupMemory) remember(key, text string) {
	m.hashes[key] = hashText(text)
}

func (m *DedupMemory) rememberUsage(u Usage) {
	m.usage = &u
}

// tool returns the record for id, creating it on first use.
func (m *DedupMemory) tool(id string) *ToolCallRecord {
	rec, ok := m.tools[id]
	if !ok {
		rec = &ToolCallRecord{ID: id, State: ToolStarted}
		m.tools[id] = rec
	}
	return rec
}

// dedupKey is the memory slot an event's text is compared against.
func dedupKey(ev ClassifiedEvent) string {
	if ev.Category.IsTool() {
		return "tool:" + ev.ToolCallID
	}
	return ev.Category.String()
}
