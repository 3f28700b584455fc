package projection

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/bazelment/yoloswe/acprelay/acp"
)

// fallbackToolLabel is shown when a tool call carries no usable name.
const fallbackToolLabel = "Tool call"

// Tool statuses that end a tool call's lifecycle.
const (
	ToolStatusPending    = "pending"
	ToolStatusInProgress = "in_progress"
	ToolStatusCompleted  = "completed"
	ToolStatusFailed     = "failed"
	ToolStatusErrored    = "errored"
	ToolStatusCancelled  = "cancelled"
)

// Usage is the context window occupancy reported by usage_update.
type Usage struct {
	Used int64
	Size int64
}

// ClassifiedEvent is the canonical, immutable form of one frame.
type ClassifiedEvent struct {
	Usage      *Usage
	Err        *acp.RPCError
	ToolCallID string
	// ToolLabel is the display name of the tool; LabelFallback is set when
	// it is the stable placeholder rather than something the agent sent.
	ToolLabel     string
	ToolStatus    string
	ToolDetail    string
	Text          string
	StopReason    string
	Raw           json.RawMessage
	Category      Category
	ToolTerminal  bool
	LabelFallback bool
}

// Classify maps a frame to exactly one category. It never fails: frames it
// cannot interpret become CategoryUnknown.
func Classify(frame acp.Frame) ClassifiedEvent {
	ev := ClassifiedEvent{Category: CategoryUnknown, Raw: frame.Raw}

	switch frame.Kind {
	case acp.FramePromptResult:
		ev.Category = CategoryTerminal
		ev.StopReason = frame.StopReason
		return ev
	case acp.FramePromptError:
		ev.Category = CategoryTerminal
		ev.Err = frame.Err
		return ev
	case acp.FrameUpdate:
	default:
		return ev
	}
	u := frame.Update
	if u == nil {
		return ev
	}
	cat, ok := categoryTags[u.Type]
	if !ok {
		return ev
	}
	ev.Category = cat

	switch cat {
	case CategoryText, CategoryThought:
		ev.Text, _ = u.TextContent()
	case CategoryToolStart, CategoryToolUpdate:
		classifyTool(&ev, u)
	case CategoryUsage:
		if u.Used != nil && u.Size != nil {
			ev.Usage = &Usage{Used: *u.Used, Size: *u.Size}
			ev.Text = renderUsage(*ev.Usage)
		}
	case CategoryCommands:
		ev.Text = renderCommands(u.AvailableCommands)
	case CategoryMode:
		if u.CurrentModeID != "" {
			ev.Text = "Mode: " + u.CurrentModeID
		}
	case CategoryConfigOption:
		ev.Text = renderConfigOptions(u.ConfigOptions)
	case CategorySessionInfo:
		if u.Title != "" {
			ev.Text = "Session: " + u.Title
		}
	case CategoryPlan:
		ev.Text = renderPlan(u.PlanEntries())
	}
	return ev
}

func classifyTool(ev *ClassifiedEvent, u *acp.SessionUpdate) {
	ev.ToolCallID = u.ToolCallID
	ev.ToolStatus = u.Status
	if ev.ToolStatus == "" && ev.Category == CategoryToolStart {
		ev.ToolStatus = ToolStatusPending
	}
	ev.ToolTerminal = isTerminalToolStatus(ev.ToolStatus)
	ev.ToolLabel, ev.LabelFallback = toolLabel(u)
	ev.ToolDetail = toolDetail(u)
}

func isTerminalToolStatus(status string) bool {
	switch status {
	case ToolStatusCompleted, ToolStatusFailed, ToolStatusErrored, ToolStatusCancelled:
		return true
	default:
		return false
	}
}

// toolIDPattern matches ids minted as "<tool name>-<digits>".
var toolIDPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_.]*)-\d+$`)

// toolLabel picks title, then tool name, then a name parsed from the id,
// then the fallback label. The raw id is never shown.
func toolLabel(u *acp.SessionUpdate) (string, bool) {
	if t := strings.TrimSpace(u.Title); t != "" {
		return t, false
	}
	if n := strings.TrimSpace(u.ToolName); n != "" {
		return n, false
	}
	if m := toolIDPattern.FindStringSubmatch(u.ToolCallID); m != nil {
		return m[1], false
	}
	return fallbackToolLabel, true
}

// toolDetail summarizes what the tool touched: its content text, else its
// first location.
func toolDetail(u *acp.SessionUpdate) string {
	if text := strings.TrimSpace(u.ToolText()); text != "" {
		return firstLine(text)
	}
	if len(u.Locations) > 0 && u.Locations[0].Path != "" {
		return u.Locations[0].Path
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
