package projection

import "github.com/bazelment/yoloswe/acprelay/acp"

// Category is the canonical tag assigned to every classified event.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryText
	CategoryToolStart
	CategoryToolUpdate
	CategoryUsage
	CategoryCommands
	CategoryMode
	CategoryConfigOption
	CategorySessionInfo
	CategoryPlan
	CategoryThought
	CategoryTerminal
)

var categoryNames = map[Category]string{
	CategoryUnknown:      "unknown",
	CategoryText:         "text-delta",
	CategoryToolStart:    "tool-call-start",
	CategoryToolUpdate:   "tool-call-update",
	CategoryUsage:        "usage",
	CategoryCommands:     "command-list-update",
	CategoryMode:         "mode-update",
	CategoryConfigOption: "config-option-update",
	CategorySessionInfo:  "session-info-update",
	CategoryPlan:         "plan",
	CategoryThought:      "thought",
	CategoryTerminal:     "terminal",
}

// categoryTags maps ACP sessionUpdate discriminators to categories.
var categoryTags = map[string]Category{
	acp.UpdateTypeAgentMessage:      CategoryText,
	acp.UpdateTypeToolCall:          CategoryToolStart,
	acp.UpdateTypeToolCallUpdate:    CategoryToolUpdate,
	acp.UpdateTypeUsage:             CategoryUsage,
	acp.UpdateTypeAvailableCommands: CategoryCommands,
	acp.UpdateTypeCurrentMode:       CategoryMode,
	acp.UpdateTypeConfigOption:      CategoryConfigOption,
	acp.UpdateTypeSessionInfo:       CategorySessionInfo,
	acp.UpdateTypePlan:              CategoryPlan,
	acp.UpdateTypePlanUpdate:        CategoryPlan,
	acp.UpdateTypeAgentThought:      CategoryThought,
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCategory accepts either a category name ("tool-call-start") or an
// ACP tag ("tool_call").
func ParseCategory(s string) (Category, bool) {
	if c, ok := categoryTags[s]; ok {
		return c, true
	}
	for c, name := range categoryNames {
		if name == s && c != CategoryUnknown {
			return c, true
		}
	}
	return CategoryUnknown, false
}

// IsText reports whether the category is assistant text.
func (c Category) IsText() bool { return c == CategoryText }

// IsTool reports whether the category belongs to the tool call lifecycle.
func (c Category) IsTool() bool { return c == CategoryToolStart || c == CategoryToolUpdate }

// IsMeta reports whether the category counts against the meta-event budget
// and passes through the meta mode gate.
func (c Category) IsMeta() bool {
	switch c {
	case CategoryText, CategoryTerminal, CategoryUnknown:
		return false
	default:
		return true
	}
}

// defaultVisible is the tag gate used when no override is configured.
func defaultVisible(c Category, showUsage bool) bool {
	switch c {
	case CategoryText, CategoryToolStart, CategoryToolUpdate:
		return true
	case CategoryUsage:
		return showUsage
	default:
		return false
	}
}
