package projection

import "unicode/utf8"

// Action is the outcome of a visibility decision.
type Action int

const (
	ActionSuppress Action = iota
	ActionEmit
	// ActionTruncationNotice emits the part of a text delta that still fits
	// followed by the truncation notice. It happens at most once per turn.
	ActionTruncationNotice
)

func (a Action) String() string {
	switch a {
	case ActionSuppress:
		return "suppress"
	case ActionEmit:
		return "emit"
	case ActionTruncationNotice:
		return "truncation_notice"
	default:
		return "unknown"
	}
}

// Suppression reasons reported in Decision.Reason.
const (
	ReasonUnknown        = "unknown"
	ReasonTerminal       = "terminal"
	ReasonTag            = "tag"
	ReasonEmpty          = "empty"
	ReasonModeOff        = "mode_off"
	ReasonDuplicate      = "duplicate"
	ReasonDuplicateStart = "duplicate_start"
	ReasonNonTerminal    = "non_terminal_update"
	ReasonToolFinished   = "tool_finished"
	ReasonUsageHidden    = "usage_hidden"
	ReasonUsageUnchanged = "usage_unchanged"
	ReasonMetaBudget     = "meta_budget"
	ReasonTextBudget     = "text_budget"
)

// Decision is what the policy wants done with one event.
type Decision struct {
	Text   string
	Reason string
	Action Action
}

func suppress(reason string) Decision {
	return Decision{Action: ActionSuppress, Reason: reason}
}

// Decide evaluates the visibility gates for ev in order, stopping at the
// first that suppresses. It reads but never mutates mem and budget; the
// caller applies the result with commit before evaluating the next event.
func Decide(cfg *Config, ev ClassifiedEvent, mem *DedupMemory, budget *Budget) Decision {
	switch ev.Category {
	case CategoryUnknown:
		return suppress(ReasonUnknown)
	case CategoryTerminal:
		return suppress(ReasonTerminal)
	}
	if !cfg.visible(ev.Category) {
		return suppress(ReasonTag)
	}
	if ev.Category.IsText() {
		return decideText(ev, budget)
	}

	max := cfg.MaxStatusChars
	if ev.Category.IsTool() {
		max = cfg.MaxToolSummaryChars
	}
	// Truncation runs before the mode and dedup gates, so dedup compares
	// the text that would actually be sent. Two events differing only past
	// the cap count as duplicates.
	text := truncateRunes(metaText(ev, mem), max)
	if text == "" {
		return suppress(ReasonEmpty)
	}
	if reason := modeGate(cfg.MetaMode, ev, text, mem); reason != "" {
		return suppress(reason)
	}
	if ev.Category == CategoryUsage {
		if !cfg.ShowUsage {
			return suppress(ReasonUsageHidden)
		}
		if last, ok := mem.LastUsage(); ok && ev.Usage != nil && last == *ev.Usage {
			return suppress(ReasonUsageUnchanged)
		}
	}
	if budget.MetaExhausted() {
		return suppress(ReasonMetaBudget)
	}
	return Decision{Action: ActionEmit, Text: text}
}

func decideText(ev ClassifiedEvent, budget *Budget) Decision {
	if ev.Text == "" {
		return suppress(ReasonEmpty)
	}
	if budget.NoticeSent() {
		return suppress(ReasonTextBudget)
	}
	remaining := budget.TextRemaining()
	if utf8.RuneCountInString(ev.Text) <= remaining {
		return Decision{Action: ActionEmit, Text: ev.Text}
	}
	return Decision{
		Action: ActionTruncationNotice,
		Text:   prefixRunes(ev.Text, remaining),
		Reason: ReasonTextBudget,
	}
}

func modeGate(mode MetaMode, ev ClassifiedEvent, text string, mem *DedupMemory) string {
	if mode == MetaOff {
		return ReasonModeOff
	}
	if ev.Category.IsTool() {
		rec := mem.Tool(ev.ToolCallID)
		if rec != nil && rec.TerminalEmitted {
			return ReasonToolFinished
		}
		if mode == MetaMinimal {
			if ev.Category == CategoryToolStart && rec != nil && rec.StartEmitted {
				return ReasonDuplicateStart
			}
			if ev.Category == CategoryToolUpdate && !ev.ToolTerminal {
				return ReasonNonTerminal
			}
		}
	}
	// This runs before the usage tuple gate. A new tuple that renders like
	// the last one (nearby counts round to the same text) is suppressed here,
	// and the remembered tuple stays the last one actually emitted.
	if mem.Same(dedupKey(ev), text) {
		return ReasonDuplicate
	}
	return ""
}

// metaText renders a status or tool event. Tool updates that arrive without
// a name reuse the label remembered from the start event.
func metaText(ev ClassifiedEvent, mem *DedupMemory) string {
	if !ev.Category.IsTool() {
		return ev.Text
	}
	label := ev.ToolLabel
	if ev.LabelFallback {
		if rec := mem.Tool(ev.ToolCallID); rec != nil && rec.Label != "" {
			label = rec.Label
		}
	}
	return renderTool(label, ev.ToolStatus, ev.ToolDetail)
}

// commit applies an emitted decision to memory and budget.
func commit(ev ClassifiedEvent, dec Decision, mem *DedupMemory, budget *Budget) {
	switch dec.Action {
	case ActionSuppress:
		return
	case ActionTruncationNotice:
		budget.addText(utf8.RuneCountInString(dec.Text))
		budget.markNotice()
		return
	}
	if ev.Category.IsText() {
		budget.addText(utf8.RuneCountInString(dec.Text))
		return
	}

	budget.addMeta()
	mem.remember(dedupKey(ev), dec.Text)
	switch {
	case ev.Category == CategoryUsage && ev.Usage != nil:
		mem.rememberUsage(*ev.Usage)
	case ev.Category.IsTool():
		rec := mem.tool(ev.ToolCallID)
		if !ev.LabelFallback {
			rec.Label = ev.ToolLabel
		}
		rec.LastHash = hashText(dec.Text)
		if ev.Category == CategoryToolStart {
			rec.StartEmitted = true
		} else if rec.State == ToolStarted {
			rec.State = ToolUpdated
		}
		if ev.ToolTerminal {
			rec.State = ToolFinished
			rec.TerminalEmitted = true
		}
	}
}
