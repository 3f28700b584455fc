package projection

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bazelment/yoloswe/acprelay/acp"
)

// renderTool formats a tool call line, e.g. "✅ Read main.go: 120 lines".
func renderTool(label, status, detail string) string {
	var b strings.Builder
	b.WriteString(toolIcon(status))
	b.WriteByte(' ')
	b.WriteString(label)
	if detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	return b.String()
}

func toolIcon(status string) string {
	switch status {
	case ToolStatusInProgress:
		return "⏳"
	case ToolStatusCompleted:
		return "✅"
	case ToolStatusFailed, ToolStatusErrored:
		return "❌"
	case ToolStatusCancelled:
		return "⏹"
	default:
		return "🛠️"
	}
}

func renderUsage(u Usage) string {
	if u.Size <= 0 {
		return fmt.Sprintf("Context: %s tokens", humanTokens(u.Used))
	}
	pct := u.Used * 100 / u.Size
	return fmt.Sprintf("Context: %s / %s tokens (%d%%)", humanTokens(u.Used), humanTokens(u.Size), pct)
}

func humanTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func renderCommands(cmds []acp.AvailableCommand) string {
	if len(cmds) == 0 {
		return ""
	}
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if l := c.Label(); l != "" {
			names = append(names, "/"+strings.TrimPrefix(l, "/"))
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "Commands: " + strings.Join(names, ", ")
}

func renderConfigOptions(opts []acp.SessionConfigOption) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		if o.ID == "" {
			continue
		}
		parts = append(parts, o.ID+"="+o.Value)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Config: " + strings.Join(parts, ", ")
}

func renderPlan(entries []acp.PlanEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Plan:")
	for _, e := range entries {
		b.WriteString("\n")
		switch e.Status {
		case "completed":
			b.WriteString("☑ ")
		case "in_progress":
			b.WriteString("◐ ")
		default:
			b.WriteString("☐ ")
		}
		b.WriteString(e.Label())
	}
	return b.String()
}

// truncateRunes cuts s to at most max runes, marking the cut with an
// ellipsis that counts toward max.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return prefixRunes(s, 1)
	}
	return prefixRunes(s, max-1) + "…"
}

// prefixRunes returns the first n runes of s.
func prefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
