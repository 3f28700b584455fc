package acp

import (
	"encoding/json"
	"strings"
)

// ContentBlock is a single piece of message content. Only text blocks carry
// anything the relay renders; other types keep their Type so they can be
// told apart.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolCallContent is one item of a tool call's content array.
type ToolCallContent struct {
	Type    string        `json:"type"` // content, diff or terminal
	Content *ContentBlock `json:"content,omitempty"`
	Path    string        `json:"path,omitempty"`
}

// SessionNotification carries the params of session/update.
type SessionNotification struct {
	Update    SessionUpdate `json:"update"`
	SessionID string        `json:"sessionId"`
}

// SessionUpdate holds every field any sessionUpdate variant may set; Type
// says which of them are meaningful.
type SessionUpdate struct {
	Type string `json:"sessionUpdate"`

	// Content is one ContentBlock for message and thought chunks and a
	// []ToolCallContent for tool calls, so it is decoded lazily.
	Content json.RawMessage `json:"content,omitempty"`

	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Status     string         `json:"status,omitempty"`
	Locations  []ToolLocation `json:"locations,omitempty"`

	// Title names the tool call, or the session for session_info_update.
	Title string `json:"title,omitempty"`

	// Newer agents put plan entries at the top level, older ones under plan.
	Entries []PlanEntry `json:"entries,omitempty"`
	Plan    *Plan       `json:"plan,omitempty"`

	AvailableCommands []AvailableCommand    `json:"availableCommands,omitempty"`
	CurrentModeID     string                `json:"currentModeId,omitempty"`
	ConfigOptions     []SessionConfigOption `json:"configOptions,omitempty"`

	// Context window tokens for usage_update.
	Used *int64 `json:"used,omitempty"`
	Size *int64 `json:"size,omitempty"`

	// Malformed names the fields dropped while decoding because their JSON
	// type was wrong. It is sorted.
	Malformed []string `json:"-"`
}

// TextContent returns the text of a single-block content payload. The second
// result is false when content is absent, not a text block, or malformed.
func (u *SessionUpdate) TextContent() (string, bool) {
	if len(u.Content) == 0 {
		return "", false
	}
	var block ContentBlock
	if err := json.Unmarshal(u.Content, &block); err != nil {
		return "", false
	}
	if block.Type != "text" {
		return "", false
	}
	return block.Text, true
}

// ToolText joins the text blocks of a tool call content array. Diffs are
// rendered as their path; anything undecodable yields "".
func (u *SessionUpdate) ToolText() string {
	if len(u.Content) == 0 {
		return ""
	}
	var blocks []ToolCallContent
	if err := json.Unmarshal(u.Content, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		switch {
		case b.Content != nil && b.Content.Type == "text" && b.Content.Text != "":
			parts = append(parts, b.Content.Text)
		case b.Type == "diff" && b.Path != "":
			parts = append(parts, "diff "+b.Path)
		}
	}
	return strings.Join(parts, "\n")
}

// PlanEntries returns the plan entries regardless of which shape carried them.
func (u *SessionUpdate) PlanEntries() []PlanEntry {
	if len(u.Entries) > 0 {
		return u.Entries
	}
	if u.Plan != nil {
		return u.Plan.Entries
	}
	return nil
}

// ToolLocation is a file a tool call touches.
type ToolLocation struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// Plan is the legacy wrapper around plan entries.
type Plan struct {
	Entries []PlanEntry `json:"entries"`
}

// PlanEntry is one step of the agent's plan.
type PlanEntry struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Label returns the human-readable text of the entry.
func (e PlanEntry) Label() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Title
}

// AvailableCommand is a slash command advertised by the agent.
type AvailableCommand struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}

// Label returns the command name, preferring the wire name over display forms.
func (c AvailableCommand) Label() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.ID != "":
		return c.ID
	default:
		return c.DisplayName
	}
}

// SessionConfigOption is one session setting and its current value.
type SessionConfigOption struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Value       string `json:"value,omitempty"`
}

// PromptResponse is the result of session/prompt.
type PromptResponse struct {
	StopReason string `json:"stopReason"` // end_turn, cancelled, refusal, max_tokens
}

// CancelNotification is the params of session/cancel.
type CancelNotification struct {
	SessionID string `json:"sessionId"`
}
