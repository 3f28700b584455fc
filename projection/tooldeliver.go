package projection

import (
	"context"
	"log/slog"
)

// ToolDeliverer sends one message per tool call and edits it in place as the
// call progresses. It is driven from a single goroutine (the turn's lane).
//
// A fallback send after a failed or impossible edit does not replace the
// stored handle; the first successful send for an id becomes its handle.
type ToolDeliverer struct {
	sender  Sender
	logger  *slog.Logger
	handles map[string]Handle
	dest    Destination
}

// NewToolDeliverer returns a deliverer sending to dest through sender.
func NewToolDeliverer(sender Sender, dest Destination, logger *slog.Logger) *ToolDeliverer {
	if logger == nil {
		logger = nopLogger
	}
	return &ToolDeliverer{
		sender:  sender,
		dest:    dest,
		logger:  logger,
		handles: make(map[string]Handle),
	}
}

// Start sends the first message for a tool call.
func (d *ToolDeliverer) Start(ctx context.Context, id, content string) {
	d.send(ctx, id, content)
}

// Update edits the tool call's message when possible, else sends a new one.
func (d *ToolDeliverer) Update(ctx context.Context, id, content string) {
	h, ok := d.handles[id]
	if !ok || !h.Editable() || !d.sender.CanEdit(d.dest) {
		d.send(ctx, id, content)
		return
	}
	if err := d.sender.Edit(ctx, h, content); err != nil {
		d.logger.Warn("tool message edit failed, sending new message",
			"tool_call_id", id, "message_id", h.MessageID, "err", err)
		d.send(ctx, id, content)
	}
}

// Handle returns the stored handle for id.
func (d *ToolDeliverer) Handle(id string) (Handle, bool) {
	h, ok := d.handles[id]
	return h, ok
}

func (d *ToolDeliverer) send(ctx context.Context, id, content string) {
	h, err := d.sender.Send(ctx, d.dest, content)
	if err != nil {
		d.logger.Warn("tool message send failed", "tool_call_id", id, "err", err)
		return
	}
	if _, ok := d.handles[id]; !ok {
		d.handles[id] = h
	}
}
