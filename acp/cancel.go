package acp

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// CancelWriter sends session/cancel notifications to an agent over its
// stdin. Safe for concurrent use.
type CancelWriter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewCancelWriter returns a CancelWriter writing newline-delimited
// notifications to w.
func NewCancelWriter(w io.Writer) *CancelWriter {
	return &CancelWriter{w: w}
}

// Cancel writes a session/cancel notification for sessionID. ACP carries no
// reason on the wire, so reason is accepted for interface compatibility only.
func (c *CancelWriter) Cancel(ctx context.Context, sessionID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeNotification(MethodSessionCancel, CancelNotification{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal cancel notification: %w", err)
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("failed to write cancel notification: %w", err)
	}
	return nil
}
