package projection

import (
	"context"
	"strings"
)

// Reasons passed to Canceler.Cancel.
const (
	CancelReasonAbort    = "abort"
	CancelReasonReset    = "reset"
	CancelReasonContext  = "context"
	CancelReasonShutdown = "shutdown"
)

// abortTriggers is the fast-abort vocabulary. "wait" maps to the same
// cancel as "stop".
var abortTriggers = map[string]struct{}{
	"stop":   {},
	"wait":   {},
	"/stop":  {},
	"abort":  {},
	"cancel": {},
}

// IsAbortTrigger reports whether text is a fast-abort instruction.
// Matching ignores case, surrounding space and trailing punctuation.
func IsAbortTrigger(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".!")
	_, ok := abortTriggers[s]
	return ok
}

// AbortRequest is an inbound message that may abort a session's turn.
type AbortRequest struct {
	SessionKey string
	Text       string
}

// Abort cancels the active turn for req.SessionKey when req.Text is an
// abort trigger. The external cancel is attempted once and local cleanup
// runs whether or not it succeeds.
func (r *Router) Abort(ctx context.Context, req AbortRequest) error {
	if !IsAbortTrigger(req.Text) {
		return ErrNotAbortTrigger
	}
	turn, ok := r.Turn(req.SessionKey)
	if !ok {
		return ErrNoActiveTurn
	}
	r.opts.logger.Info("abort requested", "session", req.SessionKey, "trigger", req.Text)
	return turn.Cancel(ctx, CancelReasonAbort)
}
