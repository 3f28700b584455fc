package projection

import "errors"

// Sentinel errors for turn and router operations.
var (
	ErrTurnInProgress  = errors.New("turn already in progress for session")
	ErrNoActiveTurn    = errors.New("no active turn for session")
	ErrTurnClosed      = errors.New("turn is closed")
	ErrNotAbortTrigger = errors.New("text is not an abort trigger")
	ErrStreamEnded     = errors.New("event stream ended before turn completed")
	ErrRouterClosed    = errors.New("router is closed")
)
