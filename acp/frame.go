package acp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FrameKind identifies what a decoded line carries.
type FrameKind int

const (
	// FrameUnknown is anything the projection engine does not act on:
	// malformed JSON, requests, and responses without a stop reason.
	FrameUnknown FrameKind = iota
	// FrameUpdate is a session/update notification.
	FrameUpdate
	// FramePromptResult is a session/prompt response carrying a stop reason.
	FramePromptResult
	// FramePromptError is a JSON-RPC error response.
	FramePromptError
)

// String returns the string representation of the frame kind.
func (k FrameKind) String() string {
	switch k {
	case FrameUpdate:
		return "update"
	case FramePromptResult:
		return "prompt_result"
	case FramePromptError:
		return "prompt_error"
	default:
		return "unknown"
	}
}

// Frame is one decoded line of the agent's output stream.
type Frame struct {
	Update     *SessionUpdate
	Err        *RPCError
	Kind       FrameKind
	SessionID  string
	Method     string
	StopReason string
	// Raw is the line exactly as received.
	Raw json.RawMessage
}

// envelope peeks at the fields that decide how a line is routed.
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// ParseFrame decodes one JSON-RPC line. It never loses the input: on error
// the returned Frame is FrameUnknown with Raw set, and the error is a
// *ProtocolError (or ErrEmptyFrame for blank lines).
func ParseFrame(line []byte) (Frame, error) {
	line = bytes.TrimSpace(line)
	frame := Frame{Kind: FrameUnknown, Raw: append(json.RawMessage(nil), line...)}
	if len(line) == 0 {
		return frame, ErrEmptyFrame
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return frame, &ProtocolError{Message: "failed to parse JSON-RPC message", Cause: err, Line: string(line)}
	}
	frame.Method = env.Method
	hasID := len(env.ID) > 0 && !bytes.Equal(env.ID, []byte("null"))

	switch {
	case env.Method == MethodSessionUpdate && !hasID:
		n, err := decodeNotification(env.Params)
		if err != nil {
			return frame, &ProtocolError{Message: "failed to parse session/update params", Cause: err, Line: string(line)}
		}
		frame.Kind = FrameUpdate
		frame.SessionID = n.SessionID
		frame.Update = &n.Update

	case env.Method == "" && hasID && env.Error != nil:
		frame.Kind = FramePromptError
		frame.Err = &RPCError{Code: env.Error.Code, Message: env.Error.Message}

	case env.Method == "" && hasID && len(env.Result) > 0:
		var resp PromptResponse
		if err := json.Unmarshal(env.Result, &resp); err != nil {
			// Results of other requests (initialize, session/new) are not
			// always objects.
			return frame, nil
		}
		if resp.StopReason != "" {
			frame.Kind = FramePromptResult
			frame.StopReason = resp.StopReason
		}
	}
	return frame, nil
}

// IsTerminal reports whether the frame ends a prompt turn.
func (f Frame) IsTerminal() bool {
	return f.Kind == FramePromptResult || f.Kind == FramePromptError
}

// String renders a short description for logs.
func (f Frame) String() string {
	switch f.Kind {
	case FrameUpdate:
		return fmt.Sprintf("update(%s) session=%s", f.Update.Type, f.SessionID)
	case FramePromptResult:
		return fmt.Sprintf("prompt_result(%s)", f.StopReason)
	case FramePromptError:
		return fmt.Sprintf("prompt_error(%d)", f.Err.Code)
	default:
		return "unknown"
	}
}
