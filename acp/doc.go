// Package acp decodes the Agent Client Protocol (ACP) wire frames that an
// agent emits while it works on a prompt turn.
//
// ACP is JSON-RPC 2.0 over stdio. During a turn the agent streams
// session/update notifications (message chunks, tool call lifecycle, plan,
// usage, mode and config changes) and finally answers the session/prompt
// request with a stop reason or an error. This package turns each line of
// that stream into a [Frame] without interpreting it; projection decisions
// live in the projection package.
//
// # Decoding
//
//	frame, err := acp.ParseFrame(line)
//	if err != nil {
//	    // frame.Kind is FrameUnknown; frame.Raw still holds the line so it
//	    // can be written to the raw log.
//	}
//	switch frame.Kind {
//	case acp.FrameUpdate:
//	    fmt.Println(frame.Update.Type)
//	case acp.FramePromptResult:
//	    fmt.Println("turn finished:", frame.StopReason)
//	}
//
// Optional fields are tolerated: a tool_call whose content is an array and an
// agent_message_chunk whose content is a single block share the same
// [SessionUpdate] struct, and helpers such as [SessionUpdate.TextContent]
// decode them lazily.
//
// # Cancellation
//
// [CancelWriter] writes session/cancel notifications back to the agent and
// satisfies the cancel collaborator used by the projection engine.
package acp
