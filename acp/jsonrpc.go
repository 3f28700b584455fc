package acp

import "encoding/json"

// Methods the relay reads or writes.
const (
	MethodSessionUpdate = "session/update"
	MethodSessionCancel = "session/cancel"
)

// Values of the sessionUpdate discriminator.
const (
	UpdateTypeAgentMessage      = "agent_message_chunk"
	UpdateTypeAgentThought      = "agent_thought_chunk"
	UpdateTypeToolCall          = "tool_call"
	UpdateTypeToolCallUpdate    = "tool_call_update"
	UpdateTypePlan              = "plan"
	UpdateTypePlanUpdate        = "plan_update" // Gemini CLI naming
	UpdateTypeAvailableCommands = "available_commands_update"
	UpdateTypeCurrentMode       = "current_mode_update"
	UpdateTypeConfigOption      = "config_option_update"
	UpdateTypeSessionInfo       = "session_info_update"
	UpdateTypeUsage             = "usage_update"
)

// rpcNotification is an outgoing JSON-RPC 2.0 message without an id.
type rpcNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcError is the error member of a JSON-RPC response.
type rpcError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func encodeNotification(method string, params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rpcNotification{JSONRPC: "2.0", Method: method, Params: raw})
}
