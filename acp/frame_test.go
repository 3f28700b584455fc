package acp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantKind   FrameKind
		wantType   string
		wantSID    string
		wantReason string
		wantErr    bool
	}{
		{
			name:     "message chunk",
			line:     `{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"s1","update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"hi"}}}}`,
			wantKind: FrameUpdate,
			wantType: UpdateTypeAgentMessage,
			wantSID:  "s1",
		},
		{
			name:     "tool call",
			line:     `{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"s1","update":{"sessionUpdate":"tool_call","toolCallId":"read_file-1","title":"Read main.go","status":"pending"}}}`,
			wantKind: FrameUpdate,
			wantType: UpdateTypeToolCall,
			wantSID:  "s1",
		},
		{
			name:       "prompt result",
			line:       `{"jsonrpc":"2.0","id":3,"result":{"stopReason":"end_turn"}}`,
			wantKind:   FramePromptResult,
			wantReason: "end_turn",
		},
		{
			name:     "prompt error",
			line:     `{"jsonrpc":"2.0","id":3,"error":{"code":-32603,"message":"boom"}}`,
			wantKind: FramePromptError,
		},
		{
			name:     "result without stop reason",
			line:     `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":1}}`,
			wantKind: FrameUnknown,
		},
		{
			name:     "non-object result",
			line:     `{"jsonrpc":"2.0","id":1,"result":null}`,
			wantKind: FrameUnknown,
		},
		{
			name:     "agent request",
			line:     `{"jsonrpc":"2.0","id":9,"method":"session/request_permission","params":{}}`,
			wantKind: FrameUnknown,
		},
		{
			name:     "malformed json",
			line:     `{"jsonrpc":`,
			wantKind: FrameUnknown,
			wantErr:  true,
		},
		{
			name:     "bad update params",
			line:     `{"jsonrpc":"2.0","method":"session/update","params":"nope"}`,
			wantKind: FrameUnknown,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame([]byte(tt.line))
			if tt.wantErr {
				var perr *ProtocolError
				require.ErrorAs(t, err, &perr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantKind, frame.Kind)
			assert.Equal(t, tt.line, string(frame.Raw))
			assert.Equal(t, tt.wantSID, frame.SessionID)
			assert.Equal(t, tt.wantReason, frame.StopReason)
			if tt.wantType != "" {
				require.NotNil(t, frame.Update)
				assert.Equal(t, tt.wantType, frame.Update.Type)
			}
		})
	}
}

func TestParseFrame_Empty(t *testing.T) {
	frame, err := ParseFrame([]byte("  \n"))
	assert.True(t, errors.Is(err, ErrEmptyFrame))
	assert.Equal(t, FrameUnknown, frame.Kind)
}

func TestParseFrame_PromptErrorCarriesRPCError(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":500,"message":"stream ended"}}`))
	require.NoError(t, err)
	require.NotNil(t, frame.Err)
	assert.Equal(t, 500, frame.Err.Code)
	assert.Equal(t, "agent error 500: stream ended", frame.Err.Error())
	assert.True(t, frame.IsTerminal())
}

func TestSessionUpdate_ContentHelpers(t *testing.T) {
	t.Run("text block", func(t *testing.T) {
		u := SessionUpdate{Content: json.RawMessage(`{"type":"text","text":"hello"}`)}
		text, ok := u.TextContent()
		assert.True(t, ok)
		assert.Equal(t, "hello", text)
	})

	t.Run("image block is not text", func(t *testing.T) {
		u := SessionUpdate{Content: json.RawMessage(`{"type":"image","data":"AA=="}`)}
		_, ok := u.TextContent()
		assert.False(t, ok)
	})

	t.Run("tool content array", func(t *testing.T) {
		u := SessionUpdate{Content: json.RawMessage(`[{"type":"content","content":{"type":"text","text":"ok"}},{"type":"diff","path":"a.go"}]`)}
		assert.Equal(t, "ok\ndiff a.go", u.ToolText())
		_, ok := u.TextContent()
		assert.False(t, ok)
	})

	t.Run("legacy plan shape", func(t *testing.T) {
		u := SessionUpdate{Plan: &Plan{Entries: []PlanEntry{{Title: "step"}}}}
		require.Len(t, u.PlanEntries(), 1)
		assert.Equal(t, "step", u.PlanEntries()[0].Label())
	})
}

func TestCancelWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCancelWriter(&buf)

	require.NoError(t, cw.Cancel(context.Background(), "sess-1", "abort"))

	var notif rpcNotification
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &notif))
	assert.Equal(t, MethodSessionCancel, notif.Method)
	assert.JSONEq(t, `{"sessionId":"sess-1"}`, string(notif.Params))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, cw.Cancel(ctx, "sess-1", "abort"), context.Canceled)
}

func TestParseFrame_WrongTypedFieldsAreDropped(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"s1","update":{"sessionUpdate":"tool_call","toolCallId":"t1","title":42,"status":"pending","locations":"bogus","used":"abc"}}}`
	frame, err := ParseFrame([]byte(line))
	require.NoError(t, err)
	require.Equal(t, FrameUpdate, frame.Kind)
	assert.Equal(t, "s1", frame.SessionID)
	assert.Equal(t, "tool_call", frame.Update.Type)
	assert.Equal(t, "t1", frame.Update.ToolCallID)
	assert.Equal(t, "pending", frame.Update.Status)
	assert.Empty(t, frame.Update.Title)
	assert.Nil(t, frame.Update.Locations)
	assert.Nil(t, frame.Update.Used)
	assert.Equal(t, []string{"locations", "title", "used"}, frame.Update.Malformed)
}

func TestParseFrame_NonStringSessionID(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":7,"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"hi"}}}}`
	frame, err := ParseFrame([]byte(line))
	require.NoError(t, err)
	require.Equal(t, FrameUpdate, frame.Kind)
	assert.Empty(t, frame.SessionID)
	text, ok := frame.Update.TextContent()
	assert.True(t, ok)
	assert.Equal(t, "hi", text)
}

func TestParseFrame_NonObjectUpdate(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"s1","update":[1,2]}}`
	frame, err := ParseFrame([]byte(line))
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, FrameUnknown, frame.Kind)
	assert.Equal(t, line, string(frame.Raw))
}
