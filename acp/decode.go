package acp

import (
	"encoding/json"
	"sort"
)

// UnmarshalJSON decodes each field on its own. A field with the wrong JSON
// type is left at its zero value and its name is added to Malformed, so one
// bad optional field never costs the rest of the update.
func (u *SessionUpdate) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*u = SessionUpdate{}
	for name, raw := range fields {
		var ok bool
		switch name {
		case "sessionUpdate":
			ok = decodeField(raw, &u.Type)
		case "content":
			u.Content, ok = raw, true
		case "toolCallId":
			ok = decodeField(raw, &u.ToolCallID)
		case "toolName":
			ok = decodeField(raw, &u.ToolName)
		case "kind":
			ok = decodeField(raw, &u.Kind)
		case "status":
			ok = decodeField(raw, &u.Status)
		case "locations":
			ok = decodeField(raw, &u.Locations)
		case "title":
			ok = decodeField(raw, &u.Title)
		case "entries":
			ok = decodeField(raw, &u.Entries)
		case "plan":
			ok = decodeField(raw, &u.Plan)
		case "availableCommands":
			ok = decodeField(raw, &u.AvailableCommands)
		case "currentModeId":
			ok = decodeField(raw, &u.CurrentModeID)
		case "configOptions":
			ok = decodeField(raw, &u.ConfigOptions)
		case "used":
			ok = decodeField(raw, &u.Used)
		case "size":
			ok = decodeField(raw, &u.Size)
		default:
			continue
		}
		if !ok {
			u.Malformed = append(u.Malformed, name)
		}
	}
	sort.Strings(u.Malformed)
	return nil
}

// decodeField unmarshals raw into a fresh value and stores it in dst only on
// success, so a failed decode never leaves a half-filled field behind.
func decodeField[T any](raw json.RawMessage, dst *T) bool {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

// notificationParams is the shape of session/update params before the
// update itself is decoded.
type notificationParams struct {
	SessionID json.RawMessage `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}

// decodeNotification decodes session/update params. Only a missing or
// non-object update is an error; a malformed sessionId decodes as "".
func decodeNotification(params json.RawMessage) (SessionNotification, error) {
	var p notificationParams
	if err := json.Unmarshal(params, &p); err != nil {
		return SessionNotification{}, err
	}
	var n SessionNotification
	if len(p.SessionID) > 0 {
		decodeField(p.SessionID, &n.SessionID)
	}
	if err := json.Unmarshal(p.Update, &n.Update); err != nil {
		return SessionNotification{}, err
	}
	return n, nil
}
