package models

import (
	"bytes"
	"encoding/json"
)

type MessageType string

// Inbound message types.
const (
	MessageTypeJoinSession     MessageType = "join_session"
	MessageTypeLeaveSession    MessageType = "leave_session"
	MessageTypeUserActivity    MessageType = "user_activity"
	MessageTypeExecuteCommand  MessageType = "execute_command"
	MessageTypeGetSessionState MessageType = "get_session_state"
	MessageTypePing            MessageType = "ping"
)

// Outbound message types.
const (
	MessageTypeConnected       MessageType = "connected"
	MessageTypeJoinedSession   MessageType = "joined_session"
	MessageTypeSessionState    MessageType = "session_state"
	MessageTypePong            MessageType = "pong"
	MessageTypeUserJoined      MessageType = "user_joined"
	MessageTypeUserLeft        MessageType = "user_left"
	MessageTypeCommandExecuted MessageType = "command_executed"
)

type InboundMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SessionPayload carries every field an inbound message may use. Field
// names are part of the client wire contract.
type SessionPayload struct {
	SessionID   SessionID       `json:"sessionId"`
	UserAddress string          `json:"userAddress"`
	Role        string          `json:"role"`
	Activity    *Activity       `json:"activity,omitempty"`
	Command     string          `json:"command"`
	Output      json.RawMessage `json:"output,omitempty"`
}

// OutputText returns the command output as text. A non-string output is
// kept as its compact JSON encoding.
func (p SessionPayload) OutputText() string {
	raw := bytes.TrimSpace(p.Output)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

type OutboundMessage struct {
	Type         MessageType `json:"type,omitempty"`
	Data         any         `json:"data,omitempty"`
	SessionID    SessionID   `json:"sessionId,omitempty"`
	ConnectionID string      `json:"connectionId,omitempty"`
	Timestamp    int64       `json:"timestamp,omitempty"`
	Error        string      `json:"error,omitempty"`
}

type UserJoinedData struct {
	User string `json:"user"`
	Role Role   `json:"role"`
}

type UserLeftData struct {
	User   string `json:"user"`
	Reason string `json:"reason,omitempty"`
}

type UserActivityData struct {
	User      string    `json:"user"`
	Activity  *Activity `json:"activity"`
	Timestamp int64     `json:"timestamp"`
}
