package models

type EventType string

const (
	EventSessionCreated  EventType = "session_created"
	EventSessionExpired  EventType = "session_expired"
	EventUserJoined      EventType = "user_joined"
	EventUserLeft        EventType = "user_left"
	EventUserTimedOut    EventType = "user_timed_out"
	EventCommandExecuted EventType = "command_executed"
)

// SessionEvent is one entry of a session's event log. The same value is
// published on the process event bus.
type SessionEvent struct {
	Type      EventType `json:"type"`
	SessionID SessionID `json:"sessionId"`
	User      string    `json:"user,omitempty"`
	Role      Role      `json:"role,omitempty"`
	Command   string    `json:"command,omitempty"`
	Output    string    `json:"output,omitempty"`
	Directory string    `json:"directory,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
