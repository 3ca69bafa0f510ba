package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleUser     Role = "user"
	RoleReadOnly Role = "readonly"
)

// ParseRole accepts the closed set of participant roles. An empty string
// maps to RoleUser.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleUser:
		return RoleUser, true
	case RoleOwner:
		return RoleOwner, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleReadOnly:
		return RoleReadOnly, true
	}
	return "", false
}

// CanManage reports whether the role may deactivate a session.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// SessionID is an opaque session key. Clients send it either as a JSON
// number or a JSON string.
type SessionID string

func (id *SessionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SessionID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("sessionId must be a string or number: %w", err)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("sessionId must be a non-negative integer: %w", err)
	}
	*id = SessionID(n.String())
	return nil
}

func (id SessionID) String() string { return string(id) }

type SessionMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Creator     string `json:"creator"`
	MaxUsers    int    `json:"maxUsers"`
	IsPublic    bool   `json:"isPublic"`
	ContentRef  string `json:"contentRef"`
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CommandRecord struct {
	Command   string `json:"command"`
	Output    string `json:"output"`
	Timestamp int64  `json:"timestamp"`
}

// TerminalStatePatch is the tracked part of a terminal state update. Only
// the last command line is merged into participant state.
type TerminalStatePatch struct {
	Command *string `json:"command,omitempty"`
}

// Activity is a partial participant update. Nil fields are left unchanged.
// An update decoded from a client keeps its original JSON and is forwarded
// to other members exactly as sent.
type Activity struct {
	Cursor           *Cursor
	CurrentDirectory *string
	TerminalState    *TerminalStatePatch

	raw json.RawMessage
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("activity must be an object: %w", err)
	}
	*a = Activity{raw: append(json.RawMessage(nil), data...)}

	// Fields that do not fit the tracked shape are forwarded, not merged.
	var cursor Cursor
	if decodeField(fields, "cursor", &cursor) {
		a.Cursor = &cursor
	}
	var dir string
	if decodeField(fields, "currentDirectory", &dir) {
		a.CurrentDirectory = &dir
	}
	var terminal TerminalStatePatch
	if decodeField(fields, "terminalState", &terminal) {
		a.TerminalState = &terminal
	}
	return nil
}

func (a Activity) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	return json.Marshal(struct {
		Cursor           *Cursor             `json:"cursor,omitempty"`
		CurrentDirectory *string             `json:"currentDirectory,omitempty"`
		TerminalState    *TerminalStatePatch `json:"terminalState,omitempty"`
	}{a.Cursor, a.CurrentDirectory, a.TerminalState})
}

func (a *Activity) IsEmpty() bool {
	return a == nil || (a.Cursor == nil && a.CurrentDirectory == nil && a.TerminalState == nil)
}

func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	v, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

type ParticipantState struct {
	Address          string `json:"address"`
	Role             Role   `json:"role"`
	JoinedAt         int64  `json:"joinedAt"`
	LastSeen         int64  `json:"lastSeen"`
	Active           bool   `json:"active"`
	Cursor           Cursor `json:"cursor"`
	CurrentDirectory string `json:"currentDirectory"`
	LastCommand      string `json:"lastCommand"`
}

type SessionState struct {
	ID           SessionID          `json:"id"`
	Metadata     SessionMetadata    `json:"metadata"`
	CreatedAt    int64              `json:"createdAt"`
	LastActivity int64              `json:"lastActivity"`
	ExpiresAt    int64              `json:"expiresAt"`
	Active       bool               `json:"active"`
	Events       []SessionEvent     `json:"events"`
	Users        []ParticipantState `json:"users"`
	UserCount    int                `json:"userCount"`
}

type SessionSummary struct {
	ID        SessionID       `json:"id"`
	Metadata  SessionMetadata `json:"metadata"`
	CreatedAt int64           `json:"createdAt"`
	Active    bool            `json:"active"`
	UserCount int             `json:"userCount"`
}

type Stats struct {
	ActiveSessions   int `json:"activeSessions"`
	ActiveUsers      int `json:"activeUsers"`
	TotalConnections int `json:"totalConnections"`
	TotalSessions    int `json:"totalSessions"`
	TotalUsers       int `json:"totalUsers"`
}

type CreateSessionRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
	Creator     string `json:"creator"`
	MaxUsers    int    `json:"maxUsers" validate:"required,min=1"`
	IsPublic    bool   `json:"isPublic"`
	ContentRef  string `json:"contentRef" validate:"max=512"`
	// TTL in seconds.
	TTL int64 `json:"ttl" validate:"omitempty,min=1"`
}

// Millis converts t to milliseconds since the epoch. The zero time maps to 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
