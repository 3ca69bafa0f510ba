package presence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"session-tracker/internal/models"
)

// Session is the registry-owned record of one collaborative session.
// Members holds participant identifiers in join order; the participant
// records themselves live in the ParticipantRegistry.
type Session struct {
	ID           models.SessionID
	Metadata     models.SessionMetadata
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	Active       bool

	events    []models.SessionEvent
	eventCap  int
	members   []string
	memberSet map[string]struct{}
}

func (s *Session) MemberCount() int { return len(s.members) }

func (s *Session) HasMember(participantID string) bool {
	_, ok := s.memberSet[participantID]
	return ok
}

// Members returns a copy of the member identifiers in join order.
func (s *Session) Members() []string {
	out := make([]string, len(s.members))
	copy(out, s.members)
	return out
}

// Events returns a copy of the session event log, oldest first.
func (s *Session) Events() []models.SessionEvent {
	out := make([]models.SessionEvent, len(s.events))
	copy(out, s.events)
	return out
}

// appendEvent drops the oldest entry when the log is at capacity. Inactive
// sessions accept no further events.
func (s *Session) appendEvent(ev models.SessionEvent) bool {
	if !s.Active {
		return false
	}
	if s.eventCap > 0 && len(s.events) >= s.eventCap {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, ev)
	return true
}

func (s *Session) addMember(participantID string) {
	if s.HasMember(participantID) {
		return
	}
	s.memberSet[participantID] = struct{}{}
	s.members = append(s.members, participantID)
}

func (s *Session) removeMember(participantID string) bool {
	if !s.HasMember(participantID) {
		return false
	}
	delete(s.memberSet, participantID)
	for i, m := range s.members {
		if m == participantID {
			s.members = append(s.members[:i], s.members[i+1:]...)
			break
		}
	}
	return true
}

type CreateSessionParams struct {
	Name        string
	Description string
	Creator     string
	MaxUsers    int
	IsPublic    bool
	ContentRef  string
	TTL         time.Duration
}

// SessionRegistry owns every Session record. Records are never removed,
// only marked inactive.
type SessionRegistry struct {
	sessions     map[models.SessionID]*Session
	nextID       uint64
	maxUsersCap  int
	eventLogSize int
}

func NewSessionRegistry(maxUsersCap, eventLogSize int) *SessionRegistry {
	return &SessionRegistry{
		sessions:     make(map[models.SessionID]*Session),
		maxUsersCap:  maxUsersCap,
		eventLogSize: eventLogSize,
	}
}

func (r *SessionRegistry) Create(p CreateSessionParams, now time.Time) (*Session, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: session name is required", ErrInvalidArgument)
	}
	if p.MaxUsers < 1 {
		return nil, fmt.Errorf("%w: maxUsers must be at least 1", ErrInvalidArgument)
	}
	if p.TTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidArgument)
	}

	maxUsers := p.MaxUsers
	if r.maxUsersCap > 0 && maxUsers > r.maxUsersCap {
		maxUsers = r.maxUsersCap
	}

	r.nextID++
	s := &Session{
		ID: models.SessionID(strconv.FormatUint(r.nextID, 10)),
		Metadata: models.SessionMetadata{
			Name:        name,
			Description: p.Description,
			Creator:     p.Creator,
			MaxUsers:    maxUsers,
			IsPublic:    p.IsPublic,
			ContentRef:  p.ContentRef,
		},
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(p.TTL),
		Active:       true,
		eventCap:     r.eventLogSize,
		memberSet:    make(map[string]struct{}),
	}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *SessionRegistry) Get(id models.SessionID) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return s, nil
}

// MarkInactive reports whether the call changed the session's state.
func (r *SessionRegistry) MarkInactive(id models.SessionID) bool {
	s, ok := r.sessions[id]
	if !ok || !s.Active {
		return false
	}
	s.Active = false
	return true
}

func (r *SessionRegistry) TouchActivity(id models.SessionID, now time.Time) {
	if s, ok := r.sessions[id]; ok {
		s.LastActivity = now
	}
}

// All returns every session ordered by identifier.
func (r *SessionRegistry) All() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.ParseUint(string(out[i].ID), 10, 64)
		b, errB := strconv.ParseUint(string(out[j].ID), 10, 64)
		if errA != nil || errB != nil {
			return out[i].ID < out[j].ID
		}
		return a < b
	})
	return out
}

func (r *SessionRegistry) Len() int { return len(r.sessions) }
