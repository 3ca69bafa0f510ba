package presence

import (
	"fmt"
	"sync"
	"time"

	"session-tracker/internal/models"
)

// Reasons attached to user_left events that were not caused by an
// explicit leave_session message.
const (
	ReasonTimeout        = "timeout"
	ReasonDisconnected   = "disconnected"
	ReasonReplaced       = "replaced"
	ReasonSessionExpired = "session_expired"
	ReasonSessionClosed  = "session_closed"
)

type Config struct {
	SessionTimeout     time.Duration
	MaxUsersPerSession int
	HistorySize        int
	EventLogSize       int
}

func DefaultConfig() Config {
	return Config{
		SessionTimeout:     5 * time.Minute,
		MaxUsersPerSession: 100,
		HistorySize:        100,
		EventLogSize:       1000,
	}
}

// Publisher receives every session event after it is committed. It is
// called with the engine lock held and must not block.
type Publisher interface {
	Publish(ev models.SessionEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.SessionEvent) {}

// Broadcast is a committed event together with the channels it must be
// written to. Targets is a snapshot; writing to it needs no engine lock.
type Broadcast struct {
	SessionID models.SessionID
	Message   models.OutboundMessage
	Targets   []Channel
}

// Engine owns the registries and serializes every state transition
// behind one mutex. Channel writes happen outside the lock; the only work
// done under it besides state changes is Publish.
type Engine struct {
	mu           sync.Mutex
	cfg          Config
	sessions     *SessionRegistry
	participants *ParticipantRegistry
	connections  *ConnectionDirectory
	publisher    Publisher
}

func NewEngine(cfg Config, publisher Publisher) *Engine {
	def := DefaultConfig()
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = def.SessionTimeout
	}
	if cfg.MaxUsersPerSession <= 0 {
		cfg.MaxUsersPerSession = def.MaxUsersPerSession
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.EventLogSize <= 0 {
		cfg.EventLogSize = def.EventLogSize
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}

	sessions := NewSessionRegistry(cfg.MaxUsersPerSession, cfg.EventLogSize)
	return &Engine{
		cfg:          cfg,
		sessions:     sessions,
		participants: NewParticipantRegistry(sessions, cfg.HistorySize),
		connections:  NewConnectionDirectory(),
		publisher:    publisher,
	}
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) CreateSession(p CreateSessionParams, now time.Time) (models.SessionID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.sessions.Create(p, now)
	if err != nil {
		return "", err
	}
	e.record(s, models.SessionEvent{
		Type:      models.EventSessionCreated,
		SessionID: s.ID,
		User:      s.Metadata.Creator,
		Timestamp: models.Millis(now),
	})
	return s.ID, nil
}

// Connect registers a freshly opened channel.
func (e *Engine) Connect(connectionID string, ch Channel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connections.Register(connectionID, ch)
}

// Disconnect unregisters a closed channel and drives its bound participant,
// if any, through leave.
func (e *Engine) Disconnect(connectionID string, now time.Time) []Broadcast {
	e.mu.Lock()
	defer e.mu.Unlock()

	participantID, bound := e.connections.Unregister(connectionID)
	if !bound {
		return nil
	}
	p, err := e.participants.Get(participantID)
	if err != nil || !p.Active {
		return nil
	}
	if b, ok := e.leaveLocked(p.SessionID, participantID, now, ReasonDisconnected, true); ok {
		return []Broadcast{b}
	}
	return nil
}

// Join adds participantID to the session and binds it to connectionID.
// An empty connectionID joins without a live channel.
func (e *Engine) Join(sessionID models.SessionID, participantID string, role models.Role, connectionID string, now time.Time) ([]Broadcast, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if connectionID != "" {
		if _, err := e.connections.Lookup(connectionID); err != nil {
			return nil, err
		}
	}
	if _, err := e.participants.checkJoin(sessionID, participantID); err != nil {
		return nil, err
	}

	var out []Broadcast
	if connectionID != "" {
		if prev, ok := e.connections.BoundParticipant(connectionID); ok && prev != participantID {
			if pp, err := e.participants.Get(prev); err == nil && pp.Active {
				if b, left := e.leaveLocked(pp.SessionID, prev, now, ReasonReplaced, true); left {
					out = append(out, b)
				}
			}
		}
	}

	p, err := e.participants.Upsert(sessionID, participantID, role, connectionID, now)
	if err != nil {
		return out, err
	}
	if connectionID != "" {
		if err := e.connections.Bind(connectionID, participantID); err != nil {
			return out, err
		}
	}

	e.sessions.TouchActivity(sessionID, now)
	s, _ := e.sessions.Get(sessionID)
	e.record(s, models.SessionEvent{
		Type:      models.EventUserJoined,
		SessionID: sessionID,
		User:      participantID,
		Role:      p.Role,
		Timestamp: models.Millis(now),
	})

	out = append(out, Broadcast{
		SessionID: sessionID,
		Message: models.OutboundMessage{
			Type:      models.MessageTypeUserJoined,
			Data:      models.UserJoinedData{User: participantID, Role: p.Role},
			SessionID: sessionID,
			Timestamp: models.Millis(now),
		},
		Targets: e.targetsLocked(s, participantID),
	})
	return out, nil
}

// Leave reports false, with no event, when the participant was not an
// active member of the session.
func (e *Engine) Leave(sessionID models.SessionID, participantID string, now time.Time) (Broadcast, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaveLocked(sessionID, participantID, now, "", true)
}

func (e *Engine) leaveLocked(sessionID models.SessionID, participantID string, now time.Time, reason string, touch bool) (Broadcast, bool) {
	if !e.participants.Remove(sessionID, participantID, now) {
		return Broadcast{}, false
	}
	e.connections.Unbind(participantID)
	if touch {
		e.sessions.TouchActivity(sessionID, now)
	}

	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return Broadcast{}, false
	}
	e.record(s, models.SessionEvent{
		Type:      models.EventUserLeft,
		SessionID: sessionID,
		User:      participantID,
		Reason:    reason,
		Timestamp: models.Millis(now),
	})
	return Broadcast{
		SessionID: sessionID,
		Message: models.OutboundMessage{
			Type:      models.MessageTypeUserLeft,
			Data:      models.UserLeftData{User: participantID, Reason: reason},
			SessionID: sessionID,
			Timestamp: models.Millis(now),
		},
		Targets: e.targetsLocked(s, ""),
	}, true
}

// Activity merges a participant update. The broadcast excludes the
// originating participant.
func (e *Engine) Activity(participantID string, activity *models.Activity, now time.Time) (Broadcast, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.participants.RecordActivity(participantID, activity, now)
	if err != nil {
		return Broadcast{}, err
	}
	e.sessions.TouchActivity(p.SessionID, now)
	s, err := e.sessions.Get(p.SessionID)
	if err != nil {
		return Broadcast{}, err
	}
	return Broadcast{
		SessionID: s.ID,
		Message: models.OutboundMessage{
			Type: models.MessageTypeUserActivity,
			Data: models.UserActivityData{
				User:      participantID,
				Activity:  activity,
				Timestamp: models.Millis(now),
			},
			SessionID: s.ID,
			Timestamp: models.Millis(now),
		},
		Targets: e.targetsLocked(s, participantID),
	}, nil
}

// Command records a terminal command. The broadcast includes the origin.
func (e *Engine) Command(participantID, command, output string, now time.Time) (Broadcast, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, rec, err := e.participants.RecordCommand(participantID, command, output, now)
	if err != nil {
		return Broadcast{}, err
	}
	s, err := e.sessions.Get(p.SessionID)
	if err != nil {
		return Broadcast{}, err
	}
	e.sessions.TouchActivity(s.ID, now)

	ev := models.SessionEvent{
		Type:      models.EventCommandExecuted,
		SessionID: s.ID,
		User:      participantID,
		Command:   rec.Command,
		Output:    rec.Output,
		Directory: p.CurrentDirectory,
		Timestamp: rec.Timestamp,
	}
	e.record(s, ev)
	return Broadcast{
		SessionID: s.ID,
		Message: models.OutboundMessage{
			Type:      models.MessageTypeCommandExecuted,
			Data:      ev,
			SessionID: s.ID,
			Timestamp: rec.Timestamp,
		},
		Targets: e.targetsLocked(s, ""),
	}, nil
}

// Sweep expires idle participants, then sessions that are past their TTL or
// empty and idle. Forced leaves do not refresh session activity.
func (e *Engine) Sweep(now time.Time) []Broadcast {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Broadcast
	timeout := e.cfg.SessionTimeout

	for _, p := range e.participants.Active() {
		if now.Sub(p.LastSeen) <= timeout {
			continue
		}
		sessionID := p.SessionID
		e.publisher.Publish(models.SessionEvent{
			Type:      models.EventUserTimedOut,
			SessionID: sessionID,
			User:      p.ID,
			Timestamp: models.Millis(now),
		})
		if b, ok := e.leaveLocked(sessionID, p.ID, now, ReasonTimeout, false); ok {
			out = append(out, b)
		}
	}

	for _, s := range e.sessions.All() {
		if !s.Active {
			continue
		}
		switch {
		case !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt):
			out = append(out, e.evictLocked(s, now, ReasonSessionExpired)...)
			e.expireLocked(s, now, "ttl")
		case s.MemberCount() == 0 && now.Sub(s.LastActivity) > timeout:
			e.expireLocked(s, now, "idle")
		}
	}
	return out
}

// Deactivate closes a session on behalf of its creator or an owner/admin
// member. Members are evicted first. Deactivating an inactive session is a
// no-op.
func (e *Engine) Deactivate(sessionID models.SessionID, requester string, now time.Time) ([]Broadcast, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, nil
	}
	if !e.canManageLocked(s, requester) {
		return nil, fmt.Errorf("%w: %s may not close session %s", ErrForbidden, requester, sessionID)
	}

	out := e.evictLocked(s, now, ReasonSessionClosed)
	e.expireLocked(s, now, "closed")
	return out, nil
}

func (e *Engine) canManageLocked(s *Session, requester string) bool {
	if requester == "" {
		return false
	}
	if requester == s.Metadata.Creator {
		return true
	}
	p, err := e.participants.Get(requester)
	if err != nil {
		return false
	}
	return p.Active && p.SessionID == s.ID && p.Role.CanManage()
}

func (e *Engine) evictLocked(s *Session, now time.Time, reason string) []Broadcast {
	var out []Broadcast
	for _, member := range s.Members() {
		if b, ok := e.leaveLocked(s.ID, member, now, reason, false); ok {
			out = append(out, b)
		}
	}
	return out
}

func (e *Engine) expireLocked(s *Session, now time.Time, reason string) {
	e.record(s, models.SessionEvent{
		Type:      models.EventSessionExpired,
		SessionID: s.ID,
		Reason:    reason,
		Timestamp: models.Millis(now),
	})
	e.sessions.MarkInactive(s.ID)
}

// record appends ev to the session log and publishes it.
func (e *Engine) record(s *Session, ev models.SessionEvent) {
	if s != nil {
		s.appendEvent(ev)
	}
	e.publisher.Publish(ev)
}

func (e *Engine) targetsLocked(s *Session, exclude string) []Channel {
	if s == nil {
		return nil
	}
	targets := make([]Channel, 0, s.MemberCount())
	for _, member := range s.members {
		if member == exclude {
			continue
		}
		if ch, err := e.connections.ChannelFor(member); err == nil {
			targets = append(targets, ch)
		}
	}
	return targets
}

// SessionState returns a read-only snapshot of the session and its live
// members.
func (e *Engine) SessionState(sessionID models.SessionID) (*models.SessionState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	users := make([]models.ParticipantState, 0, s.MemberCount())
	for _, member := range s.members {
		if p, err := e.participants.Get(member); err == nil {
			users = append(users, p.state())
		}
	}
	return &models.SessionState{
		ID:           s.ID,
		Metadata:     s.Metadata,
		CreatedAt:    models.Millis(s.CreatedAt),
		LastActivity: models.Millis(s.LastActivity),
		ExpiresAt:    models.Millis(s.ExpiresAt),
		Active:       s.Active,
		Events:       s.Events(),
		Users:        users,
		UserCount:    len(users),
	}, nil
}

func (e *Engine) ListSessions(publicOnly, activeOnly bool) []models.SessionSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []models.SessionSummary
	for _, s := range e.sessions.All() {
		if publicOnly && !s.Metadata.IsPublic {
			continue
		}
		if activeOnly && !s.Active {
			continue
		}
		out = append(out, models.SessionSummary{
			ID:        s.ID,
			Metadata:  s.Metadata,
			CreatedAt: models.Millis(s.CreatedAt),
			Active:    s.Active,
			UserCount: s.MemberCount(),
		})
	}
	return out
}

// Participant returns the participant's state and command history.
func (e *Engine) Participant(participantID string) (models.ParticipantState, []models.CommandRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.participants.Get(participantID)
	if err != nil {
		return models.ParticipantState{}, nil, err
	}
	return p.state(), p.History(), nil
}

func (e *Engine) Stats() models.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	activeSessions := 0
	for _, s := range e.sessions.All() {
		if s.Active {
			activeSessions++
		}
	}
	return models.Stats{
		ActiveSessions:   activeSessions,
		ActiveUsers:      len(e.participants.Active()),
		TotalConnections: e.connections.Len(),
		TotalSessions:    e.sessions.Len(),
		TotalUsers:       e.participants.Len(),
	}
}

// Channels returns a snapshot of every registered channel.
func (e *Engine) Channels() []Channel {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Channel, 0, e.connections.Len())
	for _, id := range e.connections.IDs() {
		if ch, err := e.connections.Lookup(id); err == nil {
			out = append(out, ch)
		}
	}
	return out
}
