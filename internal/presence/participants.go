package presence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"session-tracker/internal/models"
)

const defaultDirectory = "/home/user"

// Participant is the registry-owned state of one identified actor. The
// record survives leave so last-seen data stays queryable.
type Participant struct {
	ID               string
	Role             models.Role
	SessionID        models.SessionID
	ConnectionID     string
	JoinedAt         time.Time
	LastSeen         time.Time
	Active           bool
	Cursor           models.Cursor
	CurrentDirectory string
	LastCommand      string

	history *commandHistory
}

// History returns the participant's recent commands, oldest first.
func (p *Participant) History() []models.CommandRecord {
	return p.history.records()
}

func (p *Participant) state() models.ParticipantState {
	return models.ParticipantState{
		Address:          p.ID,
		Role:             p.Role,
		JoinedAt:         models.Millis(p.JoinedAt),
		LastSeen:         models.Millis(p.LastSeen),
		Active:           p.Active,
		Cursor:           p.Cursor,
		CurrentDirectory: p.CurrentDirectory,
		LastCommand:      p.LastCommand,
	}
}

type ParticipantRegistry struct {
	participants map[string]*Participant
	sessions     *SessionRegistry
	historySize  int
}

func NewParticipantRegistry(sessions *SessionRegistry, historySize int) *ParticipantRegistry {
	return &ParticipantRegistry{
		participants: make(map[string]*Participant),
		sessions:     sessions,
		historySize:  historySize,
	}
}

// checkJoin validates a join without mutating anything.
func (r *ParticipantRegistry) checkJoin(sessionID models.SessionID, participantID string) (*Session, error) {
	if strings.TrimSpace(participantID) == "" {
		return nil, fmt.Errorf("%w: participant id is required", ErrInvalidArgument)
	}
	s, err := r.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, fmt.Errorf("%w: session %s is no longer active", ErrNotFound, sessionID)
	}

	p := r.participants[participantID]
	if p != nil && p.Active && p.SessionID != sessionID {
		return nil, fmt.Errorf("%w: %s is already active in session %s", ErrConflict, participantID, p.SessionID)
	}
	if s.HasMember(participantID) {
		return s, nil
	}
	if s.MemberCount() >= s.Metadata.MaxUsers {
		return nil, fmt.Errorf("%w: session %s has %d of %d users", ErrFull, sessionID, s.MemberCount(), s.Metadata.MaxUsers)
	}
	return s, nil
}

// Upsert creates or reactivates the participant and adds it to the
// session's member set.
func (r *ParticipantRegistry) Upsert(sessionID models.SessionID, participantID string, role models.Role, connectionID string, now time.Time) (*Participant, error) {
	s, err := r.checkJoin(sessionID, participantID)
	if err != nil {
		return nil, err
	}

	p, ok := r.participants[participantID]
	if !ok {
		p = &Participant{
			ID:               participantID,
			CurrentDirectory: defaultDirectory,
			history:          newCommandHistory(r.historySize),
		}
		r.participants[participantID] = p
	}
	p.Role = role
	p.SessionID = sessionID
	p.ConnectionID = connectionID
	p.JoinedAt = now
	p.LastSeen = now
	p.Active = true
	s.addMember(participantID)
	return p, nil
}

// Remove reports whether the participant was an active member of the
// session. LastSeen is set to the time of removal. Calling it again is a
// no-op.
func (r *ParticipantRegistry) Remove(sessionID models.SessionID, participantID string, now time.Time) bool {
	p, ok := r.participants[participantID]
	if !ok || !p.Active || p.SessionID != sessionID {
		return false
	}
	p.Active = false
	p.LastSeen = now
	p.SessionID = ""
	p.ConnectionID = ""
	if s, err := r.sessions.Get(sessionID); err == nil {
		s.removeMember(participantID)
	}
	return true
}

func (r *ParticipantRegistry) active(participantID string) (*Participant, error) {
	p, ok := r.participants[participantID]
	if !ok || !p.Active {
		return nil, fmt.Errorf("%w: no active participant %s", ErrNotFound, participantID)
	}
	return p, nil
}

func (r *ParticipantRegistry) RecordActivity(participantID string, activity *models.Activity, now time.Time) (*Participant, error) {
	p, err := r.active(participantID)
	if err != nil {
		return nil, err
	}
	if activity != nil {
		if activity.Cursor != nil {
			p.Cursor = *activity.Cursor
		}
		if activity.CurrentDirectory != nil {
			p.CurrentDirectory = *activity.CurrentDirectory
		}
		if activity.TerminalState != nil && activity.TerminalState.Command != nil {
			p.LastCommand = *activity.TerminalState.Command
		}
	}
	p.LastSeen = now
	return p, nil
}

func (r *ParticipantRegistry) RecordCommand(participantID, command, output string, now time.Time) (*Participant, models.CommandRecord, error) {
	p, err := r.active(participantID)
	if err != nil {
		return nil, models.CommandRecord{}, err
	}
	rec := models.CommandRecord{
		Command:   command,
		Output:    output,
		Timestamp: models.Millis(now),
	}
	p.history.push(rec)
	p.LastCommand = command
	p.LastSeen = now
	return p, rec, nil
}

func (r *ParticipantRegistry) Get(participantID string) (*Participant, error) {
	p, ok := r.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: participant %s", ErrNotFound, participantID)
	}
	return p, nil
}

// Active returns the active participants ordered by identifier.
func (r *ParticipantRegistry) Active() []*Participant {
	var out []*Participant
	for _, p := range r.participants {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *ParticipantRegistry) Len() int { return len(r.participants) }
