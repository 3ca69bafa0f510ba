package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"session-tracker/internal/address"
	"session-tracker/internal/database"
	"session-tracker/internal/models"
	"session-tracker/internal/presence"
)

var ErrJournalDisabled = errors.New("event journal is not configured")

// Deliverer writes committed broadcasts to their target connections.
type Deliverer interface {
	Deliver(broadcasts ...presence.Broadcast)
}

type SessionService struct {
	engine     *presence.Engine
	journal    database.EventRepository
	deliverer  Deliverer
	defaultTTL time.Duration
}

// NewSessionService wires the REST surface to the engine. journal may be
// nil when no database is configured.
func NewSessionService(engine *presence.Engine, journal database.EventRepository, deliverer Deliverer, defaultTTL time.Duration) *SessionService {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &SessionService{
		engine:     engine,
		journal:    journal,
		deliverer:  deliverer,
		defaultTTL: defaultTTL,
	}
}

// CreateSession registers a new session. An authenticated creator takes
// precedence over the one named in the request.
func (s *SessionService) CreateSession(ctx context.Context, req *models.CreateSessionRequest, creator string) (*models.SessionState, error) {
	if creator == "" {
		creator = req.Creator
	}
	creator, err := address.Normalize(creator)
	if err != nil {
		return nil, fmt.Errorf("%w: creator: %v", presence.ErrInvalidArgument, err)
	}

	ttl := time.Duration(req.TTL) * time.Second
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	id, err := s.engine.CreateSession(presence.CreateSessionParams{
		Name:        req.Name,
		Description: req.Description,
		Creator:     creator,
		MaxUsers:    req.MaxUsers,
		IsPublic:    req.IsPublic,
		ContentRef:  req.ContentRef,
		TTL:         ttl,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	return s.engine.SessionState(id)
}

// ListSessions returns public active sessions, or every session when all
// is set.
func (s *SessionService) ListSessions(ctx context.Context, all bool) []models.SessionSummary {
	sessions := s.engine.ListSessions(!all, !all)
	if sessions == nil {
		return []models.SessionSummary{}
	}
	return sessions
}

func (s *SessionService) GetSession(ctx context.Context, id models.SessionID) (*models.SessionState, error) {
	return s.engine.SessionState(id)
}

// DeactivateSession closes the session and notifies its evicted members.
func (s *SessionService) DeactivateSession(ctx context.Context, id models.SessionID, requester string) error {
	requester, err := address.Normalize(requester)
	if err != nil {
		return fmt.Errorf("%w: requester: %v", presence.ErrForbidden, err)
	}
	broadcasts, err := s.engine.Deactivate(id, requester, time.Now())
	if s.deliverer != nil {
		s.deliverer.Deliver(broadcasts...)
	}
	return err
}

// SessionEvents reads the journal, which outlives the in-memory event log.
func (s *SessionService) SessionEvents(ctx context.Context, id models.SessionID, limit int) ([]models.SessionEvent, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	events, err := s.journal.LoadRecentEvents(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if events == nil {
		events = []models.SessionEvent{}
	}
	return events, nil
}

func (s *SessionService) Stats() models.Stats {
	return s.engine.Stats()
}
