package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"session-tracker/internal/models"
	"session-tracker/internal/presence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeliverer struct {
	broadcasts []presence.Broadcast
}

func (d *recordingDeliverer) Deliver(bs ...presence.Broadcast) {
	d.broadcasts = append(d.broadcasts, bs...)
}

type memoryJournal struct {
	events []models.SessionEvent
	err    error
}

func (m *memoryJournal) SaveEvent(_ context.Context, ev models.SessionEvent) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryJournal) LoadRecentEvents(_ context.Context, sessionID models.SessionID, limit int) ([]models.SessionEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.SessionEvent
	for _, ev := range m.events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func newService(journal *memoryJournal) (*SessionService, *presence.Engine, *recordingDeliverer) {
	engine := presence.NewEngine(presence.DefaultConfig(), nil)
	d := &recordingDeliverer{}
	if journal == nil {
		return NewSessionService(engine, nil, d, time.Hour), engine, d
	}
	return NewSessionService(engine, journal, d, time.Hour), engine, d
}

func TestCreateSessionDefaults(t *testing.T) {
	svc, _, _ := newService(nil)

	state, err := svc.CreateSession(context.Background(), &models.CreateSessionRequest{
		Name:     "demo",
		Creator:  "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		MaxUsers: 4,
		IsPublic: true,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, models.SessionID("1"), state.ID)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", state.Metadata.Creator)
	assert.Equal(t, time.Hour.Milliseconds(), state.ExpiresAt-state.CreatedAt)
	assert.True(t, state.Active)
}

func TestCreateSessionPrefersAuthenticatedCreator(t *testing.T) {
	svc, _, _ := newService(nil)

	state, err := svc.CreateSession(context.Background(), &models.CreateSessionRequest{
		Name: "demo", Creator: "mallory", MaxUsers: 2, TTL: 60,
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", state.Metadata.Creator)
	assert.Equal(t, int64(60_000), state.ExpiresAt-state.CreatedAt)
}

func TestCreateSessionRequiresCreator(t *testing.T) {
	svc, _, _ := newService(nil)

	_, err := svc.CreateSession(context.Background(), &models.CreateSessionRequest{Name: "demo", MaxUsers: 2}, "")
	assert.ErrorIs(t, err, presence.ErrInvalidArgument)
	assert.Empty(t, svc.ListSessions(context.Background(), true))
}

func TestListSessionsFiltersPrivateAndClosed(t *testing.T) {
	svc, _, _ := newService(nil)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, &models.CreateSessionRequest{Name: "open", Creator: "alice", MaxUsers: 2, IsPublic: true}, "")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, &models.CreateSessionRequest{Name: "hidden", Creator: "alice", MaxUsers: 2}, "")
	require.NoError(t, err)
	closed, err := svc.CreateSession(ctx, &models.CreateSessionRequest{Name: "closed", Creator: "alice", MaxUsers: 2, IsPublic: true}, "")
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateSession(ctx, closed.ID, "alice"))

	public := svc.ListSessions(ctx, false)
	require.Len(t, public, 1)
	assert.Equal(t, "open", public[0].Metadata.Name)
	assert.Len(t, svc.ListSessions(ctx, true), 3)
}

func TestDeactivateSessionDeliversEvictions(t *testing.T) {
	svc, engine, d := newService(nil)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, &models.CreateSessionRequest{Name: "demo", Creator: "alice", MaxUsers: 3}, "")
	require.NoError(t, err)
	_, err = engine.Join(state.ID, "bob", models.RoleUser, "", time.Now())
	require.NoError(t, err)
	_, err = engine.Join(state.ID, "carol", models.RoleUser, "", time.Now())
	require.NoError(t, err)

	err = svc.DeactivateSession(ctx, state.ID, "bob")
	assert.ErrorIs(t, err, presence.ErrForbidden)
	assert.Empty(t, d.broadcasts)

	require.NoError(t, svc.DeactivateSession(ctx, state.ID, "alice"))
	require.Len(t, d.broadcasts, 2)
	for _, b := range d.broadcasts {
		assert.Equal(t, models.MessageTypeUserLeft, b.Message.Type)
	}

	got, err := svc.GetSession(ctx, state.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 0, got.UserCount)
}

func TestDeactivateUnknownSession(t *testing.T) {
	svc, _, _ := newService(nil)
	err := svc.DeactivateSession(context.Background(), "42", "alice")
	assert.ErrorIs(t, err, presence.ErrNotFound)
}

func TestSessionEvents(t *testing.T) {
	svc, _, _ := newService(nil)
	_, err := svc.SessionEvents(context.Background(), "1", 10)
	assert.ErrorIs(t, err, ErrJournalDisabled)

	journal := &memoryJournal{events: []models.SessionEvent{
		{Type: models.EventSessionCreated, SessionID: "1"},
		{Type: models.EventUserJoined, SessionID: "1", User: "alice"},
		{Type: models.EventUserJoined, SessionID: "2", User: "bob"},
	}}
	svc, _, _ = newService(journal)

	events, err := svc.SessionEvents(context.Background(), "1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventUserJoined, events[1].Type)

	events, err = svc.SessionEvents(context.Background(), "9", 10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	journal.err = errors.New("connection refused")
	_, err = svc.SessionEvents(context.Background(), "1", 10)
	assert.ErrorContains(t, err, "connection refused")
}
