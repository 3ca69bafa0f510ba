package presence

import (
	"fmt"
	"testing"
	"time"

	"session-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryCreateValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]CreateSessionParams{
		"empty name":    {Name: "  ", MaxUsers: 1, TTL: time.Hour},
		"zero maxUsers": {Name: "x", MaxUsers: 0, TTL: time.Hour},
		"zero ttl":      {Name: "x", MaxUsers: 1, TTL: 0},
		"negative ttl":  {Name: "x", MaxUsers: 1, TTL: -time.Second},
	}
	for name, params := range cases {
		params := params
		t.Run(name, func(t *testing.T) {
			r := NewSessionRegistry(100, 10)
			_, err := r.Create(params, t0)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestSessionRegistryCreateAllocatesSequentialIDs(t *testing.T) {
	t.Parallel()

	r := NewSessionRegistry(100, 10)
	s1, err := r.Create(demoParams(2), t0)
	require.NoError(t, err)
	s2, err := r.Create(demoParams(2), t0)
	require.NoError(t, err)

	assert.Equal(t, models.SessionID("1"), s1.ID)
	assert.Equal(t, models.SessionID("2"), s2.ID)
	assert.True(t, s1.Active)
	assert.Equal(t, 0, s1.MemberCount())
	assert.Equal(t, t0.Add(time.Hour), s1.ExpiresAt)
}

func TestSessionRegistryClampsMaxUsers(t *testing.T) {
	t.Parallel()

	r := NewSessionRegistry(5, 10)
	s, err := r.Create(demoParams(50), t0)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Metadata.MaxUsers)
}

func TestSessionRegistryMarkInactiveIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewSessionRegistry(100, 10)
	s, err := r.Create(demoParams(2), t0)
	require.NoError(t, err)

	assert.True(t, r.MarkInactive(s.ID))
	assert.False(t, r.MarkInactive(s.ID))
	assert.False(t, r.MarkInactive("missing"))
	assert.False(t, s.Active)

	assert.False(t, s.appendEvent(models.SessionEvent{Type: models.EventUserJoined}))
	assert.Empty(t, s.Events())
}

func TestSessionEventLogIsBounded(t *testing.T) {
	t.Parallel()

	r := NewSessionRegistry(100, 3)
	s, err := r.Create(demoParams(2), t0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		s.appendEvent(models.SessionEvent{Type: models.EventCommandExecuted, Command: fmt.Sprint(i)})
	}
	events := s.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "2", events[0].Command)
	assert.Equal(t, "4", events[2].Command)
}

func TestSessionRegistryGetUnknown(t *testing.T) {
	t.Parallel()

	_, err := NewSessionRegistry(100, 10).Get("42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommandHistoryKeepsMostRecent(t *testing.T) {
	t.Parallel()

	h := newCommandHistory(3)
	_, ok := h.last()
	assert.False(t, ok)

	for i := 0; i < 7; i++ {
		h.push(models.CommandRecord{Command: fmt.Sprint(i)})
	}
	assert.Equal(t, 3, h.len())

	var got []string
	for _, rec := range h.records() {
		got = append(got, rec.Command)
	}
	assert.Equal(t, []string{"4", "5", "6"}, got)

	last, ok := h.last()
	require.True(t, ok)
	assert.Equal(t, "6", last.Command)
}

func newRegistries(t *testing.T, maxUsers int) (*SessionRegistry, *ParticipantRegistry, *Session) {
	t.Helper()
	sessions := NewSessionRegistry(100, 100)
	s, err := sessions.Create(demoParams(maxUsers), t0)
	require.NoError(t, err)
	return sessions, NewParticipantRegistry(sessions, 100), s
}

func TestParticipantUpsertCapacity(t *testing.T) {
	t.Parallel()

	_, participants, s := newRegistries(t, 2)

	_, err := participants.Upsert(s.ID, "alice", models.RoleOwner, "c1", t0)
	require.NoError(t, err)
	_, err = participants.Upsert(s.ID, "bob", models.RoleUser, "c2", t0)
	require.NoError(t, err)
	_, err = participants.Upsert(s.ID, "carol", models.RoleUser, "c3", t0)
	assert.ErrorIs(t, err, ErrFull)
	assert.Equal(t, 2, s.MemberCount())

	// Rejoining as an existing member does not count twice.
	p, err := participants.Upsert(s.ID, "bob", models.RoleAdmin, "c4", t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.Equal(t, "c4", p.ConnectionID)
	assert.Equal(t, 2, s.MemberCount())
}

func TestParticipantUpsertConflict(t *testing.T) {
	t.Parallel()

	sessions, participants, s1 := newRegistries(t, 5)
	s2, err := sessions.Create(demoParams(5), t0)
	require.NoError(t, err)

	_, err = participants.Upsert(s1.ID, "alice", models.RoleOwner, "c1", t0)
	require.NoError(t, err)

	_, err = participants.Upsert(s2.ID, "alice", models.RoleUser, "c1", t0)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, s2.MemberCount())

	require.True(t, participants.Remove(s1.ID, "alice", t0))
	_, err = participants.Upsert(s2.ID, "alice", models.RoleUser, "c1", t0)
	assert.NoError(t, err)
}

func TestParticipantUpsertRejectsUnknownOrInactiveSession(t *testing.T) {
	t.Parallel()

	sessions, participants, s := newRegistries(t, 5)

	_, err := participants.Upsert("99", "alice", models.RoleUser, "", t0)
	assert.ErrorIs(t, err, ErrNotFound)

	sessions.MarkInactive(s.ID)
	_, err = participants.Upsert(s.ID, "alice", models.RoleUser, "", t0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = participants.Upsert(s.ID, "", models.RoleUser, "", t0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParticipantRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	_, participants, s := newRegistries(t, 5)
	_, err := participants.Upsert(s.ID, "alice", models.RoleUser, "c1", t0)
	require.NoError(t, err)

	left := t0.Add(time.Minute)
	assert.True(t, participants.Remove(s.ID, "alice", left))
	assert.False(t, participants.Remove(s.ID, "alice", left.Add(time.Minute)))
	assert.False(t, participants.Remove(s.ID, "nobody", t0))

	p, err := participants.Get("alice")
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, left, p.LastSeen)
	assert.Empty(t, p.SessionID)
	assert.False(t, s.HasMember("alice"))
}

func TestParticipantRecordActivityMergesSuppliedFields(t *testing.T) {
	t.Parallel()

	_, participants, s := newRegistries(t, 5)
	_, err := participants.Upsert(s.ID, "alice", models.RoleUser, "c1", t0)
	require.NoError(t, err)

	_, err = participants.RecordActivity("ghost", &models.Activity{}, t0)
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := participants.RecordActivity("alice", &models.Activity{Cursor: &models.Cursor{X: 3, Y: 4}}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.Cursor{X: 3, Y: 4}, p.Cursor)
	assert.Equal(t, defaultDirectory, p.CurrentDirectory)
	assert.Equal(t, t0.Add(time.Second), p.LastSeen)

	dir := "/tmp"
	p, err = participants.RecordActivity("alice", &models.Activity{CurrentDirectory: &dir}, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.Cursor{X: 3, Y: 4}, p.Cursor)
	assert.Equal(t, "/tmp", p.CurrentDirectory)
}

func TestParticipantRecordCommandIsBounded(t *testing.T) {
	t.Parallel()

	sessions := NewSessionRegistry(100, 100)
	s, err := sessions.Create(demoParams(5), t0)
	require.NoError(t, err)
	participants := NewParticipantRegistry(sessions, 100)
	_, err = participants.Upsert(s.ID, "alice", models.RoleUser, "c1", t0)
	require.NoError(t, err)

	_, _, err = participants.RecordCommand("ghost", "ls", "", t0)
	assert.ErrorIs(t, err, ErrNotFound)

	for i := 0; i < 150; i++ {
		_, _, err := participants.RecordCommand("alice", fmt.Sprintf("cmd-%d", i), "", t0)
		require.NoError(t, err)
	}
	p, err := participants.Get("alice")
	require.NoError(t, err)
	history := p.History()
	require.Len(t, history, 100)
	assert.Equal(t, "cmd-50", history[0].Command)
	assert.Equal(t, "cmd-149", history[99].Command)
	assert.Equal(t, "cmd-149", p.LastCommand)
}

func TestConnectionDirectory(t *testing.T) {
	t.Parallel()

	d := NewConnectionDirectory()
	ch1, ch2 := &fakeChannel{}, &fakeChannel{}

	require.NoError(t, d.Register("c1", ch1))
	require.NoError(t, d.Register("c2", ch2))
	assert.ErrorIs(t, d.Register("c1", ch1), ErrConflict)
	assert.ErrorIs(t, d.Register("", ch1), ErrInvalidArgument)

	got, err := d.Lookup("c1")
	require.NoError(t, err)
	assert.Same(t, ch1, got)
	_, err = d.Lookup("c9")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, d.Bind("c9", "alice"), ErrNotFound)
	require.NoError(t, d.Bind("c1", "alice"))
	got, err = d.ChannelFor("alice")
	require.NoError(t, err)
	assert.Same(t, ch1, got)

	// Moving alice to c2 leaves c1 unbound.
	require.NoError(t, d.Bind("c2", "alice"))
	_, bound := d.BoundParticipant("c1")
	assert.False(t, bound)
	participant, ok := d.Unregister("c1")
	assert.False(t, ok)
	assert.Empty(t, participant)

	participant, ok = d.Unregister("c2")
	assert.True(t, ok)
	assert.Equal(t, "alice", participant)
	_, err = d.ChannelFor("alice")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, d.Len())
}
