package database

import (
	"context"
	"os"
	"testing"
	"time"

	"session-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresJournalRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set - run as integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewPostgresDB(ctx, url)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping(ctx))

	sessionID := models.SessionID("test-" + uuid.NewString())
	base := time.Now().Truncate(time.Millisecond)
	for i, typ := range []models.EventType{models.EventSessionCreated, models.EventUserJoined, models.EventCommandExecuted} {
		require.NoError(t, db.SaveEvent(ctx, models.SessionEvent{
			Type:      typ,
			SessionID: sessionID,
			User:      "alice",
			Role:      models.RoleOwner,
			Command:   "ls",
			Timestamp: base.Add(time.Duration(i) * time.Second).UnixMilli(),
		}))
	}

	events, err := db.LoadRecentEvents(ctx, sessionID, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventUserJoined, events[0].Type)
	assert.Equal(t, models.EventCommandExecuted, events[1].Type)
	assert.Equal(t, "alice", events[1].User)
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), events[1].Timestamp)
}
