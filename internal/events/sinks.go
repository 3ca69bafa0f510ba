package events

import (
	"context"
	"encoding/json"
	"fmt"

	"session-tracker/internal/database"
	"session-tracker/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LogSink writes one structured line per event.
func LogSink(l *zerolog.Logger) Sink {
	return SinkFunc(func(ev models.SessionEvent) {
		e := l.Info()
		if ev.Type == models.EventUserTimedOut || ev.Type == models.EventSessionExpired {
			e = l.Warn()
		}
		e = e.Str("event", string(ev.Type)).Str("session_id", string(ev.SessionID))
		if ev.User != "" {
			e = e.Str("user", ev.User)
		}
		if ev.Role != "" {
			e = e.Str("role", string(ev.Role))
		}
		if ev.Command != "" {
			e = e.Str("command", ev.Command)
		}
		if ev.Reason != "" {
			e = e.Str("reason", ev.Reason)
		}
		e.Msg(describe(ev))
	})
}

func describe(ev models.SessionEvent) string {
	switch ev.Type {
	case models.EventSessionCreated:
		return fmt.Sprintf("Session %s created", ev.SessionID)
	case models.EventSessionExpired:
		return fmt.Sprintf("Session %s expired", ev.SessionID)
	case models.EventUserJoined:
		return fmt.Sprintf("User %s joined session %s as %s", ev.User, ev.SessionID, ev.Role)
	case models.EventUserLeft:
		return fmt.Sprintf("User %s left session %s", ev.User, ev.SessionID)
	case models.EventUserTimedOut:
		return fmt.Sprintf("User %s timed out", ev.User)
	case models.EventCommandExecuted:
		return fmt.Sprintf("User %s executed %q", ev.User, ev.Command)
	}
	return string(ev.Type)
}

// JournalSink appends events to the database journal in the background.
func JournalSink(repo database.EventRepository, size int) *AsyncSink {
	return NewAsyncSink("journal", size, func(ctx context.Context, ev models.SessionEvent) error {
		return repo.SaveEvent(ctx, ev)
	})
}

// Publisher is the subset of the go-redis client used for fan-out.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes each event as JSON on channel.
func RedisSink(client Publisher, channel string, size int) *AsyncSink {
	return NewAsyncSink("redis", size, func(ctx context.Context, ev models.SessionEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		return client.Publish(ctx, channel, data).Err()
	})
}
