package database

import (
	"context"

	"session-tracker/internal/models"
)

type EventRepository interface {
	SaveEvent(ctx context.Context, ev models.SessionEvent) error
	LoadRecentEvents(ctx context.Context, sessionID models.SessionID, limit int) ([]models.SessionEvent, error)
}

type Database interface {
	EventRepository
	Ping(ctx context.Context) error
	Close() error
}
