package database

import (
	"context"
	"fmt"
	"time"

	"session-tracker/internal/models"
	"session-tracker/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_events (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL DEFAULT '',
	command     TEXT NOT NULL DEFAULT '',
	output      TEXT NOT NULL DEFAULT '',
	directory   TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS session_events_session_idx ON session_events (session_id, occurred_at DESC);`

// PostgresDB is the event journal. It records history for auditing only;
// live presence state is never restored from it.
type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func (db *PostgresDB) SaveEvent(ctx context.Context, ev models.SessionEvent) error {
	query := `
		INSERT INTO session_events (session_id, event_type, user_id, role, command, output, directory, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.pool.Exec(ctx, query,
		string(ev.SessionID), string(ev.Type), ev.User, string(ev.Role),
		ev.Command, ev.Output, ev.Directory, ev.Reason, time.UnixMilli(ev.Timestamp).UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (db *PostgresDB) LoadRecentEvents(ctx context.Context, sessionID models.SessionID, limit int) ([]models.SessionEvent, error) {
	query := `
		SELECT session_id, event_type, user_id, role, command, output, directory, reason, occurred_at
		FROM session_events
		WHERE session_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, string(sessionID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.SessionEvent
	for rows.Next() {
		var (
			ev             models.SessionEvent
			sid, typ, role string
			occurredAt     time.Time
		)
		if err := rows.Scan(&sid, &typ, &ev.User, &role, &ev.Command, &ev.Output, &ev.Directory, &ev.Reason, &occurredAt); err != nil {
			return nil, err
		}
		ev.SessionID = models.SessionID(sid)
		ev.Type = models.EventType(typ)
		ev.Role = models.Role(role)
		ev.Timestamp = occurredAt.UnixMilli()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, nil
}
