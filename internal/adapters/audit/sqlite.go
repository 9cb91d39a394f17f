// Package audit persists room lifecycle events. Writes are best-effort;
// callers log failures and move on.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id             TEXT PRIMARY KEY,
	room_id        TEXT NOT NULL,
	participant_id TEXT,
	type           TEXT NOT NULL,
	payload        TEXT,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_room ON events(room_id, created_at);
`

type Log struct {
	db *sql.DB
}

func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

func (l *Log) LogEvent(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO events (id, room_id, participant_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(roomID), string(participantID), eventType, string(body), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	return l.db.Close()
}
