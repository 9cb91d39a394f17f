package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEvent(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.LogEvent(ctx, "room-1", "p-1", "participant.joined", map[string]any{"userId": "user-1"}))
	require.NoError(t, l.LogEvent(ctx, "room-1", "", "room.created", nil))

	var count int
	err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE room_id = ?`, "room-1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var eventType, payload string
	err = l.db.QueryRowContext(ctx,
		`SELECT type, payload FROM events WHERE participant_id = ?`, "p-1").Scan(&eventType, &payload)
	require.NoError(t, err)
	assert.Equal(t, "participant.joined", eventType)
	assert.JSONEq(t, `{"userId":"user-1"}`, payload)
}
