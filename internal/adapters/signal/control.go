package signal

import (
	"time"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// handlePing replies pong with the server timestamp and refreshes the
// liveness window. Never broadcast.
func (ctl *SignalController) handlePing(connID domain.ConnectionID, conn *wsSignalConn, env Envelope) {
	ctl.Coord.Registry.Heartbeat(connID)
	ctl.sendJSON(conn, response{
		Type:      "pong",
		Data:      map[string]any{"timestamp": time.Now().UnixMilli()},
		RequestID: env.RequestID,
	})
}
