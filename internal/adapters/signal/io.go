package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// writePump drains the send channel onto the wire and emits the liveness
// probe on the heartbeat period. It is the only writer of data frames.
func (ctl *SignalController) writePump(ctx context.Context, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.HeartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump processes inbound envelopes one at a time, so per-connection
// ordering holds while different connections interleave freely. On exit it
// runs the full disconnect cleanup; running it again later is harmless.
func (ctl *SignalController) readPump(ctx context.Context, connID domain.ConnectionID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		ctl.Coord.Disconnect(connID)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.HeartbeatTimeout))
	c.conn.SetPongHandler(func(string) error {
		ctl.Coord.Registry.Heartbeat(connID)
		return c.conn.SetReadDeadline(time.Now().Add(ctl.HeartbeatTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(ctx, connID, c, data)
		}
	}
}
