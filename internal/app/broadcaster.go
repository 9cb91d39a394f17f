package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// Broadcaster fans a message out to every live connection in a room except an
// optional sender. Delivery is best-effort: a send failure (backpressure,
// connection mid-close) is logged and never aborts the remaining recipients.
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

func (b *Broadcaster) Broadcast(roomID domain.RoomID, v any, exclude domain.ConnectionID) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Msg("broadcast marshal")
		return
	}
	sent := 0
	for _, snap := range b.reg.ConnectionsInRoom(roomID) {
		if snap.ID == exclude {
			continue
		}
		if err := snap.Conn.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "app.broadcaster").
				Str("room", string(roomID)).Str("conn", string(snap.ID)).Msg("broadcast send failed")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.broadcaster").Str("room", string(roomID)).Int("sent_to", sent).Msg("broadcast")
}
