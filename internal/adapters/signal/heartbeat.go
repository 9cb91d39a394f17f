package signal

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/app"
)

// Sweeper force-closes connections whose liveness window expired. Probes are
// sent by each connection's write pump; the sweeper only reaps the silent.
// The closed client gets no error envelope, the socket just goes away.
type Sweeper struct {
	Coord   *app.Coordinator
	Period  time.Duration
	Timeout time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, snap := range s.Coord.Registry.Stale(s.Timeout) {
				log.Warn().Str("module", "signal.sweeper").Str("conn", string(snap.ID)).
					Str("user", string(snap.Claims.UserID)).
					Time("last_heartbeat", snap.LastHeartbeat).Msg("heartbeat timeout, closing connection")
				snap.Conn.Close()
				s.Coord.Disconnect(snap.ID)
			}
		}
	}
}
