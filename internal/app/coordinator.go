package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/core"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// Coordinator wires the entity store, session registry and room broadcaster
// together and implements the business side of every signaling operation.
// The signal adapter owns parsing and envelopes; this layer owns semantics.
type Coordinator struct {
	Store     *core.Store
	Registry  *Registry
	Broadcast *Broadcaster
	Events    core.EventLog
	Hooks     core.WebhookSender
}

func NewCoordinator(store *core.Store, reg *Registry, events core.EventLog, hooks core.WebhookSender) *Coordinator {
	return &Coordinator{
		Store:     store,
		Registry:  reg,
		Broadcast: NewBroadcaster(reg),
		Events:    events,
		Hooks:     hooks,
	}
}

// event is the room-scoped broadcast envelope.
type event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const notifyTimeout = 5 * time.Second

// notify writes the audit log entry and fires the outbound webhook for a room
// event. Both are best-effort: failures are logged, never surfaced.
func (c *Coordinator) notify(roomID domain.RoomID, participantID domain.ParticipantID, eventType string, payload map[string]any) {
	if c.Events == nil && c.Hooks == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if c.Events != nil {
			if err := c.Events.LogEvent(ctx, roomID, participantID, eventType, payload); err != nil {
				log.Warn().Err(err).Str("module", "app.coordinator").Str("event", eventType).Msg("audit log write failed")
			}
		}
		if c.Hooks != nil {
			if err := c.Hooks.Send(ctx, eventType, payload); err != nil {
				log.Warn().Err(err).Str("module", "app.coordinator").Str("event", eventType).Msg("webhook delivery failed")
			}
		}
	}()
}

// Disconnect runs cleanup for a closed connection: the participant (if any)
// leaves its room with the usual teardown and broadcast, then the connection
// is deregistered. Safe to call more than once.
func (c *Coordinator) Disconnect(connID domain.ConnectionID) {
	if _, _, ok := c.Registry.RoomOf(connID); ok {
		if err := c.Leave(connID); err != nil {
			log.Warn().Err(err).Str("module", "app.coordinator").Str("conn", string(connID)).Msg("disconnect cleanup leave failed")
		}
	}
	c.Registry.Deregister(connID)
}
