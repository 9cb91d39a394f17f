package core

import (
	"context"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// TokenVerifier validates a bearer credential and returns the identity bound
// to it. Token issuing is the identity provider's concern.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (domain.Claims, error)
}

// EventLog records room lifecycle events. Best-effort: callers log and
// continue on failure.
type EventLog interface {
	LogEvent(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID, eventType string, payload map[string]any) error
}

// WebhookSender delivers signed outbound event notifications. Best-effort.
type WebhookSender interface {
	Send(ctx context.Context, event string, payload map[string]any) error
}
