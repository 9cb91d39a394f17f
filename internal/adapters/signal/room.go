package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

type createRoomPayload struct {
	Name            string `json:"name" validate:"required,max=64"`
	Description     string `json:"description" validate:"max=256"`
	MaxParticipants int    `json:"maxParticipants" validate:"omitempty,min=1,max=1000"`
}

func (ctl *SignalController) handleCreateRoom(ctx context.Context, connID domain.ConnectionID, env Envelope) (any, error) {
	var p createRoomPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	room, err := ctl.Coord.CreateRoom(ctx, connID, p.Name, p.Description, p.MaxParticipants)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("conn", string(connID)).Str("room", string(room.ID)).Msg("room created")
	return room, nil
}

type joinRoomPayload struct {
	RoomID      string         `json:"roomId" validate:"required,max=128"`
	DisplayName string         `json:"displayName" validate:"max=64"`
	Metadata    map[string]any `json:"metadata"`
}

func (ctl *SignalController) handleJoinRoom(ctx context.Context, connID domain.ConnectionID, env Envelope) (any, error) {
	var p joinRoomPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	res, err := ctl.Coord.Join(ctx, connID, domain.RoomID(p.RoomID), p.DisplayName, p.Metadata)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("conn", string(connID)).
		Str("room", p.RoomID).Str("participant", string(res.Participant.ID)).Msg("joined room")
	return res, nil
}

func (ctl *SignalController) handleLeaveRoom(connID domain.ConnectionID) (any, error) {
	if err := ctl.Coord.Leave(connID); err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("left room")
	return map[string]any{"left": true}, nil
}
