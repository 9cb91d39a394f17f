package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// JoinResult is what a joiner gets back: its participant, the room snapshot
// and the roster it is allowed to see.
type JoinResult struct {
	Room         domain.Room          `json:"room"`
	Participant  domain.Participant   `json:"participant"`
	Participants []domain.Participant `json:"participants"`
}

func (c *Coordinator) CreateRoom(ctx context.Context, connID domain.ConnectionID, name, description string, capacity int) (domain.Room, error) {
	if _, ok := c.Registry.Get(connID); !ok {
		return domain.Room{}, fmt.Errorf("unregistered connection: %w", domain.ErrInternal)
	}
	room, err := c.Store.CreateRoom(ctx, name, description, capacity)
	if err != nil {
		return domain.Room{}, err
	}
	c.notify(room.ID, "", "room.created", map[string]any{
		"roomId": room.ID, "name": room.Name, "maxParticipants": room.Capacity,
	})
	return room, nil
}

// Join puts the connection's user into the room. A connection already bound
// to a different room leaves it first; a duplicate join of the same room is
// idempotent and produces no second participantJoined broadcast.
func (c *Coordinator) Join(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID, displayName string, metadata map[string]any) (JoinResult, error) {
	snap, ok := c.Registry.Get(connID)
	if !ok {
		return JoinResult{}, fmt.Errorf("unregistered connection: %w", domain.ErrInternal)
	}
	if prevRoom, _, ok := c.Registry.RoomOf(connID); ok && prevRoom != roomID {
		if err := c.Leave(connID); err != nil {
			return JoinResult{}, err
		}
	}
	if displayName == "" {
		displayName = snap.Claims.DisplayName
	}

	p, created, err := c.Store.JoinRoom(ctx, roomID, snap.Claims.UserID, displayName, metadata)
	if err != nil {
		return JoinResult{}, err
	}
	if !c.Registry.BindRoom(connID, roomID, p.ID) {
		// The connection died while the join was in flight. Without a binding
		// no cleanup path can ever reach the participant, so undo the insert.
		if created {
			if lerr := c.Store.LeaveRoom(roomID, p.ID); lerr != nil {
				log.Warn().Err(lerr).Str("module", "app.coordinator").
					Str("room", string(roomID)).Str("participant", string(p.ID)).Msg("join rollback failed")
			}
		}
		return JoinResult{}, fmt.Errorf("connection closed during join: %w", domain.ErrInternal)
	}

	room, _ := c.Store.GetRoom(roomID)
	roster, err := c.Store.Participants(roomID)
	if err != nil {
		return JoinResult{}, err
	}
	roster = visibleTo(p, roster)

	if created {
		if !p.Hidden {
			c.Broadcast.Broadcast(roomID, event{Type: "participantJoined", Data: map[string]any{"participant": p}}, connID)
		}
		c.notify(roomID, p.ID, "participant.joined", map[string]any{
			"roomId": roomID, "participantId": p.ID, "userId": p.UserID, "hidden": p.Hidden,
		})
	}
	return JoinResult{Room: room, Participant: p, Participants: roster}, nil
}

// Leave removes the connection's participant from its room, cascading media
// teardown, and announces the departure. Hidden participants leave silently,
// mirroring their silent join.
func (c *Coordinator) Leave(connID domain.ConnectionID) error {
	roomID, participantID, ok := c.Registry.RoomOf(connID)
	if !ok {
		return domain.ErrParticipantNotInRoom
	}
	p, _ := c.Store.Participant(roomID, participantID)
	if err := c.Store.LeaveRoom(roomID, participantID); err != nil {
		return err
	}
	c.Registry.ClearRoom(connID)
	if !p.Hidden {
		c.Broadcast.Broadcast(roomID, event{Type: "participantLeft", Data: map[string]any{
			"participantId": participantID, "userId": p.UserID,
		}}, connID)
	}
	c.notify(roomID, participantID, "participant.left", map[string]any{
		"roomId": roomID, "participantId": participantID, "userId": p.UserID,
	})
	return nil
}

// visibleTo applies the roster visibility rule: an observer sees everyone,
// a regular participant never sees hidden ones.
func visibleTo(viewer domain.Participant, roster []domain.Participant) []domain.Participant {
	if viewer.Hidden {
		return roster
	}
	out := make([]domain.Participant, 0, len(roster))
	for _, p := range roster {
		if p.Hidden {
			continue
		}
		out = append(out, p)
	}
	return out
}
