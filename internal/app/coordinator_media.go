package app

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/core"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// located resolves a connection to its (room, participant) binding or fails
// with ParticipantNotInRoom. Every media operation requires it.
func (c *Coordinator) located(connID domain.ConnectionID) (domain.RoomID, domain.ParticipantID, error) {
	roomID, participantID, ok := c.Registry.RoomOf(connID)
	if !ok {
		return "", "", domain.ErrParticipantNotInRoom
	}
	return roomID, participantID, nil
}

func (c *Coordinator) RouterCapabilities(connID domain.ConnectionID) (webrtc.RTPCapabilities, error) {
	roomID, _, err := c.located(connID)
	if err != nil {
		return webrtc.RTPCapabilities{}, err
	}
	return c.Store.RouterCapabilities(roomID)
}

func (c *Coordinator) CreateTransport(ctx context.Context, connID domain.ConnectionID, dir core.Direction) (core.TransportInfo, error) {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return core.TransportInfo{}, err
	}
	return c.Store.CreateTransport(ctx, roomID, participantID, dir)
}

func (c *Coordinator) ConnectTransport(ctx context.Context, connID domain.ConnectionID, transportID string, dtls webrtc.DTLSParameters) error {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return err
	}
	return c.Store.ConnectTransport(ctx, roomID, participantID, transportID, dtls)
}

func (c *Coordinator) RestartICE(ctx context.Context, connID domain.ConnectionID, transportID string) (webrtc.ICEParameters, error) {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return webrtc.ICEParameters{}, err
	}
	return c.Store.RestartICE(ctx, roomID, participantID, transportID)
}

func (c *Coordinator) Publish(ctx context.Context, connID domain.ConnectionID, kind domain.MediaKind, rtpParameters json.RawMessage, appData map[string]any) (domain.Producer, error) {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return domain.Producer{}, err
	}
	prod, err := c.Store.CreateProducer(ctx, roomID, participantID, kind, rtpParameters, appData)
	if err != nil {
		return domain.Producer{}, err
	}
	c.Broadcast.Broadcast(roomID, event{Type: "producerCreated", Data: map[string]any{
		"producerId": prod.ID, "participantId": participantID, "kind": prod.Kind, "appData": prod.AppData,
	}}, connID)
	return prod, nil
}

func (c *Coordinator) Unpublish(connID domain.ConnectionID, producerID domain.ProducerID) error {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return err
	}
	if err := c.Store.RemoveProducer(roomID, participantID, producerID); err != nil {
		return err
	}
	c.Broadcast.Broadcast(roomID, event{Type: "producerClosed", Data: map[string]any{
		"producerId": producerID, "participantId": participantID,
	}}, connID)
	return nil
}

// Subscribe creates a consumer for the given producer and resumes it before
// returning, so the reported state is always paused=false and media flows
// without an extra client round trip.
func (c *Coordinator) Subscribe(ctx context.Context, connID domain.ConnectionID, producerID domain.ProducerID, caps webrtc.RTPCapabilities, appData map[string]any) (domain.Consumer, error) {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return domain.Consumer{}, err
	}
	cons, err := c.Store.CreateConsumer(ctx, roomID, participantID, producerID, caps, appData)
	if err != nil {
		return domain.Consumer{}, err
	}
	resumed, err := c.Store.SetConsumerPaused(ctx, roomID, participantID, cons.ID, false)
	if err != nil {
		// The caller never learned the consumer id, so a retry would stack
		// another engine-side consumer. Drop the half-created one.
		if rerr := c.Store.RemoveConsumer(roomID, participantID, cons.ID); rerr != nil {
			log.Warn().Err(rerr).Str("module", "app.coordinator").
				Str("consumer", string(cons.ID)).Msg("subscribe rollback failed")
		}
		return domain.Consumer{}, err
	}
	cons = resumed

	var publisher domain.ParticipantID
	if prod, ok := c.Store.FindProducer(roomID, producerID); ok {
		publisher = prod.ParticipantID
	}
	c.Broadcast.Broadcast(roomID, event{Type: "consumerCreated", Data: map[string]any{
		"consumerId": cons.ID, "producerId": producerID, "participantId": participantID,
		"producerParticipantId": publisher, "kind": cons.Kind,
	}}, connID)
	return cons, nil
}

func (c *Coordinator) Unsubscribe(connID domain.ConnectionID, consumerID domain.ConsumerID) error {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return err
	}
	if err := c.Store.RemoveConsumer(roomID, participantID, consumerID); err != nil {
		return err
	}
	c.Broadcast.Broadcast(roomID, event{Type: "consumerClosed", Data: map[string]any{
		"consumerId": consumerID, "participantId": participantID,
	}}, connID)
	return nil
}

// SetConsumerPaused serves the pause/resume operations on the caller's own
// consumer. No room event: only producer state changes are announced.
func (c *Coordinator) SetConsumerPaused(ctx context.Context, connID domain.ConnectionID, consumerID domain.ConsumerID, paused bool) (domain.Consumer, error) {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return domain.Consumer{}, err
	}
	return c.Store.SetConsumerPaused(ctx, roomID, participantID, consumerID, paused)
}

func (c *Coordinator) SetProducerPaused(ctx context.Context, connID domain.ConnectionID, producerID domain.ProducerID, paused bool) (domain.Producer, error) {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return domain.Producer{}, err
	}
	prod, err := c.Store.SetProducerPaused(ctx, roomID, participantID, producerID, paused)
	if err != nil {
		return domain.Producer{}, err
	}
	evt := "producerResumed"
	if paused {
		evt = "producerPaused"
	}
	c.Broadcast.Broadcast(roomID, event{Type: evt, Data: map[string]any{
		"producerId": prod.ID, "participantId": participantID,
	}}, connID)
	return prod, nil
}

func (c *Coordinator) SetPreferredLayers(ctx context.Context, connID domain.ConnectionID, consumerID domain.ConsumerID, spatial, temporal uint8) error {
	roomID, participantID, err := c.located(connID)
	if err != nil {
		return err
	}
	if err := c.Store.SetPreferredLayers(ctx, roomID, participantID, consumerID, spatial, temporal); err != nil {
		return err
	}
	c.Broadcast.Broadcast(roomID, event{Type: "consumerLayersChanged", Data: map[string]any{
		"consumerId": consumerID, "spatialLayer": spatial, "temporalLayer": temporal,
	}}, connID)
	return nil
}
