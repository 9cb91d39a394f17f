package signal

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/core"
	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

func (ctl *SignalController) handleRouterCapabilities(connID domain.ConnectionID) (any, error) {
	caps, err := ctl.Coord.RouterCapabilities(connID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rtpCapabilities": caps}, nil
}

type createTransportPayload struct {
	Direction string `json:"direction" validate:"required,oneof=send recv"`
}

func (ctl *SignalController) handleCreateTransport(ctx context.Context, connID domain.ConnectionID, env Envelope) (any, error) {
	var p createTransportPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	return ctl.Coord.CreateTransport(ctx, connID, core.Direction(p.Direction))
}

type connectTransportPayload struct {
	TransportID    string                `json:"transportId" validate:"required"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

func (ctl *SignalController) handleConnectTransport(ctx context.Context, connID domain.ConnectionID, env Envelope) (any, error) {
	var p connectTransportPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	if err := ctl.Coord.ConnectTransport(ctx, connID, p.TransportID, p.DTLSParameters); err != nil {
		return nil, err
	}
	return map[string]any{"connected": true}, nil
}

type restartICEPayload struct {
	TransportID string `json:"transportId" validate:"required"`
}

func (ctl *SignalController) handleRestartICE(ctx context.Context, connID domain.ConnectionID, env Envelope) (any, error) {
	var p restartICEPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	ice, err := ctl.Coord.RestartICE(ctx, connID, p.TransportID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"iceParameters": ice}, nil
}

type publishPayload struct {
	Kind          string          `json:"kind" validate:"required,oneof=audio video"`
	RtpParameters json.RawMessage `json:"rtpParameters" validate:"required"`
	AppData       map[string]any  `json:"appData"`
}

func (ctl *SignalController) handlePublish(ctx context.Context, connID domain.ConnectionID, env Envelope) (any, error) {
	var p publishPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	return ctl.Coord.Publish(ctx, connID, domain.MediaKind(p.Kind), p.RtpParameters, p.AppData)
}

type unpublishPayload struct {
	ProducerID string `json:"producerId" validate:"required"`
}

func (ctl *SignalController) handleUnpublish(connID domain.ConnectionID, env Envelope) (any, error) {
	var p unpublishPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	if err := ctl.Coord.Unpublish(connID, domain.ProducerID(p.ProducerID)); err != nil {
		return nil, err
	}
	return map[string]any{"closed": true}, nil
}

type subscribePayload struct {
	ProducerID      string                 `json:"producerId" validate:"required"`
	RtpCapabilities webrtc.RTPCapabilities `json:"rtpCapabilities"`
	AppData         map[string]any         `json:"appData"`
}

func (ctl *SignalController) handleSubscribe(ctx context.Context, connID domain.ConnectionID, env Envelope) (any, error) {
	var p subscribePayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	return ctl.Coord.Subscribe(ctx, connID, domain.ProducerID(p.ProducerID), p.RtpCapabilities, p.AppData)
}

type unsubscribePayload struct {
	ConsumerID string `json:"consumerId" validate:"required"`
}

func (ctl *SignalController) handleUnsubscribe(connID domain.ConnectionID, env Envelope) (any, error) {
	var p unsubscribePayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	if err := ctl.Coord.Unsubscribe(connID, domain.ConsumerID(p.ConsumerID)); err != nil {
		return nil, err
	}
	return map[string]any{"closed": true}, nil
}

type consumerPayload struct {
	ConsumerID string `json:"consumerId" validate:"required"`
}

func (ctl *SignalController) handleSetConsumerPaused(ctx context.Context, connID domain.ConnectionID, env Envelope, paused bool) (any, error) {
	var p consumerPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	return ctl.Coord.SetConsumerPaused(ctx, connID, domain.ConsumerID(p.ConsumerID), paused)
}

type producerPayload struct {
	ProducerID string `json:"producerId" validate:"required"`
}

func (ctl *SignalController) handleSetProducerPaused(ctx context.Context, connID domain.ConnectionID, env Envelope, paused bool) (any, error) {
	var p producerPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	return ctl.Coord.SetProducerPaused(ctx, connID, domain.ProducerID(p.ProducerID), paused)
}

type preferredLayersPayload struct {
	ConsumerID    string `json:"consumerId" validate:"required"`
	SpatialLayer  uint8  `json:"spatialLayer"`
	TemporalLayer uint8  `json:"temporalLayer"`
}

func (ctl *SignalController) handleSetPreferredLayers(ctx context.Context, connID domain.ConnectionID, env Envelope) (any, error) {
	var p preferredLayersPayload
	if err := ctl.decode(env, &p); err != nil {
		return nil, err
	}
	if err := ctl.Coord.SetPreferredLayers(ctx, connID, domain.ConsumerID(p.ConsumerID), p.SpatialLayer, p.TemporalLayer); err != nil {
		return nil, err
	}
	return map[string]any{"updated": true}, nil
}
