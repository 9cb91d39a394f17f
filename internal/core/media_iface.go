package core

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// Direction of a WebRTC transport relative to the client.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// RouterHandle identifies a media-engine router and carries the capability
// descriptor the engine reported for it.
type RouterHandle struct {
	ID              string
	RtpCapabilities webrtc.RTPCapabilities
}

// TransportInfo is everything a client needs to connect a transport.
type TransportInfo struct {
	ID             string                `json:"id"`
	ICEParameters  webrtc.ICEParameters  `json:"iceParameters"`
	ICECandidates  []webrtc.ICECandidate `json:"iceCandidates"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

type ProducerInfo struct {
	ID     string `json:"id"`
	Paused bool   `json:"paused"`
}

type ConsumerInfo struct {
	ID            string           `json:"id"`
	Kind          domain.MediaKind `json:"kind"`
	RtpParameters json.RawMessage  `json:"rtpParameters"`
	Paused        bool             `json:"paused"`
}

// MediaEngine is the coordination layer's contract with the external media
// engine. Transport, codec negotiation and RTP routing happen behind it;
// this layer only holds the identifiers it hands back. RTP parameter payloads
// stay opaque, ICE/DTLS/capability descriptors use the pion types the wire
// format is defined in.
type MediaEngine interface {
	CreateRouter(ctx context.Context) (RouterHandle, error)
	CloseRouter(routerID string)

	CreateTransport(ctx context.Context, routerID string, dir Direction) (TransportInfo, error)
	ConnectTransport(ctx context.Context, transportID string, dtls webrtc.DTLSParameters) error
	RestartICE(ctx context.Context, transportID string) (webrtc.ICEParameters, error)
	CloseTransport(transportID string)

	CreateProducer(ctx context.Context, transportID string, kind domain.MediaKind, rtpParameters json.RawMessage, appData map[string]any) (ProducerInfo, error)
	PauseProducer(ctx context.Context, producerID string) error
	ResumeProducer(ctx context.Context, producerID string) error
	CloseProducer(producerID string)

	CanConsume(routerID, producerID string, caps webrtc.RTPCapabilities) bool
	CreateConsumer(ctx context.Context, routerID, transportID, producerID string, caps webrtc.RTPCapabilities, appData map[string]any) (ConsumerInfo, error)
	PauseConsumer(ctx context.Context, consumerID string) error
	ResumeConsumer(ctx context.Context, consumerID string) error
	SetPreferredLayers(ctx context.Context, consumerID string, spatial, temporal uint8) error
	CloseConsumer(consumerID string)
}
