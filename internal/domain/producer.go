package domain

import "encoding/json"

// Producer is an inbound media stream published by a participant.
// RtpParameters are negotiated by the media engine and opaque here.
type Producer struct {
	ID            ProducerID      `json:"id"`
	Kind          MediaKind       `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
	Paused        bool            `json:"paused"`
	ParticipantID ParticipantID   `json:"participantId"`
	AppData       map[string]any  `json:"appData,omitempty"`
}

// Consumer is an outbound media stream delivered to a participant, sourced
// from a producer. Kind and AppData mirror the source producer.
type Consumer struct {
	ID            ConsumerID      `json:"id"`
	ProducerID    ProducerID      `json:"producerId"`
	Kind          MediaKind       `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
	Paused        bool            `json:"paused"`
	ParticipantID ParticipantID   `json:"participantId"`
	AppData       map[string]any  `json:"appData,omitempty"`
}
