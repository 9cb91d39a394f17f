// Package domain contains entity without logic, just meta-data.
package domain

type (
	RoomID        string
	ParticipantID string
	UserID        string
	ProducerID    string
	ConsumerID    string
	ConnectionID  string
)

// MediaKind is the media type carried by a producer or consumer.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)
