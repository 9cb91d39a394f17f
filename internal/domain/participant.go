package domain

import "time"

// Participant is one user's membership in a room. At most one participant
// exists per (room, user) pair; joining again returns the existing one.
type Participant struct {
	ID           ParticipantID  `json:"id"`
	UserID       UserID         `json:"userId"`
	DisplayName  string         `json:"displayName"`
	RoomID       RoomID         `json:"roomId"`
	AudioEnabled bool           `json:"audioEnabled"`
	VideoEnabled bool           `json:"videoEnabled"`
	ScreenShare  bool           `json:"screenShare"`
	Hidden       bool           `json:"hidden,omitempty"`
	JoinedAt     time.Time      `json:"joinedAt"`
	LastSeenAt   time.Time      `json:"lastSeenAt"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// HiddenMetadataKey marks an observer join when set to true in the join
// request metadata.
const HiddenMetadataKey = "isHidden"
