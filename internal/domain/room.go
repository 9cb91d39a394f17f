package domain

import "time"

const MaxRoomNameLen = 64

// Room is a logical conferencing session. Membership and media handles are
// owned by the store, not by this struct.
type Room struct {
	ID          RoomID    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Capacity    int       `json:"maxParticipants"`
	Active      bool      `json:"active"`
	Instance    string    `json:"instance"`
	RouterID    string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
