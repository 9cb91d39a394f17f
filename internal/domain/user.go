package domain

import "time"

// Claims is the verified identity bound to a connection. Issuing and refresh
// are the identity provider's concern; only this contract crosses into the
// coordination layer.
type Claims struct {
	UserID      UserID    `json:"userId"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role,omitempty"`
	ExpiresAt   time.Time `json:"-"`
}
