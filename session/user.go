// Package session holds the client's current authentication belief and
// persists it across restarts.
package session

import "time"

// Role is the account role reported by the API.
type Role string

// RoleUser is the only role regular accounts carry.
const RoleUser Role = "USER"

// User is the profile record returned by the Techblitz API. Field names
// follow the wire contract.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Bio            string    `json:"bio,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	AvatarFallback string    `json:"avatar_fallback"`
	Role           Role      `json:"role"`
	TotalFollowers int       `json:"total_followers"`
	TotalFollowing int       `json:"total_following"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a copy so callers cannot mutate store state in place.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
