package models

import "time"

// Profile is the user blob stored alongside a session token.
type Profile struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
}

// Session is the persisted client state: token, creation time and profile.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	Remember  bool      `json:"remember"`
	Profile   Profile   `json:"profile"`
}

// AuthStatus is the answer to "is this token still valid".
type AuthStatus struct {
	Profile      Profile   `json:"profile"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	ExpiringSoon bool      `json:"expiring_soon"`
}
