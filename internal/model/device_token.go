package model

import (
	"time"
)

// DeviceToken is a push token registered by a device for one server.
// The same device may hold several tokens (reinstalls, sandbox and production builds).
type DeviceToken struct {
	ID         int64     `db:"id" json:"id"`
	DeviceID   string    `db:"device_id" json:"device_id"`
	ServerName string    `db:"server_name" json:"server_name"`
	Platform   string    `db:"platform" json:"platform"` // "ios", "android"
	Token      string    `db:"token" json:"-"`
	Sandbox    bool      `db:"sandbox" json:"sandbox"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RegisterTokenRequest is the request body for registering a device token.
type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"` // "ios" or "android"
	Sandbox  *bool  `json:"sandbox,omitempty"`
}

// UnregisterTokenRequest removes one token, or every token of the platform when Token is empty.
type UnregisterTokenRequest struct {
	Token    string `json:"token,omitempty"`
	Platform string `json:"platform"`
}

// SendPushRequest is the body of the player-triggered direct send.
type SendPushRequest struct {
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Platform constants
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// ValidPlatform reports whether p names a supported push platform.
func ValidPlatform(p string) bool {
	return p == PlatformIOS || p == PlatformAndroid
}
