package model

// DefaultClaimBufferDays applies when a server is unknown or has no value stored.
const DefaultClaimBufferDays = 1

// Server is the subset of the servers row the backend reads.
type Server struct {
	ServerName      string `db:"server_name"`
	OwnerUserID     *int64 `db:"owner_user_id"`
	ClaimBufferDays *int   `db:"claim_buffer_days"`
}

// PlayerIdentity binds a device to a username on one server.
type PlayerIdentity struct {
	DeviceID   string `db:"device_id"`
	ServerName string `db:"server_name"`
	Username   string `db:"minecraft_username"`
}

// ServerSettingsPatch is the body of PATCH /v1/owner/servers/{server}/settings.
type ServerSettingsPatch struct {
	ClaimBufferDays *int `json:"claim_buffer_days"`
}
