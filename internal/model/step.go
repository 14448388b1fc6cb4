package model

import "time"

// DateLayout is the wire format of a calendar day.
const DateLayout = "2006-01-02"

// StepRecord is the best step count reported for one player on one server and day.
type StepRecord struct {
	Username   string    `db:"minecraft_username" json:"minecraft_username"`
	ServerName string    `db:"server_name" json:"server_name"`
	Day        time.Time `db:"day" json:"-"`
	Steps      int64     `db:"steps_today" json:"steps_today"`
	DeviceID   string    `db:"device_id" json:"-"`
	Source     string    `db:"source" json:"source"`
	ReportedAt time.Time `db:"reported_at" json:"reported_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// IngestRequest is a single report from the mobile app.
// Day and ReportedAt are optional.
type IngestRequest struct {
	ServerName string
	DeviceID   string
	Username   string
	Steps      int64
	Day        *time.Time
	Source     string
	ReportedAt *time.Time
}

// IngestResult tells the caller whether the report moved the stored value.
type IngestResult struct {
	Accepted bool
	Reason   string
	IsNewDay bool
	Day      time.Time
	Steps    int64
}

// IngestPayload is the body of POST /v1/ingest.
type IngestPayload struct {
	Username     string  `json:"minecraft_username"`
	DeviceID     string  `json:"device_id"`
	Steps        int64   `json:"steps_today"`
	PlayerAPIKey string  `json:"player_api_key"`
	Day          *string `json:"day,omitempty"`
	Source       string  `json:"source,omitempty"`
	Timestamp    *string `json:"timestamp,omitempty"`
}

const (
	DefaultStepSource = "health_connect"
	MaxStepsPerDay    = 500_000
)

// Device binding scopes.
const (
	BindingScopePerServer = "per_server"
	BindingScopeGlobal    = "global"
)
