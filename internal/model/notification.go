package model

import (
	"time"
)

const (
	MaxNotificationMessageLen = 240
	RecentNotificationsLimit  = 20
)

// PushNotification is a message scheduled for every device of a server.
// At most one exists per server and local calendar date. Rows are never edited.
type PushNotification struct {
	ID            int64     `db:"id" json:"id"`
	ServerName    string    `db:"server_name" json:"server_name"`
	Message       string    `db:"message" json:"message"`
	ScheduledAt   time.Time `db:"scheduled_at" json:"scheduled_at"`
	ScheduledDate time.Time `db:"scheduled_date" json:"-"`
	CreatedBy     *int64    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ScheduleRequest is the body of the schedule endpoints.
// ScheduledAt may be RFC 3339 or a naive "YYYY-MM-DDTHH:MM[:SS]" read in Timezone.
type ScheduleRequest struct {
	Message     string `json:"message"`
	ScheduledAt string `json:"scheduled_at"`
	Timezone    string `json:"timezone"`
}

// DueDelivery is one (notification, token) pair still waiting for delivery.
type DueDelivery struct {
	NotificationID int64     `db:"notification_id"`
	ServerName     string    `db:"server_name"`
	Message        string    `db:"message"`
	ScheduledAt    time.Time `db:"scheduled_at"`
	DeviceID       string    `db:"device_id"`
	TokenID        int64     `db:"token_id"`
	Platform       string    `db:"platform"`
	Token          string    `db:"token"`
	Sandbox        bool      `db:"sandbox"`
	TokenUpdatedAt time.Time `db:"token_updated_at"`
	Username       *string   `db:"minecraft_username"`
}

// DispatchSummary counts what one dispatch pass did, per device.
type DispatchSummary struct {
	Candidates int `json:"candidates"`
	Delivered  int `json:"delivered"`
	Revoked    int `json:"revoked"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// SendSummary reports a direct send to one device.
type SendSummary struct {
	Sent    int `json:"sent"`
	Revoked int `json:"revoked"`
	Failed  int `json:"failed"`
}
