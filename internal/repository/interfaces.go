package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JaggerBean/FitCollector/internal/model"
)

// Transactor runs fn inside one database transaction, committing when fn returns nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// Methods that take a tx run on it when it is non-nil and on the pool otherwise.

type StepRepository interface {
	// UpsertMax stores rec unless the stored value is already >= rec.Steps.
	// applied is false when nothing changed; inserted is true for the first report of the day.
	UpsertMax(ctx context.Context, tx *sqlx.Tx, rec *model.StepRecord) (applied, inserted bool, err error)
	// LockDeviceDay takes a transaction-scoped lock on the device and day. An empty
	// server locks across every server. Without a tx the lock is released at once.
	LockDeviceDay(ctx context.Context, tx *sqlx.Tx, deviceID, server string, day time.Time) error
	// OtherUsernameOnDeviceDay returns the first username other than username that the
	// device reported for day. An empty server widens the search to every server.
	OtherUsernameOnDeviceDay(ctx context.Context, tx *sqlx.Tx, deviceID, server, username string, day time.Time) (string, bool, error)
	// Get returns model.ErrStepRecordNotFound when no record exists.
	Get(ctx context.Context, tx *sqlx.Tx, server, username string, day time.Time, forShare bool) (*model.StepRecord, error)
	ListRange(ctx context.Context, server, username string, from, to time.Time) ([]model.StepRecord, error)
}

type ClaimRepository interface {
	// MarkClaimed flips the claim to true. applied is false when it was already claimed.
	MarkClaimed(ctx context.Context, tx *sqlx.Tx, username, server string, day time.Time, minSteps int64, at time.Time) (claimedAt time.Time, applied bool, err error)
	// ClaimedAt returns nil when the tier has not been claimed.
	ClaimedAt(ctx context.Context, tx *sqlx.Tx, username, server string, day time.Time, minSteps int64) (*time.Time, error)
	ListClaimedRange(ctx context.Context, server, username string, from, to time.Time) ([]model.ClaimRecord, error)
}

type RewardRepository interface {
	ListByServer(ctx context.Context, server string) ([]model.RewardTier, error)
	// Replace holds a per-server lock until tx ends, so replaces of one catalog run one at a time.
	Replace(ctx context.Context, tx *sqlx.Tx, server string, tiers []model.RewardTier) error
}

type AuditRepository interface {
	// Record fills e.ID and e.CreatedAt.
	Record(ctx context.Context, tx *sqlx.Tx, e *model.AuditEvent) error
	ListForOwner(ctx context.Context, ownerID int64, f model.AuditFilter) ([]model.AuditEvent, error)
}

type IdentityRepository interface {
	// BoundUsername returns model.ErrPlayerNotFound when the device has no binding on server.
	BoundUsername(ctx context.Context, tx *sqlx.Tx, deviceID, server string) (string, error)
	Rename(ctx context.Context, tx *sqlx.Tx, deviceID, server, username string) error
	ResolvePlayerKey(ctx context.Context, keyHash, deviceID string) (*model.PlayerIdentity, error)
	ResolveServerKey(ctx context.Context, keyHash string) (string, error)
}

type BanRepository interface {
	IsBanned(ctx context.Context, tx *sqlx.Tx, server, username, deviceID string) (bool, error)
}

type ServerRepository interface {
	// Get returns model.ErrServerNotFound for unknown servers.
	Get(ctx context.Context, server string) (*model.Server, error)
	SetClaimBufferDays(ctx context.Context, server string, days int) error
}

type DeviceTokenRepository interface {
	// Upsert creates the token or refreshes its updated_at
	Upsert(ctx context.Context, token *model.DeviceToken) error
	// Delete removes one token, or every token of the platform when token is empty
	Delete(ctx context.Context, deviceID, server, platform, token string) (int64, error)
	DeleteByIDs(ctx context.Context, tx *sqlx.Tx, ids []int64) error
	ListByServer(ctx context.Context, server string) ([]model.DeviceToken, error)
	// ListByDevice returns tokens newest first; an empty server matches every server
	ListByDevice(ctx context.Context, deviceID, server string) ([]model.DeviceToken, error)
}

type NotificationRepository interface {
	// Create returns false when the server already has a notification on that date.
	Create(ctx context.Context, n *model.PushNotification) (bool, error)
	ListRecent(ctx context.Context, server string, limit int) ([]model.PushNotification, error)
}

type DeliveryRepository interface {
	// ListDue returns undelivered (notification, token) pairs whose time has come.
	ListDue(ctx context.Context, now time.Time, apnsSandbox bool, platforms []string, limit int) ([]model.DueDelivery, error)
	// TryLock takes a transaction-scoped advisory lock; false means another worker holds it.
	TryLock(ctx context.Context, tx *sqlx.Tx, key string) (bool, error)
	Exists(ctx context.Context, tx *sqlx.Tx, notificationID int64, deviceID string) (bool, error)
	Record(ctx context.Context, tx *sqlx.Tx, d *model.DueDelivery) error
}
