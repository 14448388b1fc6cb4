package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/push"
)

// =============================================================================
// MOCKS
// =============================================================================
//
// Services depend on repository interfaces, so each test swaps in a mock whose
// behaviour is set per test through the fn fields. Repositories receive a nil
// tx because fakeTransactor never opens a real transaction.

type fakeTransactor struct {
	calls int
}

func (f *fakeTransactor) WithinTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	f.calls++
	return fn(nil)
}

type mockStepRepository struct {
	upsertMaxFn    func(rec *model.StepRecord) (bool, bool, error)
	otherUserFn    func(deviceID, server, username string, day time.Time) (string, bool, error)
	getFn          func(server, username string, day time.Time, forShare bool) (*model.StepRecord, error)
	listRangeFn    func(server, username string, from, to time.Time) ([]model.StepRecord, error)
	upsertMaxCalls []model.StepRecord
	lockCalls      []string
}

func (m *mockStepRepository) LockDeviceDay(_ context.Context, _ *sqlx.Tx, deviceID, server string, day time.Time) error {
	m.lockCalls = append(m.lockCalls, deviceID+"|"+server+"|"+day.Format(model.DateLayout))
	return nil
}

func (m *mockStepRepository) UpsertMax(_ context.Context, _ *sqlx.Tx, rec *model.StepRecord) (bool, bool, error) {
	m.upsertMaxCalls = append(m.upsertMaxCalls, *rec)
	if m.upsertMaxFn != nil {
		return m.upsertMaxFn(rec)
	}
	return true, true, nil
}

func (m *mockStepRepository) OtherUsernameOnDeviceDay(_ context.Context, _ *sqlx.Tx, deviceID, server, username string, day time.Time) (string, bool, error) {
	if m.otherUserFn != nil {
		return m.otherUserFn(deviceID, server, username, day)
	}
	return "", false, nil
}

func (m *mockStepRepository) Get(_ context.Context, _ *sqlx.Tx, server, username string, day time.Time, forShare bool) (*model.StepRecord, error) {
	if m.getFn != nil {
		return m.getFn(server, username, day, forShare)
	}
	return nil, model.ErrStepRecordNotFound
}

func (m *mockStepRepository) ListRange(_ context.Context, server, username string, from, to time.Time) ([]model.StepRecord, error) {
	if m.listRangeFn != nil {
		return m.listRangeFn(server, username, from, to)
	}
	return nil, nil
}

type mockClaimRepository struct {
	markClaimedFn  func(username, server string, day time.Time, minSteps int64, at time.Time) (time.Time, bool, error)
	claimedAtFn    func(username, server string, day time.Time, minSteps int64) (*time.Time, error)
	listClaimedFn  func(server, username string, from, to time.Time) ([]model.ClaimRecord, error)
	markClaimCalls int
}

func (m *mockClaimRepository) MarkClaimed(_ context.Context, _ *sqlx.Tx, username, server string, day time.Time, minSteps int64, at time.Time) (time.Time, bool, error) {
	m.markClaimCalls++
	if m.markClaimedFn != nil {
		return m.markClaimedFn(username, server, day, minSteps, at)
	}
	return at, true, nil
}

func (m *mockClaimRepository) ClaimedAt(_ context.Context, _ *sqlx.Tx, username, server string, day time.Time, minSteps int64) (*time.Time, error) {
	if m.claimedAtFn != nil {
		return m.claimedAtFn(username, server, day, minSteps)
	}
	return nil, nil
}

func (m *mockClaimRepository) ListClaimedRange(_ context.Context, server, username string, from, to time.Time) ([]model.ClaimRecord, error) {
	if m.listClaimedFn != nil {
		return m.listClaimedFn(server, username, from, to)
	}
	return nil, nil
}

type mockRewardRepository struct {
	listFn       func(server string) ([]model.RewardTier, error)
	replaceFn    func(server string, tiers []model.RewardTier) error
	replaceCalls [][]model.RewardTier
}

func (m *mockRewardRepository) ListByServer(_ context.Context, server string) ([]model.RewardTier, error) {
	if m.listFn != nil {
		return m.listFn(server)
	}
	return nil, nil
}

func (m *mockRewardRepository) Replace(_ context.Context, _ *sqlx.Tx, server string, tiers []model.RewardTier) error {
	m.replaceCalls = append(m.replaceCalls, tiers)
	if m.replaceFn != nil {
		return m.replaceFn(server, tiers)
	}
	return nil
}

type mockIdentityRepository struct {
	boundFn     func(deviceID, server string) (string, error)
	renameCalls []string
}

func (m *mockIdentityRepository) BoundUsername(_ context.Context, _ *sqlx.Tx, deviceID, server string) (string, error) {
	if m.boundFn != nil {
		return m.boundFn(deviceID, server)
	}
	return "", model.ErrPlayerNotFound
}

func (m *mockIdentityRepository) Rename(_ context.Context, _ *sqlx.Tx, _, _, username string) error {
	m.renameCalls = append(m.renameCalls, username)
	return nil
}

func (m *mockIdentityRepository) ResolvePlayerKey(context.Context, string, string) (*model.PlayerIdentity, error) {
	return nil, model.ErrPlayerNotFound
}

func (m *mockIdentityRepository) ResolveServerKey(context.Context, string) (string, error) {
	return "", model.ErrServerNotFound
}

type mockBanRepository struct {
	banned bool
}

func (m *mockBanRepository) IsBanned(context.Context, *sqlx.Tx, string, string, string) (bool, error) {
	return m.banned, nil
}

type mockServerRepository struct {
	getFn    func(server string) (*model.Server, error)
	setCalls map[string]int
	getCalls int
}

func (m *mockServerRepository) Get(_ context.Context, server string) (*model.Server, error) {
	m.getCalls++
	if m.getFn != nil {
		return m.getFn(server)
	}
	return nil, model.ErrServerNotFound
}

func (m *mockServerRepository) SetClaimBufferDays(_ context.Context, server string, days int) error {
	if m.setCalls == nil {
		m.setCalls = map[string]int{}
	}
	m.setCalls[server] = days
	return nil
}

type mockDeviceTokenRepository struct {
	mu           sync.Mutex
	upsertFn     func(t *model.DeviceToken) error
	deleteFn     func(deviceID, server, platform, token string) (int64, error)
	listDeviceFn func(deviceID, server string) ([]model.DeviceToken, error)
	deletedIDs   []int64
}

func (m *mockDeviceTokenRepository) Upsert(_ context.Context, t *model.DeviceToken) error {
	if m.upsertFn != nil {
		return m.upsertFn(t)
	}
	return nil
}

func (m *mockDeviceTokenRepository) Delete(_ context.Context, deviceID, server, platform, token string) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(deviceID, server, platform, token)
	}
	return 0, nil
}

func (m *mockDeviceTokenRepository) DeleteByIDs(_ context.Context, _ *sqlx.Tx, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedIDs = append(m.deletedIDs, ids...)
	return nil
}

func (m *mockDeviceTokenRepository) ListByServer(context.Context, string) ([]model.DeviceToken, error) {
	return nil, nil
}

func (m *mockDeviceTokenRepository) ListByDevice(_ context.Context, deviceID, server string) ([]model.DeviceToken, error) {
	if m.listDeviceFn != nil {
		return m.listDeviceFn(deviceID, server)
	}
	return nil, nil
}

type mockNotificationRepository struct {
	createFn    func(n *model.PushNotification) (bool, error)
	createCalls []model.PushNotification
}

func (m *mockNotificationRepository) Create(_ context.Context, n *model.PushNotification) (bool, error) {
	m.createCalls = append(m.createCalls, *n)
	if m.createFn != nil {
		return m.createFn(n)
	}
	n.ID = int64(len(m.createCalls))
	return true, nil
}

func (m *mockNotificationRepository) ListRecent(context.Context, string, int) ([]model.PushNotification, error) {
	return nil, nil
}

// mockDeliveryRepository keeps delivered pairs in memory so repeated passes see earlier deliveries.
// ListDue filters and limits the way the SQL query does.
type mockDeliveryRepository struct {
	due       []model.DueDelivery
	locked    map[string]bool
	delivered map[string]bool
	listCalls int
	platforms []string
}

func (m *mockDeliveryRepository) ListDue(_ context.Context, _ time.Time, _ bool, platforms []string, limit int) ([]model.DueDelivery, error) {
	m.listCalls++
	m.platforms = platforms
	var out []model.DueDelivery
	for _, d := range m.due {
		if m.delivered[lockKey(d.NotificationID, d.DeviceID)] || !slices.Contains(platforms, d.Platform) {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDeliveryRepository) TryLock(_ context.Context, _ *sqlx.Tx, key string) (bool, error) {
	return !m.locked[key], nil
}

func (m *mockDeliveryRepository) Exists(_ context.Context, _ *sqlx.Tx, notificationID int64, deviceID string) (bool, error) {
	return m.delivered[lockKey(notificationID, deviceID)], nil
}

func (m *mockDeliveryRepository) Record(_ context.Context, _ *sqlx.Tx, d *model.DueDelivery) error {
	if m.delivered == nil {
		m.delivered = map[string]bool{}
	}
	m.delivered[lockKey(d.NotificationID, d.DeviceID)] = true
	return nil
}

// fakeSender answers per token: a nil entry means success.
type fakeSender struct {
	mu       sync.Mutex
	failures map[string]error
	sent     []string
}

func (f *fakeSender) Send(_ context.Context, token string, _ push.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, token)
	return f.failures[token]
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type mockAuditRepository struct {
	mu       sync.Mutex
	recordFn func(e *model.AuditEvent) error
	listFn   func(ownerID int64, f model.AuditFilter) ([]model.AuditEvent, error)
	recorded []model.AuditEvent
}

func (m *mockAuditRepository) Record(_ context.Context, _ *sqlx.Tx, e *model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordFn != nil {
		if err := m.recordFn(e); err != nil {
			return err
		}
	}
	e.ID = int64(len(m.recorded) + 1)
	m.recorded = append(m.recorded, *e)
	return nil
}

func (m *mockAuditRepository) ListForOwner(_ context.Context, ownerID int64, f model.AuditFilter) ([]model.AuditEvent, error) {
	if m.listFn != nil {
		return m.listFn(ownerID, f)
	}
	return nil, nil
}

// fakeCatalogCache mirrors the Redis semantics in memory.
type fakeCatalogCache struct {
	entries     map[string][]model.RewardTier
	setErr      error
	invalidated []string
}

func (f *fakeCatalogCache) Get(_ context.Context, server string) ([]model.RewardTier, bool, error) {
	tiers, ok := f.entries[server]
	return tiers, ok, nil
}

func (f *fakeCatalogCache) Set(_ context.Context, server string, tiers []model.RewardTier) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.put(server, tiers)
	return nil
}

func (f *fakeCatalogCache) Fill(_ context.Context, server string, tiers []model.RewardTier) error {
	if _, ok := f.entries[server]; !ok {
		f.put(server, tiers)
	}
	return nil
}

func (f *fakeCatalogCache) Invalidate(_ context.Context, server string) error {
	f.invalidated = append(f.invalidated, server)
	delete(f.entries, server)
	return nil
}

func (f *fakeCatalogCache) put(server string, tiers []model.RewardTier) {
	if f.entries == nil {
		f.entries = map[string][]model.RewardTier{}
	}
	if tiers == nil {
		tiers = []model.RewardTier{}
	}
	f.entries[server] = tiers
}
