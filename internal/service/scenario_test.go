package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/database/dbtest"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/push"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

// TestScenario_StepsToRewardToPush walks one player through a whole day on a real database.
func TestScenario_StepsToRewardToPush(t *testing.T) {
	// ARRANGE
	db := dbtest.New(t)
	ctx := context.Background()
	dbtest.SeedServer(t, db, "alpha", nil, nil)
	dbtest.SeedPlayerKey(t, db, "hash-1", "dev-1", "alpha", "Steve")

	now := time.Now()
	clk := clock.New(chicago, func() time.Time { return now })

	txr := repository.NewTransactor(db)
	steps := repository.NewStepRepository(db)
	identities := repository.NewIdentityRepository(db)
	tokens := repository.NewDeviceTokenRepository(db)

	ingest := NewIngestService(txr, steps, identities, repository.NewBanRepository(db), clk, model.BindingScopePerServer, nil)
	catalog := NewRewardService(txr, repository.NewRewardRepository(db), repository.NewAuditRepository(db), nil, nil)
	settings := NewSettingsService(repository.NewServerRepository(db), nil)
	claims := NewClaimService(txr, steps, repository.NewClaimRepository(db), identities, catalog, settings, clk, true, nil)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), clk)

	ios := &fakeSender{}
	android := &fakeSender{}
	dispatcher := NewDispatcher(txr, repository.NewDeliveryRepository(db), tokens,
		push.Senders{model.PlatformIOS: ios, model.PlatformAndroid: android}, clk,
		DispatcherConfig{BatchSize: 50, APNsSandbox: true, DefaultTitle: "StepCraft"}, nil)

	// ACT: three reports, only the highest sticks
	for _, n := range []int64{4000, 3000, 6000} {
		_, err := ingest.Ingest(ctx, model.IngestRequest{ServerName: "alpha", DeviceID: "dev-1", Username: "Steve", Steps: n})
		require.NoError(t, err)
	}

	// ASSERT
	rec, err := ingest.StepsForDay(ctx, "alpha", "Steve", clk.Today())
	require.NoError(t, err)
	assert.Equal(t, int64(6000), rec.Steps)

	claimable, err := claims.ListClaimable(ctx, "alpha", "dev-1")
	require.NoError(t, err)
	require.Len(t, claimable, 2, "default catalog has 1000 and 5000 under 6000 steps")
	assert.Equal(t, int64(1000), claimable[0].MinSteps)
	assert.Equal(t, int64(5000), claimable[1].MinSteps)

	first, err := claims.Claim(ctx, "alpha", "Steve", clk.Today(), 5000)
	require.NoError(t, err)
	assert.False(t, first.AlreadyClaimed)

	again, err := claims.Claim(ctx, "alpha", "Steve", clk.Today(), 5000)
	require.NoError(t, err)
	assert.True(t, again.AlreadyClaimed)
	assert.True(t, first.ClaimedAt.Equal(again.ClaimedAt))

	_, err = claims.Claim(ctx, "alpha", "Steve", clk.Today(), 10000)
	var validation *model.ValidationError
	assert.ErrorAs(t, err, &validation)

	claimable, err = claims.ListClaimable(ctx, "alpha", "dev-1")
	require.NoError(t, err)
	require.Len(t, claimable, 1)
	assert.Equal(t, int64(1000), claimable[0].MinSteps)

	// ACT: schedule a push and let it come due
	at := now.Add(time.Hour).In(chicago).Format("2006-01-02T15:04:05")
	_, err = notifications.Schedule(ctx, "alpha", "Time to walk", at, "America/Chicago", nil)
	require.NoError(t, err)
	require.NoError(t, tokens.Upsert(ctx, &model.DeviceToken{DeviceID: "dev-1", ServerName: "alpha", Platform: model.PlatformIOS, Token: "ios-1", Sandbox: true}))
	require.NoError(t, tokens.Upsert(ctx, &model.DeviceToken{DeviceID: "dev-2", ServerName: "alpha", Platform: model.PlatformAndroid, Token: "fcm-2"}))

	early, err := dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, early.Candidates, "not due yet")

	now = now.Add(2 * time.Hour)
	summary, err := dispatcher.RunOnce(ctx)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Delivered)
	assert.Equal(t, 1, ios.calls())
	assert.Equal(t, 1, android.calls())

	second, err := dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Delivered, "each device gets a notification once")
	assert.Equal(t, 1, ios.calls())
}
