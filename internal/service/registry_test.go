package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/push"
)

func unregistered() error {
	return &push.ProviderError{Provider: "apns", Status: 410, Reason: "Unregistered", Permanent: true}
}

func TestRegisterToken_SandboxDefaults(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		sandbox  *bool
		want     bool
	}{
		{"ios follows server setting", "ios", nil, true},
		{"android never sandbox", "android", nil, false},
		{"explicit production", "IOS", ptr(false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stored *model.DeviceToken
			repo := &mockDeviceTokenRepository{upsertFn: func(tok *model.DeviceToken) error {
				stored = tok
				return nil
			}}
			svc := NewRegistryService(repo, nil, true, "StepCraft", nil)

			_, err := svc.RegisterToken(context.Background(), "dev-1", "alpha", tt.platform, " tok ", tt.sandbox)

			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, tt.want, stored.Sandbox)
			assert.Equal(t, "tok", stored.Token)
		})
	}
}

func TestRegisterToken_Rejections(t *testing.T) {
	svc := NewRegistryService(&mockDeviceTokenRepository{}, nil, true, "", nil)

	_, err := svc.RegisterToken(context.Background(), "dev-1", "alpha", "windows", "tok", nil)
	assert.ErrorIs(t, err, model.ErrInvalidPlatform)

	_, err = svc.RegisterToken(context.Background(), "dev-1", "alpha", "ios", "  ", nil)
	assert.ErrorIs(t, err, model.ErrTokenRequired)

	_, err = svc.RegisterToken(context.Background(), "  ", "alpha", "ios", "tok", nil)
	assert.ErrorIs(t, err, model.ErrIdentifierRequired)
}

func TestRegisterToken_TrimsIdentifiers(t *testing.T) {
	var stored *model.DeviceToken
	repo := &mockDeviceTokenRepository{upsertFn: func(tok *model.DeviceToken) error {
		stored = tok
		return nil
	}}
	svc := NewRegistryService(repo, nil, true, "", nil)

	_, err := svc.RegisterToken(context.Background(), " dev-1 ", " alpha\t", "android", "tok", nil)

	require.NoError(t, err)
	assert.Equal(t, "dev-1", stored.DeviceID)
	assert.Equal(t, "alpha", stored.ServerName)
}

func TestUnregisterToken(t *testing.T) {
	tests := []struct {
		name     string
		deviceID string
		server   string
		platform string
		wantErr  error
		wantCall bool
	}{
		{"trimmed identifiers reach the repository", " dev-1 ", " alpha ", " IOS ", nil, true},
		{"blank device", "   ", "alpha", "ios", model.ErrIdentifierRequired, false},
		{"blank server", "dev-1", "", "ios", model.ErrIdentifierRequired, false},
		{"unknown platform", "dev-1", "alpha", "web", model.ErrInvalidPlatform, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			repo := &mockDeviceTokenRepository{deleteFn: func(deviceID, server, platform, token string) (int64, error) {
				got = []string{deviceID, server, platform, token}
				return 1, nil
			}}
			svc := NewRegistryService(repo, nil, true, "", nil)

			n, err := svc.UnregisterToken(context.Background(), tt.deviceID, tt.server, tt.platform, " tok ")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var verr *model.ValidationError
				assert.ErrorAs(t, err, &verr)
				assert.Nil(t, got, "repository must not be called")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
			assert.Equal(t, []string{"dev-1", "alpha", "ios", "tok"}, got)
		})
	}
}

func TestSendToDevice_StopsAtFirstSuccess(t *testing.T) {
	// ARRANGE
	ios := &fakeSender{failures: map[string]error{"dead": unregistered()}}
	repo := &mockDeviceTokenRepository{listDeviceFn: func(string, string) ([]model.DeviceToken, error) {
		return []model.DeviceToken{
			{ID: 1, Platform: "ios", Token: "dead", Sandbox: true},
			{ID: 2, Platform: "ios", Token: "live", Sandbox: true},
			{ID: 3, Platform: "ios", Token: "older", Sandbox: true},
		}, nil
	}}
	svc := NewRegistryService(repo, push.Senders{"ios": ios}, true, "StepCraft", nil)

	// ACT
	sum, err := svc.SendToDevice(context.Background(), "dev-1", "alpha", push.Message{Body: "walk!"})

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Revoked)
	assert.Equal(t, []string{"dead", "live"}, ios.sent)
	assert.Equal(t, []int64{1}, repo.deletedIDs)
}

func TestSendToDevice_FallsBackToAnyServer(t *testing.T) {
	var servers []string
	repo := &mockDeviceTokenRepository{listDeviceFn: func(_, server string) ([]model.DeviceToken, error) {
		servers = append(servers, server)
		if server == "" {
			return []model.DeviceToken{{ID: 9, Platform: "android", Token: "a"}}, nil
		}
		return nil, nil
	}}
	android := &fakeSender{}
	svc := NewRegistryService(repo, push.Senders{"android": android}, true, "StepCraft", nil)

	sum, err := svc.SendToDevice(context.Background(), "dev-1", "alpha", push.Message{Body: "hi"})

	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", ""}, servers)
	assert.Equal(t, 1, sum.Sent)
}

func TestSendToDevice_NoTokenForEnvironment(t *testing.T) {
	repo := &mockDeviceTokenRepository{listDeviceFn: func(string, string) ([]model.DeviceToken, error) {
		return []model.DeviceToken{{ID: 1, Platform: "ios", Token: "prod", Sandbox: false}}, nil
	}}
	svc := NewRegistryService(repo, push.Senders{"ios": &fakeSender{}}, true, "", nil)

	_, err := svc.SendToDevice(context.Background(), "dev-1", "alpha", push.Message{Body: "hi"})

	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.ErrorIs(t, err, model.ErrNoTokensForEnv)
}

func TestSendToDevice_TransientFailureKeepsToken(t *testing.T) {
	android := &fakeSender{failures: map[string]error{"a": errors.New("timeout")}}
	repo := &mockDeviceTokenRepository{listDeviceFn: func(string, string) ([]model.DeviceToken, error) {
		return []model.DeviceToken{{ID: 4, Platform: "android", Token: "a"}}, nil
	}}
	svc := NewRegistryService(repo, push.Senders{"android": android}, false, "", nil)

	sum, err := svc.SendToDevice(context.Background(), "dev-1", "alpha", push.Message{Body: "hi"})

	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, repo.deletedIDs)
}

func TestSendToDevice_EmptyBody(t *testing.T) {
	svc := NewRegistryService(&mockDeviceTokenRepository{}, nil, true, "", nil)

	_, err := svc.SendToDevice(context.Background(), "dev-1", "alpha", push.Message{Body: " "})

	assert.ErrorIs(t, err, model.ErrMessageRequired)
}
