package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/metrics"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/push"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

// RegistryService manages the push tokens of player devices.
type RegistryService struct {
	tokens       repository.DeviceTokenRepository
	senders      push.Senders
	apnsSandbox  bool
	defaultTitle string
	metrics      metrics.Recorder
}

func NewRegistryService(
	tokens repository.DeviceTokenRepository,
	senders push.Senders,
	apnsSandbox bool,
	defaultTitle string,
	rec metrics.Recorder,
) *RegistryService {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &RegistryService{
		tokens:       tokens,
		senders:      senders,
		apnsSandbox:  apnsSandbox,
		defaultTitle: defaultTitle,
		metrics:      rec,
	}
}

// RegisterToken stores the token or refreshes it. A nil sandbox follows the server's APNs environment for iOS.
func (s *RegistryService) RegisterToken(ctx context.Context, deviceID, server, platform, token string, sandbox *bool) (*model.DeviceToken, error) {
	deviceID, server = strings.TrimSpace(deviceID), strings.TrimSpace(server)
	platform = strings.ToLower(strings.TrimSpace(platform))
	token = strings.TrimSpace(token)

	if deviceID == "" || server == "" {
		return nil, model.Validation("device_id", model.ErrIdentifierRequired)
	}
	if !model.ValidPlatform(platform) {
		return nil, model.Validation("platform", model.ErrInvalidPlatform)
	}
	if token == "" {
		return nil, model.Validation("token", model.ErrTokenRequired)
	}

	sb := platform == model.PlatformIOS && s.apnsSandbox
	if sandbox != nil {
		sb = *sandbox
	}

	t := &model.DeviceToken{
		DeviceID:   deviceID,
		ServerName: server,
		Platform:   platform,
		Token:      token,
		Sandbox:    sb,
	}
	if err := s.tokens.Upsert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UnregisterToken removes one token, or all of the device's tokens on that platform when token is empty.
func (s *RegistryService) UnregisterToken(ctx context.Context, deviceID, server, platform, token string) (int64, error) {
	deviceID, server = strings.TrimSpace(deviceID), strings.TrimSpace(server)
	platform = strings.ToLower(strings.TrimSpace(platform))

	if deviceID == "" || server == "" {
		return 0, model.Validation("device_id", model.ErrIdentifierRequired)
	}
	if !model.ValidPlatform(platform) {
		return 0, model.Validation("platform", model.ErrInvalidPlatform)
	}
	return s.tokens.Delete(ctx, deviceID, server, platform, strings.TrimSpace(token))
}

func (s *RegistryService) TokensForServer(ctx context.Context, server string) ([]model.DeviceToken, error) {
	return s.tokens.ListByServer(ctx, server)
}

func (s *RegistryService) TokensForDevice(ctx context.Context, deviceID, server string) ([]model.DeviceToken, error) {
	return s.tokens.ListByDevice(ctx, deviceID, server)
}

// SendToDevice pushes one message to the device, trying its tokens newest first until one succeeds.
// Without tokens on server it falls back to the device's tokens on any server.
func (s *RegistryService) SendToDevice(ctx context.Context, deviceID, server string, msg push.Message) (*model.SendSummary, error) {
	if strings.TrimSpace(msg.Body) == "" {
		return nil, model.Validation("body", model.ErrMessageRequired)
	}
	if msg.Title == "" {
		msg.Title = s.defaultTitle
	}

	tokens, err := s.tokens.ListByDevice(ctx, deviceID, server)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		tokens, err = s.tokens.ListByDevice(ctx, deviceID, "")
		if err != nil {
			return nil, err
		}
	}

	var usable []model.DeviceToken
	for _, t := range tokens {
		if s.compatible(t) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return nil, model.NotFound("push token", model.ErrNoTokensForEnv)
	}

	summary := &model.SendSummary{}
	var revoked []int64
	for _, t := range usable {
		sender, ok := s.senders.For(t.Platform)
		if !ok {
			continue
		}
		err := sender.Send(ctx, t.Token, msg)
		if err == nil {
			summary.Sent++
			s.metrics.IncPushSend(t.Platform, metrics.OutcomeDelivered)
			break
		}
		if push.IsPermanent(err) {
			revoked = append(revoked, t.ID)
			summary.Revoked++
			s.metrics.IncPushSend(t.Platform, metrics.OutcomeRevoked)
			log.Info().Str("component", "push").Str("device", deviceID).Str("platform", t.Platform).Msg("removed unregistered token")
			continue
		}
		summary.Failed++
		s.metrics.IncPushSend(t.Platform, metrics.OutcomeFailed)
		log.Warn().Err(err).Str("component", "push").Str("device", deviceID).Str("platform", t.Platform).Msg("direct send failed")
	}
	if err := s.tokens.DeleteByIDs(ctx, nil, revoked); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *RegistryService) compatible(t model.DeviceToken) bool {
	return t.Platform == model.PlatformAndroid || t.Sandbox == s.apnsSandbox
}
