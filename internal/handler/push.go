package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JaggerBean/FitCollector/internal/httputil"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/push"
	"github.com/JaggerBean/FitCollector/internal/service"
	"github.com/JaggerBean/FitCollector/internal/transport/http/middleware"
)

// PlayerHandler serves the mobile app: claimable rewards and push token management.
type PlayerHandler struct {
	claims   *service.ClaimService
	registry *service.RegistryService
	keys     middleware.KeyResolver
}

func NewPlayerHandler(claims *service.ClaimService, registry *service.RegistryService, keys middleware.KeyResolver) *PlayerHandler {
	return &PlayerHandler{claims: claims, registry: registry, keys: keys}
}

// playerCredentials are accepted in the body as older app builds send them.
type playerCredentials struct {
	DeviceID     string `json:"device_id"`
	PlayerAPIKey string `json:"player_api_key"`
}

type registerDeviceRequest struct {
	playerCredentials
	model.RegisterTokenRequest
	APNsToken string `json:"apns_token"`
}

type unregisterDeviceRequest struct {
	playerCredentials
	model.UnregisterTokenRequest
}

type sendPushRequest struct {
	playerCredentials
	model.SendPushRequest
}

// Claimable handles GET /v1/players/rewards/claimable
func (h *PlayerHandler) Claimable(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetPlayerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	items, err := h.claims.ListClaimable(r.Context(), id.ServerName, id.DeviceID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"server_name":        id.ServerName,
		"minecraft_username": id.Username,
		"items":              claimableViews(items),
	})
}

// RegisterDevice handles POST /v1/players/push/register-device
func (h *PlayerHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	id, ok := h.player(w, r, req.playerCredentials)
	if !ok {
		return
	}

	token := req.Token
	if token == "" {
		token = req.APNsToken
	}
	platform := req.Platform
	if platform == "" {
		platform = model.PlatformIOS
	}

	if _, err := h.registry.RegisterToken(r.Context(), id.DeviceID, id.ServerName, platform, token, req.Sandbox); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// UnregisterDevice handles DELETE /v1/players/push/register-device
func (h *PlayerHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	var req unregisterDeviceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	id, ok := h.player(w, r, req.playerCredentials)
	if !ok {
		return
	}

	removed, err := h.registry.UnregisterToken(r.Context(), id.DeviceID, id.ServerName, req.Platform, req.Token)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "removed": removed})
}

// Send handles POST /v1/players/push/send
func (h *PlayerHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendPushRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	id, ok := h.player(w, r, req.playerCredentials)
	if !ok {
		return
	}

	summary, err := h.registry.SendToDevice(r.Context(), id.DeviceID, id.ServerName, push.Message{
		Title: strings.TrimSpace(req.Title),
		Body:  req.Body,
		Data:  req.Data,
	})
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"sent":    summary.Sent,
		"revoked": summary.Revoked,
		"failed":  summary.Failed,
	})
}

// player resolves the caller from body credentials, falling back to the X-Device-ID and X-Player-Key headers.
func (h *PlayerHandler) player(w http.ResponseWriter, r *http.Request, c playerCredentials) (*model.PlayerIdentity, bool) {
	deviceID, key := c.DeviceID, c.PlayerAPIKey
	if deviceID == "" || key == "" {
		deviceID = r.Header.Get(middleware.HeaderDeviceID)
		key = r.Header.Get(middleware.HeaderPlayerKey)
	}
	id, err := middleware.ResolvePlayer(r.Context(), h.keys, deviceID, key)
	if errors.Is(err, model.ErrPlayerNotFound) {
		httputil.WriteUnauthorized(w, "Invalid player key")
		return nil, false
	}
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return nil, false
	}
	return id, true
}
