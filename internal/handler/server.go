package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/httputil"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/service"
	"github.com/JaggerBean/FitCollector/internal/transport/http/middleware"
)

// ServerHandler serves the game-server plugin, authenticated by the server API key.
type ServerHandler struct {
	claims        *service.ClaimService
	ingest        *service.IngestService
	rewards       *service.RewardService
	notifications *service.NotificationService
	clock         *clock.Clock
}

func NewServerHandler(
	claims *service.ClaimService,
	ingest *service.IngestService,
	rewards *service.RewardService,
	notifications *service.NotificationService,
	clk *clock.Clock,
) *ServerHandler {
	return &ServerHandler{
		claims:        claims,
		ingest:        ingest,
		rewards:       rewards,
		notifications: notifications,
		clock:         clk,
	}
}

// target returns the authenticated server and the {username} path parameter.
func (h *ServerHandler) target(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	server, ok := middleware.GetServerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return "", "", false
	}
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		httputil.WriteBadRequest(w, "minecraft_username is required")
		return "", "", false
	}
	return server, username, true
}

// ClaimAvailable handles GET /v1/servers/players/{username}/claim-available
func (h *ServerHandler) ClaimAvailable(w http.ResponseWriter, r *http.Request) {
	server, username, ok := h.target(w, r)
	if !ok {
		return
	}

	items, err := h.claims.ListClaimableFor(r.Context(), server, username)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"minecraft_username": username,
		"server_name":        server,
		"items":              claimableViews(items),
	})
}

// ClaimStatus handles GET /v1/servers/players/{username}/claim-status?min_steps=&day=
func (h *ServerHandler) ClaimStatus(w http.ResponseWriter, r *http.Request) {
	server, username, ok := h.target(w, r)
	if !ok {
		return
	}
	minSteps, err := queryMinSteps(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	day, err := queryDay(r, h.clock.Today())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	st, err := h.claims.ClaimStatus(r.Context(), server, username, day, minSteps)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTierStatusView(*st))
}

// ClaimStatusList handles GET /v1/servers/players/{username}/claim-status-list
func (h *ServerHandler) ClaimStatusList(w http.ResponseWriter, r *http.Request) {
	server, username, ok := h.target(w, r)
	if !ok {
		return
	}

	list, err := h.claims.ClaimStatusList(r.Context(), server, username)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	items := make([]tierStatusView, 0, len(list))
	for _, st := range list {
		items = append(items, toTierStatusView(st))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"minecraft_username": username,
		"server_name":        server,
		"items":              items,
	})
}

// ClaimReward handles POST /v1/servers/players/{username}/claim-reward?min_steps=&day=
// day defaults to today in the business timezone.
func (h *ServerHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	server, username, ok := h.target(w, r)
	if !ok {
		return
	}
	minSteps, err := queryMinSteps(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	day, err := queryDay(r, h.clock.Today())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	res, err := h.claims.Claim(r.Context(), server, username, day, minSteps)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"minecraft_username": username,
		"server_name":        server,
		"day":                clock.FormatDay(day),
		"min_steps":          minSteps,
		"claimed":            res.Claimed,
		"claimed_at":         res.ClaimedAt,
		"already_claimed":    res.AlreadyClaimed,
	})
}

// YesterdaySteps handles GET /v1/servers/players/{username}/yesterday-steps
func (h *ServerHandler) YesterdaySteps(w http.ResponseWriter, r *http.Request) {
	server, username, ok := h.target(w, r)
	if !ok {
		return
	}
	yesterday := h.clock.Today().AddDate(0, 0, -1)

	rec, err := h.ingest.StepsForDay(r.Context(), server, username, yesterday)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"minecraft_username": username,
		"server_name":        server,
		"day":                clock.FormatDay(yesterday),
		"steps_yesterday":    rec.Steps,
	})
}

// Rewards handles GET /v1/servers/rewards
func (h *ServerHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	server, ok := middleware.GetServerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	writeRewards(w, r, h.rewards, server)
}

// ReplaceRewards handles PUT /v1/servers/rewards
func (h *ServerHandler) ReplaceRewards(w http.ResponseWriter, r *http.Request) {
	server, ok := middleware.GetServerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	replaceRewards(w, r, h.rewards, server, nil)
}

// DefaultRewards handles POST /v1/servers/rewards/default
func (h *ServerHandler) DefaultRewards(w http.ResponseWriter, r *http.Request) {
	server, ok := middleware.GetServerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	resetRewards(w, r, h.rewards, server, nil)
}

// ListPush handles GET /v1/servers/push
func (h *ServerHandler) ListPush(w http.ResponseWriter, r *http.Request) {
	server, ok := middleware.GetServerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	items, err := h.notifications.ListRecent(r.Context(), server)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"server_name": server, "items": notificationViews(items)})
}

// SchedulePush handles POST /v1/servers/push
func (h *ServerHandler) SchedulePush(w http.ResponseWriter, r *http.Request) {
	server, ok := middleware.GetServerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	schedulePush(w, r, h.notifications, server, nil)
}

func writeRewards(w http.ResponseWriter, r *http.Request, rewards *service.RewardService, server string) {
	tiers, isDefault, err := rewards.ForServer(r.Context(), server)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"server_name": server, "tiers": tiers, "is_default": isDefault})
}

func replaceRewards(w http.ResponseWriter, r *http.Request, rewards *service.RewardService, server string, actor *int64) {
	var payload model.RewardsPayload
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	tiers, err := rewards.Replace(r.Context(), server, payload.Tiers, actor)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"server_name": server, "tiers": tiers})
}

func resetRewards(w http.ResponseWriter, r *http.Request, rewards *service.RewardService, server string, actor *int64) {
	tiers, err := rewards.ResetToDefault(r.Context(), server, actor)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"server_name": server, "tiers": tiers, "is_default": false})
}

func schedulePush(w http.ResponseWriter, r *http.Request, notifications *service.NotificationService, server string, createdBy *int64) {
	var req model.ScheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	n, err := notifications.Schedule(r.Context(), server, req.Message, req.ScheduledAt, req.Timezone, createdBy)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, notificationView{
		ID:          n.ID,
		Message:     n.Message,
		ScheduledAt: n.ScheduledAt,
		CreatedAt:   n.CreatedAt,
	})
}
