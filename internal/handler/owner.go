package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JaggerBean/FitCollector/internal/httputil"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/service"
	"github.com/JaggerBean/FitCollector/internal/transport/http/middleware"
)

// OwnerHandler serves the web dashboard of server owners.
type OwnerHandler struct {
	settings      *service.SettingsService
	rewards       *service.RewardService
	notifications *service.NotificationService
	audits        *service.AuditService
}

func NewOwnerHandler(
	settings *service.SettingsService,
	rewards *service.RewardService,
	notifications *service.NotificationService,
	audits *service.AuditService,
) *OwnerHandler {
	return &OwnerHandler{settings: settings, rewards: rewards, notifications: notifications, audits: audits}
}

// owned checks that the authenticated user owns {server}.
func (h *OwnerHandler) owned(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return "", 0, false
	}
	server := chi.URLParam(r, "server")
	if err := h.settings.EnsureOwner(r.Context(), server, userID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return "", 0, false
	}
	return server, userID, true
}

// ReplaceRewards handles PUT /v1/owner/servers/{server}/rewards
func (h *OwnerHandler) ReplaceRewards(w http.ResponseWriter, r *http.Request) {
	server, userID, ok := h.owned(w, r)
	if !ok {
		return
	}
	replaceRewards(w, r, h.rewards, server, &userID)
}

// DefaultRewards handles POST /v1/owner/servers/{server}/rewards/default
func (h *OwnerHandler) DefaultRewards(w http.ResponseWriter, r *http.Request) {
	server, userID, ok := h.owned(w, r)
	if !ok {
		return
	}
	resetRewards(w, r, h.rewards, server, &userID)
}

// SchedulePush handles POST /v1/owner/servers/{server}/push
func (h *OwnerHandler) SchedulePush(w http.ResponseWriter, r *http.Request) {
	server, userID, ok := h.owned(w, r)
	if !ok {
		return
	}
	schedulePush(w, r, h.notifications, server, &userID)
}

// UpdateSettings handles PATCH /v1/owner/servers/{server}/settings
func (h *OwnerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	server, _, ok := h.owned(w, r)
	if !ok {
		return
	}

	var patch model.ServerSettingsPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if patch.ClaimBufferDays == nil {
		httputil.WriteBadRequest(w, "No settings to update")
		return
	}

	if err := h.settings.SetClaimBufferDays(r.Context(), server, *patch.ClaimBufferDays); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"server_name":       server,
		"claim_buffer_days": *patch.ClaimBufferDays,
	})
}

// Audit handles GET /v1/owner/audit
func (h *OwnerHandler) Audit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	q := r.URL.Query()
	filter := model.AuditFilter{Server: q.Get("server"), Action: q.Get("action")}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n == 0 {
			httputil.WriteBadRequest(w, model.ErrLimitOutOfRange.Error())
			return
		}
		filter.Limit = n
	}

	events, err := h.audits.List(r.Context(), userID, filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	limit := filter.Limit
	if limit == 0 {
		limit = model.DefaultAuditLimit
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": auditViews(events), "limit": limit})
}
