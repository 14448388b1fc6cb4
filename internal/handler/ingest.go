package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/httputil"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/service"
	"github.com/JaggerBean/FitCollector/internal/transport/http/middleware"
)

type IngestHandler struct {
	ingest *service.IngestService
	keys   middleware.KeyResolver
}

func NewIngestHandler(ingest *service.IngestService, keys middleware.KeyResolver) *IngestHandler {
	return &IngestHandler{ingest: ingest, keys: keys}
}

type ingestResponse struct {
	OK         bool   `json:"ok"`
	DeviceID   string `json:"device_id"`
	Day        string `json:"day"`
	StepsToday int64  `json:"steps_today"`
	Upserted   bool   `json:"upserted"`
	NewDay     bool   `json:"new_day"`
	Reason     string `json:"reason,omitempty"`
}

// Ingest handles POST /v1/ingest
// The player key travels in the body, the server is the one the key was issued for.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var p model.IngestPayload
	if err := httputil.DecodeJSON(r, &p); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	id, err := middleware.ResolvePlayer(r.Context(), h.keys, p.DeviceID, p.PlayerAPIKey)
	if errors.Is(err, model.ErrPlayerNotFound) {
		httputil.WriteUnauthorized(w, "Invalid player key")
		return
	}
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	req := model.IngestRequest{
		ServerName: id.ServerName,
		DeviceID:   p.DeviceID,
		Username:   p.Username,
		Steps:      p.Steps,
		Source:     strings.TrimSpace(p.Source),
	}
	if p.Day != nil && strings.TrimSpace(*p.Day) != "" {
		d, err := clock.ParseDay(strings.TrimSpace(*p.Day))
		if err != nil {
			httputil.WriteBadRequest(w, "day must be YYYY-MM-DD")
			return
		}
		req.Day = &d
	}
	if p.Timestamp != nil && strings.TrimSpace(*p.Timestamp) != "" {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*p.Timestamp))
		if err != nil {
			httputil.WriteBadRequest(w, "timestamp must be RFC 3339")
			return
		}
		req.ReportedAt = &ts
	}

	res, err := h.ingest.Ingest(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ingestResponse{
		OK:         true,
		DeviceID:   strings.TrimSpace(p.DeviceID),
		Day:        clock.FormatDay(res.Day),
		StepsToday: res.Steps,
		Upserted:   res.Accepted,
		NewDay:     res.IsNewDay,
		Reason:     res.Reason,
	})
}
