package handler

import (
	"context"
	"net/http"

	"github.com/JaggerBean/FitCollector/internal/httputil"
	"github.com/JaggerBean/FitCollector/internal/model"
)

// DispatchRunner runs one delivery pass.
type DispatchRunner interface {
	RunOnce(ctx context.Context) (*model.DispatchSummary, error)
}

type OpsHandler struct {
	dispatcher DispatchRunner
}

func NewOpsHandler(d DispatchRunner) *OpsHandler {
	return &OpsHandler{dispatcher: d}
}

// Dispatch handles POST /v1/ops/push/dispatch
func (h *OpsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dispatcher.RunOnce(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"candidates": summary.Candidates,
		"delivered":  summary.Delivered,
		"revoked":    summary.Revoked,
		"failed":     summary.Failed,
		"skipped":    summary.Skipped,
	})
}
