package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/model"
)

// Response shapes. Days are rendered as YYYY-MM-DD.

type claimableView struct {
	Day      string `json:"day"`
	MinSteps int64  `json:"min_steps"`
	Label    string `json:"label"`
}

type tierStatusView struct {
	Day       string     `json:"day"`
	MinSteps  int64      `json:"min_steps"`
	Label     string     `json:"label"`
	Steps     int64      `json:"steps"`
	Eligible  bool       `json:"eligible"`
	Claimed   bool       `json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at"`
}

type notificationView struct {
	ID          int64     `json:"id"`
	Message     string    `json:"message"`
	ScheduledAt time.Time `json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type auditView struct {
	ID          int64           `json:"id"`
	ServerName  string          `json:"server_name"`
	ActorUserID *int64          `json:"actor_user_id"`
	Action      string          `json:"action"`
	Summary     string          `json:"summary"`
	Details     json.RawMessage `json:"details"`
	CreatedAt   time.Time       `json:"created_at"`
}

// auditViews renders details_json inline; unreadable details become {}.
func auditViews(events []model.AuditEvent) []auditView {
	out := make([]auditView, 0, len(events))
	for _, e := range events {
		details := json.RawMessage(e.DetailsJSON)
		if !json.Valid(details) {
			details = json.RawMessage("{}")
		}
		out = append(out, auditView{
			ID:          e.ID,
			ServerName:  e.ServerName,
			ActorUserID: e.ActorUserID,
			Action:      e.Action,
			Summary:     e.Summary,
			Details:     details,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

func claimableViews(items []model.ClaimableReward) []claimableView {
	out := make([]claimableView, 0, len(items))
	for _, c := range items {
		out = append(out, claimableView{Day: clock.FormatDay(c.Day), MinSteps: c.MinSteps, Label: c.Label})
	}
	return out
}

func toTierStatusView(st model.TierStatus) tierStatusView {
	return tierStatusView{
		Day:       clock.FormatDay(st.Day),
		MinSteps:  st.MinSteps,
		Label:     st.Label,
		Steps:     st.Steps,
		Eligible:  st.Eligible,
		Claimed:   st.Claimed,
		ClaimedAt: st.ClaimedAt,
	}
}

func notificationViews(items []model.PushNotification) []notificationView {
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView{ID: n.ID, Message: n.Message, ScheduledAt: n.ScheduledAt, CreatedAt: n.CreatedAt})
	}
	return out
}

// queryMinSteps reads the required min_steps query parameter.
func queryMinSteps(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get("min_steps"))
	if v == "" {
		return 0, model.Validation("min_steps", model.ErrIdentifierRequired)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, model.Validation("min_steps", err)
	}
	return n, nil
}

// queryDay reads an optional day query parameter, defaulting to def.
func queryDay(r *http.Request, def time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("day"))
	if v == "" {
		return def, nil
	}
	d, err := clock.ParseDay(v)
	if err != nil {
		return time.Time{}, model.Validation("day", err)
	}
	return d, nil
}
