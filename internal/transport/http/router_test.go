package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaggerBean/FitCollector/internal/handler"
	"github.com/JaggerBean/FitCollector/internal/metrics"
	"github.com/JaggerBean/FitCollector/internal/model"
)

type stubKeys struct{}

func (stubKeys) ResolvePlayerKey(context.Context, string, string) (*model.PlayerIdentity, error) {
	return nil, model.ErrPlayerNotFound
}

func (stubKeys) ResolveServerKey(context.Context, string) (string, error) {
	return "", model.ErrServerNotFound
}

type stubDispatcher struct {
	calls int
}

func (s *stubDispatcher) RunOnce(context.Context) (*model.DispatchSummary, error) {
	s.calls++
	return &model.DispatchSummary{Candidates: 3, Delivered: 2, Skipped: 1}, nil
}

func newTestRouter(d *stubDispatcher) http.Handler {
	return NewRouter(RouterConfig{
		IngestHandler: handler.NewIngestHandler(nil, stubKeys{}),
		PlayerHandler: handler.NewPlayerHandler(nil, nil, stubKeys{}),
		ServerHandler: handler.NewServerHandler(nil, nil, nil, nil, nil),
		OwnerHandler:  handler.NewOwnerHandler(nil, nil, nil, nil),
		OpsHandler:    handler.NewOpsHandler(d),
		Keys:          stubKeys{},
		Metrics:       metrics.New(true).Handler(),
		JWTSecret:     "secret",
		AdminKey:      "master",
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := do(t, newTestRouter(&stubDispatcher{}), http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	rec := do(t, newTestRouter(&stubDispatcher{}), http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_AuthGates(t *testing.T) {
	r := newTestRouter(&stubDispatcher{})
	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		headers map[string]string
		want    int
	}{
		{"server route without key", http.MethodGet, "/v1/servers/rewards", "", nil, http.StatusUnauthorized},
		{"server route with unknown key", http.MethodPost, "/v1/servers/players/Steve/claim-reward?min_steps=1000", "", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"claimable without player key", http.MethodGet, "/v1/players/rewards/claimable", "", nil, http.StatusUnauthorized},
		{"ingest with unknown player key", http.MethodPost, "/v1/ingest", `{"device_id":"d","player_api_key":"k","minecraft_username":"Steve","steps_today":10}`, nil, http.StatusUnauthorized},
		{"ingest with broken body", http.MethodPost, "/v1/ingest", `{`, nil, http.StatusBadRequest},
		{"push register with unknown key", http.MethodPost, "/v1/players/push/register-device", `{"device_id":"d","player_api_key":"k","token":"t","platform":"ios"}`, nil, http.StatusUnauthorized},
		{"owner route without jwt", http.MethodPatch, "/v1/owner/servers/alpha/settings", `{"claim_buffer_days":2}`, nil, http.StatusUnauthorized},
		{"dispatch without admin key", http.MethodPost, "/v1/ops/push/dispatch", "", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, tt.method, tt.path, tt.body, tt.headers)

			assert.Equal(t, tt.want, rec.Code)
			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.NotEmpty(t, env.Error.Code)
		})
	}
}

func TestRouter_ManualDispatch(t *testing.T) {
	d := &stubDispatcher{}

	rec := do(t, newTestRouter(d), http.MethodPost, "/v1/ops/push/dispatch", "", map[string]string{"X-Admin-Key": "master"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, d.calls)
	assert.JSONEq(t, `{"candidates":3,"delivered":2,"revoked":0,"failed":0,"skipped":1}`, rec.Body.String())
}
