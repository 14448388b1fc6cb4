package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JaggerBean/FitCollector/internal/handler"
	"github.com/JaggerBean/FitCollector/internal/httputil"
	authmw "github.com/JaggerBean/FitCollector/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	IngestHandler *handler.IngestHandler
	PlayerHandler *handler.PlayerHandler
	ServerHandler *handler.ServerHandler
	OwnerHandler  *handler.OwnerHandler
	OpsHandler    *handler.OpsHandler
	Keys          authmw.KeyResolver
	Metrics       http.Handler
	JWTSecret     string
	AdminKey      string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(authmw.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		// Mobile app; the player key is read from the body or the X-Device-ID/X-Player-Key headers
		r.Post("/ingest", cfg.IngestHandler.Ingest)
		r.Route("/players", func(r chi.Router) {
			r.With(authmw.PlayerAuth(cfg.Keys)).Get("/rewards/claimable", cfg.PlayerHandler.Claimable)
			r.Post("/push/register-device", cfg.PlayerHandler.RegisterDevice)
			r.Delete("/push/register-device", cfg.PlayerHandler.UnregisterDevice)
			r.Post("/push/send", cfg.PlayerHandler.Send)
		})

		// Game server plugin
		r.Route("/servers", func(r chi.Router) {
			r.Use(authmw.ServerAuth(cfg.Keys))

			r.Route("/players/{username}", func(r chi.Router) {
				r.Get("/claim-available", cfg.ServerHandler.ClaimAvailable)
				r.Get("/claim-status", cfg.ServerHandler.ClaimStatus)
				r.Get("/claim-status-list", cfg.ServerHandler.ClaimStatusList)
				r.Post("/claim-reward", cfg.ServerHandler.ClaimReward)
				r.Get("/yesterday-steps", cfg.ServerHandler.YesterdaySteps)
			})

			r.Get("/rewards", cfg.ServerHandler.Rewards)
			r.Put("/rewards", cfg.ServerHandler.ReplaceRewards)
			r.Post("/rewards/default", cfg.ServerHandler.DefaultRewards)
			r.Get("/push", cfg.ServerHandler.ListPush)
			r.Post("/push", cfg.ServerHandler.SchedulePush)
		})

		// Owner dashboard
		r.Route("/owner/servers/{server}", func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

			r.Put("/rewards", cfg.OwnerHandler.ReplaceRewards)
			r.Post("/rewards/default", cfg.OwnerHandler.DefaultRewards)
			r.Post("/push", cfg.OwnerHandler.SchedulePush)
			r.Patch("/settings", cfg.OwnerHandler.UpdateSettings)
		})

		r.With(authmw.AuthMiddleware(cfg.JWTSecret)).Get("/owner/audit", cfg.OwnerHandler.Audit)

		r.With(authmw.AdminAuth(cfg.AdminKey)).Post("/ops/push/dispatch", cfg.OpsHandler.Dispatch)
	})

	return r
}
