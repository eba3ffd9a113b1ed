package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/starchart/internal/backup"
	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/events"
	"github.com/dukerupert/starchart/internal/handler"
	"github.com/dukerupert/starchart/internal/identity"
	"github.com/dukerupert/starchart/internal/metrics"
	"github.com/dukerupert/starchart/internal/middleware"
	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/push"
	"github.com/dukerupert/starchart/internal/store"
	"github.com/dukerupert/starchart/internal/view"
	ws "github.com/dukerupert/starchart/internal/websocket"
)

// Deps are the long-lived services the router needs. main owns their
// lifecycles.
type Deps struct {
	Docs          *docstore.Store
	Roster        model.Roster
	Identity      *identity.Provider
	Views         *view.Registry
	Hub           *ws.Hub
	Events        events.Publisher
	Backups       *backup.Manager
	Push          *push.Service
	Metrics       *metrics.Metrics
	SecureCookies bool
	Logger        *slog.Logger
}

type Server struct {
	hub         *ws.Hub
	identity    *identity.Provider
	metrics     *metrics.Metrics
	authH       *handler.AuthHandler
	dashboardH  *handler.DashboardHandler
	taskH       *handler.TaskHandler
	missionH    *handler.MissionHandler
	rewardH     *handler.RewardHandler
	redemptionH *handler.RedemptionHandler
	backupH     *handler.BackupHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(d Deps) *Server {
	logger := d.Logger

	tasks := store.NewTaskStore(d.Docs, d.Roster)
	missions := store.NewMissionStore(d.Docs)
	rewards := store.NewRewardStore(d.Docs)
	redemptions := store.NewRedemptionStore(d.Docs)

	return &Server{
		hub:         d.Hub,
		identity:    d.Identity,
		metrics:     d.Metrics,
		authH:       handler.NewAuthHandler(d.Identity, d.SecureCookies, logger.With("component", "auth")),
		dashboardH:  handler.NewDashboardHandler(d.Views, d.Roster, logger.With("component", "dashboard")),
		taskH:       handler.NewTaskHandler(tasks, missions, d.Views, d.Events, logger.With("component", "task")),
		missionH:    handler.NewMissionHandler(missions, d.Events, logger.With("component", "mission")),
		rewardH:     handler.NewRewardHandler(rewards, d.Events, logger.With("component", "reward")),
		redemptionH: handler.NewRedemptionHandler(redemptions, rewards, d.Views, d.Events, logger.With("component", "redemption")),
		backupH:     handler.NewBackupHandler(d.Backups, logger.With("component", "backup")),
		pushH:       handler.NewPushHandler(store.NewPushStore(d.Docs), d.Push, logger.With("component", "push")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.identity)
	outerMux.Handle("/", authMiddleware(protectedMux))

	h := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return middleware.Metrics(s.metrics)(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	// Dashboard
	mux.HandleFunc("GET /{$}", s.dashboardH.Index)
	mux.HandleFunc("GET /api/dashboard", s.dashboardH.Snapshot)
	mux.HandleFunc("GET /api/balance", s.dashboardH.Balance)
	mux.HandleFunc("GET /api/children/{child}/tasks", s.dashboardH.Page)

	// Tasks
	mux.HandleFunc("POST /api/tasks/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/tasks", s.taskH.CreateLegacy)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)

	// Missions
	mux.HandleFunc("GET /api/missions", s.missionH.List)
	mux.HandleFunc("GET /api/missions/active", s.missionH.Active)
	mux.HandleFunc("POST /api/missions", s.missionH.Create)
	mux.HandleFunc("GET /api/missions/{id}", s.missionH.Get)
	mux.HandleFunc("PATCH /api/missions/{id}", s.missionH.Update)
	mux.HandleFunc("POST /api/missions/{id}/toggle", s.missionH.Toggle)
	mux.HandleFunc("DELETE /api/missions/{id}", s.missionH.Delete)

	// Rewards
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("GET /api/rewards/active", s.rewardH.Active)
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards/{id}", s.rewardH.Get)
	mux.HandleFunc("PATCH /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("POST /api/rewards/{id}/toggle", s.rewardH.Toggle)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)

	// Redemptions
	mux.HandleFunc("GET /api/redemptions", s.redemptionH.List)
	mux.HandleFunc("POST /api/redemptions", s.redemptionH.Redeem)
	mux.HandleFunc("DELETE /api/redemptions/{id}", s.redemptionH.Delete)

	// Backups
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
	mux.HandleFunc("POST /api/backups", s.backupH.Run)

	// Push notifications
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
	mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
}
