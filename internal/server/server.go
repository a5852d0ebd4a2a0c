package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hongminglow/vault-be/internal/auth"
	"github.com/hongminglow/vault-be/internal/config"
	"github.com/hongminglow/vault-be/internal/http/handlers"
	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/ledger"
	"github.com/hongminglow/vault-be/internal/lending"
	"github.com/hongminglow/vault-be/internal/middleware"
	"github.com/hongminglow/vault-be/internal/realtime"
	"github.com/hongminglow/vault-be/internal/storage"
)

// Deps are the long-lived services the routes are built over.
type Deps struct {
	Store    storage.Store
	Provider *auth.Provider
	Cookies  *auth.CookieSessions
	Hub      *realtime.Hub
	Ledger   *ledger.Service
	Lending  *lending.Service
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           Handler(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// The websocket upgrader clears connection deadlines, so this only
		// bounds ordinary responses.
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Handler builds the routed handler with CORS and request logging applied.
func Handler(cfg config.Config, deps Deps) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	handlers.NewHealthHandler(time.Now(), cfg.StoreDriver).Register(r)
	handlers.NewRealtimeHandler(deps.Hub, deps.Provider, deps.Cookies, cfg.CORSOrigins).Register(r)

	api := r.PathPrefix("/api/v1").Subrouter()
	handlers.NewAuthHandler(deps.Provider, deps.Cookies).Register(api)
	handlers.NewVaultHandler(deps.Store).Register(api)
	markets := handlers.NewMarketHandler(deps.Store, deps.Lending)
	markets.Register(api)
	handlers.NewFeedHandler(deps.Store, cfg.LeaderboardLimit).Register(api)
	handlers.NewToolsHandler().Register(api)

	me := api.PathPrefix("/me").Subrouter()
	me.Use(func(next http.Handler) http.Handler {
		return middleware.RequireIdentity(deps.Provider, deps.Cookies, next)
	})
	handlers.NewAccountHandler(deps.Store).Register(me)
	handlers.NewPortfolioHandler(deps.Store, deps.Ledger).Register(me)
	markets.RegisterPositions(me)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(func(next http.Handler) http.Handler {
		return middleware.RequireAdmin(cfg.AdminAPIKey, next)
	})
	handlers.NewAdminHandler(deps.Ledger).Register(admin)

	return middleware.CORS(cfg.CORSOrigins, middleware.Logging(r))
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
