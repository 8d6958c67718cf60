package http

import (
	"context"
	"net/http"
	"time"

	"elclasico/auth"
	"elclasico/league"
	"elclasico/site"
	"elclasico/store"
	"elclasico/ws"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type Server struct {
	router   *mux.Router
	handlers *Handlers
	handler  http.Handler
}

// NewServer wires every route. ctx bounds the background work of the rate
// limiters.
func NewServer(ctx context.Context, authService *auth.Service, matches *league.Matches, fans *league.Fans, siteService *site.Service, hub *ws.Hub, corsOrigins []string, logger log.Logger) *Server {
	router := mux.NewRouter()
	handlers := NewHandlers(authService, matches, fans, siteService, hub, corsOrigins, logger)

	server := &Server{
		router:   router,
		handlers: handlers,
	}

	server.setupRoutes(ctx)

	var handler http.Handler = router
	handler = SecurityHeadersMiddleware(handler)
	handler = RecoverMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger)(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         600,
	}).Handler(handler)
	server.handler = handler

	return server
}

func (s *Server) setupRoutes(ctx context.Context) {
	h := s.handlers
	r := s.router

	authed := func(f http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(f)
	}
	admin := func(f http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(h.RequireRole(store.Role.IsAdmin)(f))
	}
	superadmin := func(f http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(h.RequireRole(store.Role.IsSuperadmin)(f))
	}

	// Rate limiters for auth endpoints
	loginLimiter := NewRateLimiter(ctx, 5.0/60.0, 5)
	registerLimiter := NewRateLimiter(ctx, 3.0/60.0, 3)
	forgotLimiter := NewRateLimiter(ctx, 3.0/60.0, 3)

	r.Handle("/api/auth/login", loginLimiter.Middleware(http.HandlerFunc(h.Login))).Methods("POST")
	r.Handle("/api/auth/register", registerLimiter.Middleware(http.HandlerFunc(h.Register))).Methods("POST")
	r.Handle("/api/auth/forgot-password", forgotLimiter.Middleware(http.HandlerFunc(h.ForgotPassword))).Methods("POST")
	r.HandleFunc("/api/auth/reset-password", h.ResetPassword).Methods("POST")
	r.Handle("/api/auth/me", authed(h.Me)).Methods("GET")
	r.Handle("/api/auth/me", authed(h.UpdateMe)).Methods("PUT")

	r.HandleFunc("/api/matches", h.ListMatches).Methods("GET")
	r.Handle("/api/matches", admin(h.CreateMatch)).Methods("POST")
	r.HandleFunc("/api/matches/next", h.NextMatch).Methods("GET")
	r.HandleFunc("/api/matches/{id:[0-9]+}", h.GetMatch).Methods("GET")
	r.Handle("/api/matches/{id:[0-9]+}", admin(h.UpdateMatch)).Methods("PUT")
	r.Handle("/api/matches/{id:[0-9]+}", admin(h.DeleteMatch)).Methods("DELETE")

	r.HandleFunc("/api/matches/{id:[0-9]+}/comments", h.ListComments).Methods("GET")
	r.Handle("/api/matches/{id:[0-9]+}/comments", authed(h.AddComment)).Methods("POST")
	r.HandleFunc("/api/matches/{id:[0-9]+}/reactions", h.ListReactions).Methods("GET")
	r.Handle("/api/matches/{id:[0-9]+}/reactions", authed(h.React)).Methods("POST")
	r.HandleFunc("/api/matches/{id:[0-9]+}/predictions", h.ListPredictions).Methods("GET")
	r.Handle("/api/matches/{id:[0-9]+}/predictions", authed(h.Predict)).Methods("POST")

	r.HandleFunc("/api/stats", h.Stats).Methods("GET")
	r.HandleFunc("/api/predictions/leaderboard", h.Leaderboard).Methods("GET")

	r.Handle("/api/users", superadmin(h.ListUsers)).Methods("GET")
	r.Handle("/api/users", superadmin(h.CreateUser)).Methods("POST")
	r.Handle("/api/users/{id:[0-9]+}", superadmin(h.UpdateUser)).Methods("PUT")
	r.Handle("/api/users/{id:[0-9]+}", superadmin(h.DeleteUser)).Methods("DELETE")

	r.HandleFunc("/api/settings", h.GetSettings).Methods("GET")
	r.Handle("/api/settings", superadmin(h.UpdateSettings)).Methods("PUT")
	r.Handle("/api/settings/reset", superadmin(h.ResetSettings)).Methods("POST")
	r.Handle("/api/cache/clear", admin(h.ClearCache)).Methods("POST")

	r.HandleFunc("/api/health", h.Health).Methods("GET")

	// Viewers may watch anonymously
	r.Handle("/ws/matches/{id:[0-9]+}", h.OptionalAuth(http.HandlerFunc(h.MatchSocket))).Methods("GET")
	r.Handle("/ws/feed", h.OptionalAuth(http.HandlerFunc(h.FeedSocket))).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
