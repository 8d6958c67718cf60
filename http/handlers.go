package http

import (
	"net/http"
	"net/url"
	"strings"

	"elclasico/auth"
	"elclasico/league"
	"elclasico/site"
	"elclasico/ws"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

type Handlers struct {
	authService *auth.Service
	matches     *league.Matches
	fans        *league.Fans
	site        *site.Service
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	log         *log.Helper
}

func NewHandlers(authService *auth.Service, matches *league.Matches, fans *league.Fans, siteService *site.Service, hub *ws.Hub, allowedOrigins []string, logger log.Logger) *Handlers {
	return &Handlers{
		authService: authService,
		matches:     matches,
		fans:        fans,
		site:        siteService,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log: log.NewHelper(log.With(logger, "module", "http")),
	}
}

// checkOrigin accepts same-host origins, requests without an Origin header
// and anything listed in allowed. A "*" entry accepts every origin.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Auth handlers
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Infow("msg", "login", "user_id", session.User.ID, "username", session.User.Username)
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset requested"})
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, auth.Public(user))
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req auth.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.authService.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, auth.Public(updated))
}

// WebSocket handlers
func (h *Handlers) MatchSocket(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.matches.Get(r.Context(), matchID); err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	h.hub.HandleConnection(conn, matchID, viewerID(r))
}

func (h *Handlers) FeedSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	h.hub.Feed().HandleConnection(conn, viewerID(r))
}

// viewerID is 0 for anonymous viewers.
func viewerID(r *http.Request) int64 {
	if user, ok := UserFromContext(r.Context()); ok {
		return user.ID
	}
	return 0
}
