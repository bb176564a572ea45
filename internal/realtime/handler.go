package realtime

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"vidgen/internal/infra"
	"vidgen/internal/middleware"
)

// Handler upgrades authenticated requests to WebSocket channels.
type Handler struct {
	hub       *Hub
	jwtSecret string
	upgrader  websocket.Upgrader
	logger    infra.Logger
}

// NewHandler creates the channel-open handler. allowedOrigins follows the
// HTTP CORS allowlist; an empty list admits any origin (development).
func NewHandler(hub *Hub, jwtSecret string, allowedOrigins []string, logger infra.Logger) *Handler {
	return &Handler{
		hub:       hub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024 * 4,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if strings.EqualFold(origin, allowed) {
						return true
					}
				}
				return false
			},
		},
		logger: logger,
	}
}

// ServeWS authenticates the bearer token supplied at channel-open time,
// upgrades the connection and binds it as the user's active channel. The
// resolved identity from the token becomes the registry key.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := middleware.VerifyJWT(h.jwtSecret, token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("realtime: websocket upgrade failed")
		return
	}

	ch := h.hub.Bind(claims.Sub, conn)
	defer h.hub.Unbind(ch)

	// The channel is push-only; the read loop exists to observe the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("user_id", claims.Sub).Msg("realtime: read error")
			}
			return
		}
	}
}

func bearerToken(r *http.Request) string {
	if v := r.URL.Query().Get("token"); v != "" {
		return v
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}
