package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/api"
	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/middleware"
	"github.com/pizza-nz/staff-ordering/internal/websockets"
)

// WebSocketHandler upgrades administrator connections to the live order feed.
type WebSocketHandler struct {
	hub      *websockets.Hub
	auth     middleware.Authenticator
	upgrader *websocket.Upgrader
	logger   *zap.Logger
}

func NewWebSocketHandler(hub *websockets.Hub, auth middleware.Authenticator, upgrader *websocket.Upgrader, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		auth:     auth,
		upgrader: upgrader,
		logger:   logger,
	}
}

// ServeHTTP handles GET /ws. Browsers cannot set headers on websocket
// requests, so the token may also be passed as the token query parameter.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		if token, err = middleware.BearerToken(r); err != nil {
			api.Error(w, err)
			return
		}
	}

	p, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		api.Error(w, err)
		return
	}
	if !p.IsActive || !p.Roles.IsAdmin() {
		api.Error(w, apperr.Forbidden("the order feed is limited to active administrators"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// If upgrading fails, the upgrader has already written the error to the response
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	websockets.ServeWs(h.hub, conn, p.ID.String())
}
