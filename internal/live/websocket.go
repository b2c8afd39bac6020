package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/pick27/internal/game"
	"github.com/ashureev/pick27/internal/identity"
)

const writeTimeout = 5 * time.Second

// Handler upgrades /ws/state requests and streams state events.
type Handler struct {
	hub           *game.Hub
	manager       *Manager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a WebSocket handler.
func NewHandler(hub *game.Hub, manager *Manager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{hub: hub, manager: manager, allowedOrigin: allowedOrigin, isDev: isDev}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	player, err := h.hub.Player(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load player for live session", "error", err, "user_id", userID)
		http.Error(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	c := newClient()
	h.manager.register(userID, sessionID, c)
	defer h.manager.unregister(userID, sessionID, c)

	// Incoming frames are ignored; CloseRead cancels ctx when the peer leaves.
	ctx := ws.CloseRead(r.Context())

	if err := writeJSON(ctx, ws, Event{Type: "state", State: player.State()}); err != nil {
		slog.Debug("Failed to send initial state", "error", err, "user_id", userID)
		return
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				slog.Debug("Live session replaced", "user_id", userID, "session_id", sessionID)
				return
			}
			if err := write(ctx, ws, msg); err != nil {
				slog.Debug("WebSocket write error", "error", err, "user_id", userID)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func write(ctx context.Context, ws *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, msg)
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return write(ctx, ws, data)
}
