// Package api provides HTTP handlers for the pick27 API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/game"
	"github.com/ashureev/pick27/internal/identity"
)

const maxBodyBytes = 64 * 1024

// Users looks up the player record behind the identity cookie.
type Users interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Handler provides common handler utilities.
type Handler struct {
	hub   *game.Hub
	users Users
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(hub *game.Hub, users Users) *Handler {
	return &Handler{hub: hub, users: users}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// player resolves the caller's Player, writing the error response itself when
// it cannot.
func (h *Handler) player(w http.ResponseWriter, r *http.Request) (*game.Player, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	p, err := h.hub.Player(r.Context(), userID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load player")
		return nil, false
	}
	return p, true
}
