package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/game"
	"github.com/ashureev/pick27/internal/identity"
	"github.com/ashureev/pick27/internal/selection"
)

const (
	defaultDrawLimit = 20
	maxDrawLimit     = 200
	hotColdCount     = 10
)

// GameHandler serves the selection, wallet and draw endpoints.
type GameHandler struct {
	*Handler
	aiEnabled bool
}

// NewGameHandler creates a game handler. aiEnabled is reported to the
// frontend through /api/config.
func NewGameHandler(base *Handler, aiEnabled bool) *GameHandler {
	return &GameHandler{Handler: base, aiEnabled: aiEnabled}
}

// RegisterRoutes registers game routes.
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
	r.Get("/api/config", h.GetConfig)
	r.Get("/api/state", h.GetState)
	r.Post("/api/picks/toggle", h.TogglePick)
	r.Post("/api/picks/confirm", h.Confirm)
	r.Post("/api/picks/new-set", h.NewSet)
	r.Post("/api/picks/reset", h.Reset)
	r.Get("/api/wallet", h.GetWallet)
	r.Get("/api/draws", h.GetDraws)
}

// GetMe returns the current user's information.
func (h *GameHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *GameHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"ai_enabled":         h.aiEnabled,
		"min_number":         domain.MinNumber,
		"max_number":         domain.MaxNumber,
		"pick_size":          domain.PickSize,
		"max_sets_per_cycle": domain.MaxSetsPerCycle,
	})
}

// GetState returns the caller's player state.
func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, p.State())
}

type toggleRequest struct {
	Number int `json:"number"`
}

// TogglePick adds or removes one number from the candidate set.
func (h *GameHandler) TogglePick(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := p.TogglePick(req.Number)
	writeState(w, state, err)
}

// Confirm confirms the candidate set.
func (h *GameHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	state, err := p.Confirm()
	writeState(w, state, err)
}

// NewSet starts another pick set for the current draw.
func (h *GameHandler) NewSet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	state, err := p.StartNewSet()
	writeState(w, state, err)
}

// Reset clears the selection.
func (h *GameHandler) Reset(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	state, err := p.Reset()
	writeState(w, state, err)
}

// GetWallet returns the balance and every entry, newest first.
func (h *GameHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"balance": p.State().Balance,
		"entries": p.History(),
	})
}

// GetDraws returns recent draws with the derived statistics.
func (h *GameHandler) GetDraws(w http.ResponseWriter, r *http.Request) {
	limit := defaultDrawLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDrawLimit)
	}

	history := h.hub.Draws()
	JSON(w, http.StatusOK, map[string]any{
		"timer":          h.hub.Timer(),
		"draws":          history.Recent(limit),
		"hotNumbers":     nonNilNumbers(history.HotNumbers(hotColdCount)),
		"coldNumbers":    nonNilNumbers(history.ColdNumbers(hotColdCount)),
		"recentPatterns": history.RecentPatterns(),
	})
}

func writeState(w http.ResponseWriter, state game.State, err error) {
	if err == nil {
		JSON(w, http.StatusOK, state)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrInvalidNumber), errors.Is(err, selection.ErrIncomplete):
		status = http.StatusBadRequest
	case errors.Is(err, selection.ErrLocked),
		errors.Is(err, selection.ErrFull),
		errors.Is(err, selection.ErrTimerNotOpen),
		errors.Is(err, selection.ErrCannotPick):
		status = http.StatusConflict
	default:
		slog.Error("selection update failed", "error", err)
	}
	JSON(w, status, map[string]any{"error": err.Error(), "state": state})
}

func nonNilNumbers(nums []domain.Number) []domain.Number {
	if nums == nil {
		return []domain.Number{}
	}
	return nums
}
