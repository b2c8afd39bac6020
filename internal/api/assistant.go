package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/pick27/internal/assistant"
	"github.com/ashureev/pick27/internal/domain"
)

const defaultReasonError = "I'm having trouble right now. Try asking for some number recommendations!"

// AssistantHandler serves the chat endpoints and, when a reasoner is given,
// the stateless reasoning endpoint.
type AssistantHandler struct {
	*Handler
	reasoner    assistant.Reasoner
	sendLimiter func(http.Handler) http.Handler
}

// NewAssistantHandler creates an assistant handler. reasoner may be nil to
// leave POST /api/assistant/reason unrouted; limiter may be nil.
func NewAssistantHandler(base *Handler, reasoner assistant.Reasoner, limiter func(http.Handler) http.Handler) *AssistantHandler {
	return &AssistantHandler{Handler: base, reasoner: reasoner, sendLimiter: limiter}
}

// RegisterRoutes registers assistant routes.
func (h *AssistantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/assistant/messages", h.ListMessages)
	r.Delete("/api/assistant/messages", h.ClearMessages)
	r.Post("/api/assistant/messages/{id}/accept", h.Accept)
	r.Group(func(r chi.Router) {
		if h.sendLimiter != nil {
			r.Use(h.sendLimiter)
		}
		r.Post("/api/assistant/messages", h.SendMessage)
		if h.reasoner != nil {
			r.Post("/api/assistant/reason", h.Reason)
		}
	})
}

// ListMessages returns the conversation, oldest first.
func (h *AssistantHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"messages": p.Messages(),
		"state":    p.State(),
	})
}

// ClearMessages deletes the conversation and queued numbers.
func (h *AssistantHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	state, err := p.ClearHistory(r.Context())
	if err != nil {
		slog.Error("failed to clear chat history", "user_id", p.UserID(), "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"state": state})
}

type sendRequest struct {
	Message string `json:"message"`
}

// SendMessage posts a chat message and returns the assistant's reply.
func (h *AssistantHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, state, err := p.Ask(r.Context(), req.Message)
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, assistant.ErrRequestInFlight):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("assistant request failed", "user_id", p.UserID(), "error", err)
		Error(w, http.StatusInternalServerError, "assistant request failed")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"reply": reply, "state": state})
}

type acceptRequest struct {
	Numbers []domain.Number `json:"numbers"`
}

// Accept acts on a recommendation message.
func (h *AssistantHandler) Accept(w http.ResponseWriter, r *http.Request) {
	p, ok := h.player(w, r)
	if !ok {
		return
	}
	var req acceptRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, state, err := p.Accept(r.Context(), chi.URLParam(r, "id"), req.Numbers)
	switch {
	case errors.Is(err, assistant.ErrMessageNotFound):
		Error(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, assistant.ErrAlreadyActedUpon):
		Error(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, assistant.ErrInvalidPickSet), errors.Is(err, assistant.ErrNotARecommendation):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("accept failed", "user_id", p.UserID(), "error", err)
		Error(w, http.StatusInternalServerError, "accept failed")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"outcome": outcome, "state": state})
}

// errorMessenger is implemented by reasoners with their own apology text.
type errorMessenger interface {
	ErrorMessage() string
}

// Reason answers a {message, context} payload statelessly.
func (h *AssistantHandler) Reason(w http.ResponseWriter, r *http.Request) {
	var req domain.ReasonRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.reasoner.Reason(r.Context(), req)
	if err != nil {
		slog.Error("reasoning failed", "error", err)
		msg := defaultReasonError
		if m, ok := h.reasoner.(errorMessenger); ok && m.ErrorMessage() != "" {
			msg = m.ErrorMessage()
		}
		JSON(w, http.StatusInternalServerError, map[string]string{
			"error":   err.Error(),
			"message": msg,
		})
		return
	}
	JSON(w, http.StatusOK, reply)
}
