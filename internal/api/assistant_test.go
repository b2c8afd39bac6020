package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/pick27/internal/assistant"
	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/game"
)

type sendResponse struct {
	Reply domain.ChatMessage `json:"reply"`
	State game.State         `json:"state"`
}

type acceptResponse struct {
	Outcome assistant.AcceptOutcome `json:"outcome"`
	State   game.State              `json:"state"`
}

func TestSendAndAcceptRecommendation(t *testing.T) {
	srv := newTestServer(t, stubReasoner{})

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest,
		srv.do(t, http.MethodPost, "/api/assistant/messages", map[string]string{"message": "   "}, &errBody))

	var sent sendResponse
	require.Equal(t, http.StatusOK,
		srv.do(t, http.MethodPost, "/api/assistant/messages", map[string]string{"message": "hot picks"}, &sent))
	assert.Equal(t, domain.RoleRecommendation, sent.Reply.Role)
	require.NotNil(t, sent.Reply.Recommendation)
	assert.Equal(t, recommended, sent.Reply.Recommendation.Numbers.First())

	var list struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/assistant/messages", nil, &list))
	require.Len(t, list.Messages, 2)
	assert.Equal(t, domain.RoleUser, list.Messages[0].Role)

	path := "/api/assistant/messages/" + sent.Reply.ID + "/accept"
	var accepted acceptResponse
	require.Equal(t, http.StatusOK,
		srv.do(t, http.MethodPost, path, map[string]any{"numbers": recommended}, &accepted))
	assert.Equal(t, assistant.AcceptApplied, accepted.Outcome)
	assert.Equal(t, recommended, accepted.State.Selection.Picked)

	assert.Equal(t, http.StatusConflict,
		srv.do(t, http.MethodPost, path, map[string]any{"numbers": recommended}, &errBody))
	assert.Equal(t, http.StatusNotFound,
		srv.do(t, http.MethodPost, "/api/assistant/messages/missing/accept", map[string]any{"numbers": recommended}, &errBody))

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodDelete, "/api/assistant/messages", nil, nil))
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/assistant/messages", nil, &list))
	assert.Empty(t, list.Messages)
}

func TestAcceptRejectsInvalidSet(t *testing.T) {
	srv := newTestServer(t, stubReasoner{})

	var sent sendResponse
	require.Equal(t, http.StatusOK,
		srv.do(t, http.MethodPost, "/api/assistant/messages", map[string]string{"message": "numbers"}, &sent))

	var errBody map[string]string
	status := srv.do(t, http.MethodPost, "/api/assistant/messages/"+sent.Reply.ID+"/accept",
		map[string]any{"numbers": []int{1, 2, 3}}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestReasonEndpoint(t *testing.T) {
	srv := newTestServer(t, stubReasoner{})

	var reply domain.ReasonResponse
	require.Equal(t, http.StatusOK,
		srv.do(t, http.MethodPost, "/api/assistant/reason", domain.ReasonRequest{Message: "luck"}, &reply))
	assert.Equal(t, "Try these for luck", reply.Message)
	require.NotNil(t, reply.Recommendation)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest,
		srv.do(t, http.MethodPost, "/api/assistant/reason", domain.ReasonRequest{}, &errBody))
}

func TestAcceptRejectsNonRecommendation(t *testing.T) {
	srv := newTestServer(t, stubReasoner{})

	var sent sendResponse
	require.Equal(t, http.StatusOK,
		srv.do(t, http.MethodPost, "/api/assistant/messages", map[string]string{"message": "numbers"}, &sent))

	var list struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/assistant/messages", nil, &list))
	require.Equal(t, domain.RoleUser, list.Messages[0].Role)

	var errBody map[string]string
	status := srv.do(t, http.MethodPost, "/api/assistant/messages/"+list.Messages[0].ID+"/accept",
		map[string]any{"numbers": recommended}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)

	status = srv.do(t, http.MethodPost, "/api/assistant/messages/"+sent.Reply.ID+"/accept",
		map[string]any{"numbers": []int{9, 10, 11, 12, 13, 14}}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status, "numbers must come from the recommendation")

	var state game.State
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/state", nil, &state))
	assert.Empty(t, state.Selection.ConfirmedSets)
	assert.Equal(t, 1000, state.Balance)
}
