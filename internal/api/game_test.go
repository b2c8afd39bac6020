package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/game"
)

type stateError struct {
	Error string     `json:"error"`
	State game.State `json:"state"`
}

func TestPickAndConfirmFlow(t *testing.T) {
	srv := newTestServer(t, stubReasoner{})

	var state game.State
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/state", nil, &state))
	assert.Equal(t, 1000, state.Balance)
	assert.Empty(t, state.Selection.Picked)

	var failed stateError
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodPost, "/api/picks/confirm", nil, &failed),
		"confirming an empty set is rejected")

	status := srv.do(t, http.MethodPost, "/api/picks/toggle", map[string]int{"number": 30}, &failed)
	assert.Equal(t, http.StatusBadRequest, status)

	for _, n := range []int{1, 5, 9, 13, 17, 21} {
		require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/picks/toggle", map[string]int{"number": n}, &state))
	}
	assert.True(t, state.Selection.CanConfirm)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/picks/confirm", nil, &state))
	assert.True(t, state.Selection.Locked)
	assert.Len(t, state.Selection.ConfirmedSets, 1)
	assert.Equal(t, 990, state.Balance)

	status = srv.do(t, http.MethodPost, "/api/picks/toggle", map[string]int{"number": 2}, &failed)
	assert.Equal(t, http.StatusConflict, status)
	assert.True(t, failed.State.Selection.Locked)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/picks/new-set", nil, &state))
	assert.False(t, state.Selection.Locked)
	assert.True(t, state.Selection.AddingNewSet)

	var wallet struct {
		Balance int                  `json:"balance"`
		Entries []domain.WalletEntry `json:"entries"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/wallet", nil, &wallet))
	assert.Equal(t, 990, wallet.Balance)
	require.Len(t, wallet.Entries, 1)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/picks/reset", nil, &state))
	assert.Empty(t, state.Selection.ConfirmedSets)
	assert.Empty(t, state.Selection.Picked)
}

func TestGetDraws(t *testing.T) {
	srv := newTestServer(t, stubReasoner{})

	var body map[string]any
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/draws?limit=5", nil, &body))
	assert.Contains(t, body, "timer")
	assert.Contains(t, body, "hotNumbers")
	assert.Empty(t, body["draws"])

	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/api/draws?limit=-1", nil, &body))
}
