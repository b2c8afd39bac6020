//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/pick27/internal/analytics"
	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/drawclock"
	"github.com/ashureev/pick27/internal/draws"
	"github.com/ashureev/pick27/internal/game"
	"github.com/ashureev/pick27/internal/identity"
	"github.com/ashureev/pick27/internal/store"
	"github.com/ashureev/pick27/internal/wallet"
)

var recommended = domain.Numbers(2, 4, 8, 16, 23, 27)

type stubReasoner struct {
	err error
}

func (s stubReasoner) Reason(_ context.Context, req domain.ReasonRequest) (*domain.ReasonResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ReasonResponse{
		Message: "Try these for " + req.Message,
		Recommendation: &domain.Recommendation{
			Numbers:   domain.SingleSet(recommended),
			Kind:      domain.KindBalanced,
			Reasoning: "mix of hot and cold",
		},
	}, nil
}

func (s stubReasoner) ErrorMessage() string {
	return "The oracle is resting."
}

type testServer struct {
	*httptest.Server
	client *http.Client
	clock  *drawclock.Clock
}

func newTestServer(t *testing.T, reasoner stubReasoner) *testServer {
	t.Helper()
	ctx := context.Background()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	history, err := draws.Load(ctx, repo, 0)
	require.NoError(t, err)
	clock := drawclock.New(drawclock.DefaultConfig(), history.LastCycle()+1, analytics.NewRand(3))
	hub := game.NewHub(game.Config{
		Store:    repo,
		Clock:    clock,
		Draws:    history,
		Wallet:   wallet.DefaultConfig(),
		Reasoner: reasoner,
		Rand:     analytics.NewRand(4),
	})

	base := NewHandler(hub, repo)
	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	NewGameHandler(base, true).RegisterRoutes(r)
	NewAssistantHandler(base, reasoner, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testServer{Server: srv, client: &http.Client{Jar: jar}, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]string{"foo": "bar"})

	resp := w.Result()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "bar", got["foo"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "bad")

	var got map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad", got["error"])
}

func TestPlayerRequiresIdentity(t *testing.T) {
	h := NewHandler(nil, nil)
	w := httptest.NewRecorder()
	_, ok := h.player(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeAndConfig(t *testing.T) {
	srv := newTestServer(t, stubReasoner{})

	var me map[string]string
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/me", nil, &me))
	assert.NotEmpty(t, me["user_id"])
	assert.Contains(t, me["username"], "Player ")

	var cfg map[string]any
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/config", nil, &cfg))
	assert.Equal(t, true, cfg["ai_enabled"])
	assert.EqualValues(t, 27, cfg["max_number"])
	assert.EqualValues(t, 6, cfg["pick_size"])
}

func TestReasonErrorUsesReasonerMessage(t *testing.T) {
	srv := newTestServer(t, stubReasoner{err: errors.New("upstream down")})

	var body map[string]string
	status := srv.do(t, http.MethodPost, "/api/assistant/reason", domain.ReasonRequest{Message: "hi"}, &body)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "upstream down", body["error"])
	assert.Equal(t, "The oracle is resting.", body["message"])
}
