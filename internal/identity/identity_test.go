package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/pick27/internal/domain"
)

type memUsers struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	lastSeen int
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*domain.User{}}
}

func (m *memUsers) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) UpsertUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.UserID] = &cp
	return nil
}

func (m *memUsers) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen++
	m.users[id].LastSeenAt = at
	return nil
}

func serve(t *testing.T, repo Users, req *http.Request) (*httptest.ResponseRecorder, context.Context) {
	t.Helper()
	var got context.Context
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Context()
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestMiddlewareIssuesAnonymousIdentity(t *testing.T) {
	repo := newMemUsers()

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set(SessionHeaderName, "tab-1")
	rec, ctx := serve(t, repo, req)
	require.NotNil(t, ctx)

	userID := UserIDFromContext(ctx)
	assert.Regexp(t, `^player_[a-f0-9]{32}$`, userID)
	assert.Equal(t, "Player "+strings.ToUpper(userID[len(userID)-4:]), UsernameFromContext(ctx))
	assert.Equal(t, "tab-1", SessionIDFromContext(ctx))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AnonCookieName, cookies[0].Name)
	assert.Equal(t, userID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	u, err := repo.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u)
}

func TestMiddlewareReusesCookie(t *testing.T) {
	repo := newMemUsers()
	id := "player_0123456789abcdef0123456789abcdef"
	require.NoError(t, repo.UpsertUser(context.Background(), &domain.User{
		UserID: id, LastSeenAt: time.Now().Add(-time.Hour),
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	_, ctx := serve(t, repo, req)
	assert.Equal(t, id, UserIDFromContext(ctx))
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(ctx))
	assert.Equal(t, 1, repo.lastSeen)

	_, _ = serve(t, repo, req)
	assert.Equal(t, 1, repo.lastSeen, "last seen is refreshed at most every few minutes")
}

func TestMiddlewareRejectsForgedCookie(t *testing.T) {
	repo := newMemUsers()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin"})
	req.Header.Set(SessionHeaderName, "bad session id with spaces")

	_, ctx := serve(t, repo, req)
	assert.NotEqual(t, "admin", UserIDFromContext(ctx))
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(ctx))
}

func TestContextAccessorsWithoutMiddleware(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, UserIDFromContext(ctx))
	assert.Empty(t, UsernameFromContext(ctx))
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(ctx))
}

func TestWithPlayerRoundTrip(t *testing.T) {
	ctx := WithPlayer(context.Background(), Player{UserID: "player_x", Username: "Player X"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "player_x", p.UserID)
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(ctx))
}

func TestValidPlayerID(t *testing.T) {
	assert.True(t, validPlayerID(newPlayerID()))
	assert.False(t, validPlayerID("player_short"))
	assert.False(t, validPlayerID("anon_0123456789abcdef0123456789abcdef"))
	assert.False(t, validPlayerID("player_zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"))
}
