package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/pick27/internal/analytics"
	"github.com/ashureev/pick27/internal/drawclock"
	"github.com/ashureev/pick27/internal/draws"
	"github.com/ashureev/pick27/internal/game"
	"github.com/ashureev/pick27/internal/identity"
	"github.com/ashureev/pick27/internal/store"
	"github.com/ashureev/pick27/internal/wallet"
)

func TestManagerPublishFansOutPerUser(t *testing.T) {
	m := NewManager()
	a1, a2, b := newClient(), newClient(), newClient()
	m.register("alice", "tab-1", a1)
	m.register("alice", "tab-2", a2)
	m.register("bob", "tab-1", b)

	m.Publish("alice", game.State{UserID: "alice", Balance: 990})

	for _, c := range []*client{a1, a2} {
		select {
		case msg := <-c.send:
			var ev Event
			require.NoError(t, json.Unmarshal(msg, &ev))
			assert.Equal(t, "state", ev.Type)
			assert.Equal(t, 990, ev.State.Balance)
		default:
			t.Fatal("expected a queued event")
		}
	}
	assert.Empty(t, b.send)
}

func TestManagerRegisterReplacesSession(t *testing.T) {
	m := NewManager()
	old, replacement := newClient(), newClient()
	m.register("alice", "tab", old)
	m.register("alice", "tab", replacement)

	_, open := <-old.send
	assert.False(t, open)
	assert.Equal(t, 1, m.Connections("alice"))

	// A stale unregister must not drop the replacement.
	m.unregister("alice", "tab", old)
	assert.Equal(t, 1, m.Connections("alice"))

	m.unregister("alice", "tab", replacement)
	assert.Equal(t, 0, m.Connections("alice"))
}

func TestClientEnqueueDropsOldest(t *testing.T) {
	c := newClient()
	for i := 0; i < sendQueueSize+3; i++ {
		c.enqueue([]byte{byte(i)})
	}
	require.Len(t, c.send, sendQueueSize)
	first := <-c.send
	assert.Equal(t, byte(3), first[0])
}

func newServer(t *testing.T) (*httptest.Server, *game.Hub, *Manager) {
	t.Helper()
	ctx := context.Background()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "live.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	history, err := draws.Load(ctx, repo, 0)
	require.NoError(t, err)
	clock := drawclock.New(drawclock.DefaultConfig(), history.LastCycle()+1, analytics.NewRand(1))
	hub := game.NewHub(game.Config{
		Store:  repo,
		Clock:  clock,
		Draws:  history,
		Wallet: wallet.DefaultConfig(),
		Rand:   analytics.NewRand(2),
	})

	manager := NewManager()
	hub.OnChange(manager.Publish)

	handler := identity.Middleware(repo, true)(NewHandler(hub, manager, "*", true))
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, hub, manager
}

func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHandlerStreamsState(t *testing.T) {
	srv, hub, manager := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?session_id=tab-1"
	conn, resp, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var userID string
	for _, c := range resp.Cookies() {
		if c.Name == identity.AnonCookieName {
			userID = c.Value
		}
	}
	require.NotEmpty(t, userID)

	initial := readEvent(ctx, t, conn)
	assert.Equal(t, "state", initial.Type)
	assert.Equal(t, userID, initial.State.UserID)
	assert.Equal(t, 1000, initial.State.Balance)

	require.Eventually(t, func() bool { return manager.Connections(userID) == 1 }, time.Second, 10*time.Millisecond)

	player, err := hub.Player(ctx, userID)
	require.NoError(t, err)
	_, err = player.TogglePick(7)
	require.NoError(t, err)

	for {
		ev := readEvent(ctx, t, conn)
		if len(ev.State.Selection.Picked) == 1 {
			assert.EqualValues(t, 7, ev.State.Selection.Picked[0])
			break
		}
	}
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	h := NewHandler(nil, NewManager(), "https://pick27.example", false)
	req := httptest.NewRequest(http.MethodGet, "/ws/state", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://pick27.example")
	assert.True(t, h.checkOrigin(req))
}
