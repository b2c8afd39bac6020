// Package identity gives every browser an anonymous player ID kept in a
// cookie, and every tab a session ID sent by the client.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/pick27/internal/domain"
)

// Cookie, header and defaults used to identify a device and its tab.
const (
	AnonCookieName        = "pick27_anon_id"
	SessionHeaderName     = "X-Pick27-Session-ID"
	DefaultSessionIDValue = "default"

	playerIDPrefix   = "player_"
	anonCookieMaxAge = 30 * 24 * time.Hour
	lastSeenInterval = 5 * time.Minute
)

// Users is the user persistence the middleware needs.
type Users interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error
}

// Player is the identity attached to a request.
type Player struct {
	UserID    string
	Username  string
	SessionID string
}

type ctxKey struct{}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// FromContext returns the request's player, if the middleware ran.
func FromContext(ctx context.Context) (Player, bool) {
	p, ok := ctx.Value(ctxKey{}).(Player)
	return p, ok
}

// WithPlayer returns a context carrying p.
func WithPlayer(ctx context.Context, p Player) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// UserIDFromContext returns the player ID, or "" without identity.
func UserIDFromContext(ctx context.Context) string {
	p, _ := FromContext(ctx)
	return p.UserID
}

// UsernameFromContext returns the display name, or "" without identity.
func UsernameFromContext(ctx context.Context) string {
	p, _ := FromContext(ctx)
	return p.Username
}

// SessionIDFromContext returns the tab session ID.
func SessionIDFromContext(ctx context.Context) string {
	if p, ok := FromContext(ctx); ok && p.SessionID != "" {
		return p.SessionID
	}
	return DefaultSessionIDValue
}

func newPlayerID() string {
	return playerIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// validPlayerID accepts only IDs this package issued.
func validPlayerID(id string) bool {
	raw, ok := strings.CutPrefix(id, playerIDPrefix)
	if !ok || len(raw) != 32 {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}

// displayName derives a short public name such as "Player 3F9A".
func displayName(userID string) string {
	raw := strings.TrimPrefix(userID, playerIDPrefix)
	if len(raw) < 4 {
		return "Player"
	}
	return "Player " + strings.ToUpper(raw[len(raw)-4:])
}

func sessionIDFromRequest(r *http.Request) string {
	sid := strings.TrimSpace(r.Header.Get(SessionHeaderName))
	if sid == "" {
		sid = strings.TrimSpace(r.URL.Query().Get("session_id"))
	}
	if !sessionIDPattern.MatchString(sid) {
		return DefaultSessionIDValue
	}
	return sid
}

type middleware struct {
	repo  Users
	isDev bool
	now   func() time.Time
}

// Middleware resolves the player behind the request, creating one on first
// visit, and stores it in the request context.
func Middleware(repo Users, isDev bool) func(http.Handler) http.Handler {
	m := &middleware{repo: repo, isDev: isDev, now: time.Now}
	return m.wrap
}

func (m *middleware) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var userID string
		if c, err := r.Cookie(AnonCookieName); err == nil && validPlayerID(c.Value) {
			userID = c.Value
		} else {
			userID = newPlayerID()
		}
		m.setCookie(w, userID)

		if err := m.touch(r.Context(), userID); err != nil {
			http.Error(w, `{"error":"failed to initialize player"}`, http.StatusInternalServerError)
			return
		}

		ctx := WithPlayer(r.Context(), Player{
			UserID:    userID,
			Username:  displayName(userID),
			SessionID: sessionIDFromRequest(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// setCookie writes or refreshes the identity cookie so it slides forward on
// every visit.
func (m *middleware) setCookie(w http.ResponseWriter, userID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    userID,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  m.now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !m.isDev,
	})
}

// touch creates the user on first sight and refreshes last_seen_at at most
// once per lastSeenInterval.
func (m *middleware) touch(ctx context.Context, userID string) error {
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	now := m.now()
	if user != nil {
		if now.Sub(user.LastSeenAt) < lastSeenInterval {
			return nil
		}
		return m.repo.UpdateLastSeen(ctx, userID, now)
	}

	return m.repo.UpsertUser(ctx, &domain.User{
		UserID:     userID,
		Username:   displayName(userID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// IPFromRequest returns the remote host without its port.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
