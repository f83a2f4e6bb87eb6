// Package session persists the logged-in identity between requests.
//
// Two stores are available: a signed JWT cookie holding the identity itself
// (the default), and an opaque id cookie pointing at a Postgres row. The theme
// preference travels in its own cookie and, with the Postgres store, is also
// saved per user.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/reelview/internal/domain"
)

const (
	// CookieName holds the session credential.
	CookieName = "reelview_session"
	// ThemeCookieName holds the light/dark preference.
	ThemeCookieName = "theme"
)

// ErrNoSession means the request carries no usable session.
var ErrNoSession = errors.New("session: none")

// Current is the session resolved for one request.
type Current struct {
	domain.Session
	// ID is stable for the lifetime of one login and keys per-session server state.
	ID string
}

// Store reads and writes the session credential.
type Store interface {
	Load(r *http.Request) (Current, error)
	Save(w http.ResponseWriter, r *http.Request, sess domain.Session) (Current, error)
	Clear(w http.ResponseWriter, r *http.Request) error
}

// ThemeStore persists a user's theme beyond the browser cookie.
type ThemeStore interface {
	SaveTheme(ctx context.Context, userID domain.UserID, theme string) error
	LoadTheme(ctx context.Context, userID domain.UserID) (string, error)
}

// Options tunes the Manager's cookies.
type Options struct {
	MaxAge time.Duration
	Secure bool
	Logger zerolog.Logger
}

// Manager resolves sessions and theme preferences for HTTP handlers.
type Manager struct {
	store  Store
	themes ThemeStore
	opts   Options
	logger zerolog.Logger
}

// NewManager wires a session store. themes may be nil.
func NewManager(store Store, themes ThemeStore, opts Options) *Manager {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7 * 24 * time.Hour
	}
	return &Manager{
		store:  store,
		themes: themes,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "session").Logger(),
	}
}

// Load returns the request's session. Any failure reads as logged out.
func (m *Manager) Load(r *http.Request) (Current, bool) {
	cur, err := m.store.Load(r)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			m.logger.Debug().Err(err).Msg("rejecting session cookie")
		}
		return Current{}, false
	}
	return cur, cur.Valid()
}

// Login persists a freshly authenticated session.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, sess domain.Session) (Current, error) {
	if !sess.Valid() {
		return Current{}, ErrNoSession
	}
	cur, err := m.store.Save(w, r, sess)
	if err != nil {
		return Current{}, err
	}
	m.logger.Info().Int64("user_id", int64(sess.UserID)).Msg("session created")
	return cur, nil
}

// Logout clears the session credential.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	return m.store.Clear(w, r)
}

// Theme returns the stored theme name or "" when none was chosen. The cookie
// wins; the persisted preference fills in for a fresh browser.
func (m *Manager) Theme(r *http.Request, userID domain.UserID) string {
	if c, err := r.Cookie(ThemeCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if m.themes == nil || userID <= 0 {
		return ""
	}
	theme, err := m.themes.LoadTheme(r.Context(), userID)
	if err != nil {
		return ""
	}
	return theme
}

// SetTheme writes the theme cookie and, for logged-in users, the persisted preference.
func (m *Manager) SetTheme(w http.ResponseWriter, r *http.Request, userID domain.UserID, theme string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ThemeCookieName,
		Value:    theme,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	if m.themes == nil || userID <= 0 {
		return
	}
	if err := m.themes.SaveTheme(r.Context(), userID, theme); err != nil {
		m.logger.Warn().Err(err).Int64("user_id", int64(userID)).Msg("persist theme")
	}
}

func sessionCookie(value string, maxAge time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
