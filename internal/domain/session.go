package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserID identifies a backend user. Zero means absent.
type UserID int64

// ParseUserID parses the user_id query value. Empty or invalid input yields
// (0, false) so callers can treat it as the missing-identifier state.
func ParseUserID(raw string) (UserID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return UserID(id), true
}

// String renders the id for URLs.
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Session is the logged-in identity: created on login, cleared on logout.
type Session struct {
	UserID UserID
	Token  string
}

// Valid reports whether the session identifies a user.
func (s Session) Valid() bool {
	return s.UserID > 0
}

// SessionRecord is a server-side stored session, keyed by an opaque id held in
// the browser cookie.
type SessionRecord struct {
	ID         uuid.UUID
	UserID     UserID
	Token      string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

// Session returns the identity carried by the record.
func (r SessionRecord) Session() Session {
	return Session{UserID: r.UserID, Token: r.Token}
}

// Expired reports whether the record is past its expiry at now.
func (r SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Preferences holds per-user display settings.
type Preferences struct {
	UserID    UserID
	Theme     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
