package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/reelview/internal/domain"
	"github.com/Clark-Hu/reelview/internal/repository"
)

// SessionRepository is the persistence the Postgres store needs.
type SessionRepository interface {
	Create(ctx context.Context, params repository.SessionCreateParams) (domain.SessionRecord, error)
	Get(ctx context.Context, id uuid.UUID) (domain.SessionRecord, error)
	Touch(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// PreferenceRepository is the persistence behind theme preferences.
type PreferenceRepository interface {
	UpsertTheme(ctx context.Context, userID domain.UserID, theme string) (domain.Preferences, bool, error)
	Get(ctx context.Context, userID domain.UserID) (domain.Preferences, error)
}

// PostgresStore keeps sessions in the sessions table; the cookie only holds the row id.
type PostgresStore struct {
	sessions SessionRepository
	maxAge   time.Duration
	secure   bool
	logger   zerolog.Logger
}

// NewPostgresStore wraps a session repository.
func NewPostgresStore(sessions SessionRepository, maxAge time.Duration, secure bool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		sessions: sessions,
		maxAge:   maxAge,
		secure:   secure,
		logger:   logger.With().Str("component", "session_store").Logger(),
	}
}

// Load implements Store.
func (s *PostgresStore) Load(r *http.Request) (Current, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Current{}, ErrNoSession
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return Current{}, fmt.Errorf("parse session id: %w", err)
	}
	record, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Current{}, ErrNoSession
		}
		return Current{}, fmt.Errorf("load session: %w", err)
	}
	if err := s.sessions.Touch(r.Context(), id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn().Err(err).Msg("touch session")
	}
	return Current{Session: record.Session(), ID: record.ID.String()}, nil
}

// Save implements Store.
func (s *PostgresStore) Save(w http.ResponseWriter, r *http.Request, sess domain.Session) (Current, error) {
	record, err := s.sessions.Create(r.Context(), repository.SessionCreateParams{
		UserID: sess.UserID,
		Token:  sess.Token,
		TTL:    s.maxAge,
	})
	if err != nil {
		return Current{}, fmt.Errorf("store session: %w", err)
	}
	http.SetCookie(w, sessionCookie(record.ID.String(), s.maxAge, s.secure))
	return Current{Session: sess, ID: record.ID.String()}, nil
}

// Clear implements Store.
func (s *PostgresStore) Clear(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, expiredCookie(s.secure))
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep deletes expired sessions every interval until ctx is done.
func (s *PostgresStore) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.sessions.DeleteExpired(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("sweep expired sessions")
				continue
			}
			if removed > 0 {
				s.logger.Info().Int64("removed", removed).Msg("swept expired sessions")
			}
		}
	}
}

// PreferenceThemes adapts a PreferenceRepository to ThemeStore.
type PreferenceThemes struct {
	Repo PreferenceRepository
}

// SaveTheme implements ThemeStore.
func (p PreferenceThemes) SaveTheme(ctx context.Context, userID domain.UserID, theme string) error {
	_, _, err := p.Repo.UpsertTheme(ctx, userID, theme)
	return err
}

// LoadTheme implements ThemeStore.
func (p PreferenceThemes) LoadTheme(ctx context.Context, userID domain.UserID) (string, error) {
	prefs, err := p.Repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return prefs.Theme, nil
}
