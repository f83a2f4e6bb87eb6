package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/reelview/internal/domain"
)

// PreferencesRepository persists per-user display settings.
type PreferencesRepository struct {
	pool *pgxpool.Pool
}

// UpsertTheme stores the theme for a user and indicates whether the row was newly created.
func (r *PreferencesRepository) UpsertTheme(ctx context.Context, userID domain.UserID, theme string) (domain.Preferences, bool, error) {
	const query = `
        INSERT INTO preferences (user_id, theme)
        VALUES ($1, $2)
        ON CONFLICT (user_id)
        DO UPDATE SET theme = EXCLUDED.theme, updated_at = now()
        RETURNING user_id, theme, created_at, updated_at, (xmax = 0) AS inserted
    `

	var (
		prefs    domain.Preferences
		id       int64
		inserted bool
	)
	err := r.pool.QueryRow(ctx, query, int64(userID), theme).Scan(
		&id,
		&prefs.Theme,
		&prefs.CreatedAt,
		&prefs.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return domain.Preferences{}, false, err
	}
	prefs.UserID = domain.UserID(id)
	return prefs, inserted, nil
}

// Get retrieves a user's preferences.
func (r *PreferencesRepository) Get(ctx context.Context, userID domain.UserID) (domain.Preferences, error) {
	const query = `
        SELECT user_id, theme, created_at, updated_at
        FROM preferences
        WHERE user_id = $1
    `
	var (
		prefs domain.Preferences
		id    int64
	)
	err := r.pool.QueryRow(ctx, query, int64(userID)).Scan(
		&id,
		&prefs.Theme,
		&prefs.CreatedAt,
		&prefs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Preferences{}, ErrNotFound
		}
		return domain.Preferences{}, err
	}
	prefs.UserID = domain.UserID(id)
	return prefs, nil
}
