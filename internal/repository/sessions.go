package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/reelview/internal/domain"
)

// SessionsRepository stores browser sessions server-side.
type SessionsRepository struct {
	pool *pgxpool.Pool
}

const sessionColumns = `
    id,
    user_id,
    token,
    created_at,
    last_seen_at,
    expires_at
`

// SessionCreateParams bundles the fields required to create a session.
type SessionCreateParams struct {
	UserID domain.UserID
	Token  string
	TTL    time.Duration
}

// Create inserts a session with a fresh random id.
func (r *SessionsRepository) Create(ctx context.Context, params SessionCreateParams) (domain.SessionRecord, error) {
	if params.UserID <= 0 {
		return domain.SessionRecord{}, fmt.Errorf("create session: invalid user id %d", params.UserID)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("generate session id: %w", err)
	}

	query := fmt.Sprintf(`
        INSERT INTO sessions (id, user_id, token, expires_at)
        VALUES ($1, $2, $3, now() + make_interval(secs => $4))
        RETURNING %s
    `, sessionColumns)

	row := r.pool.QueryRow(ctx, query, id, int64(params.UserID), params.Token, params.TTL.Seconds())
	return scanSession(row)
}

// Get fetches a live session. Expired rows are reported as ErrNotFound.
func (r *SessionsRepository) Get(ctx context.Context, id uuid.UUID) (domain.SessionRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1 AND expires_at > now()`, sessionColumns)
	record, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SessionRecord{}, ErrNotFound
		}
		return domain.SessionRecord{}, err
	}
	return record, nil
}

// Touch records activity on a session.
func (r *SessionsRepository) Touch(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET last_seen_at = now() WHERE id = $1 AND expires_at > now()`, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *SessionsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired purges expired sessions and reports how many were removed.
func (r *SessionsRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (domain.SessionRecord, error) {
	var (
		record domain.SessionRecord
		userID int64
	)
	if err := row.Scan(
		&record.ID,
		&userID,
		&record.Token,
		&record.CreatedAt,
		&record.LastSeenAt,
		&record.ExpiresAt,
	); err != nil {
		return domain.SessionRecord{}, err
	}
	record.UserID = domain.UserID(userID)
	return record, nil
}
