package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"session-auth/backend/internal/session/domain"
)

const pgForeignKeyViolation = "23503"

// PostgresRepository stores sessions in the sessions table and deny-lists in
// session_denied_tokens.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, username, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.Username, s.CreatedAt, s.ExpiresAt)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var (
		s         domain.Session
		revokedAt sql.NullTime
		reason    sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, username, created_at, expires_at, revoked_at, revoke_reason FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.Username, &s.CreatedAt, &s.ExpiresAt, &revokedAt, &reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	s.RevokeReason = reason.String

	rows, err := r.db.QueryContext(ctx, `SELECT token_id FROM session_denied_tokens WHERE session_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	s.Denied = domain.DenyList{}
	for rows.Next() {
		var tokenID string
		if err := rows.Scan(&tokenID); err != nil {
			return nil, err
		}
		s.Denied.Add(tokenID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Rotate locks the session row, checks its state and inserts the token id. A conflicting
// insert means the id was already spent.
func (r *PostgresRepository) Rotate(ctx context.Context, sessionID, userID, tokenID string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		owner     string
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, expires_at, revoked_at FROM sessions WHERE id = $1 FOR UPDATE`, sessionID,
	).Scan(&owner, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	switch {
	case owner != userID:
		return ErrNotFound
	case revokedAt.Valid:
		return ErrRevoked
	case !now.Before(expiresAt):
		return ErrExpired
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO session_denied_tokens (session_id, token_id, reason, denied_at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		sessionID, tokenID, domain.ReasonRotated, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenReused
	}
	return tx.Commit()
}

// DenyTokenID inserts the token id; the session foreign key turns a missing session into ErrNotFound.
func (r *PostgresRepository) DenyTokenID(ctx context.Context, sessionID, tokenID, reason string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_denied_tokens (session_id, token_id, reason, denied_at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		sessionID, tokenID, reason, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Revoke sets revoked_at once. Returns ErrNotFound if the session does not exist.
func (r *PostgresRepository) Revoke(ctx context.Context, id, reason string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2, revoke_reason = $3 WHERE id = $1 AND revoked_at IS NULL`,
		id, now, reason)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// RevokeAllByUser revokes the user's sessions that are neither revoked nor expired at now.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID, reason string, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2, revoke_reason = $3 WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2`,
		userID, now, reason)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteExpired deletes sessions (and, by cascade, their deny-lists) that expired before cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping checks the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
