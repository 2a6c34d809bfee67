package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo persists and validates session tokens. Callers pass the
// SHA-256 hash of the raw token; the raw value is never stored.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Save stores a token hash for userID. Saving a hash that already
// exists replaces the previous row.
func (r *TokenRepo) Save(ctx context.Context, tokenHash string, userID uint64, exp, now time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM auth_tokens WHERE token=?", tokenHash); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO auth_tokens (token, user_id, expires_at, created_at) VALUES (?,?,?,?)",
			tokenHash, userID, utc(exp), utc(now))
		return err
	})
}

// Lookup returns the user id of a token that has not expired at now.
// Missing and expired tokens both yield ErrTokenNotFound.
func (r *TokenRepo) Lookup(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM auth_tokens WHERE token=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	if !now.Before(expiresAt) {
		return 0, ErrTokenNotFound
	}
	return userID, nil
}

// DeleteAllForUser removes every token of a user and reports how many
// were removed.
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id=?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeExpired deletes tokens that expired at or before now.
func (r *TokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM auth_tokens WHERE expires_at<=?", utc(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
