package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sonara-health/sonara/pkg/store"
)

// CreateUser implements [store.UserStore].
func (s *Store) CreateUser(ctx context.Context, u store.User) error {
	const q = `
		INSERT INTO users (email, password_hash, display_name, role, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, q,
		u.Email,
		u.PasswordHash,
		u.DisplayName,
		string(u.Role),
		u.Verified,
		u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrDuplicate
		}
		return fmt.Errorf("user store: create user: %w", err)
	}
	return nil
}

// GetUserByEmail implements [store.UserStore].
func (s *Store) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	const q = `
		SELECT email, password_hash, display_name, role, verified, created_at
		FROM   users
		WHERE  email = $1`

	var (
		u    store.User
		role string
	)
	err := s.pool.QueryRow(ctx, q, email).Scan(
		&u.Email,
		&u.PasswordHash,
		&u.DisplayName,
		&role,
		&u.Verified,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("user store: get user: %w", err)
	}
	u.Role = store.Role(role)
	return u, nil
}

// CreateVerificationToken implements [store.UserStore]. Any previous
// token for the same email is replaced.
func (s *Store) CreateVerificationToken(ctx context.Context, email, token string, expiry time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("user store: create token: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM verification_tokens WHERE email = $1`, email); err != nil {
		return fmt.Errorf("user store: create token: %w", err)
	}
	const q = `
		INSERT INTO verification_tokens (token, email, expiry)
		VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, q, token, email, expiry); err != nil {
		return fmt.Errorf("user store: create token: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("user store: create token: %w", err)
	}
	return nil
}

// ConsumeVerificationToken implements [store.UserStore]. The token is
// single-use: a successful call deletes it and marks the user verified.
func (s *Store) ConsumeVerificationToken(ctx context.Context, token string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("user store: consume token: %w", err)
	}
	defer tx.Rollback(ctx)

	const del = `
		DELETE FROM verification_tokens
		WHERE  token = $1 AND expiry > now()
		RETURNING email`

	var email string
	err = tx.QueryRow(ctx, del, token).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("user store: consume token: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET verified = TRUE WHERE email = $1`, email); err != nil {
		return "", fmt.Errorf("user store: consume token: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("user store: consume token: %w", err)
	}
	return email, nil
}
