package directory

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following table exists:
//
// CREATE TABLE users (
//   user_id      TEXT PRIMARY KEY,
//   phone_number TEXT NOT NULL UNIQUE,
//   push_token   TEXT NOT NULL DEFAULT '',
//   created_at   TIMESTAMPTZ NOT NULL,
//   updated_at   TIMESTAMPTZ NOT NULL
// );

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, u User) error {
	const q = `
INSERT INTO users (user_id, phone_number, push_token, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id)
DO UPDATE SET phone_number = EXCLUDED.phone_number,
              push_token   = EXCLUDED.push_token,
              updated_at   = EXCLUDED.updated_at
`
	_, err := s.db.ExecContext(ctx, q, u.UserID, u.PhoneNumber, u.PushToken, u.CreatedAt, u.UpdatedAt)
	return err
}

func (s *PostgresStore) ByUserID(ctx context.Context, userID string) (User, error) {
	const q = selectUser + `WHERE user_id = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, userID))
}

func (s *PostgresStore) ByPhoneNumber(ctx context.Context, number string) (User, error) {
	const q = selectUser + `WHERE phone_number = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, number))
}

const selectUser = `
SELECT user_id, phone_number, push_token, created_at, updated_at
FROM users
`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.PhoneNumber, &u.PushToken, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}
