package calls

import (
	"context"
	"database/sql"
	"errors"

	"callbridge/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// NOTE: This repository assumes the following table exists:
//
// CREATE TABLE call_records (
//   call_id          TEXT PRIMARY KEY,
//   provider_call_id TEXT UNIQUE,
//   from_party       TEXT NOT NULL,
//   to_party         TEXT NOT NULL,
//   direction        TEXT NOT NULL,
//   status           TEXT NOT NULL,
//   error_detail     TEXT NOT NULL DEFAULT '',
//   duration_seconds INT  NOT NULL DEFAULT 0,
//   started_at       TIMESTAMPTZ NOT NULL,
//   ended_at         TIMESTAMPTZ
// );
// CREATE INDEX idx_call_records_from_party ON call_records (from_party, started_at DESC);
// CREATE INDEX idx_call_records_to_party   ON call_records (to_party, started_at DESC);
//
// The UNIQUE constraint on provider_call_id is what makes the dual-keyed index
// an invariant of the store rather than a query-time scan.

// PostgresStore is the durable Store implementation.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec CallRecord) error {
	if rec.CallID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO call_records (
  call_id, provider_call_id, from_party, to_party, direction, status,
  error_detail, duration_seconds, started_at, ended_at
) VALUES (
  $1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10
)
`
	_, err := s.db.ExecContext(ctx, q,
		rec.CallID,
		rec.ProviderCallID,
		rec.FromParty,
		rec.ToParty,
		rec.Direction,
		rec.Status,
		rec.ErrorDetail,
		rec.DurationSeconds,
		rec.StartedAt,
		rec.EndedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PostgresStore) LinkProviderID(ctx context.Context, callID, providerCallID string) error {
	if callID == "" || providerCallID == "" {
		return ErrInvalidArgument
	}
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := lockRecord(ctx, tx, ByInternal(callID))
		if err != nil {
			return err
		}
		if rec.ProviderCallID == providerCallID {
			return nil // idempotent re-link
		}
		if rec.ProviderCallID != "" {
			return ErrConflict
		}
		const q = `UPDATE call_records SET provider_call_id = $1 WHERE call_id = $2`
		if _, err := tx.ExecContext(ctx, q, providerCallID, callID); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
}

func (s *PostgresStore) FindByInternal(ctx context.Context, callID string) (CallRecord, error) {
	return findRecord(ctx, s.db, ByInternal(callID))
}

func (s *PostgresStore) FindByProvider(ctx context.Context, providerCallID string) (CallRecord, error) {
	return findRecord(ctx, s.db, ByProvider(providerCallID))
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, key Key, upd StatusUpdate) (CallRecord, bool, error) {
	var out CallRecord
	var applied bool
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Row lock serializes concurrent writers on the same record without
		// blocking updates to other records.
		rec, err := lockRecord(ctx, tx, key)
		if err != nil {
			return err
		}
		if !applyTransition(&rec, upd) {
			out = rec
			return nil
		}

		const q = `
UPDATE call_records
SET status = $1, error_detail = $2, duration_seconds = $3, ended_at = $4
WHERE call_id = $5
`
		if _, err := tx.ExecContext(ctx, q, rec.Status, rec.ErrorDetail, rec.DurationSeconds, rec.EndedAt, rec.CallID); err != nil {
			return err
		}
		out = rec
		applied = true
		return nil
	})
	if err != nil {
		return CallRecord{}, false, err
	}
	return out, applied, nil
}

func (s *PostgresStore) ListByParty(ctx context.Context, identity string) ([]CallRecord, error) {
	if identity == "" {
		return nil, ErrInvalidArgument
	}
	const q = selectRecord + `
WHERE from_party = $1 OR to_party = $1
ORDER BY started_at DESC
`
	rows, err := s.db.QueryContext(ctx, q, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectRecord = `
SELECT call_id, COALESCE(provider_call_id, ''), from_party, to_party, direction, status,
       error_detail, duration_seconds, started_at, ended_at
FROM call_records
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (CallRecord, error) {
	var rec CallRecord
	err := r.Scan(
		&rec.CallID,
		&rec.ProviderCallID,
		&rec.FromParty,
		&rec.ToParty,
		&rec.Direction,
		&rec.Status,
		&rec.ErrorDetail,
		&rec.DurationSeconds,
		&rec.StartedAt,
		&rec.EndedAt,
	)
	return rec, err
}

func findRecord(ctx context.Context, db *sql.DB, key Key) (CallRecord, error) {
	q, arg, err := keyedQuery(selectRecord, key, "")
	if err != nil {
		return CallRecord{}, err
	}
	rec, err := scanRecord(db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

func lockRecord(ctx context.Context, tx *sql.Tx, key Key) (CallRecord, error) {
	q, arg, err := keyedQuery(selectRecord, key, "FOR UPDATE")
	if err != nil {
		return CallRecord{}, err
	}
	rec, err := scanRecord(tx.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

func keyedQuery(base string, key Key, suffix string) (string, string, error) {
	switch {
	case key.Internal != "":
		return base + "WHERE call_id = $1\n" + suffix, key.Internal, nil
	case key.Provider != "":
		return base + "WHERE provider_call_id = $1\n" + suffix, key.Provider, nil
	default:
		return "", "", ErrInvalidArgument
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
