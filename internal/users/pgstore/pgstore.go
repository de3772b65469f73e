// Package pgstore stores user records in postgres. The unique index on
// email_key makes the conditional insert atomic: concurrent first sign-ins
// for one key produce one row.
package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"net"

	"ignews-service/internal/users"

	"github.com/lib/pq"
)

const upsertQuery = `
	WITH inserted AS (
		INSERT INTO users (email_key, data)
		VALUES ($1, jsonb_build_object('email', $2::text))
		ON CONFLICT (email_key) DO NOTHING
		RETURNING id, email_key, data, created_at
	)
	SELECT id, email_key, data, created_at, true FROM inserted
	UNION ALL
	SELECT id, email_key, data, created_at, false FROM users
	WHERE email_key = $1 AND NOT EXISTS (SELECT 1 FROM inserted)
	LIMIT 1
`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db queryer
}

func New(db queryer) *Store {
	return &Store{db: db}
}

func (s *Store) Upsert(ctx context.Context, key string, email string) (users.Result, error) {
	var (
		rec     users.Record
		data    []byte
		created bool
	)

	err := s.db.QueryRowContext(ctx, upsertQuery, key, email).
		Scan(&rec.ID, &rec.Key, &data, &rec.CreatedAt, &created)
	if err != nil {
		// ON CONFLICT hit a row committed after this statement's snapshot;
		// the fetch half cannot see it yet, a retry will.
		if errors.Is(err, sql.ErrNoRows) {
			return users.Result{}, users.NewTransient("pg upsert", users.ErrNotVisible)
		}
		return users.Result{}, classify("pg upsert", err)
	}

	if err := json.Unmarshal(data, &rec.Data); err != nil {
		return users.Result{}, users.NewPermanent("pg decode", err)
	}

	outcome := users.Fetched
	if created {
		outcome = users.Created
	}

	return users.Result{Record: rec, Outcome: outcome}, nil
}

// classify maps driver errors onto failure kinds. Connection problems,
// serialization conflicts, resource exhaustion and shutdowns are worth a
// retry; everything else (syntax, missing relation, bad input) is not.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return users.NewTransient(op, err)
		default:
			return users.NewPermanent(op, err)
		}
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return users.NewTransient(op, err)
	}

	return users.NewPermanent(op, err)
}
