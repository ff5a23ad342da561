// Package postgres provides a PostgreSQL-backed refresh token ledger for
// multi-process deployments. Row-level atomicity comes from single-statement
// INSERT ... ON CONFLICT and conditional UPDATE.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/token/refresh"
)

// DBTX is the subset of database/sql used by the ledger.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ refresh.Ledger = (*Ledger)(nil)

// Ledger implements refresh.Ledger over DBTX.
type Ledger struct {
	db DBTX
}

// NewLedger constructs a ledger bound to the given DBTX.
func NewLedger(db DBTX) *Ledger {
	return &Ledger{db: db}
}

const selectColumns = `token_id, user_id, token, expires_at, revoked, created_at`

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", autherrors.ErrLedgerUnavailable, op, err)
}

// Insert stores a new record. A token id collision leaves the existing row untouched.
func (l *Ledger) Insert(ctx context.Context, record *refresh.Record) error {
	query := `
		INSERT INTO refresh_tokens (token_id, user_id, token, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (token_id) DO NOTHING
	`
	res, err := l.db.ExecContext(ctx, query, record.TokenID, record.UserID, record.Token, record.ExpiresAt, record.CreatedAt)
	if err != nil {
		return unavailable("insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("insert", err)
	}
	if n == 0 {
		return autherrors.ErrDuplicateRecord
	}
	return nil
}

func (l *Ledger) findOne(ctx context.Context, op, where string, arg string) (*refresh.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM refresh_tokens WHERE ` + where + ` = $1`
	rec := &refresh.Record{}
	err := l.db.QueryRowContext(ctx, query, arg).
		Scan(&rec.TokenID, &rec.UserID, &rec.Token, &rec.ExpiresAt, &rec.Revoked, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherrors.ErrRecordNotFound
		}
		return nil, unavailable(op, err)
	}
	return rec, nil
}

func (l *Ledger) FindByID(ctx context.Context, tokenID string) (*refresh.Record, error) {
	return l.findOne(ctx, "find by id", "token_id", tokenID)
}

func (l *Ledger) FindByToken(ctx context.Context, token string) (*refresh.Record, error) {
	return l.findOne(ctx, "find by token", "token", token)
}

func (l *Ledger) FindByOwner(ctx context.Context, userID string) ([]*refresh.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM refresh_tokens WHERE user_id = $1 ORDER BY created_at`
	rows, err := l.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, unavailable("find by owner", err)
	}
	defer rows.Close()

	records := make([]*refresh.Record, 0)
	for rows.Next() {
		rec := &refresh.Record{}
		if err := rows.Scan(&rec.TokenID, &rec.UserID, &rec.Token, &rec.ExpiresAt, &rec.Revoked, &rec.CreatedAt); err != nil {
			return nil, unavailable("find by owner", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("find by owner", err)
	}
	return records, nil
}

// MarkRevoked relies on the row lock taken by UPDATE: of several concurrent
// callers only one sees revoked = FALSE and affects a row.
func (l *Ledger) MarkRevoked(ctx context.Context, tokenID string) (bool, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE token_id = $1 AND revoked = FALSE`
	res, err := l.db.ExecContext(ctx, query, tokenID)
	if err != nil {
		return false, unavailable("mark revoked", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("mark revoked", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := l.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_id = $1)`, tokenID).Scan(&exists); err != nil {
		return false, unavailable("mark revoked", err)
	}
	if !exists {
		return false, autherrors.ErrRecordNotFound
	}
	return false, nil
}

func (l *Ledger) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, unavailable("delete expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("delete expired", err)
	}
	return int(n), nil
}
