package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/token/refresh"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

const (
	insertQuery     = `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*FALSE,\s*\$5\)\s*ON\s+CONFLICT\s+\(token_id\)\s+DO\s+NOTHING\s*$`
	findByIDQuery   = `^SELECT\s+token_id,\s*user_id,\s*token,\s*expires_at,\s*revoked,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token_id\s*=\s*\$1$`
	findByTokQuery  = `^SELECT\s+.*\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1$`
	findOwnerQuery  = `^SELECT\s+.*\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at$`
	markQuery       = `^UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*TRUE\s+WHERE\s+token_id\s*=\s*\$1\s+AND\s+revoked\s*=\s*FALSE$`
	existsQuery     = `^SELECT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+refresh_tokens\s+WHERE\s+token_id\s*=\s*\$1\)$`
	deleteExpiredQ  = `^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<=\s*\$1$`
)

var columns = []string{"token_id", "user_id", "token", "expires_at", "revoked", "created_at"}

func newLedgerWithMock(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewLedger(db), mock
}

func testRecord() *refresh.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &refresh.Record{
		TokenID:   "jti-1",
		UserID:    "u1",
		Token:     "raw-token",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	rec := testRecord()

	t.Run("success", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectExec(insertQuery).
			WithArgs(rec.TokenID, rec.UserID, rec.Token, rec.ExpiresAt, rec.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, l.Insert(ctx, rec))
	})

	t.Run("duplicate", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectExec(insertQuery).
			WithArgs(rec.TokenID, rec.UserID, rec.Token, rec.ExpiresAt, rec.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 0))
		require.ErrorIs(t, l.Insert(ctx, rec), autherrors.ErrDuplicateRecord)
	})

	t.Run("db error", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectExec(insertQuery).WillReturnError(errors.New("db down"))
		err := l.Insert(ctx, rec)
		require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)
		require.ErrorContains(t, err, "db down")
	})
}

func TestFindByID(t *testing.T) {
	ctx := context.Background()
	rec := testRecord()

	t.Run("found", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectQuery(findByIDQuery).
			WithArgs(rec.TokenID).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(rec.TokenID, rec.UserID, rec.Token, rec.ExpiresAt, true, rec.CreatedAt))

		got, err := l.FindByID(ctx, rec.TokenID)
		require.NoError(t, err)
		require.Equal(t, rec.UserID, got.UserID)
		require.True(t, got.Revoked)
		require.True(t, got.ExpiresAt.Equal(rec.ExpiresAt))
	})

	t.Run("not found", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectQuery(findByIDQuery).WithArgs("missing").WillReturnError(sql.ErrNoRows)
		_, err := l.FindByID(ctx, "missing")
		require.ErrorIs(t, err, autherrors.ErrRecordNotFound)
	})

	t.Run("timeout", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectQuery(findByIDQuery).WithArgs(rec.TokenID).WillReturnError(context.DeadlineExceeded)
		_, err := l.FindByID(ctx, rec.TokenID)
		require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)
	})
}

func TestFindByToken(t *testing.T) {
	l, mock := newLedgerWithMock(t)
	rec := testRecord()
	mock.ExpectQuery(findByTokQuery).
		WithArgs(rec.Token).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(rec.TokenID, rec.UserID, rec.Token, rec.ExpiresAt, false, rec.CreatedAt))

	got, err := l.FindByToken(context.Background(), rec.Token)
	require.NoError(t, err)
	require.Equal(t, rec.TokenID, got.TokenID)
}

func TestFindByOwner(t *testing.T) {
	l, mock := newLedgerWithMock(t)
	rec := testRecord()
	mock.ExpectQuery(findOwnerQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a", "u1", "ta", rec.ExpiresAt, false, rec.CreatedAt).
			AddRow("b", "u1", "tb", rec.ExpiresAt, true, rec.CreatedAt.Add(time.Second)))

	got, err := l.FindByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].TokenID)
	require.True(t, got[1].Revoked)
}

func TestMarkRevoked(t *testing.T) {
	ctx := context.Background()

	t.Run("winner", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectExec(markQuery).WithArgs("jti-1").WillReturnResult(sqlmock.NewResult(0, 1))
		flipped, err := l.MarkRevoked(ctx, "jti-1")
		require.NoError(t, err)
		require.True(t, flipped)
	})

	t.Run("already revoked", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectExec(markQuery).WithArgs("jti-1").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(existsQuery).WithArgs("jti-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		flipped, err := l.MarkRevoked(ctx, "jti-1")
		require.NoError(t, err)
		require.False(t, flipped)
	})

	t.Run("missing", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectExec(markQuery).WithArgs("jti-1").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(existsQuery).WithArgs("jti-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		_, err := l.MarkRevoked(ctx, "jti-1")
		require.ErrorIs(t, err, autherrors.ErrRecordNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		l, mock := newLedgerWithMock(t)
		mock.ExpectExec(markQuery).WithArgs("jti-1").WillReturnError(errors.New("conn reset"))
		_, err := l.MarkRevoked(ctx, "jti-1")
		require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)
	})
}

func TestDeleteExpired(t *testing.T) {
	l, mock := newLedgerWithMock(t)
	now := time.Now()
	mock.ExpectExec(deleteExpiredQ).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := l.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var calledDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		calledDir = dir
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))
	require.Equal(t, ".", calledDir)

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	require.ErrorContains(t, RunMigrations(context.Background(), db), "boom")
}
